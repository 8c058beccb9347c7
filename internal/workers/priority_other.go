//go:build !windows

package workers

// Lane ordering is the only scheduling mechanism on these platforms.
func applyThreadPriority(Priority) func() { return func() {} }

// BeginBackgroundIO is a no-op outside Windows.
func BeginBackgroundIO() func() { return func() {} }
