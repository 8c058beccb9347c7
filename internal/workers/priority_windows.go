//go:build windows

package workers

import (
	"runtime"

	"golang.org/x/sys/windows"
)

// Win32 thread priority values. x/sys/windows does not export these.
const (
	threadPriorityBelowNormal = -1
	threadPriorityNormal      = 0
	threadPriorityAboveNormal = 1

	threadModeBackgroundBegin = 0x00010000
	threadModeBackgroundEnd   = 0x00020000
)

var procSetThreadPriority = windows.NewLazySystemDLL("kernel32.dll").NewProc("SetThreadPriority")

func setThreadPriority(prio int32) bool {
	if procSetThreadPriority.Find() != nil {
		return false
	}
	r, _, _ := procSetThreadPriority.Call(uintptr(windows.CurrentThread()), uintptr(prio))
	return r != 0
}

// applyThreadPriority pins the goroutine to its OS thread and adjusts the
// thread priority for the lane. The returned func undoes both.
func applyThreadPriority(lane Priority) func() {
	var prio int32
	switch lane {
	case High:
		prio = threadPriorityAboveNormal
	case Low:
		prio = threadPriorityBelowNormal
	default:
		return func() {}
	}

	runtime.LockOSThread()
	if !setThreadPriority(prio) {
		runtime.UnlockOSThread()
		return func() {}
	}
	return func() {
		setThreadPriority(threadPriorityNormal)
		runtime.UnlockOSThread()
	}
}

// BeginBackgroundIO lowers I/O and memory priority of the calling thread until
// the returned func runs.
func BeginBackgroundIO() func() {
	runtime.LockOSThread()
	if !setThreadPriority(threadModeBackgroundBegin) {
		runtime.UnlockOSThread()
		return func() {}
	}
	return func() {
		setThreadPriority(threadModeBackgroundEnd)
		runtime.UnlockOSThread()
	}
}
