//go:build !windows

package filesystem

func isPlatformTransient(error) bool { return false }
