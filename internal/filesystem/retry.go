package filesystem

import (
	"errors"
	"os"
	"syscall"
	"time"

	"photo-gallery/internal/logging"
)

// RetryConfig configures retry behavior for filesystem operations
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig returns the defaults used for source image reads.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     500 * time.Millisecond,
	}
}

// IsTransient reports whether err is worth retrying: stale network handles,
// busy or temporarily unavailable resources, and (on Windows) sharing or lock
// violations from another process holding the file open.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ESTALE, syscall.EBUSY, syscall.EAGAIN:
			return true
		}
	}

	return isPlatformTransient(err)
}

// StatWithRetry performs os.Stat, retrying transient errors.
func StatWithRetry(path string, config RetryConfig) (os.FileInfo, error) {
	return withRetry("stat", path, config, func() (os.FileInfo, error) {
		return os.Stat(path)
	})
}

// OpenWithRetry performs os.Open, retrying transient errors.
func OpenWithRetry(path string, config RetryConfig) (*os.File, error) {
	return withRetry("open", path, config, func() (*os.File, error) {
		return os.Open(path)
	})
}

// ReadDirWithRetry performs os.ReadDir, retrying transient errors.
func ReadDirWithRetry(path string, config RetryConfig) ([]os.DirEntry, error) {
	return withRetry("readdir", path, config, func() ([]os.DirEntry, error) {
		return os.ReadDir(path)
	})
}

func withRetry[T any](op, path string, config RetryConfig, fn func() (T, error)) (T, error) {
	obs := observe()
	start := time.Now()
	defer func() { obs.ObserveRetryDuration(op, time.Since(start).Seconds()) }()

	backoff := config.InitialBackoff
	var zero T
	for attempt := 0; ; attempt++ {
		v, err := fn()
		switch {
		case err == nil:
			if attempt > 0 {
				logging.Info("%s succeeded on retry %d for %s", op, attempt, path)
				obs.ObserveRetrySuccess(op)
			}
			return v, nil
		case !IsTransient(err):
			return zero, err
		}

		obs.ObserveTransientError(op)
		if attempt >= config.MaxRetries {
			logging.Warn("%s failed after %d retries for %s: %v", op, config.MaxRetries, path, err)
			obs.ObserveRetryFailure(op)
			return zero, err
		}

		obs.ObserveRetryAttempt(op)
		logging.Debug("%s transient error for %s, retrying in %v (attempt %d/%d): %v",
			op, path, backoff, attempt+1, config.MaxRetries, err)
		time.Sleep(backoff)
		backoff = min(backoff*2, config.MaxBackoff)
	}
}
