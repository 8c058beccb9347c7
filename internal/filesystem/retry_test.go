package filesystem

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"
)

type recordingObserver struct {
	attempts, successes, failures, transient int
}

func (r *recordingObserver) ObserveRetryAttempt(string) { r.attempts++ }
func (r *recordingObserver) ObserveRetrySuccess(string) { r.successes++ }
func (r *recordingObserver) ObserveRetryFailure(string) { r.failures++ }
func (r *recordingObserver) ObserveRetryDuration(string, float64) {}
func (r *recordingObserver) ObserveTransientError(string) { r.transient++ }

func fastConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     4 * time.Millisecond,
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", config.MaxRetries)
	}
	if config.InitialBackoff != 50*time.Millisecond {
		t.Errorf("InitialBackoff = %v, want 50ms", config.InitialBackoff)
	}
	if config.MaxBackoff != 500*time.Millisecond {
		t.Errorf("MaxBackoff = %v, want 500ms", config.MaxBackoff)
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil error", err: nil, want: false},
		{name: "ESTALE", err: syscall.ESTALE, want: true},
		{name: "EBUSY", err: syscall.EBUSY, want: true},
		{name: "EAGAIN", err: syscall.EAGAIN, want: true},
		{name: "wrapped ESTALE", err: &os.PathError{Op: "open", Path: "/x", Err: syscall.ESTALE}, want: true},
		{name: "ENOENT", err: syscall.ENOENT, want: false},
		{name: "not exist", err: os.ErrNotExist, want: false},
		{name: "generic", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestWithRetry(t *testing.T) {
	tests := []struct {
		name         string
		failures     int
		failErr      error
		wantErr      bool
		wantCalls    int
		wantSuccess  int
		wantFailures int
	}{
		{name: "first attempt succeeds", failures: 0, wantCalls: 1},
		{name: "succeeds after transient errors", failures: 2, failErr: syscall.ESTALE, wantCalls: 3, wantSuccess: 1},
		{name: "gives up after max retries", failures: 10, failErr: syscall.EBUSY, wantErr: true, wantCalls: 4, wantFailures: 1},
		{name: "non-transient fails fast", failures: 10, failErr: os.ErrPermission, wantErr: true, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs := &recordingObserver{}
			SetObserver(obs)
			defer SetObserver(nil)

			calls := 0
			v, err := withRetry("open", "/photos/a.jpg", fastConfig(), func() (int, error) {
				calls++
				if calls <= tt.failures {
					return 0, tt.failErr
				}
				return 42, nil
			})

			if (err != nil) != tt.wantErr {
				t.Fatalf("withRetry() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && v != 42 {
				t.Errorf("withRetry() = %d, want 42", v)
			}
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if obs.successes != tt.wantSuccess {
				t.Errorf("successes = %d, want %d", obs.successes, tt.wantSuccess)
			}
			if obs.failures != tt.wantFailures {
				t.Errorf("failures = %d, want %d", obs.failures, tt.wantFailures)
			}
		})
	}
}

func TestStatAndOpenWithRetry(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "test.txt")
	content := []byte("test content")
	if err := os.WriteFile(testFile, content, 0o644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	info, err := StatWithRetry(testFile, fastConfig())
	if err != nil {
		t.Fatalf("StatWithRetry() error = %v", err)
	}
	if info.Size() != int64(len(content)) {
		t.Errorf("Size() = %d, want %d", info.Size(), len(content))
	}

	f, err := OpenWithRetry(testFile, fastConfig())
	if err != nil {
		t.Fatalf("OpenWithRetry() error = %v", err)
	}
	defer f.Close()
	got, _ := io.ReadAll(f)
	if !bytes.Equal(got, content) {
		t.Errorf("content = %q, want %q", got, content)
	}

	entries, err := ReadDirWithRetry(tmpDir, fastConfig())
	if err != nil || len(entries) != 1 {
		t.Errorf("ReadDirWithRetry() = %d entries, err %v; want 1, nil", len(entries), err)
	}

	if _, err := StatWithRetry(filepath.Join(tmpDir, "missing"), fastConfig()); !os.IsNotExist(err) {
		t.Errorf("StatWithRetry(missing) error = %v, want not-exist", err)
	}
	if _, err := OpenWithRetry(filepath.Join(tmpDir, "missing"), fastConfig()); !os.IsNotExist(err) {
		t.Errorf("OpenWithRetry(missing) error = %v, want not-exist", err)
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.bin")

	if err := os.WriteFile(path, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Run("replaces content", func(t *testing.T) {
		err := WriteFileAtomic(path, func(w io.Writer) error {
			_, err := w.Write([]byte("new"))
			return err
		})
		if err != nil {
			t.Fatalf("WriteFileAtomic() error = %v", err)
		}
		got, _ := os.ReadFile(path)
		if string(got) != "new" {
			t.Errorf("content = %q, want %q", got, "new")
		}
		if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
			t.Error("temp file left behind")
		}
	})

	t.Run("failed write keeps previous file", func(t *testing.T) {
		err := WriteFileAtomic(path, func(w io.Writer) error {
			_, _ = w.Write([]byte("partial"))
			return fmt.Errorf("encoder failed")
		})
		if err == nil {
			t.Fatal("WriteFileAtomic() error = nil, want error")
		}
		got, _ := os.ReadFile(path)
		if string(got) != "new" {
			t.Errorf("content = %q, want previous %q", got, "new")
		}
		if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
			t.Error("temp file left behind after failure")
		}
	})
}

func TestAtomicFileCloseBeforeCommit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "thumbs.bin")
	if err := os.WriteFile(path, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	a, err := CreateAtomic(path)
	if err != nil {
		t.Fatalf("CreateAtomic() error = %v", err)
	}
	if _, err := a.Write([]byte("fresh")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	got, _ := os.ReadFile(path)
	if string(got) != "old" {
		t.Errorf("content before Commit = %q, want %q", got, "old")
	}

	if err := a.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	got, _ = os.ReadFile(path)
	if string(got) != "fresh" {
		t.Errorf("content after Commit = %q, want %q", got, "fresh")
	}

	a.Abort()
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Abort after Commit removed the file: %v", err)
	}
}

func TestAtomicFileAbort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thumbs.bin")

	a, err := CreateAtomic(path)
	if err != nil {
		t.Fatalf("CreateAtomic() error = %v", err)
	}
	_, _ = a.Write([]byte("discard me"))
	a.Abort()

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("destination exists after Abort: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temp file exists after Abort: %v", err)
	}
}

func BenchmarkStatWithRetry_Success(b *testing.B) {
	testFile := filepath.Join(b.TempDir(), "test.txt")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		b.Fatalf("Failed to create test file: %v", err)
	}

	config := DefaultRetryConfig()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := StatWithRetry(testFile, config); err != nil {
			b.Fatalf("StatWithRetry error: %v", err)
		}
	}
}
