package filesystem

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// AtomicFile streams into path+".tmp" and replaces path on Commit. Readers
// see either the old file or the complete new one.
type AtomicFile struct {
	path string
	tmp  string
	f    *os.File
	bw   *bufio.Writer
	done bool
}

// CreateAtomic opens the temporary file for path.
func CreateAtomic(path string) (*AtomicFile, error) {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	return &AtomicFile{
		path: path,
		tmp:  tmp,
		f:    f,
		bw:   bufio.NewWriterSize(f, 1<<20),
	}, nil
}

// Write implements io.Writer.
func (a *AtomicFile) Write(p []byte) (int, error) {
	return a.bw.Write(p)
}

// Close flushes, syncs and closes the temporary file without replacing path.
// Callers that hold path open (for example mapped into memory) release it
// between Close and Commit.
func (a *AtomicFile) Close() error {
	if a.f == nil {
		return nil
	}
	f := a.f
	a.f = nil

	if err := a.bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flush temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	return nil
}

// Commit closes the temporary file if needed and renames it over path.
func (a *AtomicFile) Commit() error {
	if a.done {
		return nil
	}
	if err := a.Close(); err != nil {
		a.Abort()
		return err
	}
	if err := os.Rename(a.tmp, a.path); err != nil {
		a.Abort()
		return fmt.Errorf("replace %s: %w", a.path, err)
	}
	a.done = true
	return nil
}

// Abort discards the temporary file. It is a no-op after Commit.
func (a *AtomicFile) Abort() {
	if a.done {
		return
	}
	a.done = true
	if a.f != nil {
		a.f.Close()
		a.f = nil
	}
	os.Remove(a.tmp)
}

// WriteFileAtomic writes path through an AtomicFile.
func WriteFileAtomic(path string, write func(w io.Writer) error) error {
	a, err := CreateAtomic(path)
	if err != nil {
		return err
	}
	if err := write(a); err != nil {
		a.Abort()
		return err
	}
	return a.Commit()
}
