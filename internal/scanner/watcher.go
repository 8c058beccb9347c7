package scanner

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"photo-gallery/internal/logging"
	"photo-gallery/internal/media"
	"photo-gallery/internal/metrics"

	"github.com/charlievieth/fastwalk"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a watched tree must stay quiet before
// OnChange fires.
const DefaultDebounce = 2 * time.Second

// Watcher reports image changes below a set of folders. Bursts of events are
// coalesced so one copy of a hundred photos produces one callback.
type Watcher struct {
	roots    []string
	debounce time.Duration
	onChange func()

	watcher *fsnotify.Watcher

	mu      sync.Mutex
	timer   *time.Timer
	watched int
}

// NewWatcher creates a watcher over roots. onChange runs on its own goroutine
// after debounce of quiet following a relevant event.
func NewWatcher(roots []string, debounce time.Duration, onChange func()) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		metrics.WatcherErrors.Inc()
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		roots:    roots,
		debounce: debounce,
		onChange: onChange,
		watcher:  w,
	}, nil
}

// Run adds every scannable directory below the roots and processes events
// until ctx is done. The underlying watcher is closed on return.
func (w *Watcher) Run(ctx context.Context) {
	defer func() {
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
		if err := w.watcher.Close(); err != nil {
			logging.Error("failed to close file watcher: %v", err)
		}
		metrics.WatchedDirectories.Set(0)
	}()

	for _, root := range w.roots {
		w.addTree(ctx, root)
	}
	logging.Debug("Folder watcher started, watching %d directories", w.Watched())

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Error("Watcher error: %v", err)
			metrics.WatcherErrors.Inc()
		}
	}
}

// Watched returns the number of directories currently registered.
func (w *Watcher) Watched() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.watched
}

// addTree registers dir and every directory below it that a scan would enter.
func (w *Watcher) addTree(ctx context.Context, dir string) {
	conf := &fastwalk.Config{Follow: false}
	err := fastwalk.Walk(conf, dir, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != dir && SkipDirectory(d.Name()) {
			return fastwalk.SkipDir
		}
		w.add(path)
		return nil
	})
	if err != nil && ctx.Err() == nil {
		logging.Error("failed to walk %s for watcher: %v", dir, err)
		metrics.WatcherErrors.Inc()
	}
}

func (w *Watcher) add(dir string) {
	if err := w.watcher.Add(dir); err != nil {
		logging.Warn("failed to add path to watcher %s: %v", dir, err)
		metrics.WatcherErrors.Inc()
		return
	}
	w.mu.Lock()
	w.watched++
	n := w.watched
	w.mu.Unlock()
	metrics.WatchedDirectories.Set(float64(n))
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	name := filepath.Base(event.Name)
	if len(name) > 0 && name[0] == '.' {
		return
	}
	metrics.WatcherEventsTotal.WithLabelValues(eventType(event.Op)).Inc()

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !SkipDirectory(name) {
				w.addTree(ctx, event.Name)
				w.schedule()
			}
			return
		}
	}

	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	// Removed directories carry no extension; treat them as relevant too.
	if media.IsSupportedExtension(event.Name) || filepath.Ext(event.Name) == "" {
		w.schedule()
	}
}

// schedule (re)arms the debounce timer.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Reset(w.debounce)
		return
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		if w.onChange != nil {
			w.onChange()
		}
	})
}

func eventType(op fsnotify.Op) string {
	switch {
	case op&fsnotify.Create != 0:
		return "create"
	case op&fsnotify.Write != 0:
		return "write"
	case op&fsnotify.Remove != 0:
		return "remove"
	case op&fsnotify.Rename != 0:
		return "rename"
	case op&fsnotify.Chmod != 0:
		return "chmod"
	default:
		return "unknown"
	}
}
