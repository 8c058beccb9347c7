package library

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"photo-gallery/internal/logging"
	"photo-gallery/internal/metrics"
	"photo-gallery/internal/scanner"
)

// ScanProgress tracks the current or last scan.
type ScanProgress struct {
	Scanning     bool      `json:"scanning"`
	Found        int64     `json:"found"`
	StartedAt    time.Time `json:"startedAt,omitempty"`
	LastComplete time.Time `json:"lastComplete,omitempty"`
	LastDuration string    `json:"lastDuration,omitempty"`
	LastError    string    `json:"lastError,omitempty"`
	Runs         uint64    `json:"runs"`
}

// Progress returns the scan state.
func (l *Library) Progress() ScanProgress {
	l.scanMu.Lock()
	defer l.scanMu.Unlock()

	p := ScanProgress{
		Scanning:     l.scanning.Load(),
		Found:        l.scanFound.Load(),
		LastComplete: l.lastScan,
		Runs:         l.scanRuns,
	}
	if p.Scanning {
		p.StartedAt = l.scanStarted
	}
	if l.lastDuration > 0 {
		p.LastDuration = l.lastDuration.Round(time.Millisecond).String()
	}
	if l.lastScanErr != nil {
		p.LastError = l.lastScanErr.Error()
	}
	return p
}

// IsScanning reports whether a scan is running.
func (l *Library) IsScanning() bool {
	return l.scanning.Load()
}

// ScanFolders returns the folders a library scan covers: album folders, the
// configured folders and, if enabled, the system picture folders. Entries
// naming the same directory are listed once.
func (l *Library) ScanFolders() []string {
	var folders []string
	if l.store != nil {
		ctx, cancel := context.WithTimeout(l.ctx, 5*time.Second)
		albums, err := l.store.AlbumFolders(ctx)
		cancel()
		if err != nil {
			logging.Warn("Failed to read album folders: %v", err)
		}
		folders = append(folders, albums...)
	}
	folders = append(folders, l.cfg.Folders...)
	if l.cfg.IncludeSystemFolders {
		folders = append(folders, scanner.SystemImageFolders()...)
	}
	return dedupFolders(folders)
}

func dedupFolders(folders []string) []string {
	seen := make(map[string]bool, len(folders))
	unique := make([]string, 0, len(folders))
	for _, f := range folders {
		key := f
		if abs, err := filepath.Abs(f); err == nil {
			key = abs
		}
		if resolved, err := filepath.EvalSymlinks(key); err == nil {
			key = resolved
		}
		key = strings.ToLower(filepath.Clean(key))
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, f)
	}
	return unique
}

// StartScan cancels any running scan and starts a full library scan in the
// background. Results reach the gallery through CheckScanProgress.
func (l *Library) StartScan() {
	l.startMu.Lock()
	defer l.startMu.Unlock()

	if l.ctx.Err() != nil {
		return
	}
	l.cancelScan()

	folders := l.ScanFolders()
	logging.Info("Full scan: %d folders", len(folders))
	l.restartWatcher(folders)

	ctx, cancel := context.WithCancel(l.ctx)
	done := make(chan struct{})

	l.scanMu.Lock()
	l.scanCancel = cancel
	l.scanDone = done
	l.scanStarted = time.Now()
	l.scanRuns++
	l.scanMu.Unlock()

	l.scanFound.Store(0)
	l.scanning.Store(true)
	metrics.ScanInProgress.Set(1)

	go l.runScan(ctx, cancel, done, folders)
}

func (l *Library) runScan(ctx context.Context, cancel context.CancelFunc, done chan struct{}, folders []string) {
	defer close(done)
	defer cancel()

	start := time.Now()
	results, err := scanner.ScanFolders(ctx, folders, scanner.Options{
		MinSize:       l.cfg.MinImageSize,
		FlushInterval: l.cfg.ScanFlushInterval,
		Workers:       l.cfg.ScanWorkers,
		Progress:      &l.scanFound,
		Flush: func(snapshot []scanner.ScannedImage) {
			l.publish(snapshot, false)
		},
	})

	l.scanMu.Lock()
	if err == nil {
		l.lastScan = time.Now()
		l.lastDuration = time.Since(start)
		l.lastScanErr = nil
	} else if !errors.Is(err, context.Canceled) {
		l.lastScanErr = err
	}
	l.scanMu.Unlock()

	if err == nil {
		l.publish(results, true)
	} else {
		// A cancelled scan leaves the gallery on its last published state.
		logging.Debug("Scan ended without result: %v", err)
	}

	l.scanning.Store(false)
	metrics.ScanInProgress.Set(0)
}

// publish hands a scan snapshot to the frame loop.
func (l *Library) publish(images []scanner.ScannedImage, final bool) {
	l.snapMu.Lock()
	l.snapshot = images
	l.snapFinal = final
	l.snapMu.Unlock()
	l.snapDirty.Store(true)
}

// cancelScan stops the running scan, if any, and waits for it to end.
// Snapshots it published but nobody consumed yet are dropped.
func (l *Library) cancelScan() {
	l.scanMu.Lock()
	cancel, done := l.scanCancel, l.scanDone
	l.scanCancel, l.scanDone = nil, nil
	l.scanMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	l.snapMu.Lock()
	l.snapshot = nil
	l.snapFinal = false
	l.snapMu.Unlock()
	l.snapDirty.Store(false)
}

// CheckScanProgress installs the newest scan snapshot, if one arrived since
// the last call, and reports whether the image list changed. When the scan
// has finished, the result and the thumbnails decoded so far are saved in
// the background.
func (l *Library) CheckScanProgress() bool {
	if !l.snapDirty.Swap(false) {
		return false
	}

	l.snapMu.Lock()
	images, final := l.snapshot, l.snapFinal
	l.snapMu.Unlock()

	if images == nil && !final {
		return false
	}

	l.setImages(images, ModeLibrary, "")
	logging.Debug("Gallery updated: %d images (final=%v)", len(images), final)

	if final {
		l.saveInBackground(images)
	}
	return true
}

// saveInBackground writes the scan cache (when images is non-nil) and the
// thumbnail cache on a background goroutine. Saves run one at a time. A
// thumbnail-only request made while a save runs is dropped; the running save
// or the next trigger picks up its work.
func (l *Library) saveInBackground(images []scanner.ScannedImage) {
	if images == nil && !l.saving.CompareAndSwap(false, true) {
		logging.Debug("Cache save already running, skipping")
		return
	}
	l.saving.Store(true)

	l.saveWG.Add(1)
	go func() {
		defer l.saveWG.Done()
		l.saveMu.Lock()
		defer l.saveMu.Unlock()
		defer l.saving.Store(false)

		if l.monitor != nil {
			if err := l.monitor.WaitIfPaused(l.ctx); err != nil {
				logging.Debug("Saving caches without waiting for memory: %v", err)
			}
		}

		if images != nil {
			if err := scanner.SaveScanCache(l.ScanCachePath(), images); err != nil {
				logging.Error("Failed to save scan cache: %v", err)
			}
		}
		l.saveThumbs()
	}()
}

// saveThumbs writes unsaved thumbnails into the persistent cache.
func (l *Library) saveThumbs() {
	n, err := l.pipe.SavePersistentThumbs(l.ThumbCachePath())
	if err != nil {
		metrics.CacheFileOperations.WithLabelValues("thumbs", "save", "error").Inc()
		logging.Error("Failed to save thumbnail cache: %v", err)
		return
	}
	metrics.CacheFileOperations.WithLabelValues("thumbs", "save", "success").Inc()
	metrics.CacheFileEntries.WithLabelValues("thumbs").Set(float64(n))
}

// restartWatcher watches folders for changes, replacing the previous
// watcher when the folder set differs.
func (l *Library) restartWatcher(folders []string) {
	if !l.cfg.Watch {
		return
	}

	l.watchMu.Lock()
	defer l.watchMu.Unlock()

	if l.watchCancel != nil && slices.Equal(l.watchRoots, folders) {
		return
	}
	if l.watchCancel != nil {
		l.watchCancel()
		l.watchCancel = nil
	}
	if len(folders) == 0 || l.ctx.Err() != nil {
		return
	}

	w, err := scanner.NewWatcher(folders, l.cfg.WatchDebounce, l.onFolderChange)
	if err != nil {
		logging.Warn("Folder watching disabled: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(l.ctx)
	l.watchCancel = cancel
	l.watchRoots = slices.Clone(folders)
	l.watchWG.Add(1)
	go func() {
		defer l.watchWG.Done()
		w.Run(ctx)
	}()
}

func (l *Library) stopWatcher() {
	l.watchMu.Lock()
	defer l.watchMu.Unlock()
	if l.watchCancel != nil {
		l.watchCancel()
		l.watchCancel = nil
	}
	l.watchRoots = nil
}

// onFolderChange runs on the watcher's debounce goroutine.
func (l *Library) onFolderChange() {
	if l.ctx.Err() != nil {
		return
	}
	if mode, _ := l.Mode(); mode != ModeLibrary {
		return
	}
	logging.Info("Image changes detected, rescanning")
	l.StartScan()
}
