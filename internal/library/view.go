package library

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"photo-gallery/internal/albums"
	"photo-gallery/internal/logging"
	"photo-gallery/internal/metrics"
	"photo-gallery/internal/pipeline"
	"photo-gallery/internal/scanner"
)

// ErrNoStore is returned by album and recent-file operations when the
// library was created without a store.
var ErrNoStore = errors.New("album store not configured")

// ErrClosed is returned by RunOnFrame after Close.
var ErrClosed = errors.New("library closed")

// Viewport is the range of images currently on screen.
type Viewport struct {
	Start int `json:"start"`
	Count int `json:"count"`
}

// SetViewport sets the on-screen range for the next frame. Count is at
// least one.
func (l *Library) SetViewport(start, count int) {
	if start < 0 {
		start = 0
	}
	if count < 1 {
		count = 1
	}
	l.viewMu.Lock()
	l.viewStart = start
	l.viewCount = count
	l.viewMu.Unlock()
}

// Viewport returns the on-screen range.
func (l *Library) Viewport() Viewport {
	l.viewMu.Lock()
	defer l.viewMu.Unlock()
	return Viewport{Start: l.viewStart, Count: l.viewCount}
}

// advanceViewport clamps the viewport to total images and reports whether
// it moved far enough since the previous frame to count as fast scrolling.
func (l *Library) advanceViewport(total int) (start, end int, fast bool) {
	l.viewMu.Lock()
	defer l.viewMu.Unlock()

	if l.viewStart > total-1 {
		l.viewStart = max(0, total-1)
	}
	start = l.viewStart
	end = min(total, start+l.viewCount)

	jump := l.cfg.FastScrollJump
	if jump <= 0 {
		jump = 2 * l.viewCount
	}
	delta := start - l.lastStart
	if delta < 0 {
		delta = -delta
	}
	fast = delta > jump
	l.lastStart = start
	return start, end, fast
}

// FrameResult describes what one frame did.
type FrameResult struct {
	// Updated is true when a scan snapshot replaced the image list.
	Updated bool `json:"updated"`
	// Visible is the number of on-screen cells.
	Visible int `json:"visible"`
	// Shown counts visible cells that already have a bitmap.
	Shown int `json:"shown"`
	// Flushed is how many decoded thumbnails were uploaded.
	Flushed int `json:"flushed"`
	// FastScroll is true when queued work was dropped because the viewport
	// jumped.
	FastScroll bool `json:"fastScroll"`
}

// Frame runs one render-loop iteration: it picks up scan results, requests
// thumbnails for the visible cells, uploads a bounded number of finished
// decodes and queues prefetch around the viewport.
//
// A viewport jump larger than FastScrollJump drops all queued work and only
// shows thumbnails that can be had without decoding, so the pool is not busy
// with cells that already scrolled away.
func (l *Library) Frame() FrameResult {
	var r FrameResult
	l.runFrameTasks()
	r.Updated = l.CheckScanProgress()

	paths := l.Paths()
	start, end, fast := l.advanceViewport(len(paths))
	visible := paths[start:end]
	r.Visible = len(visible)
	r.FastScroll = fast

	if fast {
		logging.Debug("Fast scroll to %d, invalidating queued decodes", start)
		l.pipe.InvalidateRequests()
	}

	l.pipe.SetVisibleRange(visible)
	for _, p := range visible {
		var bmp pipeline.Bitmap
		if fast {
			bmp = l.pipe.GetCachedThumbnail(p)
		} else {
			bmp = l.pipe.RequestThumbnail(p, l.cfg.ThumbnailSize)
		}
		if bmp != nil {
			r.Shown++
		}
	}

	r.Flushed = l.pipe.FlushReadyThumbnails(l.cfg.FlushPerFrame)

	if !fast && len(visible) > 0 {
		l.pipe.PrefetchAround(paths, start+len(visible)/2, l.cfg.PrefetchRadius)
	}

	if l.cfg.ThumbSaveThreshold > 0 && !l.saving.Load() &&
		l.pipe.Stats().SaveBufferEntries >= l.cfg.ThumbSaveThreshold {
		l.saveInBackground(nil)
	}
	return r
}

// RunOnFrame runs fn on the render thread at the start of the next frame and
// waits for it. Pipeline calls that create bitmaps must go through it when
// made from other goroutines. When ctx ends first, fn may still run later.
func (l *Library) RunOnFrame(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	task := func() {
		defer close(done)
		fn()
	}

	select {
	case l.tasks <- task:
	case <-ctx.Done():
		return ctx.Err()
	case <-l.ctx.Done():
		return ErrClosed
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.ctx.Done():
		return ErrClosed
	}
}

// runFrameTasks runs the tasks queued before this frame started.
func (l *Library) runFrameTasks() {
	for n := len(l.tasks); n > 0; n-- {
		select {
		case fn := <-l.tasks:
			fn()
		default:
			return
		}
	}
}

// IndexOf returns the position of path in the current image list, or -1.
func (l *Library) IndexOf(path string) int {
	for i, p := range l.Paths() {
		if p == path {
			return i
		}
	}
	return -1
}

// OpenFile shows the folder containing path, or path itself when it is a
// directory, and moves the viewport to the file. Any running scan is
// cancelled. It returns the file's index in the new image list.
func (l *Library) OpenFile(ctx context.Context, path string) (int, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}

	folder, target := abs, ""
	if !info.IsDir() {
		folder, target = filepath.Dir(abs), abs
	}

	l.startMu.Lock()
	l.cancelScan()
	l.startMu.Unlock()

	files, err := scanner.ScanDirectory(folder)
	if err != nil {
		logging.Warn("Failed to list %s: %v", folder, err)
	}
	if len(files) == 0 && target != "" {
		files = []string{target}
	}

	images := make([]scanner.ScannedImage, len(files))
	index := 0
	for i, f := range files {
		images[i] = scanner.ScannedImage{Path: f, SourceFolder: folder}
		if target != "" && samePath(f, target) {
			index = i
		}
	}

	l.pipe.InvalidateRequests()
	l.setImages(images, ModeFolder, folder)
	l.viewMu.Lock()
	l.viewStart = index
	l.lastStart = index
	l.viewMu.Unlock()
	logging.Info("Opened %s: %d images", folder, len(images))

	if target != "" && l.store != nil {
		if err := l.store.TouchRecent(ctx, target); err != nil {
			logging.Warn("Failed to record recent file: %v", err)
		}
	}
	return index, nil
}

func samePath(a, b string) bool {
	if a == b {
		return true
	}
	return strings.EqualFold(filepath.Clean(a), filepath.Clean(b))
}

// ShowLibrary leaves folder mode: the cached scan result is shown at once
// and a fresh scan replaces it.
func (l *Library) ShowLibrary() {
	if mode, _ := l.Mode(); mode == ModeLibrary {
		return
	}
	cached, err := scanner.LoadScanCache(l.ScanCachePath())
	if err != nil {
		logging.Warn("Ignoring scan cache: %v", err)
	}
	l.pipe.InvalidateRequests()
	l.setImages(cached, ModeLibrary, "")
	l.StartScan()
}

// Albums returns the stored album folders.
func (l *Library) Albums(ctx context.Context) ([]albums.Album, error) {
	if l.store == nil {
		return nil, ErrNoStore
	}
	return l.store.ListAlbums(ctx)
}

// AddAlbum stores dir as an album folder and rescans when it is new.
func (l *Library) AddAlbum(ctx context.Context, dir string) (bool, error) {
	if l.store == nil {
		return false, ErrNoStore
	}
	added, err := l.store.AddAlbum(ctx, dir)
	if err != nil || !added {
		return added, err
	}
	metrics.LibraryAlbums.Set(float64(l.albumCount()))
	l.StartScan()
	return true, nil
}

// RemoveAlbum forgets an album folder and rescans when it was stored.
func (l *Library) RemoveAlbum(ctx context.Context, dir string) (bool, error) {
	if l.store == nil {
		return false, ErrNoStore
	}
	removed, err := l.store.RemoveAlbum(ctx, dir)
	if err != nil || !removed {
		return removed, err
	}
	metrics.LibraryAlbums.Set(float64(l.albumCount()))
	l.StartScan()
	return true, nil
}

// Recent returns recently opened files, newest first.
func (l *Library) Recent(ctx context.Context) ([]string, error) {
	if l.store == nil {
		return nil, ErrNoStore
	}
	return l.store.ListRecent(ctx)
}
