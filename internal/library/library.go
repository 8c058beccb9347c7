package library

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"photo-gallery/internal/albums"
	"photo-gallery/internal/logging"
	"photo-gallery/internal/memory"
	"photo-gallery/internal/metrics"
	"photo-gallery/internal/pipeline"
	"photo-gallery/internal/scanner"
)

const (
	// ScanCacheFile holds the last scan result for instant display.
	ScanCacheFile = "scan_cache.bin"
	// ThumbCacheFile is the memory-mapped persistent thumbnail cache.
	ThumbCacheFile = "scan_thumbs.bin"

	// DefaultFlushPerFrame is how many ready thumbnails one frame uploads.
	DefaultFlushPerFrame = 8
	// DefaultPrefetchRadius is how many neighbours each side of the viewport
	// centre are decoded ahead.
	DefaultPrefetchRadius = 8
	// DefaultThumbSaveThreshold is how many unsaved thumbnails trigger a
	// background save of the persistent cache while browsing.
	DefaultThumbSaveThreshold = 512

	frameTaskBuffer = 64
)

// Config configures a Library.
type Config struct {
	// CacheDir holds the scan cache and the thumbnail cache.
	CacheDir string
	// Folders are scanned in addition to album folders.
	Folders []string
	// IncludeSystemFolders adds the platform picture folders to every scan.
	IncludeSystemFolders bool

	ThumbnailSize int
	FlushPerFrame int
	// PrefetchRadius is passed to PrefetchAround each frame.
	PrefetchRadius int
	// FastScrollJump is how far the viewport start may move between two
	// frames before the move counts as fast scrolling. Zero means twice the
	// viewport height.
	FastScrollJump int
	// ThumbSaveThreshold triggers a background thumbnail save. Negative
	// disables saving while browsing.
	ThumbSaveThreshold int

	MinImageSize      int64
	ScanFlushInterval int
	ScanWorkers       int

	// Watch rescans when images change below the scanned folders.
	Watch         bool
	WatchDebounce time.Duration
}

func (c Config) withDefaults() Config {
	if c.FlushPerFrame <= 0 {
		c.FlushPerFrame = DefaultFlushPerFrame
	}
	if c.PrefetchRadius <= 0 {
		c.PrefetchRadius = DefaultPrefetchRadius
	}
	if c.ThumbSaveThreshold == 0 {
		c.ThumbSaveThreshold = DefaultThumbSaveThreshold
	}
	return c
}

// Mode says what the gallery is showing.
type Mode string

const (
	// ModeLibrary shows the merged scan of every configured folder.
	ModeLibrary Mode = "library"
	// ModeFolder shows one folder opened with OpenFile.
	ModeFolder Mode = "folder"
)

// Library owns the scan lifecycle, persists scan results and thumbnails,
// and drives the pipeline once per frame.
type Library struct {
	cfg     Config
	pipe    *pipeline.Pipeline
	store   *albums.Store
	monitor *memory.Monitor

	ctx    context.Context
	cancel context.CancelFunc

	// Current image list, replaced wholesale.
	mu       sync.RWMutex
	images   []scanner.ScannedImage
	paths    []string
	sections []scanner.Section
	mode     Mode
	folder   string

	// Scan lifecycle. startMu serializes StartScan, OpenFile and Close.
	startMu      sync.Mutex
	scanMu       sync.Mutex
	scanCancel   context.CancelFunc
	scanDone     chan struct{}
	scanning     atomic.Bool
	scanFound    atomic.Int64
	scanStarted  time.Time
	lastScan     time.Time
	lastDuration time.Duration
	lastScanErr  error
	scanRuns     uint64

	// Latest snapshot handed over by the scan goroutine.
	snapMu    sync.Mutex
	snapshot  []scanner.ScannedImage
	snapFinal bool
	snapDirty atomic.Bool

	// Work handed to the render thread by RunOnFrame.
	tasks chan func()

	// Viewport state, touched by the frame loop and the status server.
	viewMu    sync.Mutex
	viewStart int
	viewCount int
	lastStart int

	saving atomic.Bool
	saveMu sync.Mutex
	saveWG sync.WaitGroup

	watchMu     sync.Mutex
	watchCancel context.CancelFunc
	watchRoots  []string
	watchWG     sync.WaitGroup

	closeOnce sync.Once
}

// New creates a library over pipe. store may be nil, in which case album
// folders and recent files are not available.
func New(pipe *pipeline.Pipeline, store *albums.Store, cfg Config) *Library {
	ctx, cancel := context.WithCancel(context.Background())
	return &Library{
		cfg:       cfg.withDefaults(),
		pipe:      pipe,
		store:     store,
		ctx:       ctx,
		cancel:    cancel,
		mode:      ModeLibrary,
		tasks:     make(chan func(), frameTaskBuffer),
		viewCount: 1,
	}
}

// SetMemoryMonitor makes the library give memory back when usage turns
// critical and hold background saves until it recovers.
func (l *Library) SetMemoryMonitor(m *memory.Monitor) {
	l.monitor = m
	m.OnLevelChange(func(level memory.Level) {
		if level != memory.LevelCritical {
			return
		}
		freed := l.pipe.TrimMemory()
		logging.Warn("Memory critical: released %s of cached images", memory.FormatBytes(freed))
	})
}

// Pipeline returns the thumbnail pipeline the library drives.
func (l *Library) Pipeline() *pipeline.Pipeline { return l.pipe }

// Store returns the album store, or nil.
func (l *Library) Store() *albums.Store { return l.store }

// ScanCachePath returns where scan results are persisted.
func (l *Library) ScanCachePath() string {
	return filepath.Join(l.cfg.CacheDir, ScanCacheFile)
}

// ThumbCachePath returns where thumbnails are persisted.
func (l *Library) ThumbCachePath() string {
	return filepath.Join(l.cfg.CacheDir, ThumbCacheFile)
}

// Start maps the thumbnail cache, shows the cached scan result and starts a
// background rescan that replaces it.
func (l *Library) Start() error {
	l.loadThumbCache()

	cached, err := scanner.LoadScanCache(l.ScanCachePath())
	switch {
	case err != nil:
		logging.Warn("Ignoring scan cache: %v", err)
	case len(cached) > 0:
		logging.Info("Loaded %d cached images from %s", len(cached), l.ScanCachePath())
		l.setImages(cached, ModeLibrary, "")
	}

	l.StartScan()
	return nil
}

func (l *Library) loadThumbCache() {
	n, err := l.pipe.LoadPersistentThumbs(l.ThumbCachePath())
	switch {
	case errors.Is(err, pipeline.ErrCacheCorrupt):
		metrics.CacheFileOperations.WithLabelValues("thumbs", "load", "corrupt").Inc()
		logging.Warn("Thumbnail cache is corrupt, starting empty: %v", err)
	case err != nil:
		metrics.CacheFileOperations.WithLabelValues("thumbs", "load", "error").Inc()
		logging.Warn("Failed to load thumbnail cache: %v", err)
	default:
		metrics.CacheFileOperations.WithLabelValues("thumbs", "load", "success").Inc()
		metrics.CacheFileEntries.WithLabelValues("thumbs").Set(float64(n))
	}
}

// Close cancels any scan, stops watching and waits for background saves.
// Thumbnails decoded since the last save are written before it returns. The
// pipeline itself is left running; the caller shuts it down.
func (l *Library) Close() {
	l.closeOnce.Do(func() {
		l.startMu.Lock()
		l.cancelScan()
		l.cancel()
		l.startMu.Unlock()
		l.stopWatcher()
		l.watchWG.Wait()
		l.saveWG.Wait()

		if l.pipe.Stats().SaveBufferEntries > 0 {
			l.saveMu.Lock()
			l.saveThumbs()
			l.saveMu.Unlock()
		}
		logging.Info("Library closed")
	})
}

// Images returns the current image list.
func (l *Library) Images() []scanner.ScannedImage {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.images
}

// Paths returns the current image paths in display order.
func (l *Library) Paths() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.paths
}

// Sections returns the current images grouped by month.
func (l *Library) Sections() []scanner.Section {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.sections
}

// Mode reports whether the library or a single folder is shown, and the
// folder in the latter case.
func (l *Library) Mode() (Mode, string) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.mode, l.folder
}

// setImages replaces the shown images. The slices are never mutated after
// publication, so readers may keep them.
func (l *Library) setImages(images []scanner.ScannedImage, mode Mode, folder string) {
	paths := make([]string, len(images))
	for i := range images {
		paths[i] = images[i].Path
	}
	sections := scanner.GroupByMonth(images)

	l.mu.Lock()
	l.images = images
	l.paths = paths
	l.sections = sections
	l.mode = mode
	l.folder = folder
	l.mu.Unlock()

	metrics.LibraryImages.Set(float64(len(images)))
	metrics.LibrarySections.Set(float64(len(sections)))
}

// Stats is the library part of the status report.
type Stats struct {
	Mode     Mode           `json:"mode"`
	Folder   string         `json:"folder,omitempty"`
	Images   int            `json:"images"`
	Sections int            `json:"sections"`
	Albums   int            `json:"albums"`
	Scan     ScanProgress   `json:"scan"`
	Pipeline pipeline.Stats `json:"pipeline"`
}

// Status returns a snapshot for the status endpoint.
func (l *Library) Status() Stats {
	l.mu.RLock()
	s := Stats{
		Mode:     l.mode,
		Folder:   l.folder,
		Images:   len(l.images),
		Sections: len(l.sections),
	}
	l.mu.RUnlock()

	s.Albums = l.albumCount()
	s.Scan = l.Progress()
	s.Pipeline = l.pipe.Stats()
	return s
}

// GetStats implements metrics.StatsProvider.
func (l *Library) GetStats() metrics.Stats {
	s := l.Status()
	return metrics.Stats{
		Pipeline: s.Pipeline,
		Images:   s.Images,
		Sections: s.Sections,
		Albums:   s.Albums,
		Scanning: s.Scan.Scanning,
	}
}

func (l *Library) albumCount() int {
	if l.store == nil {
		return 0
	}
	ctx, cancel := context.WithTimeout(l.ctx, time.Second)
	defer cancel()
	n, err := l.store.AlbumCount(ctx)
	if err != nil {
		logging.Debug("Failed to count albums: %v", err)
		return 0
	}
	return n
}
