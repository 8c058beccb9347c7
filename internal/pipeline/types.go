package pipeline

import (
	"time"

	"photo-gallery/internal/workers"
)

// Bitmap is an opaque, renderer-owned handle to an uploaded image.
type Bitmap any

// Renderer uploads BGRA pixels and returns a bitmap handle. The pixel slice is
// only valid for the duration of the call: it may point into the memory-mapped
// thumbnail cache, so implementations must copy what they keep.
type Renderer interface {
	CreateBitmap(width, height int, pixels []byte) (Bitmap, error)
}

// BitmapCallback receives the result of GetBitmapAsync. bmp is nil when the
// image could not be decoded.
type BitmapCallback func(bmp Bitmap)

// Throttler reports memory pressure. memory.Monitor implements it.
type Throttler interface {
	ShouldThrottle() bool
}

// Tier identifies where a thumbnail was served from.
type Tier string

const (
	// TierGPU is the uploaded bitmap cache.
	TierGPU Tier = "gpu"
	// TierRAM is the compressed pixel cache.
	TierRAM Tier = "ram"
	// TierDisk is the memory-mapped persistent cache.
	TierDisk Tier = "disk"
	// TierSource means the source file was decoded.
	TierSource Tier = "source"
)

// Observer receives pipeline events. The metrics package implements it.
type Observer interface {
	ThumbnailServed(tier Tier)
	DecodeFinished(tier Tier, d time.Duration)
	DecodeFailed()
	StaleDiscarded()
	Evicted(evicted, demoted int)
	GenerationChanged(gen uint64)
}

// Options configures a Pipeline.
type Options struct {
	// ThumbnailSize is the longest edge of generated thumbnails.
	ThumbnailSize int
	// Tier1MaxBytes is the uploaded-bitmap ceiling; eviction trims to 75% of it.
	Tier1MaxBytes int64
	// Tier2MaxBytes is the compressed RAM cache budget. Negative disables
	// Tier 2.
	Tier2MaxBytes int64
	// PersistSyncBudget caps synchronous uploads from the disk cache per frame.
	// Negative disables them.
	PersistSyncBudget int
	// FullImageCacheSize is how many full-resolution bitmaps are kept.
	FullImageCacheSize int
	// MaxDecodeAttempts bounds retries of a path whose decode failed.
	MaxDecodeAttempts int
	// RetryBackoff is the wait before the first retry; it doubles per attempt.
	RetryBackoff time.Duration

	Workers        int
	ThreadPriority bool

	Throttle     Throttler
	Observer     Observer
	PoolObserver workers.PoolObserver
}

// DefaultOptions returns the settings used by the gallery.
func DefaultOptions() Options {
	return Options{
		ThumbnailSize:      256,
		Tier1MaxBytes:      256 << 20,
		Tier2MaxBytes:      256 << 20,
		PersistSyncBudget:  8,
		FullImageCacheSize: 8,
		MaxDecodeAttempts:  3,
		RetryBackoff:       500 * time.Millisecond,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.ThumbnailSize <= 0 {
		o.ThumbnailSize = def.ThumbnailSize
	}
	if o.Tier1MaxBytes <= 0 {
		o.Tier1MaxBytes = def.Tier1MaxBytes
	}
	if o.Tier2MaxBytes < 0 {
		o.Tier2MaxBytes = 0
	} else if o.Tier2MaxBytes == 0 {
		o.Tier2MaxBytes = def.Tier2MaxBytes
	}
	if o.PersistSyncBudget < 0 {
		o.PersistSyncBudget = 0
	} else if o.PersistSyncBudget == 0 {
		o.PersistSyncBudget = def.PersistSyncBudget
	}
	if o.FullImageCacheSize <= 0 {
		o.FullImageCacheSize = def.FullImageCacheSize
	}
	if o.MaxDecodeAttempts <= 0 {
		o.MaxDecodeAttempts = def.MaxDecodeAttempts
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = def.RetryBackoff
	}
	return o
}

// Stats is a point-in-time snapshot of pipeline state.
type Stats struct {
	Generation uint64 `json:"generation"`

	Tier1Entries  int   `json:"tier1Entries"`
	Tier1Bytes    int64 `json:"tier1Bytes"`
	Tier1MaxBytes int64 `json:"tier1MaxBytes"`
	Tier2Entries  int   `json:"tier2Entries"`
	Tier2Bytes    int64 `json:"tier2Bytes"`
	Tier2MaxBytes int64 `json:"tier2MaxBytes"`
	Tier3Entries  int   `json:"tier3Entries"`
	Tier3Bytes    int64 `json:"tier3Bytes"`

	SaveBufferEntries int `json:"saveBufferEntries"`
	FullImages        int `json:"fullImages"`
	Pending           int `json:"pending"`
	Visible           int `json:"visible"`
	FailedPaths       int `json:"failedPaths"`
	ReadyQueue        int `json:"readyQueue"`

	PoolThreads   int    `json:"poolThreads"`
	PoolPending   int    `json:"poolPending"`
	PoolActive    int    `json:"poolActive"`
	PoolCompleted uint64 `json:"poolCompleted"`
}
