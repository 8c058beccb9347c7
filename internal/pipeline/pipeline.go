package pipeline

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"photo-gallery/internal/logging"
	"photo-gallery/internal/media"
	"photo-gallery/internal/workers"
)

// gpuEntry is a Tier-1 (or full-image cache) bitmap.
type gpuEntry struct {
	bmp    Bitmap
	width  int
	height int
	bytes  int64
	access uint64
}

// compressedThumb is a Tier-2 entry.
type compressedThumb struct {
	data    []byte
	rawSize int
	width   int
	height  int
}

type decodeFailure struct {
	attempts int
	retryAt  time.Time
}

// Pipeline owns the four thumbnail tiers and the decode pool. Methods that
// create bitmaps (RequestThumbnail, GetCachedThumbnail, GetThumbnail,
// GetBitmap, FlushReadyThumbnails) must be called from the render thread.
type Pipeline struct {
	opts     Options
	decoder  media.Decoder
	renderer Renderer
	observer Observer

	pool    *workers.Pool
	codec   *pixelCodec
	persist *persistStore
	ready   readyQueue

	generation atomic.Uint64
	syncBudget atomic.Int64
	closed     atomic.Bool

	mu          sync.Mutex
	tier1       map[string]*gpuEntry
	tier1Bytes  int64
	tier2       map[string]*compressedThumb
	tier2Bytes  int64
	saveBuf     map[string]*media.DecodedImage
	pending     map[string]uint64
	visible     map[string]struct{}
	failures    map[string]*decodeFailure
	full        map[string]*gpuEntry
	fullWaiters map[string][]BitmapCallback
	accessSeq   uint64

	now func() time.Time
}

// New creates a pipeline and starts its worker pool.
func New(decoder media.Decoder, renderer Renderer, opts Options) (*Pipeline, error) {
	if decoder == nil || renderer == nil {
		return nil, fmt.Errorf("pipeline needs a decoder and a renderer")
	}
	opts = opts.withDefaults()

	codec, err := newPixelCodec()
	if err != nil {
		return nil, err
	}

	obs := opts.Observer
	if obs == nil {
		obs = noopObserver{}
	}

	p := &Pipeline{
		opts:        opts,
		decoder:     decoder,
		renderer:    renderer,
		observer:    obs,
		codec:       codec,
		persist:     newPersistStore(),
		tier1:       make(map[string]*gpuEntry),
		tier2:       make(map[string]*compressedThumb),
		saveBuf:     make(map[string]*media.DecodedImage),
		pending:     make(map[string]uint64),
		visible:     make(map[string]struct{}),
		failures:    make(map[string]*decodeFailure),
		full:        make(map[string]*gpuEntry),
		fullWaiters: make(map[string][]BitmapCallback),
		now:         time.Now,
	}
	p.syncBudget.Store(int64(opts.PersistSyncBudget))
	p.pool = workers.NewPool(workers.PoolOptions{
		Workers:        opts.Workers,
		ThreadPriority: opts.ThreadPriority,
		Observer:       opts.PoolObserver,
	})

	logging.Debug("pipeline started: %d workers, tier1 %d MiB, tier2 %d MiB, thumbnails %dpx",
		p.pool.ThreadCount(), opts.Tier1MaxBytes>>20, opts.Tier2MaxBytes>>20, opts.ThumbnailSize)
	return p, nil
}

// Generation returns the current request generation.
func (p *Pipeline) Generation() uint64 { return p.generation.Load() }

// Pool exposes the decode pool for stats and tests.
func (p *Pipeline) Pool() *workers.Pool { return p.pool }

// SetVisibleRange replaces the set of on-screen paths. Visible paths are
// queued ahead of other work and are never evicted from Tier 1.
func (p *Pipeline) SetVisibleRange(paths []string) {
	vis := make(map[string]struct{}, len(paths))
	for _, path := range paths {
		vis[path] = struct{}{}
	}
	p.mu.Lock()
	p.visible = vis
	p.mu.Unlock()
}

// HasThumbnail reports whether path has a Tier-1 bitmap.
func (p *Pipeline) HasThumbnail(path string) bool {
	p.mu.Lock()
	_, ok := p.tier1[path]
	p.mu.Unlock()
	return ok
}

// HasFullImage reports whether the full-resolution bitmap of path is cached.
func (p *Pipeline) HasFullImage(path string) bool {
	p.mu.Lock()
	_, ok := p.full[path]
	p.mu.Unlock()
	return ok
}

// HasPendingThumbnails reports whether decoded results are waiting for a
// flush or requests are still in flight.
func (p *Pipeline) HasPendingThumbnails() bool {
	if p.ready.len() > 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending) > 0
}

// LoadPersistentThumbs maps the thumbnail cache at path as Tier 3. A missing
// file yields an empty tier; a corrupt one also yields an empty tier and an
// error wrapping ErrCacheCorrupt.
func (p *Pipeline) LoadPersistentThumbs(path string) (int, error) {
	n, err := p.persist.load(path)
	if err != nil {
		return 0, err
	}
	logging.Info("loaded %d persistent thumbnails from %s", n, path)
	return n, nil
}

// SavePersistentThumbs merges thumbnails decoded this session into the cache
// file at path and remaps it. On failure the unsaved thumbnails are kept for
// the next attempt.
func (p *Pipeline) SavePersistentThumbs(path string) (int, error) {
	p.mu.Lock()
	buf := p.saveBuf
	p.saveBuf = make(map[string]*media.DecodedImage)
	p.mu.Unlock()

	start := time.Now()
	n, err := p.persist.save(path, buf)
	if err != nil {
		p.mu.Lock()
		for k, v := range buf {
			if _, ok := p.saveBuf[k]; !ok {
				p.saveBuf[k] = v
			}
		}
		p.mu.Unlock()
		return 0, fmt.Errorf("save thumbnail cache: %w", err)
	}
	if n > 0 {
		logging.Info("saved %d thumbnails (%d new) to %s in %v", n, len(buf), path, time.Since(start).Round(time.Millisecond))
	}
	return n, nil
}

// Shutdown cancels queued work, stops the workers, unmaps Tier 3 and drops
// every cache. The pipeline is unusable afterwards.
func (p *Pipeline) Shutdown() {
	if p.closed.Swap(true) {
		return
	}
	p.generation.Add(1)
	p.pool.PurgeAll()
	p.pool.Close()
	p.ready.clear()
	p.persist.close()

	p.mu.Lock()
	var released []Bitmap
	for _, e := range p.tier1 {
		released = append(released, e.bmp)
	}
	for _, e := range p.full {
		released = append(released, e.bmp)
	}
	p.tier1 = make(map[string]*gpuEntry)
	p.tier1Bytes = 0
	p.tier2 = make(map[string]*compressedThumb)
	p.tier2Bytes = 0
	p.saveBuf = make(map[string]*media.DecodedImage)
	p.pending = make(map[string]uint64)
	p.full = make(map[string]*gpuEntry)
	waiters := p.fullWaiters
	p.fullWaiters = make(map[string][]BitmapCallback)
	p.mu.Unlock()

	p.release(released)
	for _, ws := range waiters {
		for _, cb := range ws {
			cb(nil)
		}
	}
	p.codec.close()
	logging.Debug("pipeline shut down")
}

// TrimMemory drops the caches that can be rebuilt from lower tiers: the
// full-image cache and every Tier-2 entry. Tier 1 and the save buffer are
// kept. It returns the number of bytes released.
func (p *Pipeline) TrimMemory() int64 {
	p.mu.Lock()
	freed := p.tier2Bytes
	released := make([]Bitmap, 0, len(p.full))
	for _, e := range p.full {
		released = append(released, e.bmp)
		freed += e.bytes
	}
	p.full = make(map[string]*gpuEntry)
	p.tier2 = make(map[string]*compressedThumb)
	p.tier2Bytes = 0
	p.mu.Unlock()

	p.release(released)
	logging.Info("released %d full images and compressed thumbnails (%d bytes) under memory pressure", len(released), freed)
	return freed
}

// Stats returns a snapshot of cache and pool state.
func (p *Pipeline) Stats() Stats {
	t3n, t3b := p.persist.stats()
	p.mu.Lock()
	s := Stats{
		Generation:        p.generation.Load(),
		Tier1Entries:      len(p.tier1),
		Tier1Bytes:        p.tier1Bytes,
		Tier1MaxBytes:     p.opts.Tier1MaxBytes,
		Tier2Entries:      len(p.tier2),
		Tier2Bytes:        p.tier2Bytes,
		Tier2MaxBytes:     p.opts.Tier2MaxBytes,
		Tier3Entries:      t3n,
		Tier3Bytes:        t3b,
		SaveBufferEntries: len(p.saveBuf),
		FullImages:        len(p.full),
		Pending:           len(p.pending),
		Visible:           len(p.visible),
		FailedPaths:       len(p.failures),
	}
	p.mu.Unlock()
	s.ReadyQueue = p.ready.len()
	s.PoolThreads = p.pool.ThreadCount()
	s.PoolPending = p.pool.PendingCount()
	s.PoolActive = p.pool.ActiveCount()
	s.PoolCompleted = p.pool.CompletedCount()
	return s
}

// bitmapReleaser is implemented by renderers that free GPU memory explicitly.
type bitmapReleaser interface {
	ReleaseBitmap(Bitmap)
}

func (p *Pipeline) release(bmps []Bitmap) {
	r, ok := p.renderer.(bitmapReleaser)
	if !ok {
		return
	}
	for _, b := range bmps {
		if b != nil {
			r.ReleaseBitmap(b)
		}
	}
}

// insertTier1Locked stores bmp for path and removes path from every other
// transient tier. It returns the bitmap it replaced, if any.
func (p *Pipeline) insertTier1Locked(path string, bmp Bitmap, w, h int) Bitmap {
	var old Bitmap
	if e, ok := p.tier1[path]; ok {
		old = e.bmp
		p.tier1Bytes -= e.bytes
	}
	if c, ok := p.tier2[path]; ok {
		p.tier2Bytes -= int64(len(c.data))
		delete(p.tier2, path)
	}
	delete(p.pending, path)
	delete(p.failures, path)

	p.accessSeq++
	e := &gpuEntry{bmp: bmp, width: w, height: h, bytes: int64(w) * int64(h) * 4, access: p.accessSeq}
	p.tier1[path] = e
	p.tier1Bytes += e.bytes
	return old
}

// tier1HitLocked returns the Tier-1 bitmap for path and refreshes its access.
func (p *Pipeline) tier1HitLocked(path string) (Bitmap, bool) {
	e, ok := p.tier1[path]
	if !ok {
		return nil, false
	}
	p.accessSeq++
	e.access = p.accessSeq
	return e.bmp, true
}

// blockedLocked reports whether path failed recently or too often to retry.
func (p *Pipeline) blockedLocked(path string) bool {
	f, ok := p.failures[path]
	if !ok {
		return false
	}
	return f.attempts >= p.opts.MaxDecodeAttempts || p.now().Before(f.retryAt)
}

func (p *Pipeline) recordFailure(path string, err error) {
	p.mu.Lock()
	delete(p.pending, path)
	f := p.failures[path]
	if f == nil {
		f = &decodeFailure{}
		p.failures[path] = f
	}
	f.attempts++
	f.retryAt = p.now().Add(p.opts.RetryBackoff << (f.attempts - 1))
	attempts := f.attempts
	p.mu.Unlock()

	p.observer.DecodeFailed()
	if attempts >= p.opts.MaxDecodeAttempts {
		logging.Warn("giving up on thumbnail for %s after %d attempts: %v", path, attempts, err)
	} else {
		logging.Debug("thumbnail decode failed for %s (attempt %d): %v", path, attempts, err)
	}
}

// dropPending clears the pending mark for path if it still belongs to gen.
func (p *Pipeline) dropPending(path string, gen uint64) {
	p.mu.Lock()
	if g, ok := p.pending[path]; ok && g == gen {
		delete(p.pending, path)
	}
	p.mu.Unlock()
}

func (p *Pipeline) thumbSize(size int) int {
	if size <= 0 {
		return p.opts.ThumbnailSize
	}
	return size
}

// takeSyncBudget consumes one synchronous Tier-3 upload for this frame.
func (p *Pipeline) takeSyncBudget() bool {
	for {
		v := p.syncBudget.Load()
		if v <= 0 {
			return false
		}
		if p.syncBudget.CompareAndSwap(v, v-1) {
			return true
		}
	}
}

type noopObserver struct{}

func (noopObserver) ThumbnailServed(Tier)               {}
func (noopObserver) DecodeFinished(Tier, time.Duration) {}
func (noopObserver) DecodeFailed()                      {}
func (noopObserver) StaleDiscarded()                    {}
func (noopObserver) Evicted(int, int)                   {}
func (noopObserver) GenerationChanged(uint64)           {}
