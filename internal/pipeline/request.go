package pipeline

import (
	"photo-gallery/internal/logging"
	"photo-gallery/internal/workers"
)

// DefaultPrefetchRadius is how many neighbours on each side PrefetchAround
// queues when called with radius 0.
const DefaultPrefetchRadius = 3

// RequestThumbnail returns the bitmap for path if it is already uploaded or
// can be uploaded from the disk cache within this frame's budget. Otherwise it
// queues a decode (ahead of other work when path is visible) and returns nil;
// the bitmap appears after a later FlushReadyThumbnails. It never blocks on
// decoding.
func (p *Pipeline) RequestThumbnail(path string, size int) Bitmap {
	if p.closed.Load() {
		return nil
	}

	p.mu.Lock()
	if bmp, ok := p.tier1HitLocked(path); ok {
		p.mu.Unlock()
		p.observer.ThumbnailServed(TierGPU)
		return bmp
	}
	gen := p.generation.Load()
	if g, ok := p.pending[path]; p.blockedLocked(path) || (ok && g == gen) {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	if bmp, ok := p.uploadFromDisk(path); ok {
		return bmp
	}

	p.mu.Lock()
	if g, ok := p.pending[path]; ok && g == gen {
		p.mu.Unlock()
		return nil
	}
	p.pending[path] = gen
	_, visible := p.visible[path]
	p.mu.Unlock()

	task := p.decodeTask(path, p.thumbSize(size), gen)
	var err error
	if visible {
		err = p.pool.SubmitFront(task, workers.High)
	} else {
		err = p.pool.Submit(task, workers.Normal)
	}
	if err != nil {
		p.dropPending(path, gen)
	}
	return nil
}

// GetCachedThumbnail returns the bitmap for path from Tier 1, or uploads it
// from the disk cache within this frame's budget. It never queues work, so it
// suits fast scrolling where decodes would be wasted.
func (p *Pipeline) GetCachedThumbnail(path string) Bitmap {
	if p.closed.Load() {
		return nil
	}
	p.mu.Lock()
	if bmp, ok := p.tier1HitLocked(path); ok {
		p.mu.Unlock()
		p.observer.ThumbnailServed(TierGPU)
		return bmp
	}
	p.mu.Unlock()

	bmp, _ := p.uploadFromDisk(path)
	return bmp
}

// uploadFromDisk creates a bitmap straight from the mapped cache file. The
// read lock stays held while the renderer copies the pixels.
func (p *Pipeline) uploadFromDisk(path string) (Bitmap, bool) {
	if !p.persist.has(path) || !p.takeSyncBudget() {
		return nil, false
	}

	var (
		bmp  Bitmap
		w, h int
		err  error
	)
	found := p.persist.with(path, func(pw, ph int, px []byte) {
		w, h = pw, ph
		bmp, err = p.renderer.CreateBitmap(pw, ph, px)
	})
	if !found {
		p.syncBudget.Add(1)
		return nil, false
	}
	if err != nil || bmp == nil {
		logging.Debug("failed to upload cached thumbnail for %s: %v", path, err)
		return nil, false
	}

	p.mu.Lock()
	old := p.insertTier1Locked(path, bmp, w, h)
	p.mu.Unlock()
	if old != nil {
		p.release([]Bitmap{old})
	}
	p.observer.ThumbnailServed(TierDisk)
	p.evictIfNeeded()
	return bmp, true
}

// GetThumbnail returns the thumbnail for path, decoding it synchronously on
// the calling goroutine when no tier has it. It returns nil if the image
// cannot be decoded.
func (p *Pipeline) GetThumbnail(path string, size int) Bitmap {
	if p.closed.Load() {
		return nil
	}
	p.mu.Lock()
	if bmp, ok := p.tier1HitLocked(path); ok {
		p.mu.Unlock()
		p.observer.ThumbnailServed(TierGPU)
		return bmp
	}
	p.mu.Unlock()

	img, tier, _, err := p.produceThumb(path, p.thumbSize(size), workers.High)
	if err != nil {
		p.recordFailure(path, err)
		return nil
	}

	bmp, err := p.renderer.CreateBitmap(img.Width, img.Height, img.Pixels)
	if err != nil || bmp == nil {
		logging.Warn("failed to create thumbnail bitmap for %s: %v", path, err)
		return nil
	}

	p.mu.Lock()
	old := p.insertTier1Locked(path, bmp, img.Width, img.Height)
	if tier != TierDisk {
		if _, ok := p.saveBuf[path]; !ok {
			p.saveBuf[path] = img
		}
	}
	p.mu.Unlock()
	if old != nil {
		p.release([]Bitmap{old})
	}
	p.observer.ThumbnailServed(tier)
	p.evictIfNeeded()
	return bmp
}

// GetBitmap returns the full-resolution bitmap for path, decoding it
// synchronously if it is not cached. It returns nil on failure.
func (p *Pipeline) GetBitmap(path string) Bitmap {
	if p.closed.Load() {
		return nil
	}
	if bmp, ok := p.fullHit(path); ok {
		return bmp
	}

	img, err := p.decoder.Decode(path)
	if err != nil {
		logging.Warn("failed to decode %s: %v", path, err)
		return nil
	}
	bmp, err := p.renderer.CreateBitmap(img.Width, img.Height, img.Pixels)
	if err != nil || bmp == nil {
		logging.Warn("failed to create bitmap for %s: %v", path, err)
		return nil
	}
	p.storeFull(path, bmp, img.Width, img.Height)
	return bmp
}

// GetBitmapAsync delivers the full-resolution bitmap for path to cb. A cached
// bitmap is delivered immediately; otherwise the image is decoded on a worker
// and cb runs on the render thread during a later FlushReadyThumbnails, with
// nil if decoding failed. Concurrent requests for one path share a decode.
func (p *Pipeline) GetBitmapAsync(path string, cb BitmapCallback) {
	if cb == nil {
		return
	}
	if p.closed.Load() {
		cb(nil)
		return
	}
	if bmp, ok := p.fullHit(path); ok {
		cb(bmp)
		return
	}

	p.mu.Lock()
	p.fullWaiters[path] = append(p.fullWaiters[path], cb)
	inFlight := len(p.fullWaiters[path]) > 1
	p.mu.Unlock()
	if inFlight {
		return
	}

	// High lane: invalidation purges Normal and Low, and a viewer waiting on
	// this callback must still get an answer.
	err := p.pool.Submit(func(workers.Priority) {
		img, err := p.decoder.Decode(path)
		if err != nil {
			logging.Warn("failed to decode %s: %v", path, err)
			img = nil
		}
		p.ready.push(readyItem{path: path, image: img, full: true})
	}, workers.High)
	if err != nil {
		for _, w := range p.takeFullWaiters(path) {
			w(nil)
		}
	}
}

// PrefetchAround queues low-priority decodes for the radius neighbours on each
// side of index in paths, nearest first. It does nothing while the memory
// monitor reports pressure.
func (p *Pipeline) PrefetchAround(paths []string, index, radius int) {
	if p.closed.Load() || index < 0 || index >= len(paths) {
		return
	}
	if p.opts.Throttle != nil && p.opts.Throttle.ShouldThrottle() {
		return
	}
	if radius <= 0 {
		radius = DefaultPrefetchRadius
	}

	gen := p.generation.Load()
	size := p.opts.ThumbnailSize
	var (
		tasks  []workers.Task
		queued []string
	)

	p.mu.Lock()
	for d := 1; d <= radius; d++ {
		for _, i := range [2]int{index + d, index - d} {
			if i < 0 || i >= len(paths) {
				continue
			}
			path := paths[i]
			if _, ok := p.tier1[path]; ok {
				continue
			}
			if g, ok := p.pending[path]; ok && g == gen {
				continue
			}
			if p.blockedLocked(path) {
				continue
			}
			p.pending[path] = gen
			queued = append(queued, path)
			tasks = append(tasks, p.decodeTask(path, size, gen))
		}
	}
	p.mu.Unlock()

	if len(tasks) == 0 {
		return
	}
	if err := p.pool.SubmitBatch(tasks, workers.Low); err != nil {
		for _, path := range queued {
			p.dropPending(path, gen)
		}
	}
}

// InvalidateRequests starts a new generation: queued Normal and Low work is
// dropped, in-flight results from older generations are discarded, and every
// path may be requested again. Visible (High) work already queued still runs
// but its results are discarded as stale.
func (p *Pipeline) InvalidateRequests() {
	gen := p.generation.Add(1)
	p.pool.PurgePriority(workers.Normal)
	p.pool.PurgePriority(workers.Low)

	p.mu.Lock()
	clear(p.pending)
	p.mu.Unlock()

	p.observer.GenerationChanged(gen)
}

func (p *Pipeline) fullHit(path string) (Bitmap, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.full[path]
	if !ok {
		return nil, false
	}
	p.accessSeq++
	e.access = p.accessSeq
	return e.bmp, true
}

func (p *Pipeline) takeFullWaiters(path string) []BitmapCallback {
	p.mu.Lock()
	defer p.mu.Unlock()
	ws := p.fullWaiters[path]
	delete(p.fullWaiters, path)
	return ws
}

// storeFull inserts a full-resolution bitmap, evicting the least recently
// used ones beyond FullImageCacheSize.
func (p *Pipeline) storeFull(path string, bmp Bitmap, w, h int) {
	var released []Bitmap

	p.mu.Lock()
	if old, ok := p.full[path]; ok {
		released = append(released, old.bmp)
	}
	p.accessSeq++
	p.full[path] = &gpuEntry{bmp: bmp, width: w, height: h, bytes: int64(w) * int64(h) * 4, access: p.accessSeq}
	for len(p.full) > p.opts.FullImageCacheSize {
		var (
			oldest string
			seq    uint64
			first  = true
		)
		for k, e := range p.full {
			if k == path {
				continue
			}
			if first || e.access < seq {
				oldest, seq, first = k, e.access, false
			}
		}
		if first {
			break
		}
		released = append(released, p.full[oldest].bmp)
		delete(p.full, oldest)
	}
	p.mu.Unlock()

	p.release(released)
}
