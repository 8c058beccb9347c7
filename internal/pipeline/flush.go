package pipeline

import (
	"sort"

	"photo-gallery/internal/logging"
)

// FlushReadyThumbnails uploads up to max decoded results, stores them in
// Tier 1 and runs eviction if anything was added. It also delivers pending
// GetBitmapAsync callbacks and resets the per-frame disk upload budget, so it
// is expected once per frame on the render thread. It returns the number of
// thumbnails uploaded.
func (p *Pipeline) FlushReadyThumbnails(max int) int {
	p.syncBudget.Store(int64(p.opts.PersistSyncBudget))
	if p.closed.Load() {
		return 0
	}

	created := 0
	var released []Bitmap
	for _, it := range p.ready.popN(max) {
		if it.full {
			p.finishFull(it)
			continue
		}
		if it.image == nil || p.HasThumbnail(it.path) {
			continue
		}

		img := it.image
		bmp, err := p.renderer.CreateBitmap(img.Width, img.Height, img.Pixels)
		if err != nil || bmp == nil {
			logging.Warn("failed to create thumbnail bitmap for %s: %v", it.path, err)
			p.recordFailure(it.path, err)
			continue
		}

		p.mu.Lock()
		if it.tier != TierDisk {
			if _, ok := p.saveBuf[it.path]; !ok {
				p.saveBuf[it.path] = img
			}
		}
		if old := p.insertTier1Locked(it.path, bmp, img.Width, img.Height); old != nil {
			released = append(released, old)
		}
		p.mu.Unlock()

		p.observer.ThumbnailServed(it.tier)
		created++
	}

	p.release(released)
	if created > 0 {
		p.evictIfNeeded()
	}
	return created
}

func (p *Pipeline) finishFull(it readyItem) {
	var bmp Bitmap
	if it.image != nil {
		var err error
		bmp, err = p.renderer.CreateBitmap(it.image.Width, it.image.Height, it.image.Pixels)
		if err != nil {
			logging.Warn("failed to create bitmap for %s: %v", it.path, err)
			bmp = nil
		}
		if bmp != nil {
			p.storeFull(it.path, bmp, it.image.Width, it.image.Height)
		}
	}
	for _, cb := range p.takeFullWaiters(it.path) {
		cb(bmp)
	}
}

type demotion struct {
	path   string
	pixels []byte
	width  int
	height int
}

// evictIfNeeded trims Tier 1 to 75% of its ceiling once it exceeds the
// ceiling. Visible entries stay; the rest go oldest access first. Evicted
// entries whose pixels are still in the save buffer are compressed into
// Tier 2 while it has room.
func (p *Pipeline) evictIfNeeded() {
	p.mu.Lock()
	if p.tier1Bytes <= p.opts.Tier1MaxBytes {
		p.mu.Unlock()
		return
	}
	target := p.opts.Tier1MaxBytes * 3 / 4

	type candidate struct {
		path   string
		access uint64
	}
	cands := make([]candidate, 0, len(p.tier1))
	for path, e := range p.tier1 {
		if _, vis := p.visible[path]; vis {
			continue
		}
		cands = append(cands, candidate{path, e.access})
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].access < cands[j].access })

	var (
		released []Bitmap
		demote   []demotion
	)
	for _, c := range cands {
		if p.tier1Bytes <= target {
			break
		}
		e := p.tier1[c.path]
		delete(p.tier1, c.path)
		p.tier1Bytes -= e.bytes
		released = append(released, e.bmp)

		if img, ok := p.saveBuf[c.path]; ok && p.tier2Bytes < p.opts.Tier2MaxBytes {
			demote = append(demote, demotion{c.path, img.Pixels, img.Width, img.Height})
		}
	}
	over := p.tier1Bytes > p.opts.Tier1MaxBytes
	p.mu.Unlock()

	p.release(released)

	demoted := 0
	for _, d := range demote {
		data := p.codec.compress(d.pixels)
		p.mu.Lock()
		_, back := p.tier1[d.path]
		_, dup := p.tier2[d.path]
		if !back && !dup && p.tier2Bytes < p.opts.Tier2MaxBytes {
			p.tier2[d.path] = &compressedThumb{data: data, rawSize: len(d.pixels), width: d.width, height: d.height}
			p.tier2Bytes += int64(len(data))
			demoted++
		}
		p.mu.Unlock()
	}

	p.observer.Evicted(len(released), demoted)
	if over {
		logging.Debug("tier 1 still over its ceiling after eviction; visible set is larger than the budget")
	}
}
