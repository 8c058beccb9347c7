package pipeline

import (
	"time"

	"photo-gallery/internal/logging"
	"photo-gallery/internal/media"
	"photo-gallery/internal/workers"
)

// decodeTask builds the worker task for one thumbnail request of generation
// gen.
func (p *Pipeline) decodeTask(path string, size int, gen uint64) workers.Task {
	return func(lane workers.Priority) {
		if p.generation.Load() != gen {
			p.dropPending(path, gen)
			p.observer.StaleDiscarded()
			return
		}
		if p.HasThumbnail(path) {
			return
		}

		if lane == workers.Low {
			end := workers.BeginBackgroundIO()
			defer end()
		}

		start := time.Now()
		img, tier, taken, err := p.produceThumb(path, size, lane)
		if err != nil {
			if p.generation.Load() != gen {
				p.dropPending(path, gen)
				p.observer.StaleDiscarded()
				return
			}
			p.recordFailure(path, err)
			return
		}

		if p.generation.Load() != gen {
			if taken != nil {
				p.restoreTier2(path, taken)
			}
			p.dropPending(path, gen)
			p.observer.StaleDiscarded()
			return
		}

		p.ready.push(readyItem{path: path, image: img, tier: tier})
		p.observer.DecodeFinished(tier, time.Since(start))
	}
}

// produceThumb walks the lower tiers for path: Tier 2 (taking the entry),
// Tier 3 (copying out), then the source file with a full decode fallback. It
// returns the Tier-2 entry it removed so a caller that discards the result
// can put it back.
func (p *Pipeline) produceThumb(path string, size int, lane workers.Priority) (*media.DecodedImage, Tier, *compressedThumb, error) {
	p.mu.Lock()
	c, ok := p.tier2[path]
	if ok {
		delete(p.tier2, path)
		p.tier2Bytes -= int64(len(c.data))
	}
	p.mu.Unlock()

	if c != nil {
		px, err := p.codec.decompress(c.data, c.rawSize)
		if err == nil {
			return &media.DecodedImage{
				Pixels:       px,
				Width:        c.width,
				Height:       c.height,
				BitsPerPixel: 32,
				PixelFormat:  media.PixelFormatBGRA8,
				SourcePath:   path,
			}, TierRAM, c, nil
		}
		logging.Warn("dropping corrupt compressed thumbnail for %s: %v", path, err)
	}

	if img, ok := p.persist.copyOut(path); ok {
		return img, TierDisk, nil, nil
	}

	img, err := p.decoder.GenerateThumbnail(path, size)
	if err != nil {
		logging.Debug("thumbnail generation failed for %s on %s lane, trying full decode: %v", path, lane, err)
		full, ferr := p.decoder.Decode(path)
		if ferr != nil {
			return nil, TierSource, nil, ferr
		}
		img = full.Fit(size)
	}
	if img == nil || len(img.Pixels) < img.Width*img.Height*4 || img.Width <= 0 || img.Height <= 0 {
		return nil, TierSource, nil, media.ErrNotSupported
	}
	return img, TierSource, nil, nil
}

// restoreTier2 puts back an entry a stale task had taken, unless the path has
// reached Tier 1 in the meantime.
func (p *Pipeline) restoreTier2(path string, c *compressedThumb) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.tier1[path]; ok {
		return
	}
	if _, ok := p.tier2[path]; ok {
		return
	}
	p.tier2[path] = c
	p.tier2Bytes += int64(len(c.data))
}
