package render

import (
	"errors"
	"fmt"
	"image"
	"io"
	"sync"
	"sync/atomic"

	"github.com/disintegration/imaging"

	"photo-gallery/internal/media"
	"photo-gallery/internal/pipeline"
)

var (
	// ErrInvalidBitmap is returned for zero-sized or short pixel buffers.
	ErrInvalidBitmap = errors.New("invalid bitmap dimensions")
	// ErrReleased is returned when encoding a bitmap that was already released.
	ErrReleased = errors.New("bitmap released")
)

// Bitmap is the handle SoftwareRenderer hands to the pipeline.
type Bitmap struct {
	mu       sync.RWMutex
	img      *image.NRGBA
	released bool
}

// Bounds returns the bitmap size, or an empty rectangle once released.
func (b *Bitmap) Bounds() image.Rectangle {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.img == nil {
		return image.Rectangle{}
	}
	return b.img.Rect
}

// Image returns the pixels as an image. The result must not be modified.
func (b *Bitmap) Image() (*image.NRGBA, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.img, !b.released
}

// Stats counts bitmaps created and still held.
type Stats struct {
	Created   uint64 `json:"created"`
	Released  uint64 `json:"released"`
	Live      int64  `json:"live"`
	LiveBytes int64  `json:"liveBytes"`
	Failures  uint64 `json:"failures"`
}

// SoftwareRenderer keeps bitmaps as RGBA images in process memory. It stands
// in for a GPU device when the gallery runs headless and serves thumbnails
// over HTTP.
type SoftwareRenderer struct {
	created   atomic.Uint64
	released  atomic.Uint64
	failures  atomic.Uint64
	live      atomic.Int64
	liveBytes atomic.Int64
}

// NewSoftwareRenderer creates a renderer with empty counters.
func NewSoftwareRenderer() *SoftwareRenderer {
	return &SoftwareRenderer{}
}

// CreateBitmap copies a BGRA buffer into a new bitmap.
func (r *SoftwareRenderer) CreateBitmap(width, height int, pixels []byte) (pipeline.Bitmap, error) {
	if width <= 0 || height <= 0 || len(pixels) < width*height*4 {
		r.failures.Add(1)
		return nil, fmt.Errorf("%w: %dx%d with %d bytes", ErrInvalidBitmap, width, height, len(pixels))
	}

	b := &Bitmap{img: media.FromBGRA(pixels, width, height)}
	r.created.Add(1)
	r.live.Add(1)
	r.liveBytes.Add(int64(width * height * 4))
	return b, nil
}

// ReleaseBitmap drops the pixels of a bitmap created by this renderer.
// Releasing twice is a no-op.
func (r *SoftwareRenderer) ReleaseBitmap(bmp pipeline.Bitmap) {
	b, ok := bmp.(*Bitmap)
	if !ok || b == nil {
		return
	}

	b.mu.Lock()
	if b.released {
		b.mu.Unlock()
		return
	}
	size := int64(len(b.img.Pix))
	b.img = nil
	b.released = true
	b.mu.Unlock()

	r.released.Add(1)
	r.live.Add(-1)
	r.liveBytes.Add(-size)
}

// Stats returns the current counters.
func (r *SoftwareRenderer) Stats() Stats {
	return Stats{
		Created:   r.created.Load(),
		Released:  r.released.Load(),
		Live:      r.live.Load(),
		LiveBytes: r.liveBytes.Load(),
		Failures:  r.failures.Load(),
	}
}

// Format selects the encoding used by Encode.
type Format int

const (
	JPEG Format = iota
	PNG
)

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	if f == PNG {
		return "image/png"
	}
	return "image/jpeg"
}

// FormatFor picks PNG for bitmaps with transparency and JPEG otherwise.
func FormatFor(bmp pipeline.Bitmap) Format {
	b, ok := bmp.(*Bitmap)
	if !ok {
		return JPEG
	}
	img, live := b.Image()
	if !live || img == nil || img.Opaque() {
		return JPEG
	}
	return PNG
}

// Encode writes bmp to w. Bitmaps from other renderers are rejected.
func Encode(w io.Writer, bmp pipeline.Bitmap, format Format, quality int) error {
	b, ok := bmp.(*Bitmap)
	if !ok || b == nil {
		return fmt.Errorf("%w: %T", ErrInvalidBitmap, bmp)
	}

	// Hold the read lock so a concurrent release cannot free the pixels
	// mid-encode.
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.released || b.img == nil {
		return ErrReleased
	}

	switch format {
	case PNG:
		return imaging.Encode(w, b.img, imaging.PNG)
	default:
		if quality <= 0 || quality > 100 {
			quality = 85
		}
		return imaging.Encode(w, b.img, imaging.JPEG, imaging.JPEGQuality(quality))
	}
}
