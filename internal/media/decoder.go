package media

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"os"

	"photo-gallery/internal/filesystem"
	"photo-gallery/internal/logging"

	"github.com/disintegration/imaging"
)

// Decoder turns image files into BGRA pixel buffers. Implementations must be
// safe for concurrent use; the pipeline calls them from every worker.
type Decoder interface {
	// Decode returns the full-resolution image (subject to the decoder's
	// safety limits).
	Decode(path string) (*DecodedImage, error)
	// GenerateThumbnail returns an image whose longest edge is at most maxSize.
	GenerateThumbnail(path string, maxSize int) (*DecodedImage, error)
	// GetImageInfo reads metadata without decoding pixels.
	GetImageInfo(path string) (*ImageInfo, error)
	// IsSupportedFormat reports whether path looks decodable.
	IsSupportedFormat(path string) bool
}

// DecoderOptions configures an ImageDecoder.
type DecoderOptions struct {
	MaxDimension int
	MaxPixels    int
	// UseVips enables libvips decode-time shrinking for JPEG thumbnails. It is
	// ignored unless InitVips succeeded.
	UseVips bool
	Retry   filesystem.RetryConfig
}

// DefaultDecoderOptions returns the limits used by the gallery.
func DefaultDecoderOptions() DecoderOptions {
	return DecoderOptions{
		MaxDimension: MaxImageDimension,
		MaxPixels:    MaxImagePixels,
		Retry:        filesystem.DefaultRetryConfig(),
	}
}

// ImageDecoder is the Decoder backed by imaging, x/image, goheif and
// optionally libvips.
type ImageDecoder struct {
	opts DecoderOptions
}

// NewImageDecoder creates a decoder. Zero limits fall back to the defaults.
func NewImageDecoder(opts DecoderOptions) *ImageDecoder {
	def := DefaultDecoderOptions()
	if opts.MaxDimension <= 0 {
		opts.MaxDimension = def.MaxDimension
	}
	if opts.MaxPixels <= 0 {
		opts.MaxPixels = def.MaxPixels
	}
	return &ImageDecoder{opts: opts}
}

// IsSupportedFormat implements Decoder.
func (d *ImageDecoder) IsSupportedFormat(path string) bool {
	return IsSupportedExtension(path)
}

// Decode implements Decoder.
func (d *ImageDecoder) Decode(path string) (*DecodedImage, error) {
	img, err := d.load(path)
	if err != nil {
		return nil, err
	}
	return newDecodedImage(path, img), nil
}

// GenerateThumbnail implements Decoder.
func (d *ImageDecoder) GenerateThumbnail(path string, maxSize int) (*DecodedImage, error) {
	if maxSize <= 0 {
		maxSize = DefaultThumbnailSize
	}
	if !d.IsSupportedFormat(path) {
		return nil, fmt.Errorf("%s: %w", path, ErrNotSupported)
	}

	if d.opts.UseVips && isJPEGPath(path) {
		img, err := thumbnailWithVips(path, maxSize)
		if err == nil {
			return newDecodedImage(path, img), nil
		}
		logging.Debug("vips thumbnail failed for %s, falling back: %v", path, err)
	}

	img, err := d.load(path)
	if err != nil {
		return nil, err
	}

	thumb := imaging.Fit(img, maxSize, maxSize, imaging.Linear)
	return newDecodedImage(path, thumb), nil
}

// GetImageInfo implements Decoder.
func (d *ImageDecoder) GetImageInfo(path string) (*ImageInfo, error) {
	f, err := filesystem.OpenWithRetry(path, d.opts.Retry)
	if err != nil {
		return nil, err
	}
	defer closeQuietly(f, path)

	cfg, format, err := decodeConfig(f)
	if err != nil {
		return nil, fmt.Errorf("read image header %s: %w", path, err)
	}

	info := &ImageInfo{
		Width:        cfg.Width,
		Height:       cfg.Height,
		BitsPerPixel: bitsPerPixel(cfg),
		PixelFormat:  PixelFormatBGRA8,
		Format:       format,
		HasAlpha:     formatMayHaveAlpha(format),
		Orientation:  1,
	}

	if _, err := f.Seek(0, io.SeekStart); err == nil {
		meta := readExif(f)
		info.Orientation = meta.Orientation
		info.Captured = meta.Captured
		if orientationSwapsAxes(meta.Orientation) {
			info.Width, info.Height = info.Height, info.Width
		}
	}

	return info, nil
}

// load opens and decodes path, then applies the size limits.
func (d *ImageDecoder) load(path string) (image.Image, error) {
	if !d.IsSupportedFormat(path) {
		return nil, fmt.Errorf("%s: %w", path, ErrNotSupported)
	}

	f, err := filesystem.OpenWithRetry(path, d.opts.Retry)
	if err != nil {
		return nil, err
	}
	defer closeQuietly(f, path)

	img, format, err := decodeReader(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s (%s): %w", path, format, err)
	}
	if img == nil {
		return nil, fmt.Errorf("decode %s returned nil image", path)
	}

	return constrainImage(path, img, d.opts.MaxDimension, d.opts.MaxPixels), nil
}

func closeQuietly(f *os.File, path string) {
	if err := f.Close(); err != nil {
		logging.Warn("failed to close image file %s: %v", path, err)
	}
}

func isJPEGPath(path string) bool {
	switch extOf(path) {
	case ".jpg", ".jpeg":
		return true
	}
	return false
}

func bitsPerPixel(cfg image.Config) int {
	if _, ok := cfg.ColorModel.(color.Palette); ok {
		return 8
	}
	switch cfg.ColorModel {
	case color.GrayModel:
		return 8
	case color.Gray16Model:
		return 16
	case color.RGBA64Model, color.NRGBA64Model:
		return 64
	case color.YCbCrModel, color.CMYKModel:
		return 24
	default:
		return 32
	}
}

func formatMayHaveAlpha(format string) bool {
	switch format {
	case "png", "gif", "webp", "tiff", "bmp":
		return true
	}
	return false
}
