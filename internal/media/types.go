package media

import (
	"errors"
	"path/filepath"
	"strings"
	"time"
)

// DefaultThumbnailSize is the longest edge, in pixels, of generated thumbnails.
const DefaultThumbnailSize = 256

// PixelFormat describes the byte layout of DecodedImage.Pixels.
type PixelFormat string

const (
	// PixelFormatBGRA8 is 8 bits per channel in B, G, R, A order with straight
	// (non-premultiplied) alpha. Every decoder output uses it.
	PixelFormatBGRA8 PixelFormat = "bgra8"
)

// ErrNotSupported is returned for files whose extension no decoder handles.
var ErrNotSupported = errors.New("unsupported image format")

// ImageInfo is what can be learned about an image without decoding its pixels.
type ImageInfo struct {
	Width        int
	Height       int
	BitsPerPixel int
	PixelFormat  PixelFormat
	Format       string
	HasAlpha     bool
	// Orientation is the EXIF orientation tag (1-8), 1 when absent. Width and
	// Height already account for it.
	Orientation int
	// Captured is the EXIF DateTimeOriginal, zero when absent.
	Captured time.Time
}

// DecodedImage owns a tightly packed BGRA pixel buffer (stride = Width*4).
type DecodedImage struct {
	Pixels       []byte
	Width        int
	Height       int
	BitsPerPixel int
	PixelFormat  PixelFormat
	HasAlpha     bool
	SourcePath   string
}

// ByteSize returns the resident size of the pixel buffer.
func (d *DecodedImage) ByteSize() int {
	if d == nil {
		return 0
	}
	return d.Width * d.Height * 4
}

// baseExtensions are the formats decodable on every platform.
var baseExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".bmp": true, ".webp": true, ".tiff": true, ".tif": true,
}

// heifExtensions are decodable only where HEIC support is compiled in.
var heifExtensions = map[string]bool{
	".heic": true, ".heif": true,
}

// IsSupportedExtension reports whether files with this path's extension can be
// decoded by this build.
func IsSupportedExtension(path string) bool {
	ext := extOf(path)
	if baseExtensions[ext] {
		return true
	}
	return heifExtensions[ext] && heicSupported()
}

// SupportedExtensions lists every extension IsSupportedExtension accepts.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(baseExtensions)+len(heifExtensions))
	for ext := range baseExtensions {
		exts = append(exts, ext)
	}
	if heicSupported() {
		for ext := range heifExtensions {
			exts = append(exts, ext)
		}
	}
	return exts
}

func extOf(path string) string {
	return strings.ToLower(filepath.Ext(path))
}
