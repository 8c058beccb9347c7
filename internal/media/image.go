package media

import (
	"fmt"
	"image"
	"io"
	"math"

	"photo-gallery/internal/logging"

	// Image format decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	// MaxImageDimension is the maximum width or height kept after a full
	// decode. Larger images are downscaled before they are converted to BGRA.
	MaxImageDimension = 8192

	// MaxImagePixels caps total pixels after a full decode. A 40MP image is
	// ~160MB of BGRA.
	MaxImagePixels = 40_000_000
)

// decodeReader decodes r, using the HEIC decoder for HEIF containers and
// imaging (with EXIF auto-orientation) for everything else.
func decodeReader(r io.ReadSeeker) (image.Image, string, error) {
	format, err := sniffFormat(r)
	if err != nil {
		return nil, "", err
	}

	switch format {
	case "heif":
		img, err := decodeHEIC(r)
		return img, format, err
	case "avif", "mp4-container":
		return nil, format, fmt.Errorf("%s: %w", format, ErrNotSupported)
	}

	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	return img, format, err
}

// constrainedSize returns the size an image must be shrunk to so that it fits
// both limits, and whether shrinking is needed at all.
func constrainedSize(width, height, maxDimension, maxPixels int) (int, int, bool) {
	if width <= 0 || height <= 0 {
		return width, height, false
	}
	if width <= maxDimension && height <= maxDimension && width*height <= maxPixels {
		return width, height, false
	}

	targetWidth, targetHeight := width, height

	if width > maxDimension || height > maxDimension {
		if width > height {
			targetWidth = maxDimension
			targetHeight = height * maxDimension / width
		} else {
			targetHeight = maxDimension
			targetWidth = width * maxDimension / height
		}
	}

	if targetPixels := targetWidth * targetHeight; targetPixels > maxPixels {
		scale := math.Sqrt(float64(maxPixels) / float64(targetPixels))
		targetWidth = int(float64(targetWidth) * scale)
		targetHeight = int(float64(targetHeight) * scale)
	}

	if targetWidth < 1 {
		targetWidth = 1
	}
	if targetHeight < 1 {
		targetHeight = 1
	}
	return targetWidth, targetHeight, true
}

// constrainImage downscales img if it exceeds the limits.
func constrainImage(path string, img image.Image, maxDimension, maxPixels int) image.Image {
	b := img.Bounds()
	w, h, shrink := constrainedSize(b.Dx(), b.Dy(), maxDimension, maxPixels)
	if !shrink {
		return img
	}
	logging.Info("Constraining large image %s from %dx%d to %dx%d", path, b.Dx(), b.Dy(), w, h)
	return imaging.Resize(img, w, h, imaging.Lanczos)
}

// decodeConfig reads dimensions and color model without decoding pixels.
func decodeConfig(r io.ReadSeeker) (image.Config, string, error) {
	format, err := sniffFormat(r)
	if err != nil {
		return image.Config{}, "", err
	}
	if format == "heif" {
		// The HEIC decoder has no header-only path.
		img, err := decodeHEIC(r)
		if err != nil {
			return image.Config{}, format, err
		}
		return image.Config{ColorModel: img.ColorModel(), Width: img.Bounds().Dx(), Height: img.Bounds().Dy()}, format, nil
	}

	cfg, name, err := image.DecodeConfig(r)
	if err != nil {
		return image.Config{}, format, err
	}
	return cfg, name, nil
}
