package media

import (
	"image"

	"github.com/disintegration/imaging"
)

// ToBGRA converts img into a tightly packed BGRA8 buffer and reports whether
// any pixel is not fully opaque.
func ToBGRA(img image.Image) (pixels []byte, width, height int, hasAlpha bool) {
	nrgba := imaging.Clone(img)
	width, height = nrgba.Rect.Dx(), nrgba.Rect.Dy()

	// imaging.Clone always returns a zero-origin image with stride width*4,
	// so the buffer can be swizzled in place.
	pixels = nrgba.Pix[:width*height*4]
	for i := 0; i < len(pixels); i += 4 {
		pixels[i], pixels[i+2] = pixels[i+2], pixels[i]
		if pixels[i+3] != 0xFF {
			hasAlpha = true
		}
	}
	return pixels, width, height, hasAlpha
}

// FromBGRA wraps a BGRA8 buffer as an image, copying it into RGBA order.
func FromBGRA(pixels []byte, width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	n := width * height * 4
	if len(pixels) < n {
		n = len(pixels) &^ 3
	}
	for i := 0; i < n; i += 4 {
		img.Pix[i+0] = pixels[i+2]
		img.Pix[i+1] = pixels[i+1]
		img.Pix[i+2] = pixels[i+0]
		img.Pix[i+3] = pixels[i+3]
	}
	return img
}

func newDecodedImage(path string, img image.Image) *DecodedImage {
	pixels, w, h, alpha := ToBGRA(img)
	return &DecodedImage{
		Pixels:       pixels,
		Width:        w,
		Height:       h,
		BitsPerPixel: 32,
		PixelFormat:  PixelFormatBGRA8,
		HasAlpha:     alpha,
		SourcePath:   path,
	}
}

// Fit returns d scaled down so its longest edge is at most maxSize. Images
// already within bounds are returned unchanged.
func (d *DecodedImage) Fit(maxSize int) *DecodedImage {
	if maxSize <= 0 || (d.Width <= maxSize && d.Height <= maxSize) {
		return d
	}
	thumb := imaging.Fit(FromBGRA(d.Pixels, d.Width, d.Height), maxSize, maxSize, imaging.Linear)
	return newDecodedImage(d.SourcePath, thumb)
}
