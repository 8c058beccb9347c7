//go:build cgo && !windows

package media

import (
	"image"
	"io"

	"github.com/jdeng/goheif"
)

func decodeHEIC(r io.Reader) (image.Image, error) {
	return goheif.Decode(r)
}

func heicSupported() bool { return true }
