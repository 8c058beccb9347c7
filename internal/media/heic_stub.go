//go:build !cgo || windows

package media

import (
	"fmt"
	"image"
	"io"
)

func decodeHEIC(io.Reader) (image.Image, error) {
	return nil, fmt.Errorf("HEIC: %w", ErrNotSupported)
}

func heicSupported() bool { return false }
