package media

import (
	"io"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// exifMeta is the subset of EXIF the gallery uses.
type exifMeta struct {
	Orientation int
	Captured    time.Time
}

// readExif extracts orientation and capture time. Missing or malformed EXIF
// yields orientation 1 and a zero time; it is never an error.
func readExif(r io.Reader) exifMeta {
	meta := exifMeta{Orientation: 1}

	x, err := exif.Decode(r)
	if err != nil {
		return meta
	}

	if tag, err := x.Get(exif.Orientation); err == nil {
		if v, err := tag.Int(0); err == nil && v >= 1 && v <= 8 {
			meta.Orientation = v
		}
	}
	if t, err := x.DateTime(); err == nil {
		meta.Captured = t
	}

	return meta
}

// orientationSwapsAxes reports whether the EXIF orientation rotates by 90 or
// 270 degrees.
func orientationSwapsAxes(o int) bool {
	return o >= 5 && o <= 8
}
