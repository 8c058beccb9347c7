package media

import (
	"bytes"
	"io"
)

// sniffHeaderSize is enough to identify every format we decode.
const sniffHeaderSize = 32

// detectFormat identifies an image container from its leading bytes.
func detectFormat(header []byte) string {
	switch {
	case len(header) >= 3 && header[0] == 0xFF && header[1] == 0xD8 && header[2] == 0xFF:
		return "jpeg"

	case len(header) >= 8 && bytes.Equal(header[:8], []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}):
		return "png"

	case len(header) >= 4 && string(header[:4]) == "GIF8":
		return "gif"

	case len(header) >= 12 && string(header[:4]) == "RIFF" && string(header[8:12]) == "WEBP":
		return "webp"

	case len(header) >= 2 && header[0] == 'B' && header[1] == 'M':
		return "bmp"

	case len(header) >= 4 && (string(header[:4]) == "II*\x00" || string(header[:4]) == "MM\x00*"):
		return "tiff"

	case len(header) >= 12 && string(header[4:8]) == "ftyp":
		switch string(header[8:12]) {
		case "heic", "heix", "hevc", "hevx", "mif1", "msf1":
			return "heif"
		case "avif", "avis":
			return "avif"
		}
		return "mp4-container"
	}

	return "unknown"
}

// sniffFormat reads the header of r and rewinds it.
func sniffFormat(r io.ReadSeeker) (string, error) {
	header := make([]byte, sniffHeaderSize)
	n, err := io.ReadFull(r, header)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return detectFormat(header[:n]), nil
}
