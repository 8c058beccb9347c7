// Package cachefile holds the pieces shared by the gallery's binary cache
// files: the 32-byte header convention and UTF-16LE path strings.
package cachefile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
)

// HeaderSize is the fixed header length of every cache file.
const HeaderSize = 32

// MaxPathUnits is the longest path, in UTF-16 code units, a u16 length can hold.
const MaxPathUnits = 0xFFFF

// ErrCorrupt reports a cache file that failed validation. Callers treat it as
// "cache absent".
var ErrCorrupt = errors.New("cache file corrupt")

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// EncodePath converts a UTF-8 path to UTF-16LE. It fails on invalid UTF-8 and
// on paths longer than MaxPathUnits code units.
func EncodePath(path string) ([]byte, error) {
	if !utf8.ValidString(path) {
		return nil, fmt.Errorf("path %q is not valid UTF-8", path)
	}
	b, err := utf16le.NewEncoder().Bytes([]byte(path))
	if err != nil {
		return nil, fmt.Errorf("encode path: %w", err)
	}
	if len(b)/2 > MaxPathUnits {
		return nil, fmt.Errorf("path has %d UTF-16 units, limit %d", len(b)/2, MaxPathUnits)
	}
	return b, nil
}

// DecodePath converts UTF-16LE bytes back to a UTF-8 string.
func DecodePath(b []byte) (string, error) {
	if len(b)%2 != 0 {
		return "", fmt.Errorf("odd UTF-16 length %d: %w", len(b), ErrCorrupt)
	}
	out, err := utf16le.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("decode path: %w", err)
	}
	return string(out), nil
}

// Header is the common prefix of a cache file. Fields beyond Count are
// format-specific and live in Extra.
type Header struct {
	Magic   [4]byte
	Version uint32
	Count   uint32
	Extra   [20]byte
}

// PutHeader encodes h into the first HeaderSize bytes of dst.
func PutHeader(dst []byte, h Header) {
	_ = dst[HeaderSize-1]
	copy(dst[0:4], h.Magic[:])
	binary.LittleEndian.PutUint32(dst[4:8], h.Version)
	binary.LittleEndian.PutUint32(dst[8:12], h.Count)
	copy(dst[12:32], h.Extra[:])
}

// ReadHeader validates magic and version and returns the decoded header.
func ReadHeader(data []byte, magic string, version uint32) (Header, error) {
	var h Header
	if len(data) < HeaderSize {
		return h, fmt.Errorf("file is %d bytes, shorter than header: %w", len(data), ErrCorrupt)
	}
	copy(h.Magic[:], data[0:4])
	if string(h.Magic[:]) != magic {
		return h, fmt.Errorf("bad magic %q: %w", h.Magic[:], ErrCorrupt)
	}
	h.Version = binary.LittleEndian.Uint32(data[4:8])
	if h.Version != version {
		return h, fmt.Errorf("version %d, want %d: %w", h.Version, version, ErrCorrupt)
	}
	h.Count = binary.LittleEndian.Uint32(data[8:12])
	copy(h.Extra[:], data[12:32])
	return h, nil
}
