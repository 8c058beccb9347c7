package cachefile

import (
	"errors"
	"strings"
	"testing"
)

func TestPathEncoding(t *testing.T) {
	tests := []struct {
		name  string
		path  string
		units int
	}{
		{"ascii", `C:\Photos\a.jpg`, 15},
		{"accented", "/home/zoë/été.png", 17},
		{"astral plane", "/pics/😀.jpg", 12},
		{"empty", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := EncodePath(tt.path)
			if err != nil {
				t.Fatalf("EncodePath() error = %v", err)
			}
			if len(b) != tt.units*2 {
				t.Errorf("encoded length = %d bytes, want %d", len(b), tt.units*2)
			}
			got, err := DecodePath(b)
			if err != nil {
				t.Fatalf("DecodePath() error = %v", err)
			}
			if got != tt.path {
				t.Errorf("DecodePath() = %q, want %q", got, tt.path)
			}
		})
	}
}

func TestEncodePathRejects(t *testing.T) {
	if _, err := EncodePath("bad\xffpath"); err == nil {
		t.Error("EncodePath(invalid UTF-8) error = nil")
	}
	if _, err := EncodePath(strings.Repeat("a", MaxPathUnits+1)); err == nil {
		t.Error("EncodePath(too long) error = nil")
	}
	if _, err := DecodePath([]byte{1, 2, 3}); !errors.Is(err, ErrCorrupt) {
		t.Errorf("DecodePath(odd) error = %v, want ErrCorrupt", err)
	}
}

func TestHeader(t *testing.T) {
	buf := make([]byte, HeaderSize)
	h := Header{Magic: [4]byte{'T', 'E', 'S', 'T'}, Version: 1, Count: 42}
	h.Extra[0] = 7
	PutHeader(buf, h)

	got, err := ReadHeader(buf, "TEST", 1)
	if err != nil {
		t.Fatalf("ReadHeader() error = %v", err)
	}
	if got != h {
		t.Errorf("ReadHeader() = %+v, want %+v", got, h)
	}

	tests := []struct {
		name    string
		data    []byte
		magic   string
		version uint32
	}{
		{"short", buf[:10], "TEST", 1},
		{"wrong magic", buf, "UIVT", 1},
		{"wrong version", buf, "TEST", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadHeader(tt.data, tt.magic, tt.version); !errors.Is(err, ErrCorrupt) {
				t.Errorf("ReadHeader() error = %v, want ErrCorrupt", err)
			}
		})
	}
}
