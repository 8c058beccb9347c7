package scanner

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"time"

	"photo-gallery/internal/cachefile"
	"photo-gallery/internal/filesystem"
	"photo-gallery/internal/logging"
	"photo-gallery/internal/metrics"
)

// Scan cache layout, all little endian:
//
//	header  32 bytes  "UIVC", version u32, entry_count u32,
//	                  string_blob_size u32, timestamp u64, reserved 8
//	entries 12 bytes  path_offset u32 (bytes into blob), path_len u16
//	                  (UTF-16 units), year i16, month i16, reserved u16
//	blob              UTF-16LE paths, back to back
const (
	scanMagic     = "UIVC"
	scanVersion   = 1
	scanEntrySize = 12
)

// filetimeEpochOffset is the number of 100ns intervals between 1601-01-01
// and the Unix epoch.
const filetimeEpochOffset = 116444736000000000

// ErrScanCacheCorrupt reports a scan cache that failed validation.
var ErrScanCacheCorrupt = cachefile.ErrCorrupt

// SaveScanCache writes images to path, replacing any previous cache
// atomically. SourceFolder is not persisted.
func SaveScanCache(path string, images []ScannedImage) (err error) {
	defer func() {
		result := "success"
		if err != nil {
			result = "error"
		}
		metrics.CacheFileOperations.WithLabelValues("scan", "save", result).Inc()
	}()

	if uint64(len(images)) > math.MaxUint32 {
		return fmt.Errorf("too many images for scan cache: %d", len(images))
	}

	entries := make([]byte, len(images)*scanEntrySize)
	blob := make([]byte, 0, len(images)*160)
	for i, img := range images {
		encoded, err := cachefile.EncodePath(img.Path)
		if err != nil {
			return fmt.Errorf("encoding %s: %w", img.Path, err)
		}
		if uint64(len(blob)+len(encoded)) > math.MaxUint32 {
			return errors.New("scan cache string blob exceeds 4 GiB")
		}

		e := entries[i*scanEntrySize : (i+1)*scanEntrySize]
		binary.LittleEndian.PutUint32(e[0:4], uint32(len(blob)))
		binary.LittleEndian.PutUint16(e[4:6], uint16(len(encoded)/2))
		binary.LittleEndian.PutUint16(e[6:8], uint16(int16(img.Year)))
		binary.LittleEndian.PutUint16(e[8:10], uint16(int16(img.Month)))
		blob = append(blob, encoded...)
	}

	h := cachefile.Header{Version: scanVersion, Count: uint32(len(images))}
	copy(h.Magic[:], scanMagic)
	binary.LittleEndian.PutUint32(h.Extra[0:4], uint32(len(blob)))
	binary.LittleEndian.PutUint64(h.Extra[4:12], uint64(time.Now().UnixNano()/100+filetimeEpochOffset))

	var header [cachefile.HeaderSize]byte
	cachefile.PutHeader(header[:], h)

	err = filesystem.WriteFileAtomic(path, func(w io.Writer) error {
		for _, chunk := range [][]byte{header[:], entries, blob} {
			if _, err := w.Write(chunk); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("writing scan cache: %w", err)
	}

	metrics.CacheFileEntries.WithLabelValues("scan").Set(float64(len(images)))
	logging.Debug("Saved scan cache: %d entries, %d bytes", len(images), cachefile.HeaderSize+len(entries)+len(blob))
	return nil
}

// LoadScanCache reads a cache written by SaveScanCache. A missing file
// returns no images and no error. Any validation failure returns no images
// and an error wrapping ErrScanCacheCorrupt.
func LoadScanCache(path string) ([]ScannedImage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		metrics.CacheFileOperations.WithLabelValues("scan", "load", "error").Inc()
		return nil, fmt.Errorf("reading scan cache: %w", err)
	}

	images, err := parseScanCache(data)
	if err != nil {
		metrics.CacheFileOperations.WithLabelValues("scan", "load", "corrupt").Inc()
		return nil, err
	}

	metrics.CacheFileOperations.WithLabelValues("scan", "load", "success").Inc()
	metrics.CacheFileEntries.WithLabelValues("scan").Set(float64(len(images)))
	logging.Debug("Loaded scan cache: %d entries", len(images))
	return images, nil
}

// ScanCacheTime returns the timestamp stored in a scan cache header.
func ScanCacheTime(data []byte) (time.Time, error) {
	h, err := cachefile.ReadHeader(data, scanMagic, scanVersion)
	if err != nil {
		return time.Time{}, err
	}
	ft := int64(binary.LittleEndian.Uint64(h.Extra[4:12]))
	if ft < filetimeEpochOffset {
		return time.Time{}, nil
	}
	return time.Unix(0, (ft-filetimeEpochOffset)*100), nil
}

func parseScanCache(data []byte) ([]ScannedImage, error) {
	h, err := cachefile.ReadHeader(data, scanMagic, scanVersion)
	if err != nil {
		return nil, err
	}

	blobSize := uint64(binary.LittleEndian.Uint32(h.Extra[0:4]))
	want := uint64(cachefile.HeaderSize) + uint64(h.Count)*scanEntrySize + blobSize
	if want != uint64(len(data)) {
		return nil, fmt.Errorf("file is %d bytes, header describes %d: %w", len(data), want, ErrScanCacheCorrupt)
	}

	entryBase := cachefile.HeaderSize
	blob := data[entryBase+int(h.Count)*scanEntrySize:]

	images := make([]ScannedImage, 0, h.Count)
	for i := 0; i < int(h.Count); i++ {
		e := data[entryBase+i*scanEntrySize : entryBase+(i+1)*scanEntrySize]
		offset := uint64(binary.LittleEndian.Uint32(e[0:4]))
		units := uint64(binary.LittleEndian.Uint16(e[4:6]))
		if offset+units*2 > blobSize {
			return nil, fmt.Errorf("entry %d path outside string blob: %w", i, ErrScanCacheCorrupt)
		}

		path, err := cachefile.DecodePath(blob[offset : offset+units*2])
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		images = append(images, ScannedImage{
			Path:  path,
			Year:  int(int16(binary.LittleEndian.Uint16(e[6:8]))),
			Month: int(int16(binary.LittleEndian.Uint16(e[8:10]))),
		})
	}
	return images, nil
}
