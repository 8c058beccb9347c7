package pipeline

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"photo-gallery/internal/cachefile"
	"photo-gallery/internal/filesystem"
	"photo-gallery/internal/logging"
	"photo-gallery/internal/media"

	"github.com/blevesearch/mmap-go"
)

const (
	thumbMagic   = "UIVT"
	thumbVersion = 1
	// recordHeaderSize covers path_len, width, height and a reserved u16.
	recordHeaderSize = 8
)

// ErrCacheCorrupt reports a cache file that failed validation.
var ErrCacheCorrupt = cachefile.ErrCorrupt

// thumbLoc locates one record's pixels inside the mapped file.
type thumbLoc struct {
	offset int
	width  int
	height int
}

func (l thumbLoc) size() int { return l.width * l.height * 4 }

// ThumbRecord is one parsed entry of a thumbnail cache file.
type ThumbRecord struct {
	Path   string
	Width  int
	Height int
	Pixels []byte
}

// persistStore is the Tier-3 cache: a read-only mapping of the thumbnail file
// and an index of byte offsets into it. Views handed out from the mapping stay
// valid only while mu is read-locked.
type persistStore struct {
	mu    sync.RWMutex
	file  *os.File
	data  mmap.MMap
	index map[string]thumbLoc
	bytes int64

	// saveMu serialises saves so the mapping only changes under one writer.
	saveMu sync.Mutex
}

func newPersistStore() *persistStore {
	return &persistStore{index: make(map[string]thumbLoc)}
}

// load replaces the current mapping with path. A missing file is an empty
// cache. A corrupt file leaves the store empty and returns ErrCacheCorrupt.
func (s *persistStore) load(path string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(path)
}

func (s *persistStore) loadLocked(path string) (int, error) {
	s.closeLocked()

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("open thumbnail cache: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return 0, fmt.Errorf("stat thumbnail cache: %w", err)
	}
	if info.Size() < cachefile.HeaderSize {
		f.Close()
		return 0, fmt.Errorf("thumbnail cache is %d bytes: %w", info.Size(), ErrCacheCorrupt)
	}

	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return 0, fmt.Errorf("map thumbnail cache: %w", err)
	}

	index, total, err := parseThumbIndex(data)
	if err != nil {
		data.Unmap()
		f.Close()
		return 0, err
	}

	s.file = f
	s.data = data
	s.index = index
	s.bytes = total
	return len(index), nil
}

func (s *persistStore) close() {
	s.mu.Lock()
	s.closeLocked()
	s.mu.Unlock()
}

func (s *persistStore) closeLocked() {
	if s.data != nil {
		if err := s.data.Unmap(); err != nil {
			logging.Warn("failed to unmap thumbnail cache: %v", err)
		}
		s.data = nil
	}
	if s.file != nil {
		s.file.Close()
		s.file = nil
	}
	s.index = make(map[string]thumbLoc)
	s.bytes = 0
}

// viewLocked returns the mapped pixels for path. The caller holds mu.
func (s *persistStore) viewLocked(path string) (thumbLoc, []byte, bool) {
	loc, ok := s.index[path]
	if !ok {
		return thumbLoc{}, nil, false
	}
	return loc, s.data[loc.offset : loc.offset+loc.size()], true
}

// with runs fn on the mapped pixels of path while holding the read lock.
func (s *persistStore) with(path string, fn func(width, height int, pixels []byte)) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	loc, px, ok := s.viewLocked(path)
	if !ok {
		return false
	}
	fn(loc.width, loc.height, px)
	return true
}

// copyOut returns an owned copy of the entry for path.
func (s *persistStore) copyOut(path string) (*media.DecodedImage, bool) {
	var img *media.DecodedImage
	ok := s.with(path, func(w, h int, px []byte) {
		img = &media.DecodedImage{
			Pixels:       append([]byte(nil), px...),
			Width:        w,
			Height:       h,
			BitsPerPixel: 32,
			PixelFormat:  media.PixelFormatBGRA8,
			SourcePath:   path,
		}
	})
	return img, ok
}

func (s *persistStore) has(path string) bool {
	s.mu.RLock()
	_, ok := s.index[path]
	s.mu.RUnlock()
	return ok
}

func (s *persistStore) stats() (int, int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.index), s.bytes
}

// save writes fresh plus every mapped entry not superseded by fresh to path,
// then swaps the mapping to the new file. Nothing is written when there are
// no entries at all.
func (s *persistStore) save(path string, fresh map[string]*media.DecodedImage) (int, error) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.RLock()
	count, out, err := s.writeTempLocked(path, fresh)
	s.mu.RUnlock()
	if err != nil || out == nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// The mapping must go before the rename on platforms that lock mapped files.
	s.closeLocked()
	if err := out.Commit(); err != nil {
		if _, lerr := s.loadLocked(path); lerr != nil {
			logging.Warn("failed to remap previous thumbnail cache: %v", lerr)
		}
		return 0, err
	}
	if _, err := s.loadLocked(path); err != nil {
		return count, fmt.Errorf("remap saved thumbnail cache: %w", err)
	}
	return count, nil
}

// writeTempLocked writes the merged cache to a closed temp file. It returns a
// nil AtomicFile when there was nothing to write. The caller holds mu for
// reading.
func (s *persistStore) writeTempLocked(path string, fresh map[string]*media.DecodedImage) (int, *filesystem.AtomicFile, error) {
	type pending struct {
		path16 []byte
		w, h   int
		pixels []byte
	}
	records := make([]pending, 0, len(fresh)+len(s.index))

	for p, img := range fresh {
		if img == nil || len(img.Pixels) != img.Width*img.Height*4 || img.Width > 0xFFFF || img.Height > 0xFFFF {
			continue
		}
		p16, err := cachefile.EncodePath(p)
		if err != nil {
			logging.Debug("skipping thumbnail for %q: %v", p, err)
			continue
		}
		records = append(records, pending{p16, img.Width, img.Height, img.Pixels})
	}
	for p, loc := range s.index {
		if _, dup := fresh[p]; dup {
			continue
		}
		p16, err := cachefile.EncodePath(p)
		if err != nil {
			continue
		}
		records = append(records, pending{p16, loc.width, loc.height, s.data[loc.offset : loc.offset+loc.size()]})
	}

	if len(records) == 0 {
		return 0, nil, nil
	}

	out, err := filesystem.CreateAtomic(path)
	if err != nil {
		return 0, nil, err
	}

	hdr := make([]byte, cachefile.HeaderSize)
	cachefile.PutHeader(hdr, cachefile.Header{
		Magic:   [4]byte{'U', 'I', 'V', 'T'},
		Version: thumbVersion,
		Count:   uint32(len(records)),
	})
	if _, err := out.Write(hdr); err != nil {
		out.Abort()
		return 0, nil, fmt.Errorf("write thumbnail cache header: %w", err)
	}
	for _, r := range records {
		if err := writeThumbRecord(out, r.path16, r.w, r.h, r.pixels); err != nil {
			out.Abort()
			return 0, nil, err
		}
	}
	if err := out.Close(); err != nil {
		out.Abort()
		return 0, nil, err
	}
	return len(records), out, nil
}

func writeThumbRecord(w io.Writer, path16 []byte, width, height int, pixels []byte) error {
	var rh [recordHeaderSize]byte
	binary.LittleEndian.PutUint16(rh[0:2], uint16(len(path16)/2))
	binary.LittleEndian.PutUint16(rh[2:4], uint16(width))
	binary.LittleEndian.PutUint16(rh[4:6], uint16(height))
	if _, err := w.Write(rh[:]); err != nil {
		return fmt.Errorf("write thumbnail record: %w", err)
	}
	if _, err := w.Write(path16); err != nil {
		return fmt.Errorf("write thumbnail record: %w", err)
	}
	if _, err := w.Write(pixels); err != nil {
		return fmt.Errorf("write thumbnail record: %w", err)
	}
	return nil
}

// parseThumbIndex validates the header and indexes records by path. A record
// that would run past the end of data stops the scan; records before it are
// kept.
func parseThumbIndex(data []byte) (map[string]thumbLoc, int64, error) {
	index := make(map[string]thumbLoc)
	err := walkThumbRecords(data, func(path string, loc thumbLoc) {
		index[path] = loc
	})
	if err != nil {
		return nil, 0, err
	}
	var total int64
	for _, loc := range index {
		total += int64(loc.size())
	}
	return index, total, nil
}

func walkThumbRecords(data []byte, fn func(path string, loc thumbLoc)) error {
	hdr, err := cachefile.ReadHeader(data, thumbMagic, thumbVersion)
	if err != nil {
		return fmt.Errorf("thumbnail cache: %w", err)
	}

	pos := cachefile.HeaderSize
	for i := uint32(0); i < hdr.Count; i++ {
		if pos+recordHeaderSize > len(data) {
			logging.Warn("thumbnail cache truncated at record %d of %d", i, hdr.Count)
			break
		}
		pathLen := int(binary.LittleEndian.Uint16(data[pos : pos+2]))
		w := int(binary.LittleEndian.Uint16(data[pos+2 : pos+4]))
		h := int(binary.LittleEndian.Uint16(data[pos+4 : pos+6]))
		pos += recordHeaderSize

		pathEnd := pos + pathLen*2
		pixEnd := pathEnd + w*h*4
		if pixEnd > len(data) {
			logging.Warn("thumbnail cache truncated at record %d of %d", i, hdr.Count)
			break
		}

		path, err := cachefile.DecodePath(data[pos:pathEnd])
		if err == nil && w > 0 && h > 0 {
			fn(path, thumbLoc{offset: pathEnd, width: w, height: h})
		}
		pos = pixEnd
	}
	return nil
}

// ReadThumbCache parses a thumbnail cache file into owned records. It is used
// by tooling; the pipeline maps the file instead.
func ReadThumbCache(path string) ([]ThumbRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []ThumbRecord
	err = walkThumbRecords(data, func(p string, loc thumbLoc) {
		out = append(out, ThumbRecord{
			Path:   p,
			Width:  loc.width,
			Height: loc.height,
			Pixels: data[loc.offset : loc.offset+loc.size()],
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// WriteThumbCache writes records to path atomically. Records whose path cannot
// be encoded or whose pixel length disagrees with the dimensions are skipped.
func WriteThumbCache(path string, records []ThumbRecord) (int, error) {
	fresh := make(map[string]*media.DecodedImage, len(records))
	for _, r := range records {
		fresh[r.Path] = &media.DecodedImage{Pixels: r.Pixels, Width: r.Width, Height: r.Height}
	}
	s := newPersistStore()
	defer s.close()
	return s.save(path, fresh)
}
