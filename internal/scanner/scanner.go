package scanner

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"photo-gallery/internal/logging"
	"photo-gallery/internal/media"
	"photo-gallery/internal/metrics"

	"github.com/charlievieth/fastwalk"
)

const (
	// DefaultMinSize filters out icons, favicons and UI assets.
	DefaultMinSize = 100 * 1024
	// DefaultFlushInterval is how many new images trigger an intermediate
	// snapshot.
	DefaultFlushInterval = 200
)

// ScannedImage is one image found by a scan. Year and Month come from the
// file's last write time in local time; both are zero when unknown.
type ScannedImage struct {
	Path         string `json:"path"`
	SourceFolder string `json:"sourceFolder,omitempty"`
	Year         int    `json:"year"`
	Month        int    `json:"month"`
}

// Options configures ScanFolders.
type Options struct {
	// MinSize is the smallest file size included. Zero means DefaultMinSize,
	// negative disables the filter.
	MinSize int64
	// FlushInterval is how many new images trigger Flush. Zero means
	// DefaultFlushInterval.
	FlushInterval int
	// Progress, when set, holds the running count of images found.
	Progress *atomic.Int64
	// Flush receives date-sorted snapshots of everything found so far, every
	// FlushInterval new images and after each top-level folder. Snapshots are
	// delivered in order and never concurrently.
	Flush func([]ScannedImage)
	// Workers bounds the walker's goroutines. Zero lets fastwalk decide.
	Workers int
	// Supported reports whether a file should be considered. Defaults to
	// media.IsSupportedExtension.
	Supported func(path string) bool
}

func (o Options) withDefaults() Options {
	if o.MinSize == 0 {
		o.MinSize = DefaultMinSize
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = DefaultFlushInterval
	}
	if o.Supported == nil {
		o.Supported = media.IsSupportedExtension
	}
	return o
}

// skipDirs are directory names never descended into. Names starting with a
// dot are skipped as well.
var skipDirs = map[string]bool{
	// VCS and dev tooling
	".git": true, ".svn": true, ".hg": true, ".vs": true, ".vscode": true, ".idea": true,
	"node_modules": true, "__pycache__": true, ".tox": true, ".mypy_cache": true,
	// build output
	"Debug": true, "Release": true, "x64": true, "x86": true, "obj": true, "bin": true,
	"build": true, "out": true, "dist": true, "target": true,
	// system and temp
	"AppData": true, "Temp": true, "tmp": true,
	"Cache": true, "cache": true, "CachedData": true,
	"$RECYCLE.BIN": true, "System Volume Information": true,
	// icons, thumbnails and UI assets
	"icons": true, "icon": true, "ico": true,
	"thumbnails": true, "thumbnail": true, "thumb": true, "thumbs": true,
	"assets": true, "Resources": true, "resource": true, "res": true,
	"sprites": true, "textures": true, "drawable": true, "drawable-hdpi": true,
	"drawable-mdpi": true, "drawable-xhdpi": true, "drawable-xxhdpi": true,
	"favicon": true, "favicons": true, "emoji": true, "emojis": true, "stickers": true,
	// fonts and cursors
	"fonts": true, "font": true, "cursors": true,
	// package internals
	"vendor": true, "packages": true, "lib": true, "libs": true,
	".nuget": true, ".npm": true, ".yarn": true,
	// Windows system folders
	"Windows": true, "ProgramData": true,
	"Program Files": true, "Program Files (x86)": true,
}

// SkipDirectory reports whether a directory with this base name is excluded
// from recursive scans.
func SkipDirectory(name string) bool {
	return strings.HasPrefix(name, ".") || skipDirs[name]
}

// scan holds the shared state of one ScanFolders call. fastwalk invokes the
// callback from several goroutines, so everything below mu is guarded.
type scan struct {
	opts Options

	mu        sync.Mutex
	seen      map[string]struct{}
	result    []ScannedImage
	lastFlush int

	// flushMu is taken before mu is released so snapshots reach Flush in the
	// order they were cut.
	flushMu sync.Mutex
}

// ScanFolders recursively collects supported images under folders.
//
// Paths are deduplicated case-insensitively after symlink resolution, so a
// folder listed twice or reachable through a link is only counted once.
// Cancelling ctx stops the walk at the next entry; the images found so far are
// returned unsorted together with ctx.Err(). A completed scan is sorted newest
// first (year desc, month desc, file name asc).
func ScanFolders(ctx context.Context, folders []string, opts Options) ([]ScannedImage, error) {
	start := time.Now()
	s := &scan{
		opts: opts.withDefaults(),
		seen: make(map[string]struct{}),
	}

	for _, folder := range folders {
		if ctx.Err() != nil {
			break
		}
		root, err := canonicalRoot(folder)
		if err != nil {
			logging.Debug("Skipping scan folder %s: %v", folder, err)
			continue
		}
		logging.Debug("Scanning %s", root)

		if err := s.walk(ctx, root, folder); err != nil && ctx.Err() == nil {
			logging.Warn("Scan of %s stopped early: %v", root, err)
		}

		if ctx.Err() == nil {
			s.flushIfGrown(0)
		}
	}

	if err := ctx.Err(); err != nil {
		s.mu.Lock()
		partial := s.result
		s.mu.Unlock()
		metrics.ScanRunsTotal.WithLabelValues("cancelled").Inc()
		logging.Info("Scan cancelled after %d images", len(partial))
		return partial, err
	}

	sortByDate(s.result)
	metrics.ScanRunsTotal.WithLabelValues("complete").Inc()
	metrics.ScanDuration.Observe(time.Since(start).Seconds())
	metrics.ScanImagesFound.Set(float64(len(s.result)))
	logging.Info("Scan complete: %d images in %v", len(s.result), time.Since(start))
	return s.result, nil
}

func (s *scan) walk(ctx context.Context, root, sourceFolder string) error {
	conf := &fastwalk.Config{
		Follow:     false,
		NumWorkers: s.opts.Workers,
	}

	return fastwalk.Walk(conf, root, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			logging.Debug("Scan error at %s: %v", path, err)
			return nil
		}
		if path == root {
			return nil
		}

		if d.IsDir() {
			if SkipDirectory(d.Name()) {
				metrics.ScanDirectoriesSkipped.Inc()
				return fastwalk.SkipDir
			}
			return nil
		}

		s.visitFile(path, d, sourceFolder)
		return nil
	})
}

func (s *scan) visitFile(path string, d fs.DirEntry, sourceFolder string) {
	if !s.opts.Supported(path) {
		return
	}

	resolved := path
	if d.Type()&fs.ModeSymlink != 0 {
		target, err := filepath.EvalSymlinks(path)
		if err != nil {
			metrics.ScanFilesSkipped.WithLabelValues("stat_error").Inc()
			return
		}
		resolved = target
	} else if !d.Type().IsRegular() {
		return
	}

	key := strings.ToLower(resolved)
	s.mu.Lock()
	_, dup := s.seen[key]
	if !dup {
		s.seen[key] = struct{}{}
	}
	s.mu.Unlock()
	if dup {
		metrics.ScanFilesSkipped.WithLabelValues("duplicate").Inc()
		return
	}

	info, err := os.Stat(resolved)
	if err != nil || !info.Mode().IsRegular() {
		metrics.ScanFilesSkipped.WithLabelValues("stat_error").Inc()
		return
	}
	if s.opts.MinSize > 0 && info.Size() < s.opts.MinSize {
		metrics.ScanFilesSkipped.WithLabelValues("too_small").Inc()
		return
	}

	mod := info.ModTime().Local()
	img := ScannedImage{
		Path:         path,
		SourceFolder: sourceFolder,
		Year:         mod.Year(),
		Month:        int(mod.Month()),
	}

	s.mu.Lock()
	s.result = append(s.result, img)
	if s.opts.Progress != nil {
		s.opts.Progress.Store(int64(len(s.result)))
	}
	s.mu.Unlock()

	s.flushIfGrown(s.opts.FlushInterval)
}

// flushIfGrown hands Flush a sorted snapshot when at least minNew images
// arrived since the previous one. A minNew of 0 flushes any growth.
func (s *scan) flushIfGrown(minNew int) {
	if s.opts.Flush == nil {
		return
	}

	s.mu.Lock()
	grown := len(s.result) - s.lastFlush
	if grown <= 0 || grown < minNew {
		s.mu.Unlock()
		return
	}
	snapshot := make([]ScannedImage, len(s.result))
	copy(snapshot, s.result)
	s.lastFlush = len(s.result)
	s.flushMu.Lock()
	s.mu.Unlock()

	defer s.flushMu.Unlock()
	sortByDate(snapshot)
	s.opts.Flush(snapshot)
}

// canonicalRoot resolves folder to an absolute, symlink-free directory path.
func canonicalRoot(folder string) (string, error) {
	abs, err := filepath.Abs(folder)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", errors.New("not a directory")
	}
	return resolved, nil
}

// sortByDate orders images newest month first, then by file name. The full
// path breaks remaining ties so the order is deterministic.
func sortByDate(images []ScannedImage) {
	sort.Slice(images, func(i, j int) bool {
		a, b := images[i], images[j]
		if a.Year != b.Year {
			return a.Year > b.Year
		}
		if a.Month != b.Month {
			return a.Month > b.Month
		}
		an, bn := filepath.Base(a.Path), filepath.Base(b.Path)
		if an != bn {
			return an < bn
		}
		return a.Path < b.Path
	})
}

// ScanDirectory lists the supported images directly inside dir, sorted by
// file name. A missing directory yields an empty list.
func ScanDirectory(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var paths []string
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if !media.IsSupportedExtension(path) {
			continue
		}
		if entry.Type()&fs.ModeSymlink != 0 {
			info, err := os.Stat(path)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
		} else if !entry.Type().IsRegular() {
			continue
		}
		paths = append(paths, path)
	}
	return paths, nil
}
