package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"photo-gallery/internal/library"
	"photo-gallery/internal/memory"
	"photo-gallery/internal/pipeline"
	"photo-gallery/internal/scanner"

	"golang.org/x/term"
)

// appDirName matches the directory the gallery uses under the user cache dir.
const appDirName = "photo-gallery"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	dir := cacheDir()

	var err error
	switch command {
	case "inspect":
		err = inspect(os.Stdout, dir)
	case "verify":
		var ok bool
		ok, err = verify(os.Stdout, dir)
		if err == nil && !ok {
			os.Exit(2)
		}
	case "prune":
		err = prune(os.Stdout, dir)
	case "clear":
		confirm := promptConfirm
		if hasFlag(os.Args[2:], "-y", "--yes") {
			confirm = func(string) bool { return true }
		}
		err = clearCaches(os.Stdout, dir, confirm)
	default:
		sanitized := sanitizeCommand(command)
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", sanitized)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// cacheDir returns CACHE_DIR, or the gallery's default cache directory.
func cacheDir() string {
	if dir := os.Getenv("CACHE_DIR"); dir != "" {
		return dir
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return appDirName
	}
	return filepath.Join(base, appDirName)
}

// sanitizeCommand replaces everything outside [a-zA-Z0-9_-] with '_' so the
// command can be echoed safely.
func sanitizeCommand(cmd string) string {
	var b strings.Builder
	b.Grow(len(cmd))
	for _, r := range cmd {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func hasFlag(args []string, names ...string) bool {
	for _, a := range args {
		for _, n := range names {
			if a == n {
				return true
			}
		}
	}
	return false
}

func printUsage() {
	fmt.Println("Photo Gallery Cache Tool")
	fmt.Println("")
	fmt.Println("Usage: thumbcache <command>")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  inspect      - Show what the scan and thumbnail caches hold")
	fmt.Println("  verify       - Validate both caches and report missing sources")
	fmt.Println("  prune        - Drop thumbnails whose image no longer exists")
	fmt.Println("  clear [-y]   - Delete both caches")
	fmt.Println("")
	fmt.Println("Environment:")
	fmt.Println("  CACHE_DIR - Gallery cache directory (default: user cache dir/photo-gallery)")
}

func scanCachePath(dir string) string  { return filepath.Join(dir, library.ScanCacheFile) }
func thumbCachePath(dir string) string { return filepath.Join(dir, library.ThumbCacheFile) }

// fileSize returns the size of path, or -1 when it does not exist.
func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return -1, nil
	}
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func inspect(w io.Writer, dir string) error {
	fmt.Fprintf(w, "Cache directory: %s\n\n", dir)

	scanPath := scanCachePath(dir)
	size, err := fileSize(scanPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Scan cache: %s\n", scanPath)
	if size < 0 {
		fmt.Fprintln(w, "  not present")
	} else {
		inspectScanCache(w, scanPath, size)
	}

	thumbPath := thumbCachePath(dir)
	size, err = fileSize(thumbPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\nThumbnail cache: %s\n", thumbPath)
	if size < 0 {
		fmt.Fprintln(w, "  not present")
	} else {
		inspectThumbCache(w, thumbPath, size)
	}
	return nil
}

func inspectScanCache(w io.Writer, path string, size int64) {
	fmt.Fprintf(w, "  Size:     %s\n", memory.FormatBytes(size))
	images, err := scanner.LoadScanCache(path)
	if err != nil {
		fmt.Fprintf(w, "  INVALID:  %v\n", err)
		return
	}
	if data, err := os.ReadFile(path); err == nil {
		if ts, err := scanner.ScanCacheTime(data); err == nil && !ts.IsZero() {
			fmt.Fprintf(w, "  Written:  %s\n", ts.Local().Format("2006-01-02 15:04:05"))
		}
	}
	fmt.Fprintf(w, "  Images:   %d\n", len(images))

	sections := scanner.GroupByMonth(images)
	fmt.Fprintf(w, "  Months:   %d\n", len(sections))
	for i, s := range sections {
		if i == 12 {
			fmt.Fprintf(w, "    ... %d more\n", len(sections)-i)
			break
		}
		fmt.Fprintf(w, "    %04d-%02d  %d\n", s.Year, s.Month, len(s.Images))
	}
}

func inspectThumbCache(w io.Writer, path string, size int64) {
	fmt.Fprintf(w, "  Size:     %s\n", memory.FormatBytes(size))
	records, err := pipeline.ReadThumbCache(path)
	if err != nil {
		fmt.Fprintf(w, "  INVALID:  %v\n", err)
		return
	}
	var pixels int64
	maxEdge := 0
	for _, r := range records {
		pixels += int64(len(r.Pixels))
		maxEdge = max(maxEdge, r.Width, r.Height)
	}
	fmt.Fprintf(w, "  Entries:  %d\n", len(records))
	fmt.Fprintf(w, "  Pixels:   %s\n", memory.FormatBytes(pixels))
	if len(records) > 0 {
		fmt.Fprintf(w, "  Largest:  %dpx edge\n", maxEdge)
	}
}

// verify validates both caches. It reports false when a cache is corrupt or
// refers to files that no longer exist.
func verify(w io.Writer, dir string) (bool, error) {
	ok := true

	scanPath := scanCachePath(dir)
	if size, err := fileSize(scanPath); err != nil {
		return false, err
	} else if size >= 0 {
		images, err := scanner.LoadScanCache(scanPath)
		if err != nil {
			fmt.Fprintf(w, "[FAIL] %s: %v\n", scanPath, err)
			ok = false
		} else {
			paths := make([]string, len(images))
			for i, img := range images {
				paths[i] = img.Path
			}
			missing := missingFiles(paths)
			fmt.Fprintf(w, "[OK]   %s: %d images, %d missing\n", scanPath, len(images), len(missing))
			reportMissing(w, missing)
			ok = ok && len(missing) == 0
		}
	}

	thumbPath := thumbCachePath(dir)
	if size, err := fileSize(thumbPath); err != nil {
		return false, err
	} else if size >= 0 {
		records, err := pipeline.ReadThumbCache(thumbPath)
		if err != nil {
			fmt.Fprintf(w, "[FAIL] %s: %v\n", thumbPath, err)
			ok = false
		} else {
			paths := make([]string, len(records))
			for i, r := range records {
				paths[i] = r.Path
			}
			missing := missingFiles(paths)
			fmt.Fprintf(w, "[OK]   %s: %d thumbnails, %d missing\n", thumbPath, len(records), len(missing))
			reportMissing(w, missing)
			ok = ok && len(missing) == 0
		}
	}
	return ok, nil
}

// missingFiles returns the sorted paths that no longer exist.
func missingFiles(paths []string) []string {
	var missing []string
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			missing = append(missing, p)
		}
	}
	sort.Strings(missing)
	return missing
}

func reportMissing(w io.Writer, missing []string) {
	for i, p := range missing {
		if i == 10 {
			fmt.Fprintf(w, "       ... %d more\n", len(missing)-i)
			return
		}
		fmt.Fprintf(w, "       missing: %s\n", p)
	}
}

// prune rewrites the thumbnail cache without records whose source is gone.
// The gallery must not be running, since it maps the file.
func prune(w io.Writer, dir string) error {
	path := thumbCachePath(dir)
	records, err := pipeline.ReadThumbCache(path)
	if errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(w, "No thumbnail cache to prune.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	kept := records[:0:0]
	for _, r := range records {
		if _, err := os.Stat(r.Path); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		kept = append(kept, r)
	}
	if len(kept) == len(records) {
		fmt.Fprintf(w, "Nothing to prune (%d thumbnails).\n", len(records))
		return nil
	}

	if len(kept) == 0 {
		if err := os.Remove(path); err != nil {
			return err
		}
		fmt.Fprintf(w, "Pruned %d thumbnails, cache removed.\n", len(records))
		return nil
	}

	n, err := pipeline.WriteThumbCache(path, kept)
	if err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	fmt.Fprintf(w, "Pruned %d thumbnails, %d kept.\n", len(records)-n, n)
	return nil
}

// clearCaches deletes both cache files after confirm agrees.
func clearCaches(w io.Writer, dir string, confirm func(prompt string) bool) error {
	var present []string
	for _, p := range []string{scanCachePath(dir), thumbCachePath(dir)} {
		size, err := fileSize(p)
		if err != nil {
			return err
		}
		if size >= 0 {
			present = append(present, p)
		}
	}
	if len(present) == 0 {
		fmt.Fprintln(w, "No cache files to delete.")
		return nil
	}

	if !confirm(fmt.Sprintf("Delete %s?", strings.Join(present, " and "))) {
		fmt.Fprintln(w, "Aborted.")
		return nil
	}
	for _, p := range present {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		fmt.Fprintf(w, "Deleted %s\n", p)
	}
	return nil
}

// promptConfirm asks on the terminal. Without a terminal it refuses, so
// scripts must pass -y.
func promptConfirm(prompt string) bool {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintln(os.Stderr, "Error: stdin is not a terminal, pass -y to confirm")
		return false
	}
	fmt.Printf("%s [y/N] ", prompt)
	return readYes(os.Stdin)
}

func readYes(r io.Reader) bool {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
