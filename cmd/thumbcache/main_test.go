package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"photo-gallery/internal/pipeline"
	"photo-gallery/internal/scanner"
)

// cacheFixture writes a scan cache and a thumbnail cache into a temp dir.
// The first image exists on disk, the second does not.
func cacheFixture(t *testing.T) (dir, present, gone string) {
	t.Helper()
	dir = t.TempDir()
	present = filepath.Join(dir, "present.jpg")
	gone = filepath.Join(dir, "gone.jpg")
	if err := os.WriteFile(present, []byte("jpeg"), 0o644); err != nil {
		t.Fatal(err)
	}

	images := []scanner.ScannedImage{
		{Path: present, Year: 2024, Month: 3},
		{Path: gone, Year: 2023, Month: 12},
	}
	if err := scanner.SaveScanCache(scanCachePath(dir), images); err != nil {
		t.Fatalf("SaveScanCache: %v", err)
	}

	records := []pipeline.ThumbRecord{
		{Path: present, Width: 2, Height: 1, Pixels: make([]byte, 8)},
		{Path: gone, Width: 1, Height: 3, Pixels: make([]byte, 12)},
	}
	if n, err := pipeline.WriteThumbCache(thumbCachePath(dir), records); err != nil || n != 2 {
		t.Fatalf("WriteThumbCache = %d, %v", n, err)
	}
	return dir, present, gone
}

func TestPrintUsage(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("printUsage panicked: %v", r)
		}
	}()
	printUsage()
}

func TestSanitizeCommand(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"inspect", "inspect"},
		{"clear-all_2", "clear-all_2"},
		{"rm -rf /", "rm_-rf__"},
		{"a\nb", "a_b"},
		{"\x1b[31m", "__31m"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := sanitizeCommand(tt.in); got != tt.want {
			t.Errorf("sanitizeCommand(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCacheDir(t *testing.T) {
	t.Setenv("CACHE_DIR", "/tmp/gallery-cache")
	if got := cacheDir(); got != "/tmp/gallery-cache" {
		t.Errorf("cacheDir() = %q", got)
	}

	t.Setenv("CACHE_DIR", "")
	if got := cacheDir(); filepath.Base(got) != appDirName {
		t.Errorf("default cacheDir() = %q, want it to end in %s", got, appDirName)
	}
}

func TestHasFlag(t *testing.T) {
	if !hasFlag([]string{"--yes"}, "-y", "--yes") {
		t.Error("--yes not found")
	}
	if hasFlag([]string{"yes"}, "-y", "--yes") {
		t.Error("bare word matched a flag")
	}
	if hasFlag(nil, "-y") {
		t.Error("empty args matched")
	}
}

func TestInspect(t *testing.T) {
	dir, _, _ := cacheFixture(t)

	var buf bytes.Buffer
	if err := inspect(&buf, dir); err != nil {
		t.Fatalf("inspect: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Images:   2", "Months:   2", "2024-03  1", "2023-12  1", "Entries:  2", "Largest:  3px edge", "Written:"} {
		if !strings.Contains(out, want) {
			t.Errorf("inspect output missing %q:\n%s", want, out)
		}
	}
}

func TestInspectMissingAndCorrupt(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(thumbCachePath(dir), []byte("not a cache"), 0o644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := inspect(&buf, dir); err != nil {
		t.Fatalf("inspect: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "not present") {
		t.Errorf("missing scan cache not reported:\n%s", out)
	}
	if !strings.Contains(out, "INVALID") {
		t.Errorf("corrupt thumbnail cache not reported:\n%s", out)
	}
}

func TestVerify(t *testing.T) {
	t.Run("Missing sources fail", func(t *testing.T) {
		dir, _, gone := cacheFixture(t)
		var buf bytes.Buffer
		ok, err := verify(&buf, dir)
		if err != nil {
			t.Fatal(err)
		}
		if ok {
			t.Error("verify passed with a missing source")
		}
		if strings.Count(buf.String(), "missing: "+gone) != 2 {
			t.Errorf("expected the missing file in both reports:\n%s", buf.String())
		}
	})

	t.Run("All present passes", func(t *testing.T) {
		dir, _, gone := cacheFixture(t)
		if err := os.WriteFile(gone, []byte("back"), 0o644); err != nil {
			t.Fatal(err)
		}
		ok, err := verify(&bytes.Buffer{}, dir)
		if err != nil || !ok {
			t.Errorf("verify = %v, %v, want pass", ok, err)
		}
	})

	t.Run("Corrupt cache fails", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(scanCachePath(dir), []byte("UIVC"), 0o644); err != nil {
			t.Fatal(err)
		}
		var buf bytes.Buffer
		ok, err := verify(&buf, dir)
		if err != nil {
			t.Fatal(err)
		}
		if ok || !strings.Contains(buf.String(), "[FAIL]") {
			t.Errorf("corrupt scan cache passed:\n%s", buf.String())
		}
	})

	t.Run("No caches passes", func(t *testing.T) {
		ok, err := verify(&bytes.Buffer{}, t.TempDir())
		if err != nil || !ok {
			t.Errorf("verify = %v, %v on empty dir", ok, err)
		}
	})
}

func TestPrune(t *testing.T) {
	dir, present, _ := cacheFixture(t)

	var buf bytes.Buffer
	if err := prune(&buf, dir); err != nil {
		t.Fatalf("prune: %v", err)
	}
	if !strings.Contains(buf.String(), "Pruned 1 thumbnails, 1 kept") {
		t.Errorf("unexpected output: %s", buf.String())
	}

	records, err := pipeline.ReadThumbCache(thumbCachePath(dir))
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].Path != present {
		t.Errorf("records after prune = %+v", records)
	}

	buf.Reset()
	if err := prune(&buf, dir); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Nothing to prune") {
		t.Errorf("second prune output: %s", buf.String())
	}
}

func TestPruneRemovesEmptyCache(t *testing.T) {
	dir, present, _ := cacheFixture(t)
	if err := os.Remove(present); err != nil {
		t.Fatal(err)
	}

	if err := prune(&bytes.Buffer{}, dir); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(thumbCachePath(dir)); !os.IsNotExist(err) {
		t.Errorf("thumbnail cache should be removed, stat err = %v", err)
	}

	var buf bytes.Buffer
	if err := prune(&buf, dir); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No thumbnail cache") {
		t.Errorf("output: %s", buf.String())
	}
}

func TestClearCaches(t *testing.T) {
	t.Run("Declined keeps files", func(t *testing.T) {
		dir, _, _ := cacheFixture(t)
		var prompt string
		err := clearCaches(&bytes.Buffer{}, dir, func(p string) bool {
			prompt = p
			return false
		})
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(prompt, "scan_cache.bin") || !strings.Contains(prompt, "scan_thumbs.bin") {
			t.Errorf("prompt = %q", prompt)
		}
		if _, err := os.Stat(scanCachePath(dir)); err != nil {
			t.Error("scan cache deleted without confirmation")
		}
	})

	t.Run("Confirmed deletes files", func(t *testing.T) {
		dir, _, _ := cacheFixture(t)
		if err := clearCaches(&bytes.Buffer{}, dir, func(string) bool { return true }); err != nil {
			t.Fatal(err)
		}
		for _, p := range []string{scanCachePath(dir), thumbCachePath(dir)} {
			if _, err := os.Stat(p); !os.IsNotExist(err) {
				t.Errorf("%s still exists", p)
			}
		}
	})

	t.Run("Nothing to delete skips prompt", func(t *testing.T) {
		called := false
		var buf bytes.Buffer
		err := clearCaches(&buf, t.TempDir(), func(string) bool {
			called = true
			return true
		})
		if err != nil || called {
			t.Errorf("err = %v, prompted = %v", err, called)
		}
	})
}

func TestReadYes(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{" yes \n", true},
		{"y", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
		{"yep\n", false},
	}
	for _, tt := range tests {
		if got := readYes(strings.NewReader(tt.in)); got != tt.want {
			t.Errorf("readYes(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
