package startup

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"photo-gallery/internal/memory"
	"photo-gallery/internal/pipeline"
)

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue bool
		want         bool
	}{
		{"Returns default true when unset", "", true, true},
		{"Returns default false when unset", "", false, false},
		{"Parses true", "true", false, true},
		{"Parses false", "false", true, false},
		{"Parses 1", "1", false, true},
		{"Parses 0", "0", true, false},
		{"Parses T", "T", false, true},
		{"Parses FALSE", "FALSE", true, false},
		{"Invalid value returns default true", "yes-please", true, true},
		{"Invalid value returns default false", "maybe", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_BOOL", tt.envValue)
			if got := getEnvBool("TEST_BOOL", tt.defaultValue); got != tt.want {
				t.Errorf("getEnvBool(%q, %v) = %v, want %v", tt.envValue, tt.defaultValue, got, tt.want)
			}
		})
	}
}

func TestGetEnvInt(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		want     int
	}{
		{"Unset returns default", "", 42},
		{"Parses value", "7", 7},
		{"Trims spaces", " 12 ", 12},
		{"Negative", "-1", -1},
		{"Invalid returns default", "seven", 42},
		{"Float returns default", "1.5", 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_INT", tt.envValue)
			if got := getEnvInt("TEST_INT", 42); got != tt.want {
				t.Errorf("getEnvInt(%q) = %d, want %d", tt.envValue, got, tt.want)
			}
		})
	}
}

func TestGetEnvBytes(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		want     int64
	}{
		{"Unset returns default", "", 1024},
		{"Plain bytes", "4096", 4096},
		{"Binary unit", "2MiB", 2 << 20},
		{"Decimal unit", "1GB", 1000 * 1000 * 1000},
		{"Short unit", "512k", 512 << 10},
		{"Invalid returns default", "huge", 1024},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_BYTES", tt.envValue)
			if got := getEnvBytes("TEST_BYTES", 1024); got != tt.want {
				t.Errorf("getEnvBytes(%q) = %d, want %d", tt.envValue, got, tt.want)
			}
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		want     time.Duration
	}{
		{"Unset returns default", "", time.Second},
		{"Milliseconds", "16ms", 16 * time.Millisecond},
		{"Minutes", "2m", 2 * time.Minute},
		{"Missing unit returns default", "16", time.Second},
		{"Invalid returns default", "soon", time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_DURATION", tt.envValue)
			if got := getEnvDuration("TEST_DURATION", time.Second); got != tt.want {
				t.Errorf("getEnvDuration(%q) = %v, want %v", tt.envValue, got, tt.want)
			}
		})
	}
}

func TestSplitFolders(t *testing.T) {
	sep := string(os.PathListSeparator)
	tests := []struct {
		name  string
		value string
		want  []string
	}{
		{"Empty", "", nil},
		{"Single", "photos", []string{"photos"}},
		{"Multiple", "a" + sep + "b", []string{"a", "b"}},
		{"Skips blanks", sep + " a " + sep + sep + "b" + sep, []string{"a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitFolders(tt.value)
			if len(got) != len(tt.want) {
				t.Fatalf("splitFolders(%q) = %v, want %v", tt.value, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("splitFolders(%q)[%d] = %q, want %q", tt.value, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestEnabledString(t *testing.T) {
	if enabledString(true) != "ENABLED" {
		t.Error("enabledString(true) != ENABLED")
	}
	if enabledString(false) != "DISABLED" {
		t.Error("enabledString(false) != DISABLED")
	}
}

func TestEnsureDirectory(t *testing.T) {
	dir := t.TempDir()

	t.Run("Creates missing directory", func(t *testing.T) {
		path := filepath.Join(dir, "a", "b")
		if err := ensureDirectory(path, "test"); err != nil {
			t.Fatalf("ensureDirectory() error = %v", err)
		}
		if info, err := os.Stat(path); err != nil || !info.IsDir() {
			t.Errorf("directory not created: %v", err)
		}
	})

	t.Run("Accepts existing directory", func(t *testing.T) {
		if err := ensureDirectory(dir, "test"); err != nil {
			t.Errorf("ensureDirectory() error = %v", err)
		}
	})

	t.Run("Rejects file", func(t *testing.T) {
		file := filepath.Join(dir, "file")
		if err := os.WriteFile(file, nil, 0o644); err != nil {
			t.Fatal(err)
		}
		if err := ensureDirectory(file, "test"); err == nil {
			t.Error("expected error for regular file")
		}
	})
}

func TestCheckScanFolder(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "photo.jpg")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := checkScanFolder(dir); err != nil {
		t.Errorf("checkScanFolder(dir) error = %v", err)
	}
	if err := checkScanFolder(file); err == nil {
		t.Error("checkScanFolder(file) should fail")
	}
	if err := checkScanFolder(filepath.Join(dir, "missing")); !os.IsNotExist(err) {
		t.Errorf("checkScanFolder(missing) error = %v, want not-exist", err)
	}
}

func TestTestWriteAccess(t *testing.T) {
	dir := t.TempDir()
	if err := testWriteAccess(dir); err != nil {
		t.Fatalf("testWriteAccess() error = %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("testWriteAccess left %d files behind", len(entries))
	}

	if err := testWriteAccess(filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestLogMemoryConfig(_ *testing.T) {
	LogMemoryConfig(memory.ConfigResult{Source: "none"})
	LogMemoryConfig(memory.ConfigResult{Configured: true, Source: "GOMEMLIMIT", GoMemLimit: 1 << 30})
	LogMemoryConfig(memory.ConfigResult{
		Configured:     true,
		Source:         "MEMORY_LIMIT",
		ContainerLimit: 2 << 30,
		GoMemLimit:     int64(float64(2<<30) * 0.85),
		Ratio:          0.85,
	})
}

func TestLifecycleLogging(_ *testing.T) {
	LogStoreInit("/cache/gallery.db", 3, 12*time.Millisecond)
	LogPipelineInit(pipeline.Stats{PoolThreads: 4, Tier1MaxBytes: 256 << 20}, false)
	LogPipelineInit(pipeline.Stats{PoolThreads: 4, Tier1MaxBytes: 256 << 20, Tier2MaxBytes: 64 << 20}, true)
	LogLibraryStarted(120, 80)
	LogServerStarted(ServerConfig{Port: "8080", MetricsEnabled: true, StartupDuration: time.Second})
	LogServerStarted(ServerConfig{Port: "8080"})
	LogShutdownInitiated("SIGTERM")
	LogShutdownStep("Stopping frames")
	LogShutdownStepComplete("Frames stopped")
	LogShutdownComplete()
}
