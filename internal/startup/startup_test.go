package startup

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
)

var configKeys = []string{
	"CONFIG_FILE", "CACHE_DIR", "SCAN_FOLDERS", "INCLUDE_SYSTEM_FOLDERS",
	"WATCH_FOLDERS", "THUMBNAIL_SIZE", "TIER1_MAX_BYTES", "TIER2_MAX_BYTES",
	"PERSIST_SYNC_BUDGET", "FLUSH_PER_FRAME", "FRAME_INTERVAL",
	"PIPELINE_WORKERS", "MIN_IMAGE_SIZE", "SCAN_FLUSH_INTERVAL", "STATUS_PORT",
	"METRICS_ENABLED", "VIPS_ENABLED", "LOG_LEVEL", "LOG_HEALTH_CHECKS",
}

// clearConfigEnv blanks every configuration variable for the test. An empty
// value means "use the default".
func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
	}
}

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gallery.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()

	if info.Version == "" {
		t.Error("Expected Version to be set")
	}
	if info.GoVersion != GoVersion {
		t.Errorf("Expected GoVersion=%s, got %s", GoVersion, info.GoVersion)
	}
	if info.OS == "" || info.Arch == "" {
		t.Errorf("Expected OS and Arch to be set, got %q/%q", info.OS, info.Arch)
	}
}

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
		setEnv       bool
	}{
		{
			name:         "Returns default when env var not set",
			key:          "TEST_UNSET_VAR",
			defaultValue: "default",
			want:         "default",
		},
		{
			name:         "Returns env value when set",
			key:          "TEST_SET_VAR",
			defaultValue: "default",
			envValue:     "custom",
			want:         "custom",
			setEnv:       true,
		},
		{
			name:         "Returns default when env var is empty",
			key:          "TEST_EMPTY_VAR",
			defaultValue: "default",
			envValue:     "",
			want:         "default",
			setEnv:       true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setEnv {
				t.Setenv(tt.key, tt.envValue)
			} else {
				os.Unsetenv(tt.key)
			}

			if got := getEnv(tt.key, tt.defaultValue); got != tt.want {
				t.Errorf("getEnv(%q, %q) = %q, want %q", tt.key, tt.defaultValue, got, tt.want)
			}
		})
	}
}

func TestLoadSettingsDefaults(t *testing.T) {
	clearConfigEnv(t)

	config, err := loadSettings()
	if err != nil {
		t.Fatalf("loadSettings() error = %v", err)
	}

	if !filepath.IsAbs(config.CacheDir) {
		t.Errorf("CacheDir = %q, want absolute path", config.CacheDir)
	}
	if config.DatabasePath != filepath.Join(config.CacheDir, DatabaseFile) {
		t.Errorf("DatabasePath = %q", config.DatabasePath)
	}
	if len(config.ScanFolders) != 0 {
		t.Errorf("ScanFolders = %v, want none", config.ScanFolders)
	}
	if config.ThumbnailSize != 256 {
		t.Errorf("ThumbnailSize = %d, want 256", config.ThumbnailSize)
	}
	if config.Tier1MaxBytes != 256<<20 || config.Tier2MaxBytes != 256<<20 {
		t.Errorf("tier budgets = %d/%d, want 256MiB each", config.Tier1MaxBytes, config.Tier2MaxBytes)
	}
	if config.FrameInterval != 16*time.Millisecond {
		t.Errorf("FrameInterval = %v, want 16ms", config.FrameInterval)
	}
	if config.MinImageSize != 100*1024 {
		t.Errorf("MinImageSize = %d, want 100KiB", config.MinImageSize)
	}
	if !config.IncludeSystemFolders || !config.WatchFolders || !config.MetricsEnabled {
		t.Errorf("expected system folders, watching and metrics on by default: %+v", config)
	}
	if config.VipsEnabled {
		t.Error("VipsEnabled should default to false")
	}
	if config.StatusPort != "8080" {
		t.Errorf("StatusPort = %q, want 8080", config.StatusPort)
	}
	if config.ConfigFile != "" {
		t.Errorf("ConfigFile = %q, want empty", config.ConfigFile)
	}
}

func TestLoadSettingsFromEnv(t *testing.T) {
	clearConfigEnv(t)
	cache := t.TempDir()
	a, b := t.TempDir(), t.TempDir()

	t.Setenv("CACHE_DIR", cache)
	t.Setenv("SCAN_FOLDERS", a+string(os.PathListSeparator)+" "+string(os.PathListSeparator)+b)
	t.Setenv("INCLUDE_SYSTEM_FOLDERS", "false")
	t.Setenv("THUMBNAIL_SIZE", "320")
	t.Setenv("TIER1_MAX_BYTES", "64MiB")
	t.Setenv("TIER2_MAX_BYTES", "-1")
	t.Setenv("FRAME_INTERVAL", "33ms")
	t.Setenv("MIN_IMAGE_SIZE", "0")
	t.Setenv("PIPELINE_WORKERS", "not-a-number")

	config, err := loadSettings()
	if err != nil {
		t.Fatalf("loadSettings() error = %v", err)
	}

	if config.CacheDir != cache {
		t.Errorf("CacheDir = %q, want %q", config.CacheDir, cache)
	}
	if len(config.ScanFolders) != 2 || config.ScanFolders[0] != a || config.ScanFolders[1] != b {
		t.Errorf("ScanFolders = %v, want [%s %s]", config.ScanFolders, a, b)
	}
	if config.IncludeSystemFolders {
		t.Error("IncludeSystemFolders should be false")
	}
	if config.ThumbnailSize != 320 {
		t.Errorf("ThumbnailSize = %d, want 320", config.ThumbnailSize)
	}
	if config.Tier1MaxBytes != 64<<20 {
		t.Errorf("Tier1MaxBytes = %d, want 64MiB", config.Tier1MaxBytes)
	}
	if config.Tier2MaxBytes != -1 {
		t.Errorf("Tier2MaxBytes = %d, want -1 (disabled)", config.Tier2MaxBytes)
	}
	if config.FrameInterval != 33*time.Millisecond {
		t.Errorf("FrameInterval = %v, want 33ms", config.FrameInterval)
	}
	if config.MinImageSize != 0 {
		t.Errorf("MinImageSize = %d, want 0", config.MinImageSize)
	}
	if config.PipelineWorkers != 0 {
		t.Errorf("PipelineWorkers = %d, want default 0 for invalid value", config.PipelineWorkers)
	}
}

func TestLoadSettingsConfigFile(t *testing.T) {
	clearConfigEnv(t)
	cache := t.TempDir()
	folder := t.TempDir()

	path := writeConfigFile(t, `
cache_dir: `+cache+`
scan_folders:
  - `+folder+`
include_system_folders: false
thumbnail_size: 192
tier1_max_bytes: 128MiB
tier2_max_bytes: 1048576
frame_interval: 20ms
min_image_size: 10k
status_port: "9191"
log_level: warn
`)
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("THUMBNAIL_SIZE", "512")
	t.Setenv("FLUSH_PER_FRAME", "4")

	config, err := loadSettings()
	if err != nil {
		t.Fatalf("loadSettings() error = %v", err)
	}

	if config.ConfigFile != path {
		t.Errorf("ConfigFile = %q, want %q", config.ConfigFile, path)
	}
	if config.CacheDir != cache {
		t.Errorf("CacheDir = %q, want %q", config.CacheDir, cache)
	}
	if len(config.ScanFolders) != 1 || config.ScanFolders[0] != folder {
		t.Errorf("ScanFolders = %v", config.ScanFolders)
	}
	// File values win over the environment.
	if config.ThumbnailSize != 192 {
		t.Errorf("ThumbnailSize = %d, want 192 from file", config.ThumbnailSize)
	}
	// Keys missing from the file keep the environment value.
	if config.FlushPerFrame != 4 {
		t.Errorf("FlushPerFrame = %d, want 4 from env", config.FlushPerFrame)
	}
	if config.Tier1MaxBytes != 128<<20 || config.Tier2MaxBytes != 1<<20 {
		t.Errorf("tier budgets = %d/%d", config.Tier1MaxBytes, config.Tier2MaxBytes)
	}
	if config.FrameInterval != 20*time.Millisecond {
		t.Errorf("FrameInterval = %v, want 20ms", config.FrameInterval)
	}
	if config.MinImageSize != 10*1024 {
		t.Errorf("MinImageSize = %d, want 10KiB", config.MinImageSize)
	}
	if config.StatusPort != "9191" || config.LogLevel != "warn" {
		t.Errorf("StatusPort/LogLevel = %q/%q", config.StatusPort, config.LogLevel)
	}
	if config.IncludeSystemFolders {
		t.Error("IncludeSystemFolders should be false from file")
	}
}

func TestLoadSettingsConfigFileErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"unknown key", "cache_dri: /tmp\n", "cache_dri"},
		{"bad size", "tier1_max_bytes: lots\n", "invalid size"},
		{"bad duration", "frame_interval: soon\n", "soon"},
		{"wrong type", "thumbnail_size: [1, 2]\n", "cannot unmarshal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearConfigEnv(t)
			t.Setenv("CONFIG_FILE", writeConfigFile(t, tt.body))

			_, err := loadSettings()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want it to mention %q", err, tt.want)
			}
		})
	}

	t.Run("missing file", func(t *testing.T) {
		clearConfigEnv(t)
		t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))
		if _, err := loadSettings(); err == nil {
			t.Error("expected error for missing config file")
		}
	})

	t.Run("empty file", func(t *testing.T) {
		clearConfigEnv(t)
		t.Setenv("CONFIG_FILE", writeConfigFile(t, ""))
		if _, err := loadSettings(); err != nil {
			t.Errorf("empty config file should be accepted, got %v", err)
		}
	})
}

func TestLoadConfigCreatesCacheDir(t *testing.T) {
	clearConfigEnv(t)
	cache := filepath.Join(t.TempDir(), "nested", "cache")
	t.Setenv("CACHE_DIR", cache)
	t.Setenv("SCAN_FOLDERS", filepath.Join(t.TempDir(), "missing"))

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	info, err := os.Stat(config.CacheDir)
	if err != nil || !info.IsDir() {
		t.Fatalf("cache directory not created: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cache, ".write-test")); !os.IsNotExist(err) {
		t.Error("write test file was left behind")
	}
}

func TestLoadConfigCacheDirIsFile(t *testing.T) {
	clearConfigEnv(t)
	file := filepath.Join(t.TempDir(), "cache")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CACHE_DIR", file)

	if _, err := LoadConfig(); err == nil {
		t.Error("expected error when CACHE_DIR is a file")
	}
}

func TestGetRoutes(t *testing.T) {
	router := mux.NewRouter()
	noop := func(http.ResponseWriter, *http.Request) {}
	router.HandleFunc("/health", noop).Methods(http.MethodGet).Name("health")
	router.HandleFunc("/api/albums", noop).Methods(http.MethodGet, http.MethodPost)
	router.HandleFunc("/metrics", noop)

	routes, err := GetRoutes(router)
	if err != nil {
		t.Fatalf("GetRoutes() error = %v", err)
	}
	if len(routes) != 4 {
		t.Fatalf("got %d routes, want 4: %+v", len(routes), routes)
	}
	if routes[0] != (RouteInfo{Method: "GET", Path: "/health", Name: "health"}) {
		t.Errorf("routes[0] = %+v", routes[0])
	}
	if routes[3].Method != "*" {
		t.Errorf("route without methods got %q, want *", routes[3].Method)
	}

	LogHTTPRoutes(router, false)
}

func TestGetRouteGroup(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/health", "health"},
		{"/api/albums", "api/albums"},
		{"/api/scan/progress", "api/scan"},
		{"/api", "api"},
		{"/", ""},
	}
	for _, tt := range tests {
		if got := getRouteGroup(tt.path); got != tt.want {
			t.Errorf("getRouteGroup(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
