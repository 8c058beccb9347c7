package startup

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"photo-gallery/internal/logging"
	"photo-gallery/internal/memory"
	"photo-gallery/internal/pipeline"

	"github.com/gorilla/mux"
	"gopkg.in/yaml.v3"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// DatabaseFile is the album store inside the cache directory.
const DatabaseFile = "gallery.db"

// Config holds all application configuration
type Config struct {
	CacheDir             string
	ScanFolders          []string
	IncludeSystemFolders bool
	WatchFolders         bool

	ThumbnailSize     int
	Tier1MaxBytes     int64
	Tier2MaxBytes     int64
	PersistSyncBudget int
	FlushPerFrame     int
	FrameInterval     time.Duration
	PipelineWorkers   int

	MinImageSize      int64
	ScanFlushInterval int

	StatusPort      string
	MetricsEnabled  bool
	VipsEnabled     bool
	LogLevel        string
	LogHealthChecks bool

	// ConfigFile is the YAML file that was applied, if any.
	ConfigFile string

	// Derived paths
	DatabasePath string
}

// fileConfig mirrors Config for the optional YAML file. Unset keys keep the
// value taken from the environment.
type fileConfig struct {
	CacheDir             *string   `yaml:"cache_dir"`
	ScanFolders          []string  `yaml:"scan_folders"`
	IncludeSystemFolders *bool     `yaml:"include_system_folders"`
	WatchFolders         *bool     `yaml:"watch_folders"`
	ThumbnailSize        *int      `yaml:"thumbnail_size"`
	Tier1MaxBytes        *byteSize `yaml:"tier1_max_bytes"`
	Tier2MaxBytes        *byteSize `yaml:"tier2_max_bytes"`
	PersistSyncBudget    *int      `yaml:"persist_sync_budget"`
	FlushPerFrame        *int      `yaml:"flush_per_frame"`
	FrameInterval        *duration `yaml:"frame_interval"`
	PipelineWorkers      *int      `yaml:"pipeline_workers"`
	MinImageSize         *byteSize `yaml:"min_image_size"`
	ScanFlushInterval    *int      `yaml:"scan_flush_interval"`
	StatusPort           *string   `yaml:"status_port"`
	MetricsEnabled       *bool     `yaml:"metrics_enabled"`
	VipsEnabled          *bool     `yaml:"vips_enabled"`
	LogLevel             *string   `yaml:"log_level"`
	LogHealthChecks      *bool     `yaml:"log_health_checks"`
}

// byteSize accepts plain numbers and sizes such as "256MiB".
type byteSize int64

func (b *byteSize) UnmarshalYAML(value *yaml.Node) error {
	n, err := memory.ParseBytes(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*b = byteSize(n)
	return nil
}

type duration time.Duration

func (d *duration) UnmarshalYAML(value *yaml.Node) error {
	v, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = duration(v)
	return nil
}

// LoadConfig loads configuration from environment variables and the
// optional CONFIG_FILE, logs it and prepares the cache directory.
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	config, err := loadSettings()
	if err != nil {
		return nil, err
	}
	if config.LogLevel != "" {
		logging.SetLevel(logging.ParseLevel(config.LogLevel))
	}

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")
	if config.ConfigFile != "" {
		logging.Info("  CONFIG_FILE:            %s", config.ConfigFile)
	}
	logging.Info("  CACHE_DIR:              %s", config.CacheDir)
	logging.Info("  SCAN_FOLDERS:           %s", strings.Join(config.ScanFolders, string(os.PathListSeparator)))
	logging.Info("  INCLUDE_SYSTEM_FOLDERS: %v", config.IncludeSystemFolders)
	logging.Info("  WATCH_FOLDERS:          %v", config.WatchFolders)
	logging.Info("  THUMBNAIL_SIZE:         %d", config.ThumbnailSize)
	logging.Info("  TIER1_MAX_BYTES:        %s", memory.FormatBytes(config.Tier1MaxBytes))
	logging.Info("  TIER2_MAX_BYTES:        %s", memory.FormatBytes(config.Tier2MaxBytes))
	logging.Info("  PERSIST_SYNC_BUDGET:    %d", config.PersistSyncBudget)
	logging.Info("  FLUSH_PER_FRAME:        %d", config.FlushPerFrame)
	logging.Info("  FRAME_INTERVAL:         %v", config.FrameInterval)
	logging.Info("  PIPELINE_WORKERS:       %d", config.PipelineWorkers)
	logging.Info("  MIN_IMAGE_SIZE:         %s", memory.FormatBytes(config.MinImageSize))
	logging.Info("  SCAN_FLUSH_INTERVAL:    %d", config.ScanFlushInterval)
	logging.Info("  STATUS_PORT:            %s", config.StatusPort)
	logging.Info("  METRICS_ENABLED:        %v", config.MetricsEnabled)
	logging.Info("  VIPS_ENABLED:           %v", config.VipsEnabled)
	logging.Info("  LOG_LEVEL:              %s", logging.GetLevel())

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	logging.Info("  Cache directory (absolute): %s", config.CacheDir)
	if err := ensureDirectory(config.CacheDir, "cache"); err != nil {
		return nil, fmt.Errorf("cache directory error: %w", err)
	}
	logging.Debug("  Testing cache directory write access...")
	if err := testWriteAccess(config.CacheDir); err != nil {
		return nil, fmt.Errorf("cache directory is not writable (required for caches and albums): %w", err)
	}
	logging.Info("  [OK] Cache directory is writable")

	for _, folder := range config.ScanFolders {
		if err := checkScanFolder(folder); err != nil {
			logging.Warn("  Scan folder %s: %v", folder, err)
		}
	}

	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Folder watching: %s", enabledString(config.WatchFolders))
	logging.Info("    System folders:  %s", enabledString(config.IncludeSystemFolders))
	logging.Info("    Metrics:         %s", enabledString(config.MetricsEnabled))
	logging.Info("    libvips:         %s", enabledString(config.VipsEnabled))

	return config, nil
}

// loadSettings builds the configuration without side effects other than
// reading CONFIG_FILE.
func loadSettings() (*Config, error) {
	def := pipeline.DefaultOptions()

	config := &Config{
		CacheDir:             getEnv("CACHE_DIR", defaultCacheDir()),
		ScanFolders:          splitFolders(os.Getenv("SCAN_FOLDERS")),
		IncludeSystemFolders: getEnvBool("INCLUDE_SYSTEM_FOLDERS", true),
		WatchFolders:         getEnvBool("WATCH_FOLDERS", true),
		ThumbnailSize:        getEnvInt("THUMBNAIL_SIZE", def.ThumbnailSize),
		Tier1MaxBytes:        getEnvBytes("TIER1_MAX_BYTES", def.Tier1MaxBytes),
		Tier2MaxBytes:        getEnvBytes("TIER2_MAX_BYTES", def.Tier2MaxBytes),
		PersistSyncBudget:    getEnvInt("PERSIST_SYNC_BUDGET", def.PersistSyncBudget),
		FlushPerFrame:        getEnvInt("FLUSH_PER_FRAME", 8),
		FrameInterval:        getEnvDuration("FRAME_INTERVAL", 16*time.Millisecond),
		PipelineWorkers:      getEnvInt("PIPELINE_WORKERS", 0),
		MinImageSize:         getEnvBytes("MIN_IMAGE_SIZE", 100*1024),
		ScanFlushInterval:    getEnvInt("SCAN_FLUSH_INTERVAL", 200),
		StatusPort:           getEnv("STATUS_PORT", "8080"),
		MetricsEnabled:       getEnvBool("METRICS_ENABLED", true),
		VipsEnabled:          getEnvBool("VIPS_ENABLED", false),
		LogLevel:             os.Getenv("LOG_LEVEL"),
		LogHealthChecks:      getEnvBool("LOG_HEALTH_CHECKS", false),
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		fc, err := readConfigFile(path)
		if err != nil {
			return nil, err
		}
		fc.apply(config)
		config.ConfigFile = path
	}

	if config.FrameInterval <= 0 {
		logging.Warn("  FRAME_INTERVAL must be positive, using default: 16ms")
		config.FrameInterval = 16 * time.Millisecond
	}

	var err error
	config.CacheDir, err = filepath.Abs(config.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve cache directory path: %w", err)
	}
	for i, folder := range config.ScanFolders {
		if abs, err := filepath.Abs(folder); err == nil {
			config.ScanFolders[i] = abs
		}
	}
	config.DatabasePath = filepath.Join(config.CacheDir, DatabaseFile)
	return config, nil
}

func readConfigFile(path string) (*fileConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	var fc fileConfig
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return &fc, nil
}

func (fc *fileConfig) apply(c *Config) {
	setIf(&c.CacheDir, fc.CacheDir)
	if fc.ScanFolders != nil {
		c.ScanFolders = fc.ScanFolders
	}
	setIf(&c.IncludeSystemFolders, fc.IncludeSystemFolders)
	setIf(&c.WatchFolders, fc.WatchFolders)
	setIf(&c.ThumbnailSize, fc.ThumbnailSize)
	if fc.Tier1MaxBytes != nil {
		c.Tier1MaxBytes = int64(*fc.Tier1MaxBytes)
	}
	if fc.Tier2MaxBytes != nil {
		c.Tier2MaxBytes = int64(*fc.Tier2MaxBytes)
	}
	setIf(&c.PersistSyncBudget, fc.PersistSyncBudget)
	setIf(&c.FlushPerFrame, fc.FlushPerFrame)
	if fc.FrameInterval != nil {
		c.FrameInterval = time.Duration(*fc.FrameInterval)
	}
	setIf(&c.PipelineWorkers, fc.PipelineWorkers)
	if fc.MinImageSize != nil {
		c.MinImageSize = int64(*fc.MinImageSize)
	}
	setIf(&c.ScanFlushInterval, fc.ScanFlushInterval)
	setIf(&c.StatusPort, fc.StatusPort)
	setIf(&c.MetricsEnabled, fc.MetricsEnabled)
	setIf(&c.VipsEnabled, fc.VipsEnabled)
	setIf(&c.LogLevel, fc.LogLevel)
	setIf(&c.LogHealthChecks, fc.LogHealthChecks)
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// defaultCacheDir is the per-user cache directory, or ./cache when the
// platform has none.
func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "photo-gallery")
	}
	return "cache"
}

func splitFolders(value string) []string {
	var folders []string
	for _, f := range filepath.SplitList(value) {
		if f = strings.TrimSpace(f); f != "" {
			folders = append(folders, f)
		}
	}
	return folders
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

// LogStoreInit logs album store initialization
func LogStoreInit(path string, albums int, duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("ALBUM STORE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] %s opened in %v (%d albums)", path, duration, albums)
}

// LogPipelineInit logs thumbnail pipeline setup.
func LogPipelineInit(stats pipeline.Stats, vips bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("PIPELINE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Decode workers:  %d", stats.PoolThreads)
	logging.Info("  Tier 1 budget:   %s", memory.FormatBytes(stats.Tier1MaxBytes))
	if stats.Tier2MaxBytes > 0 {
		logging.Info("  Tier 2 budget:   %s", memory.FormatBytes(stats.Tier2MaxBytes))
	} else {
		logging.Info("  Tier 2 budget:   DISABLED")
	}
	if vips {
		logging.Info("  [OK] libvips acceleration available")
	}
}

// LogLibraryStarted logs the state shown before the first scan finishes.
func LogLibraryStarted(images, thumbs int) {
	logging.Info("  [OK] Library started: %d cached images, %d cached thumbnails", images, thumbs)
}

// LogMemoryConfig logs the outcome of memory.ConfigureFromEnv.
func LogMemoryConfig(result memory.ConfigResult) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("MEMORY CONFIGURATION")
	logging.Info("------------------------------------------------------------")
	switch {
	case !result.Configured:
		logging.Info("  No memory limit configured")
	case result.Source == "GOMEMLIMIT":
		logging.Info("  GOMEMLIMIT set directly: %s", memory.FormatBytes(result.GoMemLimit))
	default:
		logging.Info("  Memory limit:    %s (from %s)", memory.FormatBytes(result.ContainerLimit), result.Source)
		logging.Info("  Go heap limit:   %s (%.0f%%)", memory.FormatBytes(result.GoMemLimit), result.Ratio*100)
	}
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   route.GetName(),
			})
		}
		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes at debug level
func LogHTTPRoutes(router *mux.Router, logHealthChecks bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("STATUS SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))
		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			prefix := getRouteGroup(route.Path)
			groups[prefix] = append(groups[prefix], route)
		}

		groupKeys := make([]string, 0, len(groups))
		for k := range groups {
			groupKeys = append(groupKeys, k)
		}
		sort.Strings(groupKeys)

		for _, group := range groupKeys {
			if group != "" {
				logging.Debug("  [%s]", group)
			} else {
				logging.Debug("  [root]")
			}
			for _, route := range groups[group] {
				logging.Debug("    %-6s %s", route.Method, route.Path)
			}
		}
	}

	if logHealthChecks {
		logging.Info("  Health check logging: ON")
	} else {
		logging.Info("  Health check logging: OFF (set LOG_HEALTH_CHECKS=true to enable)")
	}
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	path = strings.TrimPrefix(path, "/")
	parts := strings.SplitN(path, "/", 2)
	first := parts[0]

	if first == "api" && len(parts) > 1 {
		subParts := strings.SplitN(parts[1], "/", 2)
		return "api/" + subParts[0]
	}
	return first
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("GALLERY STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    Status:        http://localhost:%s/api/stats", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://localhost:%s/metrics", config.Port)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

func printBanner() {
	banner := `
------------------------------------------------------------
    ____  __          __           ______      ____
   / __ \/ /_  ____  / /_____     / ____/___ _/ / /__  _______  __
  / /_/ / __ \/ __ \/ __/ __ \   / / __/ __ '/ / / _ \/ ___/ / / /
 / ____/ / / / /_/ / /_/ /_/ /  / /_/ / /_/ / / /  __/ /  / /_/ /
/_/   /_/ /_/\____/\__/\____/   \____/\__,_/_/_/\___/_/   \__, /
                                                         /____/
------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if logging.IsDebugEnabled() {
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}
	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

// checkScanFolder warns about configured folders that cannot be scanned.
// Missing folders are not created; they may be mounted later.
func checkScanFolder(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("not a directory")
	}
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvBytes(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := memory.ParseBytes(value)
	if err != nil {
		logging.Warn("Invalid size for %s: %v, using default: %s", key, err, memory.FormatBytes(defaultValue))
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		logging.Warn("Invalid duration for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
