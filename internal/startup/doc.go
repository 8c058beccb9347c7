// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// [LoadConfig] reads environment variables first and then applies the YAML
// file named by CONFIG_FILE, if any. Keys present in the file override the
// environment; absent keys keep it. Sizes accept units ("256MiB", "512k") and
// intervals are Go durations.
//
//   - CACHE_DIR / cache_dir: scan cache, thumbnail cache and album database
//     (default: the user cache directory + "photo-gallery")
//   - SCAN_FOLDERS / scan_folders: extra folders to scan, separated by the
//     OS path list separator
//   - INCLUDE_SYSTEM_FOLDERS: scan the platform picture folders (default: true)
//   - WATCH_FOLDERS: rescan when images change (default: true)
//   - THUMBNAIL_SIZE: longest thumbnail edge in pixels (default: 256)
//   - TIER1_MAX_BYTES: uploaded bitmap budget (default: 256MiB)
//   - TIER2_MAX_BYTES: compressed RAM cache budget, negative disables (default: 256MiB)
//   - PERSIST_SYNC_BUDGET: disk-cache uploads per frame (default: 8)
//   - FLUSH_PER_FRAME: decoded thumbnails uploaded per frame (default: 8)
//   - FRAME_INTERVAL: render loop period (default: 16ms)
//   - PIPELINE_WORKERS: decode workers, 0 picks from the CPU count
//   - MIN_IMAGE_SIZE: smallest file scanned, 0 disables (default: 100KiB)
//   - SCAN_FLUSH_INTERVAL: images between progressive scan snapshots (default: 200)
//   - STATUS_PORT: status server port (default: 8080)
//   - METRICS_ENABLED: serve /metrics (default: true)
//   - VIPS_ENABLED: use libvips for thumbnails when available (default: false)
//   - LOG_LEVEL: debug, info, warn, error (default: info)
//   - LOG_HEALTH_CHECKS: log /health requests (default: false)
//
// Memory limits (MEMORY_LIMIT, MEMORY_RATIO, GOMEMLIMIT) are applied by
// memory.ConfigureFromEnv and reported with [LogMemoryConfig].
//
// # Build Information
//
// Version, Commit and BuildTime are injected via ldflags and exposed through
// [GetBuildInfo].
package startup
