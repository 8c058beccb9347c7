// Package metrics provides Prometheus instrumentation for the photo gallery.
//
// All metrics are registered with the default registry through promauto and
// are prefixed with "photo_gallery_".
//
// # Metric Categories
//
// ## HTTP Metrics
//
// Request counts, latency and in-flight requests of the status server:
//   - HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight
//
// ## Thumbnail Pipeline Metrics
//
// Which tier served each thumbnail and what the tiers hold:
//   - ThumbnailServedTotal: thumbnails delivered, by tier (gpu/ram/disk/source)
//   - ThumbnailDecodeDuration: time spent producing a thumbnail, by source tier
//   - ThumbnailDecodeFailures, ThumbnailStaleDiscards
//   - ThumbnailEvictions, ThumbnailDemotions: Tier 1 trims and Tier 2 demotions
//   - CacheTierBytes, CacheTierEntries: per-tier occupancy
//   - ReadyQueueDepth, PendingRequests, SaveBufferEntries, FullImageEntries
//   - PipelineGeneration: current request generation
//
// ## Decode Pool Metrics
//
// Per-lane (high/normal/low) task flow through the priority worker pool:
//   - PoolTasksSubmitted, PoolTasksCompleted, PoolTaskPanics, PoolTasksPurged
//   - PoolPendingTasks, PoolActiveTasks, PoolWorkers
//
// ## Scanner and Cache File Metrics
//
//   - ScanRunsTotal, ScanDuration, ScanImagesFound
//   - ScanFilesSkipped (duplicate/too_small/stat_error), ScanDirectoriesSkipped
//   - WatcherEventsTotal, WatcherErrors, WatchedDirectories
//   - CacheFileOperations, CacheFileEntries: load/save of the scan and thumbnail caches
//
// ## Album Database and Filesystem Metrics
//
//   - DBQueryTotal, DBQueryDuration: album store queries by operation
//   - FilesystemRetry*: retries of transient filesystem errors by operation
//
// ## Runtime and Library Metrics
//
//   - MemoryUsageRatio, MemoryPaused, MemoryGCPauses, GoMemLimit
//   - MemoryHeapAlloc, MemoryGoroutines
//   - LibraryImages, LibrarySections, LibraryAlbums, ScanInProgress
//   - AppInfo: build information
//
// # Collection
//
// Event metrics are recorded as they happen through the observers returned by
// NewFilesystemObserver, NewPoolObserver and NewPipelineObserver. Gauges that
// describe state are refreshed by a Collector polling a StatsProvider:
//
//	collector := metrics.NewCollector(lib, 15*time.Second)
//	collector.Start()
//	defer collector.Stop()
//
// Call InitializeMetrics once at startup so every labelled series is exported
// from the first scrape.
package metrics
