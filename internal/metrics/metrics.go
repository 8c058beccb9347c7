package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics (status server)
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_gallery_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photo_gallery_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_gallery_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Thumbnail pipeline metrics
var (
	ThumbnailServedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_gallery_thumbnail_served_total",
			Help: "Thumbnails handed to the view, by the tier that supplied them",
		},
		[]string{"tier"}, // "gpu", "ram", "disk", "source"
	)

	ThumbnailDecodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photo_gallery_thumbnail_decode_duration_seconds",
			Help:    "Time a worker spent producing a thumbnail, by source tier",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"source"},
	)

	ThumbnailDecodeFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photo_gallery_thumbnail_decode_failures_total",
			Help: "Thumbnail decodes that failed",
		},
	)

	ThumbnailStaleDiscards = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photo_gallery_thumbnail_stale_discards_total",
			Help: "Decode results discarded because their generation was invalidated",
		},
	)

	ThumbnailEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photo_gallery_thumbnail_evictions_total",
			Help: "Bitmaps evicted from the GPU tier",
		},
	)

	ThumbnailDemotions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photo_gallery_thumbnail_demotions_total",
			Help: "Evicted bitmaps compressed into the RAM tier",
		},
	)

	PipelineGeneration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_gallery_pipeline_generation",
			Help: "Current request generation",
		},
	)

	CacheTierBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "photo_gallery_cache_tier_bytes",
			Help: "Bytes held by each cache tier",
		},
		[]string{"tier"}, // "gpu", "ram", "disk"
	)

	CacheTierEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "photo_gallery_cache_tier_entries",
			Help: "Entries held by each cache tier",
		},
		[]string{"tier"},
	)

	ReadyQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_gallery_ready_queue_depth",
			Help: "Decoded thumbnails waiting for upload",
		},
	)

	PendingRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_gallery_pending_requests",
			Help: "Thumbnail requests queued or in flight",
		},
	)

	SaveBufferEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_gallery_save_buffer_entries",
			Help: "Thumbnails decoded this session and not yet written to the disk cache",
		},
	)

	FullImageEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_gallery_full_image_entries",
			Help: "Full-resolution bitmaps cached",
		},
	)
)

// Worker pool metrics
var (
	PoolTasksSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_gallery_pool_tasks_submitted_total",
			Help: "Tasks queued on the decode pool",
		},
		[]string{"lane"},
	)

	PoolTasksCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_gallery_pool_tasks_completed_total",
			Help: "Tasks finished by the decode pool",
		},
		[]string{"lane"},
	)

	PoolTaskPanics = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_gallery_pool_task_panics_total",
			Help: "Tasks that panicked and were recovered",
		},
		[]string{"lane"},
	)

	PoolTasksPurged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_gallery_pool_tasks_purged_total",
			Help: "Queued tasks dropped before they ran",
		},
		[]string{"lane"},
	)

	PoolPendingTasks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_gallery_pool_pending_tasks",
			Help: "Tasks waiting in the decode pool",
		},
	)

	PoolActiveTasks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_gallery_pool_active_tasks",
			Help: "Tasks currently running",
		},
	)

	PoolWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_gallery_pool_workers",
			Help: "Decode pool size",
		},
	)
)

// Scanner metrics
var (
	ScanRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_gallery_scan_runs_total",
			Help: "Folder scans, by outcome",
		},
		[]string{"result"}, // "complete", "cancelled"
	)

	ScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "photo_gallery_scan_duration_seconds",
			Help:    "Duration of folder scans",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	ScanImagesFound = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_gallery_scan_images_found",
			Help: "Images found by the last scan",
		},
	)

	ScanFilesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_gallery_scan_files_skipped_total",
			Help: "Image files the scanner ignored, by reason",
		},
		[]string{"reason"}, // "duplicate", "too_small", "stat_error"
	)

	ScanDirectoriesSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photo_gallery_scan_directories_skipped_total",
			Help: "Directories pruned by the scanner denylist",
		},
	)

	WatcherEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_gallery_watcher_events_total",
			Help: "Filesystem watcher events, by type",
		},
		[]string{"event"},
	)

	WatcherErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photo_gallery_watcher_errors_total",
			Help: "Filesystem watcher errors",
		},
	)

	WatchedDirectories = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_gallery_watched_directories",
			Help: "Directories registered with the filesystem watcher",
		},
	)
)

// Cache file metrics
var (
	CacheFileOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_gallery_cache_file_operations_total",
			Help: "Loads and saves of the scan and thumbnail cache files",
		},
		[]string{"file", "operation", "result"}, // file: "scan", "thumbs"; result: "success", "error", "corrupt"
	)

	CacheFileEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "photo_gallery_cache_file_entries",
			Help: "Entries in each cache file after the last load or save",
		},
		[]string{"file"},
	)
)

// Album database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_gallery_db_queries_total",
			Help: "Total number of album database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photo_gallery_db_query_duration_seconds",
			Help:    "Album database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"operation"},
	)
)

// Filesystem retry metrics
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_gallery_filesystem_retry_attempts_total",
			Help: "Retries of filesystem operations after a transient error",
		},
		[]string{"operation"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_gallery_filesystem_retry_success_total",
			Help: "Filesystem operations that succeeded after retrying",
		},
		[]string{"operation"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_gallery_filesystem_retry_failures_total",
			Help: "Filesystem operations that failed after exhausting retries",
		},
		[]string{"operation"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photo_gallery_filesystem_retry_duration_seconds",
			Help:    "Total time spent in retried filesystem operations",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"operation"},
	)

	FilesystemTransientErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_gallery_filesystem_transient_errors_total",
			Help: "Transient filesystem errors seen (stale handle, busy, sharing violation)",
		},
		[]string{"operation"},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_gallery_memory_usage_ratio",
			Help: "Heap allocation as a fraction of the memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_gallery_memory_paused",
			Help: "Whether background work is paused for memory (1 = paused)",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photo_gallery_memory_gc_pauses_total",
			Help: "Times the memory monitor entered the critical state",
		},
	)

	GoMemLimit = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_gallery_go_memlimit_bytes",
			Help: "Configured GOMEMLIMIT in bytes (0 when unset)",
		},
	)

	MemoryHeapAlloc = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_gallery_memory_heap_alloc_bytes",
			Help: "Heap bytes allocated",
		},
	)

	MemoryGoroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_gallery_goroutines",
			Help: "Number of goroutines",
		},
	)
)

// AppInfo exposes build information.
var AppInfo = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "photo_gallery_app_info",
		Help: "Application build information",
	},
	[]string{"version", "commit", "go_version"},
)

// Library metrics
var (
	LibraryImages = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_gallery_library_images",
			Help: "Images currently shown in the gallery",
		},
	)

	LibrarySections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_gallery_library_sections",
			Help: "Month sections currently shown in the gallery",
		},
	)

	LibraryAlbums = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_gallery_library_albums",
			Help: "Album folders configured",
		},
	)

	ScanInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_gallery_scan_in_progress",
			Help: "Whether a folder scan is running (1 = running)",
		},
	)
)
