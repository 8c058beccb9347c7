package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	tiers := []string{"gpu", "ram", "disk", "source"}
	for _, tier := range tiers {
		ThumbnailServedTotal.WithLabelValues(tier)
		ThumbnailDecodeDuration.WithLabelValues(tier)
	}
	for _, tier := range tiers[:3] {
		CacheTierBytes.WithLabelValues(tier)
		CacheTierEntries.WithLabelValues(tier)
	}

	for _, lane := range []string{"high", "normal", "low"} {
		PoolTasksSubmitted.WithLabelValues(lane)
		PoolTasksCompleted.WithLabelValues(lane)
		PoolTaskPanics.WithLabelValues(lane)
		PoolTasksPurged.WithLabelValues(lane)
	}

	for _, result := range []string{"complete", "cancelled"} {
		ScanRunsTotal.WithLabelValues(result)
	}
	for _, reason := range []string{"duplicate", "too_small", "stat_error"} {
		ScanFilesSkipped.WithLabelValues(reason)
	}
	for _, event := range []string{"create", "write", "remove", "rename", "chmod"} {
		WatcherEventsTotal.WithLabelValues(event)
	}

	for _, file := range []string{"scan", "thumbs"} {
		CacheFileEntries.WithLabelValues(file)
		for _, op := range []string{"load", "save"} {
			for _, result := range []string{"success", "error", "corrupt"} {
				CacheFileOperations.WithLabelValues(file, op, result)
			}
		}
	}

	for _, op := range []string{"stat", "open", "readdir", "write"} {
		FilesystemRetryAttempts.WithLabelValues(op)
		FilesystemRetrySuccess.WithLabelValues(op)
		FilesystemRetryFailures.WithLabelValues(op)
		FilesystemRetryDuration.WithLabelValues(op)
		FilesystemTransientErrors.WithLabelValues(op)
	}

	for _, op := range []string{"initialize_schema", "list_albums", "add_album", "remove_album",
		"touch_recent", "list_recent", "prune_recent"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}
}
