package metrics

import (
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"photo-gallery/internal/logging"
	"photo-gallery/internal/pipeline"
)

// StatsProvider interface for collecting stats
type StatsProvider interface {
	GetStats() Stats
}

// Stats holds the current statistics
type Stats struct {
	Pipeline pipeline.Stats
	Images   int
	Sections int
	Albums   int
	Scanning bool
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
	stopOnce      sync.Once
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection. It is safe to call more than once.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stopChan) })
}

func (c *Collector) collectLoop() {
	// Collect immediately on start
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	collectMemoryMetrics()

	if c.statsProvider == nil {
		return
	}

	stats := c.statsProvider.GetStats()
	p := stats.Pipeline

	CacheTierBytes.WithLabelValues("gpu").Set(float64(p.Tier1Bytes))
	CacheTierBytes.WithLabelValues("ram").Set(float64(p.Tier2Bytes))
	CacheTierBytes.WithLabelValues("disk").Set(float64(p.Tier3Bytes))
	CacheTierEntries.WithLabelValues("gpu").Set(float64(p.Tier1Entries))
	CacheTierEntries.WithLabelValues("ram").Set(float64(p.Tier2Entries))
	CacheTierEntries.WithLabelValues("disk").Set(float64(p.Tier3Entries))
	ReadyQueueDepth.Set(float64(p.ReadyQueue))
	PendingRequests.Set(float64(p.Pending))
	SaveBufferEntries.Set(float64(p.SaveBufferEntries))
	FullImageEntries.Set(float64(p.FullImages))
	PipelineGeneration.Set(float64(p.Generation))

	PoolWorkers.Set(float64(p.PoolThreads))
	PoolPendingTasks.Set(float64(p.PoolPending))
	PoolActiveTasks.Set(float64(p.PoolActive))

	LibraryImages.Set(float64(stats.Images))
	LibrarySections.Set(float64(stats.Sections))
	LibraryAlbums.Set(float64(stats.Albums))
	if stats.Scanning {
		ScanInProgress.Set(1)
	} else {
		ScanInProgress.Set(0)
	}

	logging.Debug("Metrics collected: images=%d, tier1=%d, tier2=%d, tier3=%d, pending=%d",
		stats.Images, p.Tier1Entries, p.Tier2Entries, p.Tier3Entries, p.Pending)
}

func collectMemoryMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	MemoryHeapAlloc.Set(float64(m.HeapAlloc))
	MemoryGoroutines.Set(float64(runtime.NumGoroutine()))

	if limit := debug.SetMemoryLimit(-1); limit > 0 && limit < 1<<62 {
		GoMemLimit.Set(float64(limit))
	} else {
		GoMemLimit.Set(0)
	}
}
