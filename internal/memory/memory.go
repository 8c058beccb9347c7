package memory

import (
	"context"
	"math"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"photo-gallery/internal/logging"
	"photo-gallery/internal/metrics"
)

// Level is the memory pressure reported by a Monitor.
type Level int

const (
	// LevelNormal leaves every consumer running at full speed.
	LevelNormal Level = iota
	// LevelHigh asks optional work (prefetch, background saves) to back off.
	LevelHigh
	// LevelCritical asks caches to release what they can rebuild.
	LevelCritical
)

func (l Level) String() string {
	switch l {
	case LevelNormal:
		return "normal"
	case LevelHigh:
		return "high"
	case LevelCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Config holds memory management configuration
type Config struct {
	// LimitBytes is the soft memory limit (0 = use GOMEMLIMIT or no limit)
	LimitBytes int64

	// HighWaterMark is the fraction of the limit at which LevelHigh starts (0.0-1.0)
	HighWaterMark float64

	// CriticalWaterMark is the fraction at which LevelCritical starts (0.0-1.0).
	// Critical is left only once usage falls below HighWaterMark.
	CriticalWaterMark float64

	// CheckInterval is how often usage is sampled
	CheckInterval time.Duration
}

// DefaultConfig returns sensible defaults for memory management
func DefaultConfig() Config {
	return Config{
		LimitBytes:        0,
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     2 * time.Second,
	}
}

// Monitor samples heap usage against a limit and reports a pressure Level.
// A Monitor without a limit always reports LevelNormal.
type Monitor struct {
	config Config
	limit  int64
	sample func() uint64

	mu        sync.RWMutex
	current   uint64
	level     Level
	resume    chan struct{}
	listeners []func(Level)

	stopChan chan struct{}
	stopOnce sync.Once
}

// NewMonitor creates a new memory monitor
func NewMonitor(config Config) *Monitor {
	limit := config.LimitBytes

	if limit == 0 {
		if goMemLimit := debug.SetMemoryLimit(-1); goMemLimit > 0 && goMemLimit < math.MaxInt64 {
			limit = goMemLimit
			logging.Info("Memory monitor using GOMEMLIMIT: %s", FormatBytes(limit))
		}
	}
	if limit == 0 {
		logging.Warn("Memory monitor: no memory limit configured, backpressure disabled")
	}
	if config.CheckInterval <= 0 {
		config.CheckInterval = DefaultConfig().CheckInterval
	}

	return &Monitor{
		config:   config,
		limit:    limit,
		sample:   heapInUse,
		resume:   make(chan struct{}),
		stopChan: make(chan struct{}),
	}
}

func heapInUse() uint64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.HeapAlloc
}

// OnLevelChange registers fn to run after every level transition. Callbacks
// run on the sampling goroutine, outside the monitor's lock.
func (m *Monitor) OnLevelChange(fn func(Level)) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

// Start begins sampling in the background. It does nothing without a limit.
func (m *Monitor) Start() {
	if m.limit == 0 {
		return
	}
	go m.monitorLoop()
}

// Stop ends sampling and releases WaitIfPaused callers. Safe to call twice.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopChan) })
}

func (m *Monitor) monitorLoop() {
	ticker := time.NewTicker(m.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Check()
		case <-m.stopChan:
			return
		}
	}
}

// Check samples usage now, updates the level and returns it.
func (m *Monitor) Check() Level {
	if m.limit == 0 {
		return LevelNormal
	}

	current := m.sample()
	usage := float64(current) / float64(m.limit)
	metrics.MemoryUsageRatio.Set(usage)

	m.mu.Lock()
	m.current = current
	prev := m.level
	next := m.nextLevel(prev, usage)
	m.level = next

	if prev == LevelCritical && next != LevelCritical {
		close(m.resume)
		m.resume = make(chan struct{})
	}
	var listeners []func(Level)
	if next != prev {
		listeners = append(listeners, m.listeners...)
	}
	m.mu.Unlock()

	if next == prev {
		return next
	}

	switch next {
	case LevelCritical:
		logging.Warn("Memory critical (%.1f%% of %s), releasing caches", usage*100, FormatBytes(m.limit))
		metrics.MemoryPaused.Set(1)
		metrics.MemoryGCPauses.Inc()
		go runtime.GC()
	case LevelHigh:
		logging.Info("Memory high (%.1f%% of %s), throttling prefetch", usage*100, FormatBytes(m.limit))
		metrics.MemoryPaused.Set(0)
	default:
		logging.Info("Memory recovered (%.1f%% of %s)", usage*100, FormatBytes(m.limit))
		metrics.MemoryPaused.Set(0)
	}

	for _, fn := range listeners {
		fn(next)
	}
	return next
}

func (m *Monitor) nextLevel(prev Level, usage float64) Level {
	switch {
	case usage >= m.config.CriticalWaterMark:
		return LevelCritical
	case usage >= m.config.HighWaterMark:
		if prev == LevelCritical {
			return LevelCritical
		}
		return LevelHigh
	default:
		return LevelNormal
	}
}

// Level returns the pressure observed by the last Check.
func (m *Monitor) Level() Level {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.level
}

// ShouldThrottle reports whether optional work should be skipped.
func (m *Monitor) ShouldThrottle() bool {
	return m.Level() >= LevelHigh
}

// WaitIfPaused blocks while the level is critical. It returns ctx.Err() when
// ctx ends first and context.Canceled once the monitor is stopped.
func (m *Monitor) WaitIfPaused(ctx context.Context) error {
	m.mu.RLock()
	if m.level != LevelCritical {
		m.mu.RUnlock()
		return nil
	}
	resume := m.resume
	m.mu.RUnlock()

	select {
	case <-resume:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-m.stopChan:
		return context.Canceled
	}
}

// Stats returns the last sampled usage, the limit and their ratio.
func (m *Monitor) Stats() (current, limit int64, usage float64) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	currentInt64 := int64(math.MaxInt64)
	if m.current <= math.MaxInt64 {
		currentInt64 = int64(m.current)
	}
	if m.limit > 0 {
		usage = float64(m.current) / float64(m.limit)
	}
	return currentInt64, m.limit, usage
}
