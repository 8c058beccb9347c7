// Package memory keeps the gallery inside its memory budget.
//
// # Configuration
//
// Call [ConfigureFromEnv] early in main, before the caches fill up:
//
//	func main() {
//	    memory.ConfigureFromEnv()
//	    // ...
//	}
//
// Environment variables:
//
//   - GOMEMLIMIT: standard Go variable. When set it takes precedence.
//   - MEMORY_LIMIT: total budget, in bytes or with a unit ("2GiB", "1500MB").
//     GOMEMLIMIT is derived from it.
//   - MEMORY_RATIO: share of MEMORY_LIMIT given to the Go heap, between 0.0
//     and 1.0. Default 0.85. The remainder covers libvips buffers, mapped
//     thumbnail caches and goroutine stacks, none of which GOMEMLIMIT sees.
//
// [ParseBytes] and [FormatBytes] are shared with the configuration loader
// for the cache size settings.
//
// # Pressure Monitoring
//
// A [Monitor] samples heap usage against the limit and reports a [Level]:
//
//	| Level    | Entered at              | Left below      |
//	|----------|-------------------------|-----------------|
//	| normal   |                         |                 |
//	| high     | HighWaterMark (0.70)    | HighWaterMark   |
//	| critical | CriticalWaterMark (0.85)| HighWaterMark   |
//
// The monitor satisfies the pipeline's throttle hook: while the level is high
// or critical, prefetching is skipped. Callers that can give memory back
// register with [Monitor.OnLevelChange]; the library releases full-size
// images and compressed thumbnails when the level turns critical.
// [Monitor.WaitIfPaused] blocks background work, such as writing the
// thumbnail cache, until the level drops again.
//
//	monitor := memory.NewMonitor(memory.DefaultConfig())
//	monitor.OnLevelChange(func(l memory.Level) {
//	    if l == memory.LevelCritical {
//	        pipe.TrimMemory()
//	    }
//	})
//	monitor.Start()
//	defer monitor.Stop()
//
// GOMEMLIMIT is a soft limit: the runtime collects more aggressively near it
// but may exceed it briefly. It does not cover cgo or mmap memory, which is
// why the ratio reserves headroom.
package memory
