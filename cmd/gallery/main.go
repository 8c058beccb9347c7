package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"photo-gallery/internal/albums"
	"photo-gallery/internal/filesystem"
	"photo-gallery/internal/handlers"
	"photo-gallery/internal/library"
	"photo-gallery/internal/logging"
	"photo-gallery/internal/media"
	"photo-gallery/internal/memory"
	"photo-gallery/internal/metrics"
	"photo-gallery/internal/pipeline"
	"photo-gallery/internal/render"
	"photo-gallery/internal/startup"
)

// metricsInterval is how often the collector refreshes gauges.
const metricsInterval = 15 * time.Second

func main() {
	startTime := time.Now()

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	startup.LogMemoryConfig(memory.ConfigureFromEnv())

	if config.MetricsEnabled {
		metrics.InitializeMetrics()
		filesystem.SetObserver(metrics.NewFilesystemObserver())
	}

	vipsReady := false
	if config.VipsEnabled {
		if err := media.InitVips(); err != nil {
			logging.Warn("libvips unavailable, using the Go decoders: %v", err)
		} else {
			vipsReady = true
			defer media.ShutdownVips()
		}
	}

	monitor := memory.NewMonitor(memory.DefaultConfig())

	decoderOpts := media.DefaultDecoderOptions()
	decoderOpts.UseVips = vipsReady
	pipe, err := pipeline.New(media.NewImageDecoder(decoderOpts), render.NewSoftwareRenderer(),
		pipelineOptions(config, monitor))
	if err != nil {
		startup.LogFatal("Failed to start thumbnail pipeline: %v", err)
	}
	startup.LogPipelineInit(pipe.Stats(), vipsReady)

	storeStart := time.Now()
	store, err := albums.Open(context.Background(), config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to open album store: %v", err)
	}
	albumCount, err := store.AlbumCount(context.Background())
	if err != nil {
		logging.Warn("Failed to count albums: %v", err)
	}
	startup.LogStoreInit(config.DatabasePath, albumCount, time.Since(storeStart))

	lib := library.New(pipe, store, libraryConfig(config))
	lib.SetMemoryMonitor(monitor)
	monitor.Start()

	if err := lib.Start(); err != nil {
		startup.LogFatal("Failed to start library: %v", err)
	}
	startup.LogLibraryStarted(len(lib.Images()), pipe.Stats().Tier3Entries)

	var collector *metrics.Collector
	if config.MetricsEnabled {
		collector = metrics.NewCollector(lib, metricsInterval)
		collector.Start()
	}

	frameCtx, stopFrames := context.WithCancel(context.Background())
	var frameWG sync.WaitGroup
	frameWG.Add(1)
	go func() {
		defer frameWG.Done()
		runFrames(frameCtx, lib, config.FrameInterval)
	}()

	h := handlers.New(lib, config)
	h.SetMemoryMonitor(monitor)
	router := h.Router(handlers.RouterOptions{
		MetricsEnabled:  config.MetricsEnabled,
		LogHealthChecks: config.LogHealthChecks,
	})
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	srv := &http.Server{
		Addr:              ":" + config.StatusPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		handleShutdown(srv, func() {
			startup.LogShutdownStep("Stopping frame loop")
			stopFrames()
			frameWG.Wait()
			startup.LogShutdownStepComplete("Frame loop stopped")

			if collector != nil {
				startup.LogShutdownStep("Stopping metrics collector")
				collector.Stop()
				startup.LogShutdownStepComplete("Metrics collector stopped")
			}

			startup.LogShutdownStep("Stopping memory monitor")
			monitor.Stop()
			startup.LogShutdownStepComplete("Memory monitor stopped")

			startup.LogShutdownStep("Closing library")
			lib.Close()
			startup.LogShutdownStepComplete("Library closed, caches saved")

			startup.LogShutdownStep("Shutting down pipeline")
			pipe.Shutdown()
			startup.LogShutdownStepComplete("Pipeline stopped")

			startup.LogShutdownStep("Closing album store")
			if err := store.Close(); err != nil {
				logging.Warn("Album store close error: %v", err)
			} else {
				startup.LogShutdownStepComplete("Album store closed")
			}
		})
	}()

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.StatusPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
	<-done
}

// pipelineOptions maps the configuration onto pipeline options.
func pipelineOptions(config *startup.Config, throttle pipeline.Throttler) pipeline.Options {
	opts := pipeline.DefaultOptions()
	opts.ThumbnailSize = config.ThumbnailSize
	opts.Tier1MaxBytes = config.Tier1MaxBytes
	opts.Tier2MaxBytes = config.Tier2MaxBytes
	opts.PersistSyncBudget = config.PersistSyncBudget
	opts.Workers = config.PipelineWorkers
	opts.ThreadPriority = true
	opts.Throttle = throttle
	if config.MetricsEnabled {
		opts.Observer = metrics.NewPipelineObserver()
		opts.PoolObserver = metrics.NewPoolObserver()
	}
	return opts
}

// libraryConfig maps the configuration onto the library. A configured
// minimum image size of zero turns the filter off.
func libraryConfig(config *startup.Config) library.Config {
	minSize := config.MinImageSize
	if minSize == 0 {
		minSize = -1
	}
	return library.Config{
		CacheDir:             config.CacheDir,
		Folders:              config.ScanFolders,
		IncludeSystemFolders: config.IncludeSystemFolders,
		ThumbnailSize:        config.ThumbnailSize,
		FlushPerFrame:        config.FlushPerFrame,
		MinImageSize:         minSize,
		ScanFlushInterval:    config.ScanFlushInterval,
		Watch:                config.WatchFolders,
	}
}

// framer is the part of the library the frame loop drives.
type framer interface {
	Frame() library.FrameResult
}

// runFrames calls Frame every interval until ctx ends. The goroutine running
// it is the render thread.
func runFrames(ctx context.Context, lib framer, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r := lib.Frame()
			if r.Updated {
				logging.Debug("Frame: scan update, %d visible, %d shown", r.Visible, r.Shown)
			}
		}
	}
}

func handleShutdown(srv *http.Server, cleanup func()) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Requests waiting on RunOnFrame need the frame loop, so the server
	// drains first.
	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	cleanup()
	startup.LogShutdownComplete()
}
