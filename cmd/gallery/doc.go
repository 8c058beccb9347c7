// Package main is the photo gallery entry point.
//
// It scans the configured picture folders, keeps thumbnails flowing through
// the four cache tiers, and serves a status API while it runs.
//
// # Application Lifecycle
//
//  1. Configuration: environment variables, optionally overlaid by a YAML
//     file named in CONFIG_FILE
//  2. Memory: GOMEMLIMIT, or MEMORY_LIMIT scaled by MEMORY_RATIO
//  3. Pipeline: decoder (libvips when VIPS_ENABLED), software renderer and
//     the priority worker pool
//  4. Album store: SQLite database in the cache directory
//  5. Library: cached scan shown at once, background rescan, folder watching
//  6. Frame loop: one goroutine calls Library.Frame every FRAME_INTERVAL and
//     acts as the render thread
//  7. HTTP server on STATUS_PORT
//
// # Graceful Shutdown
//
// On SIGINT or SIGTERM the server drains first, since handlers wait on the
// frame loop. The frame loop, metrics collector and memory monitor stop
// next. The library then saves unsaved thumbnails, the pipeline joins its
// workers and unmaps the thumbnail cache, and the album store closes.
//
// # Build Requirements
//
// CGO is needed for SQLite and libvips. HEIC decoding needs the goheif
// build on linux.
//
//	go build -o gallery ./cmd/gallery
package main
