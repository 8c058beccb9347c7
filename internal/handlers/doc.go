// Package handlers provides the gallery's status HTTP API.
//
// Endpoints:
//   - /health, /healthz, /livez, /readyz: probes
//   - /version: build information
//   - /metrics: Prometheus metrics (when enabled)
//   - /api/stats: library, scan, pipeline and memory counters
//   - /api/scan: GET progress, POST rescan
//   - /api/albums: GET list, POST add, DELETE remove (body {"path": ...} or ?path=)
//   - /api/recent: recently opened files
//   - /api/view: GET or PUT the viewport driving the frame loop
//   - /api/open, /api/library: switch between folder and library mode
//   - /api/thumbnail?path=: encoded thumbnail of a gallery image
//
// Calls that create bitmaps are handed to the render thread with
// library.RunOnFrame, so the frame loop must be running for /api/thumbnail
// to answer.
package handlers
