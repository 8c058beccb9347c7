// Package library ties the scanner, the thumbnail pipeline and the album
// store together into the gallery's application loop.
//
// # Lifecycle
//
// [Library.Start] maps the persistent thumbnail cache, shows the scan result
// saved by the previous run and starts a full rescan in the background. A
// new scan always cancels the running one. Snapshots from the scan goroutine
// are installed by [Library.CheckScanProgress], which the frame loop calls;
// when the final result arrives, it and the thumbnails decoded so far are
// written to disk on a background goroutine.
//
// With folder watching enabled, image changes below the scanned folders
// trigger a rescan after a short quiet period.
//
// # Frames
//
// [Library.Frame] is one render-loop iteration:
//
//  1. install any new scan snapshot
//  2. mark the viewport's cells visible and request their thumbnails
//  3. upload at most FlushPerFrame finished decodes
//  4. queue prefetch around the viewport centre
//
// When the viewport jumps further than FastScrollJump between frames, queued
// decodes are invalidated and only already-decoded thumbnails are shown.
//
// # Memory
//
// With a [memory.Monitor] attached, a critical memory level releases
// full-size images and compressed thumbnails, and background saves wait until
// the level drops.
package library
