// Package scanner finds the photos a gallery shows.
//
// ScanFolders walks folder trees with fastwalk and returns every supported
// image of at least Options.MinSize bytes, dated by its last write time.
// Build output, VCS metadata, caches, icon sets and any dot-directory are
// never entered (see SkipDirectory). Paths are deduplicated
// case-insensitively after symlink resolution.
//
// Long scans stream their progress: Options.Progress carries the running
// count and Options.Flush receives date-sorted snapshots so a view can show
// results before the walk ends. Cancelling the context stops the walk and
// returns the unsorted images found so far.
//
// GroupByMonth turns a sorted scan into month sections for a timeline.
// SaveScanCache and LoadScanCache persist a scan in the compact UIVC format
// so the next start can display the library before rescanning. Watcher
// reports changes below the scanned folders so the caller can rescan.
package scanner
