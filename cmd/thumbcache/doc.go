// Command thumbcache inspects and maintains the gallery's cache files.
//
// Usage:
//
//	thumbcache <command>
//
// Commands:
//
//	inspect     Print the size, entry count and month breakdown of the scan
//	            cache and the entry count of the thumbnail cache.
//
//	verify      Parse both caches and list entries whose image no longer
//	            exists. Exits 2 when either cache is corrupt or stale.
//
//	prune       Rewrite the thumbnail cache without entries whose image is
//	            gone. Run it while the gallery is stopped.
//
//	clear [-y]  Delete both caches after confirmation. Without a terminal,
//	            -y is required.
//
// Environment:
//
//	CACHE_DIR - Gallery cache directory (default: user cache dir/photo-gallery)
package main
