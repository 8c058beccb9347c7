/*
Package pipeline turns image paths into renderer bitmaps through a four-tier
cache and a priority decode pool.

# Tiers

	Tier 1  uploaded bitmaps, bounded by Options.Tier1MaxBytes
	Tier 2  zstd-compressed BGRA pixels in RAM, bounded by Options.Tier2MaxBytes
	Tier 3  the memory-mapped thumbnail cache file (read-only, remapped on save)
	Tier 4  the source file, decoded by a media.Decoder

A path is in at most one of Tier 1 and Tier 2. Promotion to Tier 1 removes the
Tier-2 entry; eviction from Tier 1 may demote into Tier 2.

# Frame Protocol

The render thread calls, once per frame:

	p.SetVisibleRange(onScreen)
	for _, path := range onScreen {
		if bmp := p.RequestThumbnail(path, 0); bmp != nil {
			draw(bmp)
		}
	}
	p.FlushReadyThumbnails(16)

RequestThumbnail never blocks on decoding. A miss queues a task (High lane,
front, for visible paths; Normal otherwise) and returns nil. Workers push
decoded pixels onto a ready queue that FlushReadyThumbnails drains. Up to
Options.PersistSyncBudget Tier-3 hits per frame are uploaded synchronously so
previously seen thumbnails appear without a round trip through the pool.

# Cancellation

Every task captures the generation current when it was queued.
InvalidateRequests bumps the generation, purges the Normal and Low lanes and
clears the pending table; tasks of older generations discard their result.

# Eviction

When Tier 1 exceeds its ceiling after a flush, non-visible entries are removed
oldest access first until it is at 75% of the ceiling. Removed entries whose
pixels were decoded this session are compressed into Tier 2 while it has room.

# Persistence

The thumbnail cache file is a 32-byte header ("UIVT", version 1, entry count)
followed by records of {path_len u16, width u16, height u16, reserved u16,
UTF-16LE path, BGRA pixels}. SavePersistentThumbs writes the thumbnails decoded
this session plus every mapped entry to a temporary file, unmaps, renames it
into place and maps the new file. A file with a bad header loads as empty.
*/
package pipeline
