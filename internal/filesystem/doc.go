/*
Package filesystem provides resilient filesystem operations for reading source
images and writing cache files.

# Retries

StatWithRetry, OpenWithRetry and ReadDirWithRetry wrap the os calls with
exponential backoff on transient errors:

  - ESTALE from network mounts
  - EBUSY / EAGAIN
  - ERROR_SHARING_VIOLATION / ERROR_LOCK_VIOLATION on Windows, which is what a
    camera import or sync client holding a file open produces

All other errors fail immediately.

	file, err := filesystem.OpenWithRetry(path, filesystem.DefaultRetryConfig())

Defaults: 3 retries, 50ms initial backoff doubling up to 500ms.

# Atomic Writes

WriteFileAtomic streams into a sibling ".tmp" file, syncs it and renames it
over the destination, so a crash mid-save leaves the previous cache intact.
AtomicFile splits the same steps so a caller can release its own handle on
the destination (an mmap, say) between Close and Commit.

# Metrics

Retry counters are reported through the Observer interface, which the metrics
package implements. With no observer set, nothing is recorded.
*/
package filesystem
