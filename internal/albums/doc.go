// Package albums stores the user's album folders and recently opened files.
//
// Album folders are scanned together with the system picture folders. They
// are kept in a small SQLite database (WAL mode) next to the cache files:
//
//	store, err := albums.Open(ctx, filepath.Join(dataDir, "gallery.db"))
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	added, err := store.AddAlbum(ctx, "/mnt/photos/2019")
//
// Paths are canonicalized before they are stored. Two spellings of the same
// folder, including symlinks and case variants, count as one album.
// [Store.AlbumFolders] drops folders that are no longer present so a
// disconnected drive does not fail a scan, but the rows are kept.
//
// The recent list holds at most [MaxRecent] files, newest first.
//
// Every query is counted in photo_gallery_db_queries_total and timed in
// photo_gallery_db_query_duration_seconds, labelled by operation.
package albums
