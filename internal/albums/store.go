package albums

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"photo-gallery/internal/logging"
	"photo-gallery/internal/metrics"
)

// Default timeout for store operations
const defaultTimeout = 5 * time.Second

// MaxRecent is how many recently opened files are kept.
const MaxRecent = 10

// schemaVersion is bumped whenever runMigrations learns a new step.
const schemaVersion = 1

var (
	// ErrNotDirectory is returned by AddAlbum for paths that are not folders.
	ErrNotDirectory = errors.New("not a directory")
)

// Album is a user-chosen folder that is scanned alongside the system folders.
type Album struct {
	Path    string    `json:"path"`
	AddedAt time.Time `json:"addedAt"`
}

// Store persists album folders and the recent-files list in SQLite.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex // serializes writers
}

// Open opens or creates the store at dbPath. The parent directory is created
// if needed.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	logging.Info("Album store path: %s", dbPath)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create album store directory: %w", err)
	}

	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open album store: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close album store after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to album store: %w", err)
	}

	// A handful of rows; one writer and a few readers is plenty.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{db: db, dbPath: dbPath}

	if err := s.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close album store after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize album store schema: %w", err)
	}

	logging.Info("Album store initialized at %s", dbPath)
	return s, nil
}

func (s *Store) initialize(ctx context.Context) error {
	start := time.Now()
	schema := `
	CREATE TABLE IF NOT EXISTS albums (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT NOT NULL,
		path_key TEXT NOT NULL UNIQUE,
		added_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE TABLE IF NOT EXISTS recents (
		path TEXT PRIMARY KEY,
		opened_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT
	);
	`

	_, err := s.db.ExecContext(ctx, schema)
	recordQuery("initialize_schema", start, err)
	if err != nil {
		return err
	}

	return s.runMigrations(ctx)
}

// runMigrations records the schema version. Future column changes are
// applied here, keyed on the stored version.
func (s *Store) runMigrations(ctx context.Context) error {
	var current int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE((SELECT CAST(value AS INTEGER) FROM metadata WHERE key = 'schema_version'), 0)`,
	).Scan(&current)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if current > schemaVersion {
		return fmt.Errorf("album store schema version %d is newer than supported version %d", current, schemaVersion)
	}
	if current == schemaVersion {
		return nil
	}

	logging.Info("Migrating album store from schema version %d to %d", current, schemaVersion)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO metadata (key, value) VALUES ('schema_version', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		fmt.Sprint(schemaVersion))
	if err != nil {
		return fmt.Errorf("failed to store schema version: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.dbPath
}

// ListAlbums returns every stored album in the order they were added.
func (s *Store) ListAlbums(ctx context.Context) ([]Album, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, `SELECT path, added_at FROM albums ORDER BY id`)
	if err != nil {
		recordQuery("list_albums", start, err)
		return nil, fmt.Errorf("failed to list albums: %w", err)
	}
	defer rows.Close()

	var albums []Album
	for rows.Next() {
		var a Album
		var added int64
		if err := rows.Scan(&a.Path, &added); err != nil {
			recordQuery("list_albums", start, err)
			return nil, fmt.Errorf("failed to scan album row: %w", err)
		}
		a.AddedAt = time.Unix(added, 0)
		albums = append(albums, a)
	}
	err = rows.Err()
	recordQuery("list_albums", start, err)
	return albums, err
}

// AlbumFolders returns the stored album paths that still exist as
// directories. Missing folders stay in the store so they come back when a
// drive is reattached.
func (s *Store) AlbumFolders(ctx context.Context) ([]string, error) {
	albums, err := s.ListAlbums(ctx)
	if err != nil {
		return nil, err
	}

	folders := make([]string, 0, len(albums))
	for _, a := range albums {
		info, err := os.Stat(a.Path)
		if err != nil || !info.IsDir() {
			logging.Debug("Album folder unavailable, skipping: %s", a.Path)
			continue
		}
		folders = append(folders, a.Path)
	}
	return folders, nil
}

// AddAlbum stores dir as an album folder. It reports false when the folder
// (or another spelling of it) is already stored.
func (s *Store) AddAlbum(ctx context.Context, dir string) (bool, error) {
	path, err := canonicalDir(dir)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	start := time.Now()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO albums (path, path_key, added_at)
		VALUES (?, ?, ?)
		ON CONFLICT(path_key) DO NOTHING
	`, path, pathKey(path), time.Now().Unix())
	recordQuery("add_album", start, err)
	if err != nil {
		return false, fmt.Errorf("failed to add album %s: %w", path, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		logging.Debug("Album folder already exists, skipping: %s", path)
		return false, nil
	}

	logging.Info("Added album folder: %s", path)
	return true, nil
}

// RemoveAlbum deletes an album folder. It reports whether anything was
// removed. The folder does not need to exist on disk.
func (s *Store) RemoveAlbum(ctx context.Context, dir string) (bool, error) {
	path := dir
	if p, err := canonicalDir(dir); err == nil {
		path = p
	} else if abs, absErr := filepath.Abs(dir); absErr == nil {
		path = abs
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	start := time.Now()
	res, err := s.db.ExecContext(ctx, `DELETE FROM albums WHERE path_key = ?`, pathKey(path))
	recordQuery("remove_album", start, err)
	if err != nil {
		return false, fmt.Errorf("failed to remove album %s: %w", path, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		logging.Info("Removed album folder: %s", path)
	}
	return n > 0, nil
}

// AlbumCount returns the number of stored albums.
func (s *Store) AlbumCount(ctx context.Context) (int, error) {
	start := time.Now()
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM albums`).Scan(&count)
	recordQuery("count_albums", start, err)
	return count, err
}

// TouchRecent moves path to the front of the recent list and trims the list
// to MaxRecent entries.
func (s *Store) TouchRecent(ctx context.Context, path string) error {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	start := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		recordQuery("touch_recent", start, err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	// REPLACE deletes and reinserts, so the row gets the highest rowid and
	// rowid order is recency order even when the clock does not advance.
	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO recents (path, opened_at) VALUES (?, ?)`,
		path, time.Now().UnixNano())
	if err == nil {
		_, err = pruneRecent(ctx, tx, MaxRecent)
	}
	if err != nil {
		recordQuery("touch_recent", start, err)
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
		}
		return fmt.Errorf("failed to record recent file %s: %w", path, err)
	}

	err = tx.Commit()
	recordQuery("touch_recent", start, err)
	return err
}

// ListRecent returns recently opened files, most recent first.
func (s *Store) ListRecent(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	start := time.Now()
	rows, err := s.db.QueryContext(ctx,
		`SELECT path FROM recents ORDER BY rowid DESC LIMIT ?`, MaxRecent)
	if err != nil {
		recordQuery("list_recent", start, err)
		return nil, fmt.Errorf("failed to list recent files: %w", err)
	}
	defer rows.Close()

	var recent []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			recordQuery("list_recent", start, err)
			return nil, fmt.Errorf("failed to scan recent row: %w", err)
		}
		recent = append(recent, p)
	}
	err = rows.Err()
	recordQuery("list_recent", start, err)
	return recent, err
}

// PruneRecent keeps only the newest keep entries and returns how many were
// dropped.
func (s *Store) PruneRecent(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	n, err := pruneRecent(ctx, s.db, keep)
	recordQuery("prune_recent", start, err)
	return n, err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func pruneRecent(ctx context.Context, db execer, keep int) (int64, error) {
	res, err := db.ExecContext(ctx, `
		DELETE FROM recents
		WHERE rowid NOT IN (SELECT rowid FROM recents ORDER BY rowid DESC LIMIT ?)
	`, keep)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// canonicalDir resolves dir to an absolute, symlink-free directory path.
func canonicalDir(dir string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", fmt.Errorf("%w: empty path", ErrNotDirectory)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrNotDirectory, dir, err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrNotDirectory, dir, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrNotDirectory, dir)
	}
	return filepath.Clean(resolved), nil
}

// pathKey is the duplicate-detection key. Folder names compare without
// regard to case, matching how the scanner deduplicates roots.
func pathKey(path string) string {
	return strings.ToLower(filepath.Clean(path))
}

// recordQuery records database query metrics
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}
