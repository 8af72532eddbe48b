package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"media-catalog/internal/logging"
	"media-catalog/internal/metrics"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// Database is the SQLite-backed catalog store. It is safe for concurrent use;
// uniqueness of storage names and digests is enforced by the schema, so
// several processes may share the same file.
type Database struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// New opens (creating if needed) the catalog at dbPath, which must be the
// path of the database FILE whose parent directory already exists.
func New(ctx context.Context, dbPath string) (*Database, error) {
	logging.Info("Database path: %s", dbPath)

	if err := diagnoseDatabasePermissions(dbPath); err != nil {
		logging.Warn("Database permission diagnostics: %v", err)
	}

	// busy_timeout covers writers from other processes (catalogctl)
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{
		db:     db,
		dbPath: dbPath,
	}

	start := time.Now()
	err = d.initialize(ctx)
	recordQuery("initialize_schema", start, err)
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Database initialized successfully at %s", dbPath)
	return d, nil
}

func (d *Database) initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS media_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		storage_name TEXT NOT NULL UNIQUE,
		original_name TEXT NOT NULL DEFAULT '',
		kind TEXT NOT NULL DEFAULT 'image',
		content_hash TEXT,
		mime_type TEXT NOT NULL DEFAULT '',
		width INTEGER NOT NULL DEFAULT 0,
		height INTEGER NOT NULL DEFAULT 0,
		byte_size INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		favorite INTEGER NOT NULL DEFAULT 0,
		analyzed INTEGER NOT NULL DEFAULT 0,
		face_count INTEGER NOT NULL DEFAULT 0,
		has_people INTEGER NOT NULL DEFAULT 0,
		dominant_colors TEXT NOT NULL DEFAULT '[]',
		brightness REAL NOT NULL DEFAULT 0,
		tags TEXT NOT NULL DEFAULT '[]',
		thumbhash BLOB,
		analyzed_at INTEGER
	);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT
	);
	`

	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return err
	}

	if err := d.runMigrations(ctx); err != nil {
		return err
	}

	// Indexes come after migrations: legacy tables gain content_hash and kind there.
	indexes := `
	CREATE UNIQUE INDEX IF NOT EXISTS idx_media_items_content_hash ON media_items(content_hash);
	CREATE INDEX IF NOT EXISTS idx_media_items_created_at ON media_items(created_at, id);
	CREATE INDEX IF NOT EXISTS idx_media_items_kind_analyzed ON media_items(kind, analyzed);
	`
	_, err := d.db.ExecContext(ctx, indexes)
	return err
}

// column describes a column added to media_items after its first release.
type column struct {
	name string
	ddl  string
}

var addedColumns = []column{
	{"content_hash", "content_hash TEXT"},
	{"kind", "kind TEXT NOT NULL DEFAULT 'image'"},
	{"mime_type", "mime_type TEXT NOT NULL DEFAULT ''"},
	{"width", "width INTEGER NOT NULL DEFAULT 0"},
	{"height", "height INTEGER NOT NULL DEFAULT 0"},
	{"byte_size", "byte_size INTEGER NOT NULL DEFAULT 0"},
	{"favorite", "favorite INTEGER NOT NULL DEFAULT 0"},
	{"analyzed", "analyzed INTEGER NOT NULL DEFAULT 0"},
	{"face_count", "face_count INTEGER NOT NULL DEFAULT 0"},
	{"has_people", "has_people INTEGER NOT NULL DEFAULT 0"},
	{"dominant_colors", "dominant_colors TEXT NOT NULL DEFAULT '[]'"},
	{"brightness", "brightness REAL NOT NULL DEFAULT 0"},
	{"tags", "tags TEXT NOT NULL DEFAULT '[]'"},
	{"thumbhash", "thumbhash BLOB"},
	{"analyzed_at", "analyzed_at INTEGER"},
}

func (d *Database) columnExists(ctx context.Context, table, name string) (bool, error) {
	var exists bool
	err := d.db.QueryRowContext(ctx, `
		SELECT COUNT(*) > 0
		FROM pragma_table_info(?)
		WHERE name = ?
	`, table, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check for %s column: %w", name, err)
	}
	return exists, nil
}

// runMigrations brings a catalog created by an older release up to date.
func (d *Database) runMigrations(ctx context.Context) error {
	for _, col := range addedColumns {
		exists, err := d.columnExists(ctx, "media_items", col.name)
		if err != nil {
			return err
		}
		if exists {
			continue
		}

		logging.Info("Migrating database: adding %s column to media_items", col.name)
		if _, err := d.db.ExecContext(ctx, "ALTER TABLE media_items ADD COLUMN "+col.ddl); err != nil {
			return fmt.Errorf("failed to add %s column: %w", col.name, err)
		}
	}

	// faces_count was an earlier spelling of face_count; fold it in.
	legacy, err := d.columnExists(ctx, "media_items", "faces_count")
	if err != nil {
		return err
	}
	if legacy {
		res, err := d.db.ExecContext(ctx, `
			UPDATE media_items SET face_count = faces_count
			WHERE face_count = 0 AND faces_count > 0
		`)
		if err != nil {
			return fmt.Errorf("failed to migrate faces_count: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			logging.Info("Migration complete: copied faces_count into face_count for %d items", n)
		}
	}

	// Empty strings from older writers mean "no digest".
	if _, err := d.db.ExecContext(ctx, `UPDATE media_items SET content_hash = NULL WHERE content_hash = ''`); err != nil {
		return fmt.Errorf("failed to normalise empty content hashes: %w", err)
	}

	// Older releases did not enforce uniqueness; keep the oldest row's digest
	// so the unique index can be built. The other rows keep their originals
	// and stay without a digest; a sweep reports them as duplicates.
	res, err := d.db.ExecContext(ctx, `
		UPDATE media_items SET content_hash = NULL
		WHERE content_hash IS NOT NULL AND id NOT IN (
			SELECT MIN(id) FROM media_items WHERE content_hash IS NOT NULL GROUP BY content_hash
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to clear duplicate content hashes: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		logging.Warn("Migration: cleared %d duplicate content hashes", n)
	}

	return nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// Path returns the database file path.
func (d *Database) Path() string {
	return d.dbPath
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

// UpdateDBMetrics refreshes the database file size gauges.
func (d *Database) UpdateDBMetrics() {
	for label, suffix := range map[string]string{"main": "", "wal": "-wal", "shm": "-shm"} {
		if info, err := os.Stat(d.dbPath + suffix); err == nil {
			metrics.DBSizeBytes.WithLabelValues(label).Set(float64(info.Size()))
		} else {
			metrics.DBSizeBytes.WithLabelValues(label).Set(0)
		}
	}
}

// diagnoseDatabasePermissions checks database directory and file permissions
func diagnoseDatabasePermissions(dbPath string) error {
	dir := filepath.Dir(dbPath)

	dirInfo, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot stat database directory: %w", err)
	}

	logging.Debug("Database directory: %s (mode: %v)", dir, dirInfo.Mode())

	testFile := filepath.Join(dir, ".perm-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("database directory not writable: %w", err)
	}
	_ = os.Remove(testFile)

	for _, path := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		logging.Debug("Database file exists: %s (mode: %v, size: %d bytes)", path, info.Mode(), info.Size())
		if info.Mode().Perm()&0o200 == 0 {
			logging.Warn("%s is read-only (mode %v); writes will fail", path, info.Mode())
			if chmodErr := os.Chmod(path, 0o600); chmodErr != nil {
				logging.Error("Failed to fix permissions on %s: %v", path, chmodErr)
			} else {
				logging.Info("Fixed permissions on %s", path)
			}
		}
	}

	return nil
}
