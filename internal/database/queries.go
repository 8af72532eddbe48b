package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"media-catalog/internal/logging"
	"media-catalog/internal/mediatypes"
	"media-catalog/internal/metrics"
)

const itemColumns = `id, storage_name, original_name, kind, content_hash, mime_type, width, height,
	byte_size, created_at, favorite, analyzed, face_count, has_people, dominant_colors,
	brightness, tags, thumbhash, analyzed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*MediaItem, error) {
	var (
		item       MediaItem
		kind       string
		hash       sql.NullString
		createdAt  int64
		colorsJSON string
		tagsJSON   string
		analyzedAt sql.NullInt64
	)

	err := row.Scan(
		&item.ID, &item.StorageName, &item.OriginalName, &kind, &hash, &item.MimeType,
		&item.Width, &item.Height, &item.ByteSize, &createdAt, &item.Favorite,
		&item.Enrichment.Analyzed, &item.Enrichment.FaceCount, &item.Enrichment.HasPeople,
		&colorsJSON, &item.Enrichment.Brightness, &tagsJSON, &item.Enrichment.Placeholder, &analyzedAt,
	)
	if err != nil {
		return nil, err
	}

	item.Kind = mediatypes.Kind(kind)
	item.ContentHash = hash.String
	item.CreatedAt = time.Unix(createdAt, 0)
	if analyzedAt.Valid {
		item.Enrichment.AnalyzedAt = time.Unix(analyzedAt.Int64, 0)
	}

	if err := json.Unmarshal([]byte(colorsJSON), &item.Enrichment.DominantColors); err != nil {
		logging.Warn("Item %d has malformed dominant_colors %q: %v", item.ID, colorsJSON, err)
		item.Enrichment.DominantColors = nil
	}
	if err := json.Unmarshal([]byte(tagsJSON), &item.Enrichment.Tags); err != nil {
		logging.Warn("Item %d has malformed tags %q: %v", item.ID, tagsJSON, err)
		item.Enrichment.Tags = nil
	}

	return &item, nil
}

func (d *Database) findOne(ctx context.Context, op, where string, arg any) (*MediaItem, error) {
	start := time.Now()
	var err error
	defer func() {
		if errors.Is(err, ErrNotFound) {
			recordQuery(op, start, nil)
			return
		}
		recordQuery(op, start, err)
	}()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := d.db.QueryRowContext(ctx, "SELECT "+itemColumns+" FROM media_items WHERE "+where, arg)
	var item *MediaItem
	item, err = scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

// FindByStorageName returns the item stored under name, or ErrNotFound.
func (d *Database) FindByStorageName(ctx context.Context, name string) (*MediaItem, error) {
	return d.findOne(ctx, "find_by_name", "storage_name = ?", name)
}

// FindByHash returns the item whose content digest is digest, or ErrNotFound.
func (d *Database) FindByHash(ctx context.Context, digest string) (*MediaItem, error) {
	if digest == "" {
		return nil, ErrNotFound
	}
	return d.findOne(ctx, "find_by_hash", "content_hash = ?", digest)
}

// FindByID returns the item with the given id, or ErrNotFound.
func (d *Database) FindByID(ctx context.Context, id int64) (*MediaItem, error) {
	return d.findOne(ctx, "find_by_id", "id = ?", id)
}

// Insert adds a new item with default enrichment and returns it with its
// assigned id and creation time. It fails with ErrConflict when the storage
// name or the digest is already catalogued.
func (d *Database) Insert(ctx context.Context, item MediaItem) (*MediaItem, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("insert", start, err) }()

	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var res sql.Result
	res, err = d.db.ExecContext(ctx, `
		INSERT INTO media_items (storage_name, original_name, kind, content_hash, mime_type,
			width, height, byte_size, created_at, favorite)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		item.StorageName, item.OriginalName, string(item.Kind), nullString(item.ContentHash), item.MimeType,
		item.Width, item.Height, item.ByteSize, item.CreatedAt.Unix(), item.Favorite,
	)
	if err != nil {
		if isUniqueViolation(err) {
			metrics.DBConflictsTotal.WithLabelValues("insert").Inc()
			err = fmt.Errorf("insert %s: %w", item.StorageName, ErrConflict)
			return nil, err
		}
		err = fmt.Errorf("insert %s: %w", item.StorageName, err)
		return nil, err
	}

	item.ID, err = res.LastInsertId()
	if err != nil {
		return nil, err
	}
	item.CreatedAt = time.Unix(item.CreatedAt.Unix(), 0)
	item.Enrichment = Enrichment{}
	return &item, nil
}

// UpdateEnrichment overwrites the analysis fields of item id. It returns
// ErrNotFound when the item was deleted in the meantime.
func (d *Database) UpdateEnrichment(ctx context.Context, id int64, e Enrichment) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("update_enrichment", start, err) }()

	colors := e.DominantColors
	if colors == nil {
		colors = []RGB{}
	}
	tags := e.Tags
	if tags == nil {
		tags = []string{}
	}
	var colorsJSON, tagsJSON []byte
	if colorsJSON, err = json.Marshal(colors); err != nil {
		return err
	}
	if tagsJSON, err = json.Marshal(tags); err != nil {
		return err
	}

	var analyzedAt any
	if e.Analyzed {
		if e.AnalyzedAt.IsZero() {
			e.AnalyzedAt = time.Now()
		}
		analyzedAt = e.AnalyzedAt.Unix()
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var res sql.Result
	res, err = d.db.ExecContext(ctx, `
		UPDATE media_items SET analyzed = ?, face_count = ?, has_people = ?, dominant_colors = ?,
			brightness = ?, tags = ?, thumbhash = ?, analyzed_at = ?
		WHERE id = ?
	`, e.Analyzed, e.FaceCount, e.HasPeople, string(colorsJSON), e.Brightness, string(tagsJSON),
		e.Placeholder, analyzedAt, id)
	if err != nil {
		return err
	}

	if n, _ := res.RowsAffected(); n == 0 {
		logging.Warn("Enrichment update skipped: item %d no longer exists", id)
		return fmt.Errorf("update enrichment %d: %w", id, ErrNotFound)
	}
	return nil
}

// UpdateHash sets the digest of a legacy item that has none. A row that
// already carries a digest is left untouched. It returns ErrNotFound for a
// deleted item and ErrConflict when another item already owns digest.
func (d *Database) UpdateHash(ctx context.Context, id int64, digest string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("update_hash", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var res sql.Result
	res, err = d.db.ExecContext(ctx,
		`UPDATE media_items SET content_hash = ? WHERE id = ? AND content_hash IS NULL`, digest, id)
	if err != nil {
		if isUniqueViolation(err) {
			metrics.DBConflictsTotal.WithLabelValues("update_hash").Inc()
			err = fmt.Errorf("update hash %d: %w", id, ErrConflict)
		}
		return err
	}

	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	var exists bool
	if err = d.db.QueryRowContext(ctx, `SELECT COUNT(*) > 0 FROM media_items WHERE id = ?`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		logging.Warn("Hash backfill skipped: item %d no longer exists", id)
		return fmt.Errorf("update hash %d: %w", id, ErrNotFound)
	}
	return nil
}

// Delete removes the catalog row for id. Files are the caller's concern.
func (d *Database) Delete(ctx context.Context, id int64) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var res sql.Result
	res, err = d.db.ExecContext(ctx, `DELETE FROM media_items WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete %d: %w", id, ErrNotFound)
	}
	return nil
}

// ListUnanalyzed pages through images with analyzed = false in id order.
// Paging is keyed on afterID like ListItems, so rows whose analysis keeps
// failing are visited once per pass.
func (d *Database) ListUnanalyzed(ctx context.Context, afterID int64, limit int) ([]MediaItem, error) {
	return d.list(ctx, "list_unanalyzed",
		`WHERE kind = ? AND analyzed = 0 AND id > ? ORDER BY id LIMIT ?`,
		string(mediatypes.KindImage), afterID, limit)
}

// ListItems pages through the whole catalog in id order. Pass the last id of
// the previous page as afterID (0 for the first page).
func (d *Database) ListItems(ctx context.Context, afterID int64, limit int) ([]MediaItem, error) {
	return d.list(ctx, "list_items", `WHERE id > ? ORDER BY id LIMIT ?`, afterID, limit)
}

func (d *Database) list(ctx context.Context, op, clause string, args ...any) ([]MediaItem, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery(op, start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var rows *sql.Rows
	rows, err = d.db.QueryContext(ctx, "SELECT "+itemColumns+" FROM media_items "+clause, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []MediaItem
	for rows.Next() {
		var item *MediaItem
		item, err = scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	err = rows.Err()
	return items, err
}

// GetStats counts catalog items for health reporting and metrics.
func (d *Database) GetStats(ctx context.Context) (CatalogStats, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("stats", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var s CatalogStats
	err = d.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(kind = 'image'), 0),
			COALESCE(SUM(kind = 'video'), 0),
			COALESCE(SUM(analyzed = 1), 0),
			COALESCE(SUM(kind = 'image' AND analyzed = 0), 0),
			COALESCE(SUM(content_hash IS NULL), 0),
			COALESCE(SUM(favorite = 1), 0)
		FROM media_items
	`).Scan(&s.TotalItems, &s.TotalImages, &s.TotalVideos, &s.Analyzed, &s.PendingAnalysis, &s.MissingHash, &s.Favorites)
	return s, err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
