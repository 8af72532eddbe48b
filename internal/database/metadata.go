package database

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

const (
	metaHashAlgorithm = "hash_algorithm"
	metaLastSweep     = "last_sweep"
)

// GetMetadata retrieves a metadata value by key, or ErrNotFound.
func (d *Database) GetMetadata(ctx context.Context, key string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var value sql.NullString
	err := d.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return value.String, nil
}

// SetMetadata sets a metadata key-value pair.
func (d *Database) SetMetadata(ctx context.Context, key, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := d.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// PinHashAlgorithm records algorithm as the catalog's digest algorithm the
// first time it is called. Later calls return the recorded name and whether
// it matches; digests computed with another algorithm never match stored ones.
func (d *Database) PinHashAlgorithm(ctx context.Context, algorithm string) (recorded string, matches bool, err error) {
	recorded, err = d.GetMetadata(ctx, metaHashAlgorithm)
	if errors.Is(err, ErrNotFound) || (err == nil && recorded == "") {
		if err := d.SetMetadata(ctx, metaHashAlgorithm, algorithm); err != nil {
			return "", false, err
		}
		return algorithm, true, nil
	}
	if err != nil {
		return "", false, err
	}
	return recorded, recorded == algorithm, nil
}

// GetLastSweep returns when the last reconciliation sweep finished, or the
// zero time if none has.
func (d *Database) GetLastSweep(ctx context.Context) (time.Time, error) {
	value, err := d.GetMetadata(ctx, metaLastSweep)
	if errors.Is(err, ErrNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, value)
}

// SetLastSweep stores when the last reconciliation sweep finished.
func (d *Database) SetLastSweep(ctx context.Context, t time.Time) error {
	return d.SetMetadata(ctx, metaLastSweep, t.UTC().Format(time.RFC3339))
}
