package database

import (
	"errors"

	"github.com/mattn/go-sqlite3"
)

var (
	// ErrNotFound is returned when a lookup or update targets an id, name or
	// digest that is not in the catalog.
	ErrNotFound = errors.New("media item not found")

	// ErrConflict is returned when an insert or update would violate the
	// uniqueness of storage_name or content_hash.
	ErrConflict = errors.New("media item already exists")
)

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
