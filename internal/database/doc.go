// Package database is the catalog store: a SQLite table of media items plus
// a small key/value metadata table.
//
// The schema is the arbiter of uniqueness. storage_name is UNIQUE and
// content_hash has a unique index (NULL allowed for legacy rows), so two
// ingestion paths racing on the same content cannot both insert; the loser
// receives ErrConflict. Updates aimed at a deleted item return ErrNotFound
// and log a warning.
//
// The database runs in WAL mode with a busy timeout so the service and the
// maintenance CLI can share one file. Schema changes from older releases
// (missing content_hash, kind and analysis columns, the faces_count spelling)
// are migrated on open.
package database
