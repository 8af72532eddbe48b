// Package indexer runs the reconciliation sweep over the library root.
//
// A sweep lists the files directly inside the library directory and hands
// each candidate to the ingestion coordinator. Catalogued files only have
// their enrichment resumed; uncatalogued files are ingested; rows that
// predate hashing have their digest backfilled. Hidden entries, the upload
// staging directory and derivative-looking names are skipped, and derivative
// directories are never read, so a deleted item cannot be resurrected from
// leftover artifacts.
//
// Sweeps run once at startup, optionally on an interval, and on demand. Only
// one sweep runs at a time; a sweep is safe to run alongside live uploads
// and the filesystem watcher.
package indexer
