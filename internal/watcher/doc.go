// Package watcher turns filesystem events in the library root into
// ingestion candidates.
//
// Files are not emitted on the first event. A path is held as pending while
// its size settles: it is sampled every settle delay and emitted only once
// the size is non-zero and unchanged between two samples. Files that stay
// empty, keep growing past the attempt limit, or vanish are dropped; the
// next reconciliation sweep picks up anything that was missed.
//
// Emission hands the candidate to the ingest pool from the settling
// goroutine, so the event loop never waits on hashing or enrichment.
package watcher
