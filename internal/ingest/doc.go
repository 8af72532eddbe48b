// Package ingest is the ingestion and enrichment pipeline.
//
// The Coordinator receives candidate files from every source adapter
// (upload, filesystem watcher, reconciliation sweep, CLI) and decides, under
// a per-name lock, whether each one is new content, a duplicate of a
// catalogued item, the catalogued original itself, or a legacy row that
// only needs its digest backfilled. The catalog's unique indexes are the
// final arbiter: losing an insert race resolves the loser as a duplicate.
//
// New and resumed items are enriched on a separate bounded pool. Derivative
// generation and analysis are independent tasks, each safe to repeat, and
// neither can remove or invalidate a catalogued item.
//
// Results are typed (Outcome and Severity) and collected per batch in a
// BatchReport so one failing file never stops the others.
package ingest
