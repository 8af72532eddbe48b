// Package metrics provides Prometheus instrumentation for the media catalog.
//
// All metrics are prefixed with "media_catalog_" and registered through
// promauto, so importing the package is enough to expose them on the
// default registry.
//
// # Metric Categories
//
// ## HTTP
//   - HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight
//
// ## Catalog store
//   - DBQueryTotal, DBQueryDuration by operation
//   - DBConflictsTotal: uniqueness violations turned into ErrConflict
//   - DBSizeBytes: main, WAL and SHM file sizes
//
// ## Ingestion
//   - IngestTotal by source (upload, watch, sweep, cli) and outcome
//   - IngestDuration, HashDuration, HashBytesTotal
//   - QueueDepth, PoolWorkers, TasksTotal per worker pool
//
// ## Enrichment
//   - DerivativesTotal, DerivativeDuration by kind and artifact
//   - TranscoderJobsTotal, TranscoderJobDuration, TranscoderJobsInProgress
//   - AnalysisTotal, AnalysisDuration by stage
//
// ## Sources
//   - WatcherEventsTotal, WatcherErrors, WatcherPending, WatcherDropped
//   - SweepRunsTotal, SweepFilesTotal, SweepRunning, SweepLast*
//   - UploadFilesTotal, UploadBytesTotal
//
// ## Catalog gauges
//
// CatalogItems, CatalogPendingAnalysis and CatalogMissingHash are refreshed
// by a Collector polling a StatsProvider (the catalog store).
//
// ## Filesystem
//
// Retry metrics for stale NFS handles, recorded through the
// filesystem.Observer returned by NewFilesystemObserver.
package metrics
