package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_http_requests_total",
			Help: "Total number of HTTP requests by method, route and status code",
		},
		[]string{"method", "path", "code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_catalog_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_catalog_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_db_queries_total",
			Help: "Total number of catalog queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_catalog_db_query_duration_seconds",
			Help:    "Catalog query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBConflictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_db_conflicts_total",
			Help: "Uniqueness violations rejected by the catalog",
		},
		[]string{"operation"},
	)

	DBSizeBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_catalog_db_size_bytes",
			Help: "Size of SQLite database files in bytes",
		},
		[]string{"file"}, // "main", "wal", "shm"
	)
)

// Ingestion metrics
var (
	IngestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_ingest_total",
			Help: "Ingestion attempts by source and outcome",
		},
		[]string{"source", "outcome"},
	)

	IngestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_catalog_ingest_duration_seconds",
			Help:    "Time from candidate to catalog decision",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"source"},
	)

	HashDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_catalog_hash_duration_seconds",
			Help:    "Time spent computing content digests",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		},
	)

	HashBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_catalog_hash_bytes_total",
			Help: "Bytes read by the content hasher",
		},
	)

	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_catalog_queue_depth",
			Help: "Jobs waiting in a worker pool queue",
		},
		[]string{"pool"},
	)

	PoolWorkers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_catalog_pool_workers",
			Help: "Configured workers per pool",
		},
		[]string{"pool"},
	)

	TasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_tasks_total",
			Help: "Background tasks executed by pool and status",
		},
		[]string{"pool", "status"},
	)
)

// Derivative metrics
var (
	DerivativesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_derivatives_total",
			Help: "Derivative artifacts by kind, artifact and status",
		},
		[]string{"kind", "artifact", "status"}, // status: generated, skipped, error
	)

	DerivativeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_catalog_derivative_duration_seconds",
			Help:    "Time to produce one derivative artifact",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"kind", "artifact"},
	)

	TranscoderJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_transcoder_jobs_total",
			Help: "External transcoder invocations by job and status",
		},
		[]string{"job", "status"}, // status: success, error, timeout
	)

	TranscoderJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_catalog_transcoder_job_duration_seconds",
			Help:    "External transcoder invocation duration",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"job"},
	)

	TranscoderJobsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_catalog_transcoder_jobs_in_progress",
			Help: "External transcoder processes currently running",
		},
	)
)

// Analysis metrics
var (
	AnalysisTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_analysis_total",
			Help: "Content analysis runs by status",
		},
		[]string{"status"}, // success, unavailable, skipped
	)

	AnalysisDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_catalog_analysis_duration_seconds",
			Help:    "Content analysis duration by stage",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"stage"}, // decode, faces, people, colors, brightness, total
	)
)

// Watcher metrics
var (
	WatcherEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_watcher_events_total",
			Help: "Filesystem events received by type",
		},
		[]string{"type"},
	)

	WatcherErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_catalog_watcher_errors_total",
			Help: "Errors reported by the filesystem watcher",
		},
	)

	WatcherPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_catalog_watcher_pending_files",
			Help: "Files waiting for their size to settle",
		},
	)

	WatcherDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_watcher_dropped_total",
			Help: "Files the watcher gave up on, by reason",
		},
		[]string{"reason"}, // empty, unstable, vanished
	)
)

// Reconciliation sweep metrics
var (
	SweepRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_sweep_runs_total",
			Help: "Reconciliation sweeps by trigger",
		},
		[]string{"trigger"}, // startup, interval, manual
	)

	SweepLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_catalog_sweep_last_run_timestamp",
			Help: "Unix timestamp of the last completed sweep",
		},
	)

	SweepLastDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_catalog_sweep_last_duration_seconds",
			Help: "Duration of the last completed sweep",
		},
	)

	SweepFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_sweep_files_total",
			Help: "Files visited by the sweep by result",
		},
		[]string{"result"}, // ingested, resumed, skipped, error
	)

	SweepRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_catalog_sweep_running",
			Help: "Whether a sweep is currently running (1) or not (0)",
		},
	)
)

// Upload metrics
var (
	UploadFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_upload_files_total",
			Help: "Uploaded files by result",
		},
		[]string{"result"}, // created, duplicate, rejected, failed
	)

	UploadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_catalog_upload_bytes_total",
			Help: "Bytes received through the upload endpoint",
		},
	)
)

// Catalog gauges, refreshed by the Collector
var (
	CatalogItems = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_catalog_items",
			Help: "Catalogued items by kind",
		},
		[]string{"kind"},
	)

	CatalogPendingAnalysis = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_catalog_items_pending_analysis",
			Help: "Images not yet analysed",
		},
	)

	CatalogMissingHash = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_catalog_items_missing_hash",
			Help: "Legacy items awaiting a content hash backfill",
		},
	)
)

// Filesystem retry metrics
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_filesystem_retry_attempts_total",
			Help: "Retries of filesystem operations after stale file handles",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_filesystem_retry_success_total",
			Help: "Filesystem operations that succeeded after retrying",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_filesystem_retry_failures_total",
			Help: "Filesystem operations that failed after all retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_filesystem_stale_errors_total",
			Help: "ESTALE errors observed",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_catalog_filesystem_retry_duration_seconds",
			Help:    "Total duration of retried filesystem operations",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1, 2},
		},
		[]string{"operation", "volume"},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_catalog_memory_usage_ratio",
			Help: "Heap allocation as a fraction of the Go memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_catalog_memory_paused",
			Help: "1 while enrichment is paused for memory pressure",
		},
	)

	MemoryPausesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_catalog_memory_pauses_total",
			Help: "Times enrichment was paused for memory pressure",
		},
	)
)

// Application info
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_catalog_app_info",
			Help: "Application build information",
		},
		[]string{"version", "commit", "go_version"},
	)
)
