package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, file := range []string{"main", "wal", "shm"} {
		DBSizeBytes.WithLabelValues(file)
	}

	volumes := []string{"library", "previews", "thumbnails", "database", "unknown"}
	for _, op := range []string{"stat", "open", "remove"} {
		for _, vol := range volumes {
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
			FilesystemRetryDuration.WithLabelValues(op, vol)
		}
	}

	for _, source := range []string{"upload", "watch", "sweep", "cli"} {
		for _, outcome := range []string{"created", "duplicate", "backfilled", "already_catalogued", "rejected", "failed"} {
			IngestTotal.WithLabelValues(source, outcome)
		}
		IngestDuration.WithLabelValues(source)
	}

	for _, kind := range []string{"image", "video"} {
		CatalogItems.WithLabelValues(kind)
		for _, artifact := range []string{"preview", "thumbnail"} {
			for _, status := range []string{"generated", "skipped", "error"} {
				DerivativesTotal.WithLabelValues(kind, artifact, status)
			}
			DerivativeDuration.WithLabelValues(kind, artifact)
		}
	}

	for _, job := range []string{"still", "preview", "probe"} {
		for _, status := range []string{"success", "error", "timeout"} {
			TranscoderJobsTotal.WithLabelValues(job, status)
		}
		TranscoderJobDuration.WithLabelValues(job)
	}

	for _, status := range []string{"success", "unavailable", "skipped"} {
		AnalysisTotal.WithLabelValues(status)
	}
	for _, stage := range []string{"decode", "faces", "people", "colors", "brightness", "total"} {
		AnalysisDuration.WithLabelValues(stage)
	}

	for _, reason := range []string{"empty", "unstable", "vanished"} {
		WatcherDropped.WithLabelValues(reason)
	}

	for _, trigger := range []string{"startup", "interval", "manual"} {
		SweepRunsTotal.WithLabelValues(trigger)
	}
	for _, result := range []string{"ingested", "resumed", "skipped", "error"} {
		SweepFilesTotal.WithLabelValues(result)
	}

	for _, result := range []string{"created", "duplicate", "rejected", "failed"} {
		UploadFilesTotal.WithLabelValues(result)
	}

	for _, pool := range []string{"ingest", "enrich"} {
		QueueDepth.WithLabelValues(pool)
		PoolWorkers.WithLabelValues(pool)
		for _, status := range []string{"success", "error", "panic"} {
			TasksTotal.WithLabelValues(pool, status)
		}
	}

	for _, op := range []string{"find_by_name", "find_by_hash", "find_by_id", "insert", "update_enrichment",
		"update_hash", "delete", "list_unanalyzed", "list_items", "stats", "initialize_schema"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}
	DBConflictsTotal.WithLabelValues("insert")
	DBConflictsTotal.WithLabelValues("update_hash")
}
