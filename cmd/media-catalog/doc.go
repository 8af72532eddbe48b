// Package main provides the entry point for the media catalog service.
//
// The service ingests photos and videos into a flat library directory,
// deduplicates them by content digest, records them in SQLite and enriches
// them in the background with thumbnails, preview artifacts and image
// analysis.
//
// # Application Lifecycle
//
//  1. Memory configuration: GOMEMLIMIT from MEMORY_LIMIT / MEMORY_RATIO
//  2. Configuration loading: .env file, environment, directory checks
//  3. Database initialization and digest algorithm pinning
//  4. Component initialization:
//     - libvips (optional) and the ffmpeg transcoder
//     - Derivative generator and content analyzer
//     - Ingestion coordinator with its ingest and enrichment pools
//     - Reconciliation sweeps (startup, periodic, on demand)
//     - Filesystem watcher on the library root
//     - Metrics collector and memory monitor
//  5. HTTP server setup: routes, access logging and metrics middleware
//  6. Graceful shutdown on SIGINT/SIGTERM
//
// # Ingestion Sources
//
// Every source feeds the same coordinator, which decides for each file
// whether it is new, a duplicate of catalogued content or already in place:
//
//   - Uploads: POST /api/upload, streamed into LIBRARY_DIR/.staging
//   - Watcher: files created in LIBRARY_DIR once their size settles
//   - Sweeps: every candidate file in LIBRARY_DIR, at startup and on
//     SWEEP_INTERVAL, or via POST /api/sweep
//
// # HTTP Server
//
// The main server (PORT, default 8080) serves:
//
//   - POST /api/upload, GET and DELETE /api/items/{id}
//   - GET /api/stats, POST /api/sweep
//   - /health, /healthz, /livez, /readyz and /version
//
// The metrics server (METRICS_PORT, default 9090) serves /metrics.
//
// # Graceful Shutdown
//
//  1. Stop accepting HTTP requests
//  2. Stop the watcher and any running sweep
//  3. Drain the ingest and enrichment pools (bounded by a 30s deadline)
//  4. Kill remaining ffmpeg processes
//  5. Stop the metrics collector and metrics server
//  6. Shut down libvips and close the database
//
// # Build Requirements
//
// CGO is required for SQLite and libvips. FFmpeg and ffprobe are optional;
// without them videos are catalogued without stills or preview clips.
//
//	go build -o media-catalog ./cmd/media-catalog
package main
