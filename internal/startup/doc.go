// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// All configuration is loaded from environment variables via [LoadConfig].
// An optional .env file (or the file named by ENV_FILE) is read first; it
// never overrides variables that are already set. Supported variables:
//
//   - LIBRARY_DIR: Watch root and storage for originals (default: /media)
//   - CACHE_DIR: Base for derivative directories (default: /cache)
//   - PREVIEW_DIR, THUMBNAIL_DIR: Derivative directories (default: CACHE_DIR/previews, CACHE_DIR/thumbnails)
//   - DATABASE_DIR: Path to database directory (default: /database)
//   - PORT: HTTP server port (default: 8080)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable metrics server (default: true)
//   - WATCH_ENABLED: Watch LIBRARY_DIR for new files (default: true)
//   - SETTLE_DELAY, SETTLE_ATTEMPTS: Watcher size sampling (default: 2s, 5)
//   - SWEEP_ON_STARTUP: Reconcile the library at startup (default: true)
//   - SWEEP_INTERVAL: Periodic sweep interval, 0 disables (default: 0)
//   - TRANSCODE_TIMEOUT: Per ffmpeg invocation (default: 60s)
//   - INGEST_WORKERS, ENRICH_WORKERS, QUEUE_SIZE: Pool sizing
//   - HASH_ALGORITHM: blake3, blake2b or sha256 (default: blake3)
//   - FACE_CASCADE: pigo cascade file; empty disables face detection
//   - VIPS_ENABLED: Encode image derivatives with libvips (default: true)
//   - MAX_UPLOAD_MB: Per-file upload limit (default: 512)
//   - LOG_LEVEL, DEBUG: Logging level
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//
// # Directory Setup
//
// The library and database directories are required and must be writable.
// The derivative directories are optional; without them items are
// catalogued with no previews or thumbnails.
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo].
package startup
