// Package memory keeps the process inside its container memory budget.
//
// [ConfigureFromEnv] derives GOMEMLIMIT from the container limit:
//
//   - GOMEMLIMIT: standard Go variable; when set it takes precedence.
//   - MEMORY_LIMIT: container limit in bytes, typically from the Kubernetes
//     Downward API (resources.limits.memory).
//   - MEMORY_RATIO: share of MEMORY_LIMIT given to the Go heap, in (0, 1].
//     Defaults to 0.85, leaving room for libvips and ffmpeg.
//
// A [Monitor] samples heap usage against that limit. Enrichment workers
// call [Monitor.Wait] before each task, so derivative generation and
// analysis stall while usage is above the critical mark and resume once it
// drops below the high-water mark. Ingestion itself is never gated.
package memory
