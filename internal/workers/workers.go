package workers

import (
	"os"
	"runtime"
	"strconv"
)

// Count returns the number of workers for a pool, scaled from GOMAXPROCS so
// container CPU limits are respected.
//
// The multiplier adjusts for task characteristics:
//   - 1.0 for CPU-bound tasks (image analysis, resizing)
//   - 2.0 for I/O-bound tasks (hashing, copying)
//   - 1.5 for mixed tasks (ingestion: hash, decode header, insert)
//
// The limit parameter caps the worker count. Use 0 for no limit.
func Count(multiplier float64, limit int) int {
	available := runtime.GOMAXPROCS(0)

	workers := int(float64(available) * multiplier)

	if workers < 1 {
		workers = 1
	}
	if limit > 0 && workers > limit {
		workers = limit
	}

	return workers
}

// ForCPU returns worker count for CPU-bound tasks (1 per CPU).
func ForCPU(limit int) int {
	return Count(1.0, limit)
}

// ForIO returns worker count for I/O-bound tasks (2 per CPU).
func ForIO(limit int) int {
	return Count(2.0, limit)
}

// ForMixed returns worker count for mixed tasks (1.5 per CPU).
func ForMixed(limit int) int {
	return Count(1.5, limit)
}

// FromEnv returns the positive integer in the named environment variable,
// or fallback when it is unset or invalid. Pools use it so operators can pin
// a size, e.g. INGEST_WORKERS=4.
func FromEnv(key string, fallback int) int {
	if override := os.Getenv(key); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			return count
		}
	}
	return fallback
}
