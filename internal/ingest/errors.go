package ingest

import (
	"errors"

	"media-catalog/internal/analyzer"
	"media-catalog/internal/database"
	"media-catalog/internal/filesystem"
	"media-catalog/internal/transcoder"
)

// Error taxonomy. Each kind maps to a fixed handling policy:
//
//   - IOError: the file is unreadable or missing; that file's ingestion is
//     abandoned.
//   - ErrConflict: the catalog rejected a duplicate; resolved as a duplicate
//     and never reported as a failure.
//   - TranscodeError, ErrAnalysisUnavailable: enrichment degraded; logged
//     and retried on a later pass.
//   - ErrNotFound: the target item was deleted concurrently; a no-op.
type (
	IOError        = filesystem.IOError
	TranscodeError = transcoder.TranscodeError
)

var (
	ErrConflict            = database.ErrConflict
	ErrNotFound            = database.ErrNotFound
	ErrAnalysisUnavailable = analyzer.ErrAnalysisUnavailable

	// ErrUnsupportedKind rejects a candidate whose extension maps to no
	// media kind.
	ErrUnsupportedKind = errors.New("unsupported media type")
	// ErrNameTaken rejects a candidate whose storage name is catalogued
	// with different content.
	ErrNameTaken = errors.New("storage name already catalogued with different content")
	// ErrPoolClosed is returned when submitting to a stopped pool.
	ErrPoolClosed = errors.New("worker pool stopped")
)

// Severity classifies a per-file result for batch reporting.
type Severity int

const (
	// Success covers every outcome that leaves the catalog consistent,
	// including duplicates.
	Success Severity = iota
	// Recoverable failures are local to one file and may succeed on a later
	// attempt.
	Recoverable
	// Fatal failures come from the catalog itself.
	Fatal
)

func (s Severity) String() string {
	switch s {
	case Success:
		return "success"
	case Recoverable:
		return "recoverable"
	default:
		return "fatal"
	}
}
