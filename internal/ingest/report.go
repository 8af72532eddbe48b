package ingest

import (
	"fmt"
	"sync"

	"media-catalog/internal/database"
)

// Outcome is where a candidate ended up.
type Outcome string

const (
	Created           Outcome = "created"
	Duplicate         Outcome = "duplicate"
	Backfilled        Outcome = "backfilled"
	AlreadyCatalogued Outcome = "already_catalogued"
	Rejected          Outcome = "rejected"
	Failed            Outcome = "failed"
)

// Result is the typed outcome of ingesting one candidate.
type Result struct {
	Candidate Candidate
	Outcome   Outcome
	Severity  Severity
	// Item is the catalogued item the candidate resolved to: the new row,
	// the pre-existing row for duplicates, or nil on failure.
	Item *database.MediaItem
	Err  error
}

// OK reports whether the catalog is consistent for this candidate.
func (r Result) OK() bool {
	return r.Severity == Success
}

func succeeded(c Candidate, o Outcome, item *database.MediaItem) Result {
	return Result{Candidate: c, Outcome: o, Severity: Success, Item: item}
}

func failed(c Candidate, o Outcome, sev Severity, err error) Result {
	return Result{Candidate: c, Outcome: o, Severity: sev, Err: err}
}

// BatchReport collects per-item results of an upload batch, a sweep or a
// maintenance run. Failures are counted and kept as messages; nothing
// added to a report ever stops the batch. Safe for concurrent use.
type BatchReport struct {
	mu        sync.Mutex
	results   []Result
	counts    map[Outcome]int
	processed int
	messages  []string
	errCount  int
	lastErr   error
}

// NewBatchReport returns an empty report.
func NewBatchReport() *BatchReport {
	return &BatchReport{counts: make(map[Outcome]int)}
}

// Add records an ingestion result.
func (b *BatchReport) Add(r Result) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.results = append(b.results, r)
	b.counts[r.Outcome]++
	b.processed++
	if r.Err != nil && r.Severity != Success {
		b.recordLocked(subject(r.Candidate), r.Err)
	}
}

// AddError records a failure that is not tied to an ingestion result, such
// as an enrichment step. nil is ignored.
func (b *BatchReport) AddError(subject string, err error) {
	if err == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recordLocked(subject, err)
}

func (b *BatchReport) recordLocked(subject string, err error) {
	b.errCount++
	b.lastErr = err
	b.messages = append(b.messages, fmt.Sprintf("%s: %v", subject, err))
}

func (b *BatchReport) addProcessed() {
	b.mu.Lock()
	b.processed++
	b.mu.Unlock()
}

// Processed returns how many items the batch handled.
func (b *BatchReport) Processed() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.processed
}

// Count returns how many results had outcome o.
func (b *BatchReport) Count(o Outcome) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts[o]
}

// Results returns a copy of the recorded results in insertion order.
func (b *BatchReport) Results() []Result {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Result, len(b.results))
	copy(out, b.results)
	return out
}

// Errors returns one message per recorded failure.
func (b *BatchReport) Errors() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.messages))
	copy(out, b.messages)
	return out
}

// ErrorCount returns the number of recorded failures.
func (b *BatchReport) ErrorCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.errCount
}

// Err summarises the failures so far, or returns nil:
//
//	txt: %w                             one failure
//	txt: %d errors: last error: %w      several
func (b *BatchReport) Err(txt string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.errCount {
	case 0:
		return nil
	case 1:
		return fmt.Errorf("%s: %w", txt, b.lastErr)
	default:
		return fmt.Errorf("%s: %d errors: last error: %w", txt, b.errCount, b.lastErr)
	}
}

func subject(c Candidate) string {
	if c.OriginalName != "" {
		return c.OriginalName
	}
	if c.SuggestedName != "" {
		return c.SuggestedName
	}
	return c.Path
}
