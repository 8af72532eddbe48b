package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"media-catalog/internal/ingest"
	"media-catalog/internal/logging"
	"media-catalog/internal/mediatypes"
	"media-catalog/internal/metrics"
)

// Sweep triggers.
const (
	TriggerStartup  = "startup"
	TriggerInterval = "interval"
	TriggerManual   = "manual"
)

// maxReportedErrors bounds the error messages kept in a sweep summary.
const maxReportedErrors = 20

// ErrSweepInProgress is returned when a sweep is requested while one runs.
var ErrSweepInProgress = errors.New("sweep already in progress")

// Reconciler brings one library file into a consistent state.
// ingest.Coordinator satisfies it.
type Reconciler interface {
	Reconcile(ctx context.Context, path string) ingest.Result
	LibraryDir() string
}

// SweepStore persists when the last sweep finished.
type SweepStore interface {
	GetLastSweep(ctx context.Context) (time.Time, error)
	SetLastSweep(ctx context.Context, t time.Time) error
}

// Config configures the Indexer.
type Config struct {
	// Workers bounds how many files are reconciled at once.
	Workers int
	// Interval between periodic sweeps; 0 disables them.
	Interval time.Duration
	// OnStartup runs a sweep as soon as Start is called.
	OnStartup bool
	// Filter selects the library entries that are reconciled.
	Filter mediatypes.Filter
}

// Indexer schedules and runs reconciliation sweeps.
type Indexer struct {
	rec   Reconciler
	store SweepStore
	cfg   Config

	mu                   sync.Mutex
	sweeping             bool
	lastSweep            time.Time
	lastSummary          *SweepSummary
	initialSweepComplete bool
	initialSweepError    error
	startTime            time.Time

	filesSeen atomic.Int64

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once

	// Callback when a sweep completes
	onSweepComplete func(*SweepSummary)
}

// SweepSummary describes a finished sweep.
type SweepSummary struct {
	Trigger    string    `json:"trigger"`
	StartedAt  time.Time `json:"startedAt"`
	Duration   string    `json:"duration"`
	Processed  int       `json:"processed"`
	Created    int       `json:"created"`
	Duplicates int       `json:"duplicates"`
	Backfilled int       `json:"backfilled"`
	Resumed    int       `json:"resumed"`
	Rejected   int       `json:"rejected"`
	Failed     int       `json:"failed"`
	Errors     []string  `json:"errors,omitempty"`
}

// HealthStatus contains health check information.
type HealthStatus struct {
	Ready             bool          `json:"ready"`
	Sweeping          bool          `json:"sweeping"`
	StartTime         time.Time     `json:"startTime"`
	Uptime            string        `json:"uptime"`
	LastSweep         time.Time     `json:"lastSweep,omitempty"`
	InitialSweepError string        `json:"initialSweepError,omitempty"`
	FilesSeen         int64         `json:"filesSeen"`
	LastSummary       *SweepSummary `json:"lastSummary,omitempty"`
}

// New creates a new Indexer. store may be nil.
func New(rec Reconciler, store SweepStore, cfg Config) *Indexer {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Indexer{
		rec:       rec,
		store:     store,
		cfg:       cfg,
		startTime: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// SetOnSweepComplete sets a callback invoked after every sweep.
func (idx *Indexer) SetOnSweepComplete(callback func(*SweepSummary)) {
	idx.onSweepComplete = callback
}

// Start runs the startup sweep, if configured, and the periodic sweep loop
// in the background.
func (idx *Indexer) Start() {
	if idx.store != nil {
		if last, err := idx.store.GetLastSweep(idx.ctx); err != nil {
			logging.Warn("Could not read last sweep time: %v", err)
		} else {
			idx.mu.Lock()
			idx.lastSweep = last
			idx.mu.Unlock()
		}
	}

	if idx.cfg.OnStartup {
		idx.wg.Add(1)
		go func() {
			defer idx.wg.Done()
			logging.Info("Starting startup sweep in background...")
			_, err := idx.Sweep(idx.ctx, TriggerStartup)
			idx.mu.Lock()
			idx.initialSweepComplete = true
			idx.initialSweepError = err
			idx.mu.Unlock()
			if err != nil {
				logging.Error("Startup sweep error: %v", err)
			}
		}()
	} else {
		idx.mu.Lock()
		idx.initialSweepComplete = true
		idx.mu.Unlock()
	}

	if idx.cfg.Interval > 0 {
		idx.wg.Add(1)
		go idx.periodicSweep()
	}
}

// Stop cancels a running sweep and waits for background work to end.
func (idx *Indexer) Stop() {
	idx.stopOnce.Do(idx.cancel)
	idx.wg.Wait()
}

func (idx *Indexer) periodicSweep() {
	defer idx.wg.Done()
	logging.Info("Periodic sweep every %v", idx.cfg.Interval)

	ticker := time.NewTicker(idx.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			logging.Debug("Periodic sweep triggered")
			if _, err := idx.Sweep(idx.ctx, TriggerInterval); err != nil && !errors.Is(err, ErrSweepInProgress) {
				logging.Error("Periodic sweep failed: %v", err)
			}
		case <-idx.ctx.Done():
			return
		}
	}
}

// Trigger starts a sweep in the background. It returns ErrSweepInProgress
// when one is already running.
func (idx *Indexer) Trigger() error {
	if idx.IsSweeping() {
		return ErrSweepInProgress
	}
	idx.wg.Add(1)
	go func() {
		defer idx.wg.Done()
		if _, err := idx.Sweep(idx.ctx, TriggerManual); err != nil && !errors.Is(err, ErrSweepInProgress) {
			logging.Error("Manually triggered sweep failed: %v", err)
		}
	}()
	return nil
}

// Sweep reconciles every candidate file in the library root. Per-file
// failures are collected in the summary; the returned error is non-nil only
// when the sweep itself could not run.
func (idx *Indexer) Sweep(ctx context.Context, trigger string) (*SweepSummary, error) {
	if !idx.tryStartSweep() {
		logging.Info("Sweep already in progress, skipping...")
		return nil, ErrSweepInProgress
	}
	defer idx.finishSweep()

	metrics.SweepRunning.Set(1)
	defer metrics.SweepRunning.Set(0)
	metrics.SweepRunsTotal.WithLabelValues(trigger).Inc()

	start := time.Now()
	root := idx.rec.LibraryDir()
	logging.Info("Starting %s sweep of %s", trigger, root)

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("reading library directory: %w", err)
	}

	report := ingest.NewBatchReport()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.cfg.Workers)

	for _, entry := range entries {
		if gctx.Err() != nil {
			break
		}
		name := entry.Name()
		if !entry.Type().IsRegular() || !idx.cfg.Filter.Accept(name) {
			if !entry.IsDir() && !mediatypes.IsHidden(name) {
				metrics.SweepFilesTotal.WithLabelValues("skipped").Inc()
			}
			continue
		}

		path := filepath.Join(root, name)
		idx.filesSeen.Add(1)
		g.Go(func() error {
			res := idx.rec.Reconcile(gctx, path)
			report.Add(res)
			metrics.SweepFilesTotal.WithLabelValues(sweepResult(res)).Inc()
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		logging.Warn("Sweep interrupted after %d files: %v", report.Processed(), err)
		return summarize(trigger, start, report), err
	}

	summary := idx.finalizeSweep(trigger, start, report)
	return summary, nil
}

func sweepResult(res ingest.Result) string {
	switch res.Outcome {
	case ingest.Created, ingest.Backfilled:
		return "ingested"
	case ingest.AlreadyCatalogued:
		return "resumed"
	case ingest.Failed:
		return "error"
	default:
		return "skipped"
	}
}

func summarize(trigger string, start time.Time, report *ingest.BatchReport) *SweepSummary {
	s := &SweepSummary{
		Trigger:    trigger,
		StartedAt:  start,
		Duration:   time.Since(start).String(),
		Processed:  report.Processed(),
		Created:    report.Count(ingest.Created),
		Duplicates: report.Count(ingest.Duplicate),
		Backfilled: report.Count(ingest.Backfilled),
		Resumed:    report.Count(ingest.AlreadyCatalogued),
		Rejected:   report.Count(ingest.Rejected),
		Failed:     report.Count(ingest.Failed),
	}
	msgs := report.Errors()
	if len(msgs) > maxReportedErrors {
		msgs = msgs[len(msgs)-maxReportedErrors:]
	}
	s.Errors = msgs
	return s
}

// finalizeSweep records the finished sweep in memory, in the store and in
// metrics.
func (idx *Indexer) finalizeSweep(trigger string, start time.Time, report *ingest.BatchReport) *SweepSummary {
	summary := summarize(trigger, start, report)
	finished := time.Now()
	duration := finished.Sub(start)

	idx.mu.Lock()
	idx.lastSweep = finished
	idx.lastSummary = summary
	idx.mu.Unlock()

	if idx.store != nil {
		if err := idx.store.SetLastSweep(context.WithoutCancel(idx.ctx), finished); err != nil {
			logging.Warn("Could not record sweep time: %v", err)
		}
	}

	metrics.SweepLastRunTimestamp.Set(float64(finished.Unix()))
	metrics.SweepLastDuration.Set(duration.Seconds())

	logging.Info("Sweep complete in %v: %d files, %d created, %d duplicates, %d backfilled, %d resumed, %d failed",
		duration, summary.Processed, summary.Created, summary.Duplicates, summary.Backfilled, summary.Resumed, summary.Failed)
	if err := report.Err("sweep"); err != nil {
		logging.Warn("%v", err)
	}

	if idx.onSweepComplete != nil {
		idx.onSweepComplete(summary)
	}
	return summary
}

// tryStartSweep attempts to start a sweep, returns false if one is running.
func (idx *Indexer) tryStartSweep() bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.sweeping {
		return false
	}
	idx.sweeping = true
	return true
}

func (idx *Indexer) finishSweep() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.sweeping = false
}

// IsSweeping returns whether a sweep is currently running.
func (idx *Indexer) IsSweeping() bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.sweeping
}

// LastSweep returns when the last sweep finished.
func (idx *Indexer) LastSweep() time.Time {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.lastSweep
}

// IsReady returns true once the startup sweep, if any, has finished.
func (idx *Indexer) IsReady() bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.initialSweepComplete
}

// GetHealthStatus returns detailed health information.
func (idx *Indexer) GetHealthStatus() HealthStatus {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	status := HealthStatus{
		Ready:       idx.initialSweepComplete,
		Sweeping:    idx.sweeping,
		StartTime:   idx.startTime,
		Uptime:      time.Since(idx.startTime).String(),
		LastSweep:   idx.lastSweep,
		FilesSeen:   idx.filesSeen.Load(),
		LastSummary: idx.lastSummary,
	}
	if idx.initialSweepError != nil {
		status.InitialSweepError = idx.initialSweepError.Error()
	}
	return status
}
