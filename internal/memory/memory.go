package memory

import (
	"context"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"

	"media-catalog/internal/logging"
	"media-catalog/internal/metrics"
)

// Config sets the thresholds of a Monitor.
type Config struct {
	// Limit is the heap budget in bytes; 0 uses the runtime memory limit.
	Limit int64
	// Enrichment pauses at CriticalWaterMark and resumes once usage falls
	// below HighWaterMark.
	HighWaterMark     float64
	CriticalWaterMark float64
	CheckInterval     time.Duration
}

// DefaultConfig returns the thresholds used by the server.
func DefaultConfig() Config {
	return Config{
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     5 * time.Second,
	}
}

// Monitor samples heap usage and gates background work while it is
// critical. Work is never refused, only delayed.
type Monitor struct {
	cfg    Config
	limit  int64
	sample func() uint64
	log    *zap.SugaredLogger

	mu      sync.RWMutex
	current uint64
	paused  bool
	resume  chan struct{}

	stop     chan struct{}
	stopOnce sync.Once
}

// NewMonitor creates a Monitor. Without a limit it never pauses.
func NewMonitor(cfg Config) *Monitor {
	def := DefaultConfig()
	if cfg.HighWaterMark <= 0 {
		cfg.HighWaterMark = def.HighWaterMark
	}
	if cfg.CriticalWaterMark <= 0 {
		cfg.CriticalWaterMark = def.CriticalWaterMark
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = def.CheckInterval
	}

	m := &Monitor{
		cfg:    cfg,
		limit:  cfg.Limit,
		sample: heapAlloc,
		log:    logging.Named("memory"),
		resume: make(chan struct{}),
		stop:   make(chan struct{}),
	}
	if m.limit == 0 {
		if l := debug.SetMemoryLimit(-1); l > 0 && l < 1<<62 {
			m.limit = l
		}
	}
	if m.limit == 0 {
		m.log.Info("no memory limit configured, enrichment backpressure disabled")
	}
	return m
}

func heapAlloc() uint64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.Alloc
}

// Start begins periodic sampling.
func (m *Monitor) Start() {
	if m.limit == 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(m.cfg.CheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.check()
			case <-m.stop:
				return
			}
		}
	}()
}

// Stop ends sampling and releases every waiter.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *Monitor) check() {
	alloc := m.sample()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.current = alloc
	if m.limit <= 0 {
		return
	}
	usage := float64(alloc) / float64(m.limit)
	metrics.MemoryUsageRatio.Set(usage)

	switch {
	case !m.paused && usage >= m.cfg.CriticalWaterMark:
		m.paused = true
		metrics.MemoryPaused.Set(1)
		metrics.MemoryPausesTotal.Inc()
		m.log.Warnw("memory critical, pausing enrichment", "usage", usage, "alloc", alloc)
		go runtime.GC()
	case m.paused && usage < m.cfg.HighWaterMark:
		m.paused = false
		metrics.MemoryPaused.Set(0)
		close(m.resume)
		m.resume = make(chan struct{})
		m.log.Infow("memory recovered, resuming enrichment", "usage", usage)
	}
}

// Wait blocks while usage is critical. It returns ctx.Err() if ctx ends
// first, and nil once work may proceed or the monitor is stopped.
func (m *Monitor) Wait(ctx context.Context) error {
	m.mu.RLock()
	paused, resume := m.paused, m.resume
	m.mu.RUnlock()
	if !paused {
		return nil
	}

	select {
	case <-resume:
		return nil
	case <-m.stop:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Paused reports whether background work is currently held back.
func (m *Monitor) Paused() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.paused
}

// Usage returns the last sampled heap allocation as a fraction of the
// limit, or 0 without a limit.
func (m *Monitor) Usage() float64 {
	if m.limit <= 0 {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return float64(m.current) / float64(m.limit)
}
