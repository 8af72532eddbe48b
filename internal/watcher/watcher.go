package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"media-catalog/internal/ingest"
	"media-catalog/internal/logging"
	"media-catalog/internal/mediatypes"
	"media-catalog/internal/metrics"
)

// Emitter receives settled files. ingest.Coordinator satisfies it.
type Emitter interface {
	Enqueue(ctx context.Context, cand ingest.Candidate) error
}

// Config configures a Watcher.
type Config struct {
	// Root is the library directory. Only files directly inside it are
	// watched; hidden entries, including the staging directory, are ignored.
	Root           string
	SettleDelay    time.Duration // default 2s
	SettleAttempts int           // default 5
	// Filter selects the files handed to ingestion.
	Filter mediatypes.Filter
}

// Watcher watches the library root and emits settled candidate files.
type Watcher struct {
	root     string
	delay    time.Duration
	attempts int
	filter   mediatypes.Filter
	emit     Emitter
	log      *zap.SugaredLogger

	// pending holds paths currently settling. Repeated events for a
	// pending path are absorbed.
	pending *cache.Cache

	fsw    *fsnotify.Watcher
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// New creates a Watcher. Call Start to begin watching.
func New(cfg Config, emit Emitter) (*Watcher, error) {
	if cfg.Root == "" {
		return nil, errors.New("watch root is required")
	}
	if emit == nil {
		return nil, errors.New("emitter is required")
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = 2 * time.Second
	}
	if cfg.SettleAttempts <= 0 {
		cfg.SettleAttempts = 5
	}

	ttl := cfg.SettleDelay * time.Duration(cfg.SettleAttempts+1)
	return &Watcher{
		root:     filepath.Clean(cfg.Root),
		delay:    cfg.SettleDelay,
		attempts: cfg.SettleAttempts,
		filter:   cfg.Filter,
		emit:     emit,
		log:      logging.Named("watcher"),
		pending:  cache.New(ttl, ttl),
	}, nil
}

// Start begins watching. It returns once the root is registered; events are
// processed in the background until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fsw != nil {
		return errors.New("watcher already started")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		metrics.WatcherErrors.Inc()
		return err
	}
	if err := fsw.Add(w.root); err != nil {
		metrics.WatcherErrors.Inc()
		fsw.Close()
		return err
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.fsw = fsw

	w.wg.Add(1)
	go w.loop(ctx, fsw)

	w.log.Infow("watching library", "root", w.root, "settle_delay", w.delay, "settle_attempts", w.attempts)
	return nil
}

// Stop stops watching and waits for settling files to finish or give up.
func (w *Watcher) Stop() {
	w.mu.Lock()
	fsw, cancel := w.fsw, w.cancel
	w.fsw, w.cancel = nil, nil
	w.mu.Unlock()
	if fsw == nil {
		return
	}

	cancel()
	if err := fsw.Close(); err != nil {
		w.log.Warnw("closing fsnotify watcher", "error", err)
	}
	w.wg.Wait()
	w.log.Info("watcher stopped")
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, event)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.log.Errorw("watcher error", "error", err)
			metrics.WatcherErrors.Inc()
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	metrics.WatcherEventsTotal.WithLabelValues(eventType(event.Op)).Inc()

	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	if filepath.Dir(event.Name) != w.root || !w.filter.Accept(event.Name) {
		return
	}

	// Add fails while the path is already settling.
	if err := w.pending.Add(event.Name, struct{}{}, cache.DefaultExpiration); err != nil {
		return
	}
	metrics.WatcherPending.Inc()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer func() {
			w.pending.Delete(event.Name)
			metrics.WatcherPending.Dec()
		}()
		w.settle(ctx, event.Name)
	}()
}

// settle samples the size of path until it is non-zero and stable, then
// emits it.
func (w *Watcher) settle(ctx context.Context, path string) {
	timer := time.NewTimer(w.delay)
	defer timer.Stop()

	last := int64(-1)
	for i := 0; i < w.attempts; i++ {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			w.drop(path, "vanished")
			return
		}

		size := info.Size()
		if size > 0 && size == last {
			w.log.Debugw("file settled", "path", path, "size", size)
			if err := w.emit.Enqueue(ctx, ingest.Candidate{Path: path, Source: ingest.SourceWatch}); err != nil {
				w.log.Warnw("could not queue settled file", "path", path, "error", err)
			}
			return
		}
		last = size
		timer.Reset(w.delay)
	}

	if last == 0 {
		w.drop(path, "empty")
	} else {
		w.drop(path, "unstable")
	}
}

func (w *Watcher) drop(path, reason string) {
	metrics.WatcherDropped.WithLabelValues(reason).Inc()
	w.log.Warnw("dropping file, left for the next sweep", "path", path, "reason", reason)
}

func eventType(op fsnotify.Op) string {
	switch {
	case op.Has(fsnotify.Create):
		return "create"
	case op.Has(fsnotify.Write):
		return "write"
	case op.Has(fsnotify.Remove):
		return "remove"
	case op.Has(fsnotify.Rename):
		return "rename"
	case op.Has(fsnotify.Chmod):
		return "chmod"
	default:
		return "unknown"
	}
}
