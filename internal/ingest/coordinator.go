package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"media-catalog/internal/analyzer"
	"media-catalog/internal/database"
	"media-catalog/internal/filesystem"
	"media-catalog/internal/logging"
	"media-catalog/internal/media"
	"media-catalog/internal/mediatypes"
	"media-catalog/internal/metrics"
)

// StagingDirName is the hidden directory under the library root where
// uploads are written before they are catalogued.
const StagingDirName = ".staging"

// Source identifies which adapter produced a candidate.
type Source string

const (
	SourceUpload Source = "upload"
	SourceWatch  Source = "watch"
	SourceSweep  Source = "sweep"
	SourceCLI    Source = "cli"
)

// Candidate is a file offered for ingestion.
type Candidate struct {
	// Path is where the file is now.
	Path string
	// SuggestedName is the storage name to catalogue it under. Defaults to
	// the base name of Path.
	SuggestedName string
	// OriginalName is the user-facing name. Defaults to SuggestedName.
	OriginalName string
	// Digest and Size may be supplied when the caller hashed the content
	// while writing it.
	Digest   string
	Size     int64
	MimeType string
	Source   Source
}

// Catalog is the store the coordinator consults and mutates. It is the
// arbiter of uniqueness.
type Catalog interface {
	FindByStorageName(ctx context.Context, name string) (*database.MediaItem, error)
	FindByHash(ctx context.Context, digest string) (*database.MediaItem, error)
	FindByID(ctx context.Context, id int64) (*database.MediaItem, error)
	Insert(ctx context.Context, item database.MediaItem) (*database.MediaItem, error)
	UpdateEnrichment(ctx context.Context, id int64, e database.Enrichment) error
	UpdateHash(ctx context.Context, id int64, digest string) error
	Delete(ctx context.Context, id int64) error
	ListItems(ctx context.Context, afterID int64, limit int) ([]database.MediaItem, error)
	ListUnanalyzed(ctx context.Context, afterID int64, limit int) ([]database.MediaItem, error)
}

// ContentHasher computes content digests.
type ContentHasher interface {
	HashFile(ctx context.Context, path string) (string, int64, error)
}

// Derivatives produces and removes derivative artifacts.
type Derivatives interface {
	EnsureDerivatives(ctx context.Context, path, storageName string, kind mediatypes.Kind) media.DerivativeResult
	Dimensions(ctx context.Context, path string, kind mediatypes.Kind) (int, int, error)
	RemoveDerivatives(storageName string) error
}

// ContentAnalyzer analyses image content.
type ContentAnalyzer interface {
	Analyze(ctx context.Context, path string) (analyzer.Result, error)
}

// Gate holds back enrichment work, for example under memory pressure.
// memory.Monitor satisfies it.
type Gate interface {
	Wait(ctx context.Context) error
}

// Config sizes the coordinator.
type Config struct {
	LibraryDir    string
	IngestWorkers int
	EnrichWorkers int
	QueueSize     int
	// EnrichGate, if set, is waited on before every enrichment task.
	EnrichGate Gate
}

// Coordinator drives candidates from discovery to a catalogued, enriched
// item. Every actor (upload, watcher, sweep, CLI) goes through the same
// Coordinator, which tolerates all of them running at once.
type Coordinator struct {
	cfg         Config
	catalog     Catalog
	hasher      ContentHasher
	derivatives Derivatives
	analyzer    ContentAnalyzer
	retry       filesystem.RetryConfig
	log         *zap.SugaredLogger

	// locks serialises ingestion and deletion per storage name.
	locks *keyedMutex

	ingestPool *Pool
	enrichPool *Pool

	// scheduled holds enrichment tasks queued or running, so repeated
	// discovery of one item does not queue duplicate work.
	scheduled sync.Map
}

// New wires a Coordinator and starts its worker pools. an may be nil, in
// which case items are never analysed.
func New(cfg Config, catalog Catalog, hasher ContentHasher, derivatives Derivatives, an ContentAnalyzer) (*Coordinator, error) {
	if cfg.LibraryDir == "" {
		return nil, errors.New("library directory is required")
	}
	cfg.LibraryDir = filepath.Clean(cfg.LibraryDir)
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}

	if err := os.MkdirAll(filepath.Join(cfg.LibraryDir, StagingDirName), 0o755); err != nil {
		return nil, fmt.Errorf("creating staging directory: %w", err)
	}

	c := &Coordinator{
		cfg:         cfg,
		catalog:     catalog,
		hasher:      hasher,
		derivatives: derivatives,
		analyzer:    an,
		retry:       filesystem.DefaultRetryConfig(),
		log:         logging.Named("ingest"),
		locks:       newKeyedMutex(),
	}
	c.ingestPool = NewPool("ingest", cfg.IngestWorkers, cfg.QueueSize)
	c.enrichPool = NewPool("enrich", cfg.EnrichWorkers, cfg.QueueSize)
	return c, nil
}

// LibraryDir returns the library root.
func (c *Coordinator) LibraryDir() string {
	return c.cfg.LibraryDir
}

// StagingDir returns the directory uploads are written to before ingestion.
func (c *Coordinator) StagingDir() string {
	return filepath.Join(c.cfg.LibraryDir, StagingDirName)
}

// LibraryPath returns the canonical location of a catalogued original.
func (c *Coordinator) LibraryPath(storageName string) string {
	return filepath.Join(c.cfg.LibraryDir, storageName)
}

// Enqueue hands a candidate to the ingest pool, blocking while the queue is
// full. The result is logged and counted, not returned.
func (c *Coordinator) Enqueue(ctx context.Context, cand Candidate) error {
	return c.ingestPool.Submit(ctx, func(ctx context.Context) error {
		return c.Ingest(ctx, cand).Err
	})
}

// Wait blocks until queued ingestion and the enrichment it scheduled have
// finished.
func (c *Coordinator) Wait() {
	c.ingestPool.Wait()
	c.enrichPool.Wait()
}

// Stop drains the ingest pool, then the enrichment pool.
func (c *Coordinator) Stop(ctx context.Context) error {
	return errors.Join(c.ingestPool.Stop(ctx), c.enrichPool.Stop(ctx))
}

// Ingest brings one candidate into the catalog. The decision whether it is
// new, a duplicate or already catalogued is made synchronously; derivative
// generation and analysis are scheduled on the enrichment pool.
func (c *Coordinator) Ingest(ctx context.Context, cand Candidate) (res Result) {
	start := time.Now()
	if cand.Source == "" {
		cand.Source = SourceCLI
	}
	if cand.SuggestedName == "" {
		cand.SuggestedName = filepath.Base(cand.Path)
	}
	if cand.OriginalName == "" {
		cand.OriginalName = cand.SuggestedName
	}
	cand.Path = filepath.Clean(cand.Path)

	defer func() {
		metrics.IngestTotal.WithLabelValues(string(cand.Source), string(res.Outcome)).Inc()
		metrics.IngestDuration.WithLabelValues(string(cand.Source)).Observe(time.Since(start).Seconds())
		c.logResult(res)
	}()

	kind := mediatypes.KindForName(cand.SuggestedName)
	if kind == mediatypes.KindUnsupported {
		return failed(cand, Rejected, Recoverable, fmt.Errorf("%w: %s", ErrUnsupportedKind, mediatypes.Ext(cand.SuggestedName)))
	}

	c.locks.Lock(cand.SuggestedName)
	defer c.locks.Unlock(cand.SuggestedName)

	digest, size := cand.Digest, cand.Size
	if digest == "" {
		var err error
		if digest, size, err = c.hasher.HashFile(ctx, cand.Path); err != nil {
			return failed(cand, Failed, Recoverable, err)
		}
		cand.Digest, cand.Size = digest, size
	}

	existing, err := c.catalog.FindByHash(ctx, digest)
	switch {
	case err == nil:
		return c.resolveDuplicate(ctx, cand, existing)
	case !errors.Is(err, ErrNotFound):
		return failed(cand, Failed, Fatal, fmt.Errorf("looking up digest: %w", err))
	}

	byName, err := c.catalog.FindByStorageName(ctx, cand.SuggestedName)
	switch {
	case err == nil:
		return c.resolveNameMatch(ctx, cand, byName)
	case !errors.Is(err, ErrNotFound):
		return failed(cand, Failed, Fatal, fmt.Errorf("looking up storage name: %w", err))
	}

	return c.insertNew(ctx, cand, kind)
}

// resolveDuplicate handles a candidate whose digest is already catalogued.
// The candidate is the catalogued original itself when it sits at that
// item's canonical path. A file that is the original of some other row is
// left alone: originals only go away with their row, through Delete. Any
// other copy is discarded.
func (c *Coordinator) resolveDuplicate(ctx context.Context, cand Candidate, existing *database.MediaItem) Result {
	if cand.Path == c.LibraryPath(existing.StorageName) {
		c.ResumeEnrichment(existing)
		return succeeded(cand, AlreadyCatalogued, existing)
	}

	if cand.Path == c.LibraryPath(cand.SuggestedName) {
		owner, err := c.catalog.FindByStorageName(ctx, cand.SuggestedName)
		switch {
		case err == nil:
			c.log.Infow("catalogued original duplicates another item",
				"path", cand.Path, "item", owner.ID, "duplicate_of", existing.ID)
			return succeeded(cand, Duplicate, existing)
		case !errors.Is(err, ErrNotFound):
			return failed(cand, Failed, Fatal, fmt.Errorf("looking up storage name: %w", err))
		}
	}

	if err := filesystem.RemoveIfExists(ctx, cand.Path, c.retry); err != nil {
		c.log.Warnw("could not discard duplicate", "path", cand.Path, "error", err)
	}
	return succeeded(cand, Duplicate, existing)
}

// resolveNameMatch handles a candidate whose storage name is catalogued but
// whose digest is not. A row without a digest predates hashing and gains
// this one; a row with a different digest keeps its name.
func (c *Coordinator) resolveNameMatch(ctx context.Context, cand Candidate, item *database.MediaItem) Result {
	if item.HasHash() {
		return failed(cand, Rejected, Recoverable, fmt.Errorf("%w: %s", ErrNameTaken, cand.SuggestedName))
	}
	if cand.Path != c.LibraryPath(item.StorageName) {
		return c.backfillFromOriginal(ctx, cand, item)
	}

	err := c.catalog.UpdateHash(ctx, item.ID, cand.Digest)
	switch {
	case err == nil:
		item.ContentHash = cand.Digest
		c.ResumeEnrichment(item)
		return succeeded(cand, Backfilled, item)
	case errors.Is(err, ErrConflict):
		// Another row took this digest after our lookup.
		winner, ferr := c.catalog.FindByHash(ctx, cand.Digest)
		if ferr != nil {
			return failed(cand, Failed, Recoverable, fmt.Errorf("backfill conflict: %w", err))
		}
		return c.resolveDuplicate(ctx, cand, winner)
	default:
		return failed(cand, Failed, Fatal, fmt.Errorf("backfilling digest: %w", err))
	}
}

// backfillFromOriginal handles a candidate that shares its name with a
// legacy row but is not that row's file. The row's digest is taken from its
// own original; the candidate is a duplicate only when the contents match,
// and is otherwise refused the name.
func (c *Coordinator) backfillFromOriginal(ctx context.Context, cand Candidate, item *database.MediaItem) Result {
	original := c.LibraryPath(item.StorageName)
	digest, _, err := c.hasher.HashFile(ctx, original)
	if err != nil {
		return failed(cand, Rejected, Recoverable, fmt.Errorf("%w: %s (original unreadable: %v)", ErrNameTaken, cand.SuggestedName, err))
	}

	switch err := c.catalog.UpdateHash(ctx, item.ID, digest); {
	case err == nil:
		item.ContentHash = digest
		c.ResumeEnrichment(item)
	case errors.Is(err, ErrConflict):
		c.log.Infow("legacy original duplicates another item", "item", item.ID, "path", original)
	default:
		c.log.Warnw("could not backfill digest", "item", item.ID, "error", err)
	}

	if digest == cand.Digest {
		return c.resolveDuplicate(ctx, cand, item)
	}
	return failed(cand, Rejected, Recoverable, fmt.Errorf("%w: %s", ErrNameTaken, cand.SuggestedName))
}

// insertNew places the file at its canonical path and records it. If the
// catalog reports a conflict, another actor won the race and the candidate
// is resolved as a duplicate of the winner.
func (c *Coordinator) insertNew(ctx context.Context, cand Candidate, kind mediatypes.Kind) Result {
	canonical := c.LibraryPath(cand.SuggestedName)
	moved := false
	if cand.Path != canonical {
		if _, err := os.Lstat(canonical); err == nil {
			return failed(cand, Rejected, Recoverable, fmt.Errorf("%w: %s exists", ErrNameTaken, canonical))
		}
		if err := os.Rename(cand.Path, canonical); err != nil {
			return failed(cand, Failed, Recoverable, &IOError{Op: "place", Path: cand.Path, Err: err})
		}
		moved = true
	}

	// Put the file back where it came from when the row cannot be written,
	// so a failed upload does not leave an uncatalogued original behind.
	unplace := func() {
		if moved {
			if err := os.Rename(canonical, cand.Path); err != nil {
				c.log.Warnw("could not return file to its origin", "path", canonical, "error", err)
			}
		}
	}

	width, height, err := c.derivatives.Dimensions(ctx, canonical, kind)
	if err != nil {
		c.log.Warnw("could not read dimensions", "path", canonical, "error", err)
	}

	mimeType := cand.MimeType
	if mimeType == "" || mediatypes.KindForMime(mimeType) != kind {
		mimeType = mediatypes.GetMimeType(mediatypes.Ext(cand.SuggestedName))
	}

	item, err := c.catalog.Insert(ctx, database.MediaItem{
		StorageName:  cand.SuggestedName,
		OriginalName: cand.OriginalName,
		Kind:         kind,
		ContentHash:  cand.Digest,
		MimeType:     mimeType,
		Width:        width,
		Height:       height,
		ByteSize:     cand.Size,
	})
	switch {
	case err == nil:
	case errors.Is(err, ErrConflict):
		unplace()
		winner, ferr := c.catalog.FindByHash(ctx, cand.Digest)
		if ferr != nil {
			return failed(cand, Failed, Recoverable, fmt.Errorf("insert conflict: %w", err))
		}
		return c.resolveDuplicate(ctx, cand, winner)
	default:
		unplace()
		return failed(cand, Failed, Fatal, fmt.Errorf("inserting item: %w", err))
	}

	c.ResumeEnrichment(item)
	return succeeded(cand, Created, item)
}

// Reconcile is the sweep's entry point. A library file whose name resolves
// to a row that already carries a digest only has its enrichment resumed;
// anything else goes through Ingest.
func (c *Coordinator) Reconcile(ctx context.Context, path string) Result {
	path = filepath.Clean(path)
	name := filepath.Base(path)
	if path == c.LibraryPath(name) {
		item, err := c.catalog.FindByStorageName(ctx, name)
		if err == nil && item.HasHash() {
			c.ResumeEnrichment(item)
			res := succeeded(Candidate{Path: path, SuggestedName: name, OriginalName: item.OriginalName, Source: SourceSweep}, AlreadyCatalogued, item)
			metrics.IngestTotal.WithLabelValues(string(SourceSweep), string(AlreadyCatalogued)).Inc()
			return res
		}
	}
	return c.Ingest(ctx, Candidate{Path: path, Source: SourceSweep})
}

// Delete removes an item's original, its row and its derivatives, in that
// order, under the item's lock. Enrichment still running for the item
// notices the missing row and discards what it produced.
func (c *Coordinator) Delete(ctx context.Context, id int64) error {
	item, err := c.catalog.FindByID(ctx, id)
	if err != nil {
		return err
	}

	c.locks.Lock(item.StorageName)
	defer c.locks.Unlock(item.StorageName)

	if _, err := c.catalog.FindByID(ctx, id); err != nil {
		return err
	}

	original := c.LibraryPath(item.StorageName)
	if err := filesystem.RemoveIfExists(ctx, original, c.retry); err != nil {
		return &IOError{Op: "delete", Path: original, Err: err}
	}
	if err := c.catalog.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting item %d: %w", id, err)
	}
	if err := c.derivatives.RemoveDerivatives(item.StorageName); err != nil {
		c.log.Warnw("could not remove derivatives", "item", id, "storage_name", item.StorageName, "error", err)
		return fmt.Errorf("item %d deleted, derivatives remain: %w", id, err)
	}

	c.log.Infow("item deleted", "item", id, "storage_name", item.StorageName)
	return nil
}

func (c *Coordinator) logResult(res Result) {
	fields := []any{
		"source", res.Candidate.Source,
		"name", res.Candidate.SuggestedName,
		"outcome", res.Outcome,
	}
	if res.Item != nil {
		fields = append(fields, "item", res.Item.ID)
	}

	switch res.Severity {
	case Success:
		if res.Outcome == Created || res.Outcome == Backfilled {
			c.log.Infow("ingested", fields...)
		} else {
			c.log.Debugw("ingested", fields...)
		}
	case Recoverable:
		c.log.Warnw("ingest failed", append(fields, "error", res.Err)...)
	default:
		c.log.Errorw("ingest failed", append(fields, "error", res.Err)...)
	}
}
