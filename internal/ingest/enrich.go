package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"media-catalog/internal/database"
	"media-catalog/internal/mediatypes"
	"media-catalog/internal/metrics"
)

const (
	taskDerivatives = "derivatives"
	taskAnalysis    = "analysis"

	listPageSize = 500
)

// ResumeEnrichment schedules whatever enrichment the item may still lack:
// derivatives always (existing artifacts are skipped), analysis for images
// not yet analysed. Tasks already queued for the item are not queued again.
// When the enrichment queue is full the work is dropped; a later sweep
// picks it up.
func (c *Coordinator) ResumeEnrichment(item *database.MediaItem) {
	snapshot := *item
	c.schedule(snapshot, taskDerivatives, func(ctx context.Context) error {
		return c.GenerateDerivatives(ctx, snapshot)
	})
	if c.needsAnalysis(snapshot) {
		c.schedule(snapshot, taskAnalysis, func(ctx context.Context) error {
			return c.AnalyzeItem(ctx, snapshot)
		})
	}
}

func (c *Coordinator) needsAnalysis(item database.MediaItem) bool {
	return c.analyzer != nil && item.Kind == mediatypes.KindImage && !item.Enrichment.Analyzed
}

func (c *Coordinator) schedule(item database.MediaItem, name string, fn Task) {
	key := fmt.Sprintf("%d/%s", item.ID, name)
	if _, loaded := c.scheduled.LoadOrStore(key, struct{}{}); loaded {
		return
	}

	ok := c.enrichPool.TrySubmit(func(ctx context.Context) error {
		defer c.scheduled.Delete(key)
		if c.cfg.EnrichGate != nil {
			if err := c.cfg.EnrichGate.Wait(ctx); err != nil {
				return err
			}
		}
		return fn(ctx)
	})
	if !ok {
		c.scheduled.Delete(key)
		c.log.Debugw("enrichment queue full, deferring to next sweep", "item", item.ID, "task", name)
	}
}

// GenerateDerivatives ensures the item's derivatives exist. If the item is
// deleted while they are produced, the new artifacts are removed again.
func (c *Coordinator) GenerateDerivatives(ctx context.Context, item database.MediaItem) error {
	res := c.derivatives.EnsureDerivatives(ctx, c.LibraryPath(item.StorageName), item.StorageName, item.Kind)

	if len(res.Created) > 0 {
		if _, err := c.catalog.FindByID(ctx, item.ID); errors.Is(err, ErrNotFound) {
			for _, p := range res.Created {
				if rmErr := os.Remove(p); rmErr != nil && !os.IsNotExist(rmErr) {
					c.log.Warnw("could not remove orphaned derivative", "path", p, "error", rmErr)
				}
			}
			c.log.Debugw("item deleted during derivative generation", "item", item.ID)
			return nil
		}
	}

	return res.Err()
}

// AnalyzeItem analyses an image and persists the result. When analysis is
// unavailable nothing is written, so the item stays unanalysed and is
// retried later. Videos are never analysed.
func (c *Coordinator) AnalyzeItem(ctx context.Context, item database.MediaItem) error {
	if !c.needsAnalysis(item) {
		metrics.AnalysisTotal.WithLabelValues("skipped").Inc()
		return nil
	}

	res, err := c.analyzer.Analyze(ctx, c.LibraryPath(item.StorageName))
	if err != nil {
		c.log.Warnw("analysis unavailable", "item", item.ID, "error", err)
		return err
	}

	err = c.catalog.UpdateEnrichment(ctx, item.ID, res.Enrichment())
	if errors.Is(err, ErrNotFound) {
		c.log.Debugw("item deleted before analysis was stored", "item", item.ID)
		return nil
	}
	return err
}

// pageFunc returns the page of items with ids above afterID.
type pageFunc func(ctx context.Context, afterID int64, limit int) ([]database.MediaItem, error)

// forEachItem walks every item list returns, one page at a time.
func forEachItem(ctx context.Context, list pageFunc, fn func(database.MediaItem)) error {
	var after int64
	for {
		items, err := list(ctx, after, listPageSize)
		if err != nil {
			return err
		}
		for _, item := range items {
			fn(item)
			after = item.ID
		}
		if len(items) < listPageSize {
			return nil
		}
	}
}

// AnalyzePending analyses every image not yet analysed, workers at a time.
// Per-item failures are collected in the report; the batch always runs to
// the end.
func (c *Coordinator) AnalyzePending(ctx context.Context, workers int) (*BatchReport, error) {
	return c.runBatch(ctx, workers, c.catalog.ListUnanalyzed, c.needsAnalysis, func(ctx context.Context, item database.MediaItem) error {
		return c.AnalyzeItem(ctx, item)
	})
}

// EnsureAllDerivatives generates missing derivatives for every item.
func (c *Coordinator) EnsureAllDerivatives(ctx context.Context, workers int) (*BatchReport, error) {
	return c.runBatch(ctx, workers, c.catalog.ListItems, nil, func(ctx context.Context, item database.MediaItem) error {
		return c.GenerateDerivatives(ctx, item)
	})
}

func (c *Coordinator) runBatch(ctx context.Context, workers int, list pageFunc, filter func(database.MediaItem) bool, fn func(context.Context, database.MediaItem) error) (*BatchReport, error) {
	report := NewBatchReport()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))

	err := forEachItem(ctx, list, func(item database.MediaItem) {
		if filter != nil && !filter(item) {
			return
		}
		report.addProcessed()
		g.Go(func() error {
			report.AddError(fmt.Sprintf("item %d (%s)", item.ID, item.StorageName), fn(gctx, item))
			return nil
		})
	})

	_ = g.Wait()
	return report, err
}
