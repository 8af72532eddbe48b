package main

import (
	"context"
	"errors"
	"fmt"

	"media-catalog/internal/analyzer"
	"media-catalog/internal/database"
	"media-catalog/internal/hasher"
	"media-catalog/internal/indexer"
	"media-catalog/internal/ingest"
	"media-catalog/internal/logging"
	"media-catalog/internal/media"
	"media-catalog/internal/startup"
	"media-catalog/internal/transcoder"
)

// pipeline is the set of components a maintenance command works with.
type pipeline struct {
	config *startup.Config
	db     *database.Database
	trans  *transcoder.Transcoder
	coord  *ingest.Coordinator
	vips   bool
}

// openPipeline wires the catalog the way the service does, without the
// HTTP surface, watcher or periodic sweeps.
func openPipeline(ctx context.Context) (*pipeline, error) {
	config, err := startup.LoadConfig()
	if err != nil {
		return nil, err
	}

	db, err := database.New(ctx, config.DatabasePath)
	if err != nil {
		return nil, err
	}
	p := &pipeline{config: config, db: db}

	digests, err := hasher.New(config.HashAlgorithm)
	if err != nil {
		p.close(ctx)
		return nil, err
	}
	recorded, matches, err := db.PinHashAlgorithm(ctx, digests.Algorithm())
	if err != nil {
		p.close(ctx)
		return nil, err
	}
	if !matches {
		p.close(ctx)
		return nil, fmt.Errorf("catalog digests use %s, HASH_ALGORITHM is %s", recorded, digests.Algorithm())
	}

	if config.VipsEnabled {
		if err := media.InitVips(); err != nil {
			logging.Warn("libvips unavailable: %v", err)
		} else {
			p.vips = true
		}
	}

	p.trans = transcoder.New(transcoder.Config{Timeout: config.TranscodeTimeout})
	gen, err := media.NewDerivativeGenerator(media.Layout{
		PreviewDir:   config.PreviewDir,
		ThumbnailDir: config.ThumbnailDir,
	}, p.trans, p.vips)
	if err != nil {
		p.close(ctx)
		return nil, err
	}

	an := analyzer.New()
	if config.FaceCascade != "" {
		if d, err := analyzer.NewPigoDetector(config.FaceCascade); err != nil {
			logging.Warn("face detection disabled: %v", err)
		} else {
			an = analyzer.New(analyzer.WithFaceDetector(d))
		}
	}

	p.coord, err = ingest.New(ingest.Config{
		LibraryDir:    config.LibraryDir,
		IngestWorkers: config.IngestWorkers,
		EnrichWorkers: config.EnrichWorkers,
		QueueSize:     config.QueueSize,
	}, db, digests, gen, an)
	if err != nil {
		p.close(ctx)
		return nil, err
	}
	return p, nil
}

// indexer returns a sweeper over the library without periodic runs.
func (p *pipeline) indexer() *indexer.Indexer {
	return indexer.New(p.coord, p.db, indexer.Config{Workers: p.config.IngestWorkers, Filter: p.config.CandidateFilter()})
}

// close drains background enrichment, then releases everything.
func (p *pipeline) close(ctx context.Context) error {
	var errs []error
	if p.coord != nil {
		errs = append(errs, p.coord.Stop(context.WithoutCancel(ctx)))
	}
	if p.trans != nil {
		p.trans.Cleanup()
	}
	if p.vips {
		media.ShutdownVips()
	}
	errs = append(errs, p.db.Close())
	return errors.Join(errs...)
}

// withPipeline runs fn against an open pipeline and closes it afterwards.
func withPipeline(ctx context.Context, fn func(*pipeline) error) (err error) {
	p, err := openPipeline(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := p.close(ctx); err == nil {
			err = cerr
		}
	}()
	return fn(p)
}
