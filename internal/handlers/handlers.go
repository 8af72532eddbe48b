package handlers

import (
	"context"

	"media-catalog/internal/database"
	"media-catalog/internal/hasher"
	"media-catalog/internal/indexer"
	"media-catalog/internal/ingest"
	"media-catalog/internal/startup"
)

// Catalog is the read side of the catalog used by the handlers.
type Catalog interface {
	FindByID(ctx context.Context, id int64) (*database.MediaItem, error)
	GetStats(ctx context.Context) (database.CatalogStats, error)
}

// Coordinator ingests uploads and deletes items.
type Coordinator interface {
	Ingest(ctx context.Context, cand ingest.Candidate) ingest.Result
	Delete(ctx context.Context, id int64) error
	StagingDir() string
}

// Sweeper runs reconciliation sweeps and reports readiness.
type Sweeper interface {
	Trigger() error
	IsReady() bool
	GetHealthStatus() indexer.HealthStatus
}

// DigestWriterFactory creates a digest writer for one upload.
type DigestWriterFactory interface {
	NewWriter() (*hasher.DigestWriter, error)
	Algorithm() string
}

type Handlers struct {
	catalog        Catalog
	coord          Coordinator
	sweeper        Sweeper
	digests        DigestWriterFactory
	maxUploadBytes int64
}

func New(catalog Catalog, coord Coordinator, sweeper Sweeper, digests DigestWriterFactory, config *startup.Config) *Handlers {
	return &Handlers{
		catalog:        catalog,
		coord:          coord,
		sweeper:        sweeper,
		digests:        digests,
		maxUploadBytes: config.MaxUploadBytes(),
	}
}
