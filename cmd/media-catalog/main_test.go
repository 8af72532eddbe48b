package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"media-catalog/internal/database"
	"media-catalog/internal/handlers"
	"media-catalog/internal/hasher"
	"media-catalog/internal/indexer"
	"media-catalog/internal/ingest"
	"media-catalog/internal/media"
	"media-catalog/internal/metrics"
	"media-catalog/internal/startup"
)

type testApp struct {
	db     *database.Database
	coord  *ingest.Coordinator
	idx    *indexer.Indexer
	h      *handlers.Handlers
	router http.Handler
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	ctx := context.Background()
	root := t.TempDir()
	lib := filepath.Join(root, "media")
	if err := os.MkdirAll(lib, 0o755); err != nil {
		t.Fatal(err)
	}

	db, err := database.New(ctx, filepath.Join(root, "media.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	digests, err := hasher.New(hasher.Blake3)
	if err != nil {
		t.Fatal(err)
	}
	gen, err := media.NewDerivativeGenerator(media.Layout{
		PreviewDir:   filepath.Join(root, "previews"),
		ThumbnailDir: filepath.Join(root, "thumbnails"),
	}, nil, false)
	if err != nil {
		t.Fatal(err)
	}

	coord, err := ingest.New(ingest.Config{LibraryDir: lib, IngestWorkers: 1, EnrichWorkers: 1}, db, digests, gen, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { coord.Stop(context.Background()) })

	idx := indexer.New(coord, db, indexer.Config{Workers: 1})
	idx.Start()
	t.Cleanup(idx.Stop)

	h := handlers.New(db, coord, idx, digests, &startup.Config{MaxUploadMB: 1})
	return &testApp{db: db, coord: coord, idx: idx, h: h, router: setupRouter(h)}
}

func TestDbStatsAdapter(t *testing.T) {
	app := newTestApp(t)

	adapter := &dbStatsAdapter{db: app.db}
	var _ metrics.StatsProvider = adapter

	stats, err := adapter.GetStats(context.Background())
	if err != nil {
		t.Fatalf("GetStats() error = %v", err)
	}
	if stats != (metrics.Stats{}) {
		t.Errorf("empty catalog stats = %+v", stats)
	}
}

func TestSetupRouter(t *testing.T) {
	app := newTestApp(t)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{method: http.MethodGet, path: "/livez", want: http.StatusOK},
		{method: http.MethodHead, path: "/livez", want: http.StatusOK},
		{method: http.MethodGet, path: "/readyz", want: http.StatusOK},
		{method: http.MethodGet, path: "/healthz", want: http.StatusOK},
		{method: http.MethodGet, path: "/version", want: http.StatusOK},
		{method: http.MethodGet, path: "/api/stats", want: http.StatusOK},
		{method: http.MethodGet, path: "/api/items/1", want: http.StatusNotFound},
		{method: http.MethodDelete, path: "/api/items/1", want: http.StatusNotFound},
		{method: http.MethodGet, path: "/api/items/abc", want: http.StatusNotFound},
		{method: http.MethodGet, path: "/api/upload", want: http.StatusMethodNotAllowed},
		{method: http.MethodPost, path: "/api/upload", want: http.StatusBadRequest},
		{method: http.MethodGet, path: "/nope", want: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			app.router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, http.NoBody))
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}

	routes, err := startup.GetRoutes(setupRouter(app.h))
	if err != nil {
		t.Fatalf("GetRoutes() error = %v", err)
	}
	if len(routes) < 10 {
		t.Errorf("GetRoutes() found %d routes", len(routes))
	}
}

func TestMetricsServer(t *testing.T) {
	app := newTestApp(t)
	srv := newMetricsServer("0", app.h)

	if srv.ReadTimeout <= 0 || srv.WriteTimeout <= 0 || srv.IdleTimeout <= 0 {
		t.Errorf("metrics server timeouts = %v/%v/%v, want all positive", srv.ReadTimeout, srv.WriteTimeout, srv.IdleTimeout)
	}

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	if rec.Code != http.StatusOK {
		t.Errorf("/metrics status = %d", rec.Code)
	}
}
