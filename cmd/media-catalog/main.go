package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"media-catalog/internal/analyzer"
	"media-catalog/internal/database"
	"media-catalog/internal/filesystem"
	"media-catalog/internal/handlers"
	"media-catalog/internal/hasher"
	"media-catalog/internal/indexer"
	"media-catalog/internal/ingest"
	"media-catalog/internal/logging"
	"media-catalog/internal/media"
	"media-catalog/internal/memory"
	"media-catalog/internal/metrics"
	"media-catalog/internal/middleware"
	"media-catalog/internal/startup"
	"media-catalog/internal/transcoder"
	"media-catalog/internal/watcher"
)

const (
	collectorInterval = time.Minute
	shutdownTimeout   = 30 * time.Second
)

// dbStatsAdapter exposes catalog totals to the metrics collector and
// refreshes the database size gauges on the same tick.
type dbStatsAdapter struct {
	db *database.Database
}

func (a *dbStatsAdapter) GetStats(ctx context.Context) (metrics.Stats, error) {
	a.db.UpdateDBMetrics()
	s, err := a.db.GetStats(ctx)
	if err != nil {
		return metrics.Stats{}, err
	}
	return metrics.Stats{
		TotalImages:     s.TotalImages,
		TotalVideos:     s.TotalVideos,
		PendingAnalysis: s.PendingAnalysis,
		MissingHash:     s.MissingHash,
	}, nil
}

// services are the long-running components stopped on shutdown.
type services struct {
	server        *http.Server
	metricsServer *http.Server
	watcher       *watcher.Watcher
	indexer       *indexer.Indexer
	coordinator   *ingest.Coordinator
	transcoder    *transcoder.Transcoder
	collector     *metrics.Collector
	monitor       *memory.Monitor
	db            *database.Database
}

func main() {
	startTime := time.Now()

	memory.ConfigureFromEnv()

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	metrics.InitializeMetrics()
	metrics.AppInfo.WithLabelValues(startup.Version, startup.Commit, runtime.Version()).Set(1)
	filesystem.SetObserver(metrics.NewFilesystemObserver())
	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
		"library":    config.LibraryDir,
		"previews":   config.PreviewDir,
		"thumbnails": config.ThumbnailDir,
		"database":   config.DatabaseDir,
	}))

	ctx := context.Background()

	dbStart := time.Now()
	db, err := database.New(ctx, config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	startup.LogDatabaseInit(time.Since(dbStart))

	digests, err := hasher.New(config.HashAlgorithm)
	if err != nil {
		startup.LogFatal("Hasher: %v", err)
	}
	recorded, matches, err := db.PinHashAlgorithm(ctx, digests.Algorithm())
	if err != nil {
		startup.LogFatal("Reading catalog digest algorithm: %v", err)
	}
	startup.LogHashAlgorithm(digests.Algorithm(), recorded, matches)
	if !matches {
		startup.LogFatal("Refusing to start with digest algorithm %s on a %s catalog", digests.Algorithm(), recorded)
	}

	if config.VipsEnabled {
		if err := media.InitVips(); err != nil {
			logging.Warn("libvips unavailable, falling back to JPEG derivatives: %v", err)
			config.VipsEnabled = false
		}
	}

	trans := transcoder.New(transcoder.Config{Timeout: config.TranscodeTimeout})
	startup.LogTranscoderInit(trans.IsEnabled(), config.TranscodeTimeout)

	gen, err := media.NewDerivativeGenerator(media.Layout{
		PreviewDir:   config.PreviewDir,
		ThumbnailDir: config.ThumbnailDir,
	}, trans, config.VipsEnabled)
	if err != nil {
		startup.LogFatal("Derivative generator: %v", err)
	}

	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start()

	coord, err := ingest.New(ingest.Config{
		LibraryDir:    config.LibraryDir,
		IngestWorkers: config.IngestWorkers,
		EnrichWorkers: config.EnrichWorkers,
		QueueSize:     config.QueueSize,
		EnrichGate:    monitor,
	}, db, digests, gen, newAnalyzer(config))
	if err != nil {
		startup.LogFatal("Ingestion coordinator: %v", err)
	}

	startup.LogPipelineInit(config)

	idx := indexer.New(coord, db, indexer.Config{
		Workers:   config.IngestWorkers,
		Interval:  config.SweepInterval,
		OnStartup: config.SweepOnStartup,
		Filter:    config.CandidateFilter(),
	})
	idx.Start()

	var w *watcher.Watcher
	if config.WatchEnabled {
		w, err = watcher.New(watcher.Config{
			Root:           config.LibraryDir,
			SettleDelay:    config.SettleDelay,
			SettleAttempts: config.SettleAttempts,
			Filter:         config.CandidateFilter(),
		}, coord)
		if err == nil {
			err = w.Start(ctx)
		}
		if err != nil {
			logging.Error("Filesystem watcher unavailable, relying on sweeps: %v", err)
			w = nil
		}
	}
	startup.LogPipelineStarted()

	collector := metrics.NewCollector(&dbStatsAdapter{db: db}, collectorInterval)
	collector.Start()

	h := handlers.New(db, coord, idx, digests, config)
	router := setupRouter(h)
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler := middleware.Metrics(middleware.DefaultMetricsConfig())(
		middleware.Logger(loggingConfig)(router),
	)

	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsSrv = newMetricsServer(config.MetricsPort, h)
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	svc := &services{
		server:        srv,
		metricsServer: metricsSrv,
		watcher:       w,
		indexer:       idx,
		coordinator:   coord,
		transcoder:    trans,
		collector:     collector,
		monitor:       monitor,
		db:            db,
	}
	done := make(chan struct{})
	go handleShutdown(svc, done)

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		startup.LogFatal("Server error: %v", err)
	}
	<-done
}

// newAnalyzer builds the content analyzer. Face detection is only
// available when a pigo cascade is configured.
func newAnalyzer(config *startup.Config) *analyzer.Analyzer {
	if config.FaceCascade == "" {
		logging.Info("FACE_CASCADE not set: face detection disabled")
		return analyzer.New()
	}
	detector, err := analyzer.NewPigoDetector(config.FaceCascade)
	if err != nil {
		logging.Warn("Face detection disabled: %v", err)
		return analyzer.New()
	}
	return analyzer.New(analyzer.WithFaceDetector(detector))
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods(http.MethodGet)
	r.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/upload", h.Upload).Methods(http.MethodPost)
	api.HandleFunc("/items/{id:[0-9]+}", h.GetItem).Methods(http.MethodGet)
	api.HandleFunc("/items/{id:[0-9]+}", h.DeleteItem).Methods(http.MethodDelete)
	api.HandleFunc("/stats", h.GetStats).Methods(http.MethodGet)
	api.HandleFunc("/sweep", h.TriggerSweep).Methods(http.MethodPost)

	return r
}

func newMetricsServer(port string, h *handlers.Handlers) *http.Server {
	m := http.NewServeMux()
	m.Handle("/metrics", h.MetricsHandler())
	m.HandleFunc("/health", h.LivenessCheck)
	return &http.Server{
		Addr:         ":" + port,
		Handler:      m,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}
}

func handleShutdown(svc *services, done chan<- struct{}) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())
	shutdown(svc)
	close(done)
}

// shutdown stops intake first, then drains the pipeline, then releases
// storage. Each step is bounded by the shared deadline.
func shutdown(svc *services) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := svc.server.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	if svc.watcher != nil {
		startup.LogShutdownStep("Stopping filesystem watcher")
		svc.watcher.Stop()
		startup.LogShutdownStepComplete("Watcher stopped")
	}

	startup.LogShutdownStep("Stopping sweeps")
	svc.indexer.Stop()
	startup.LogShutdownStepComplete("Sweeps stopped")

	// Waiters blocked on memory pressure must not hold up draining.
	svc.monitor.Stop()

	startup.LogShutdownStep("Draining ingestion and enrichment")
	if err := svc.coordinator.Stop(ctx); err != nil {
		logging.Warn("Pipeline did not drain: %v", err)
	} else {
		startup.LogShutdownStepComplete("Pipeline drained")
	}

	startup.LogShutdownStep("Cleaning up transcoder")
	svc.transcoder.Cleanup()
	startup.LogShutdownStepComplete("Transcoder cleanup complete")

	svc.collector.Stop()
	if svc.metricsServer != nil {
		if err := svc.metricsServer.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		}
	}

	media.ShutdownVips()

	startup.LogShutdownStep("Closing database")
	if err := svc.db.Close(); err != nil {
		logging.Warn("Database close error: %v", err)
	} else {
		startup.LogShutdownStepComplete("Database closed")
	}

	startup.LogShutdownComplete()
	logging.Sync()
}
