package startup

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"media-catalog/internal/logging"
)

const rule = "------------------------------------------------------------"

// section starts a titled block in the startup log.
func section(title string) {
	logging.Info("")
	logging.Info(rule)
	logging.Info("%s", title)
	logging.Info(rule)
}

func printBanner() {
	fmt.Println(rule + `
  __  __          _ _          ___      _        _
 |  \/  |___ __| (_)__ _    / __|__ _| |_ __ _| |___  __ _
 | |\/| / -_) _' | / _' |  | (__/ _' |  _/ _' | / _ \/ _' |
 |_|  |_\___\__,_|_\__,_|   \___\__,_|\__\__,_|_\___/\__, |
                                                     |___/
` + rule)
	logging.Info("  Version:    %s (%s, built %s)", Version, Commit, BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
}

func logSystemInfo() {
	section("SYSTEM INFORMATION")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)

	procs, cpus := runtime.GOMAXPROCS(0), runtime.NumCPU()
	if procs < cpus {
		logging.Info("  CPUs:            %d of %d (container limit)", procs, cpus)
	} else {
		logging.Info("  CPUs:            %d", cpus)
	}

	if logging.IsDebugEnabled() {
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}
}

// checkFFmpeg reports whether ffmpeg is on PATH and answers -version.
// ffprobe is optional; without it videos are catalogued at 0x0.
func checkFFmpeg() error {
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		logging.Warn("  ffmpeg not found in PATH: video derivatives disabled")
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, path, "-version").Output()
	if err != nil {
		logging.Warn("  ffmpeg -version failed: %v", err)
		return fmt.Errorf("ffmpeg -version: %w", err)
	}
	first, _, _ := strings.Cut(string(out), "\n")
	logging.Debug("  %s (%s)", strings.TrimSpace(first), path)

	if _, err := exec.LookPath("ffprobe"); err != nil {
		logging.Warn("  ffprobe not found in PATH: video dimensions will be recorded as 0x0")
	}
	return nil
}

func valueOrNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

// LogDatabaseInit logs database initialization
func LogDatabaseInit(duration time.Duration) {
	section("CATALOG DATABASE")
	logging.Info("  [OK] Database initialized in %v", duration)
}

// LogTranscoderInit logs transcoder initialization
func LogTranscoderInit(enabled bool, timeout time.Duration) {
	section("TRANSCODER")
	if !enabled {
		logging.Warn("  FFmpeg not available: videos are catalogued without stills or preview clips")
		return
	}
	logging.Info("  [OK] FFmpeg is available (timeout %v per job)", timeout)
}

// LogHashAlgorithm logs the active digest algorithm and, when it differs
// from the one the catalog was built with, how to fix it.
func LogHashAlgorithm(active, recorded string, matches bool) {
	logging.Info("  Digest algorithm: %s", active)
	if !matches {
		logging.Error("  Catalog digests were computed with %s; set HASH_ALGORITHM=%s", recorded, recorded)
	}
}

// LogPipelineInit logs ingestion pipeline configuration
func LogPipelineInit(config *Config) {
	section("INGESTION PIPELINE")
	logging.Info("  Workers:         %d ingest, %d enrich", config.IngestWorkers, config.EnrichWorkers)
	logging.Info("  Queue size:      %d", config.QueueSize)
	if config.WatchEnabled {
		logging.Info("  Watching %s (settle %v x %d)", config.LibraryDir, config.SettleDelay, config.SettleAttempts)
	} else {
		logging.Info("  Filesystem watcher disabled")
	}
	switch {
	case config.SweepInterval > 0:
		logging.Info("  Sweep:           every %v", config.SweepInterval)
	case config.SweepOnStartup:
		logging.Info("  Sweep:           at startup only")
	default:
		logging.Info("  Sweep:           on demand only")
	}
}

// LogPipelineStarted logs successful pipeline start
func LogPipelineStarted() {
	logging.Info("  [OK] Ingestion pipeline started")
}

// RouteInfo describes one method on a registered route.
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// GetRoutes lists every method/path pair registered on router. Routes
// without a method matcher are reported with method "*".
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo
	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		path, err := route.GetPathTemplate()
		if err != nil {
			return err
		}
		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}
		for _, m := range methods {
			routes = append(routes, RouteInfo{Method: m, Path: path, Name: route.GetName()})
		}
		return nil
	})
	return routes, err
}

// LogHTTPRoutes logs the route table at debug level, grouped by the first
// path segment (two for /api).
func LogHTTPRoutes(router *mux.Router, logHealthChecks bool) {
	section("HTTP SERVER SETUP")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}
		sort.SliceStable(routes, func(i, j int) bool {
			return getRouteGroup(routes[i].Path) < getRouteGroup(routes[j].Path)
		})

		logging.Debug("  Registered routes (%d total):", len(routes))
		group := "\x00"
		for _, r := range routes {
			if g := getRouteGroup(r.Path); g != group {
				group = g
				if g == "" {
					g = "root"
				}
				logging.Debug("  [%s]", g)
			}
			logging.Debug("    %-6s %s", r.Method, r.Path)
		}
	}

	if logHealthChecks {
		logging.Info("  Access logging on, health checks included")
	} else {
		logging.Info("  Access logging on, health checks excluded (LOG_HEALTH_CHECKS=true to include)")
	}
}

func getRouteGroup(path string) string {
	segments := strings.SplitN(strings.TrimPrefix(path, "/"), "/", 3)
	if segments[0] == "api" && len(segments) > 1 {
		return "api/" + segments[1]
	}
	return segments[0]
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs the listening endpoints once the service is up.
func LogServerStarted(config ServerConfig) {
	section("SERVER STARTED")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("  Catalog API:     http://0.0.0.0:%s/api", config.Port)
	if config.MetricsEnabled {
		logging.Info("  Metrics:         http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("  Metrics:         DISABLED")
	}
	logging.Info("  Press Ctrl+C to stop")
	logging.Info(rule)
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	section(fmt.Sprintf("SHUTDOWN INITIATED (received %s)", signal))
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}
