package startup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"media-catalog/internal/hasher"
	"media-catalog/internal/logging"
	"media-catalog/internal/mediatypes"
	"media-catalog/internal/workers"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// Config holds all application configuration
type Config struct {
	LibraryDir     string
	CacheDir       string
	PreviewDir     string
	ThumbnailDir   string
	DatabaseDir    string
	Port           string
	MetricsPort    string
	MetricsEnabled bool

	LogHealthChecks bool

	WatchEnabled   bool
	SettleDelay    time.Duration
	SettleAttempts int
	SweepOnStartup bool
	SweepInterval  time.Duration

	TranscodeTimeout time.Duration
	IngestWorkers    int
	EnrichWorkers    int
	QueueSize        int
	HashAlgorithm    string
	FaceCascade      string
	VipsEnabled      bool
	MaxUploadMB      int64

	DatabasePath string

	// Set by LoadConfig from what the host actually provides.
	DerivativesEnabled bool
	VideoEnabled       bool
}

// MaxUploadBytes returns the per-file upload limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

// CandidateFilter returns the filter the watcher and sweeps apply to
// library entries. Derivative names are only skipped when previews or
// thumbnails are written into the library root.
func (c *Config) CandidateFilter() mediatypes.Filter {
	return mediatypes.NewFilter(c.LibraryDir, c.PreviewDir, c.ThumbnailDir)
}

const (
	defaultMaxUploadMB = 512
	minSettleAttempts  = 2
)

// LoadConfig reads the environment, validates it and prepares the
// directories the catalog writes to. The library and database directories
// must be writable; derivative directories and ffmpeg are optional and only
// switch features off.
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	section("CONFIGURATION")
	loadEnvFile()

	config := readEnv()
	if err := config.validate(); err != nil {
		return nil, err
	}
	config.logSettings()

	section("DIRECTORY SETUP")
	if err := config.prepareDirectories(); err != nil {
		return nil, err
	}
	config.VideoEnabled = checkFFmpeg() == nil

	logging.Info("")
	logging.Info("  Feature availability:")
	for _, f := range []struct {
		name string
		on   bool
	}{
		{"Database", true},
		{"Derivatives", config.DerivativesEnabled},
		{"Video", config.VideoEnabled},
		{"Watcher", config.WatchEnabled},
		{"Face analysis", config.FaceCascade != ""},
		{"Metrics", config.MetricsEnabled},
	} {
		logging.Info("    %-14s %s", f.name+":", enabledString(f.on))
	}

	return config, nil
}

func readEnv() *Config {
	cacheDir := getEnv("CACHE_DIR", "/cache")
	return &Config{
		LibraryDir:       getEnv("LIBRARY_DIR", "/media"),
		CacheDir:         cacheDir,
		PreviewDir:       os.Getenv("PREVIEW_DIR"),
		ThumbnailDir:     os.Getenv("THUMBNAIL_DIR"),
		DatabaseDir:      getEnv("DATABASE_DIR", "/database"),
		Port:             getEnv("PORT", "8080"),
		MetricsPort:      getEnv("METRICS_PORT", "9090"),
		MetricsEnabled:   getEnvBool("METRICS_ENABLED", true),
		LogHealthChecks:  getEnvBool("LOG_HEALTH_CHECKS", true),
		WatchEnabled:     getEnvBool("WATCH_ENABLED", true),
		SettleDelay:      getEnvDuration("SETTLE_DELAY", 2*time.Second),
		SettleAttempts:   getEnvInt("SETTLE_ATTEMPTS", 5),
		SweepOnStartup:   getEnvBool("SWEEP_ON_STARTUP", true),
		SweepInterval:    getEnvDuration("SWEEP_INTERVAL", 0),
		TranscodeTimeout: getEnvDuration("TRANSCODE_TIMEOUT", 60*time.Second),
		IngestWorkers:    workers.FromEnv("INGEST_WORKERS", workers.ForIO(8)),
		EnrichWorkers:    workers.FromEnv("ENRICH_WORKERS", workers.ForCPU(4)),
		QueueSize:        getEnvInt("QUEUE_SIZE", 256),
		HashAlgorithm:    strings.ToLower(getEnv("HASH_ALGORITHM", hasher.Blake3)),
		FaceCascade:      os.Getenv("FACE_CASCADE"),
		VipsEnabled:      getEnvBool("VIPS_ENABLED", true),
		MaxUploadMB:      int64(getEnvInt("MAX_UPLOAD_MB", defaultMaxUploadMB)),
	}
}

// validate rejects settings the catalog cannot run with and clamps the
// ones it can repair.
func (c *Config) validate() error {
	switch c.HashAlgorithm {
	case hasher.Blake3, hasher.Blake2b, hasher.SHA256:
	default:
		return fmt.Errorf("unsupported HASH_ALGORITHM %q (want blake3, blake2b or sha256)", c.HashAlgorithm)
	}
	if c.SettleAttempts < minSettleAttempts {
		logging.Warn("  SETTLE_ATTEMPTS must be at least %d, using %d", minSettleAttempts, minSettleAttempts)
		c.SettleAttempts = minSettleAttempts
	}
	if c.MaxUploadMB <= 0 {
		logging.Warn("  Invalid MAX_UPLOAD_MB, using default: %d", defaultMaxUploadMB)
		c.MaxUploadMB = defaultMaxUploadMB
	}
	if c.QueueSize < 1 {
		logging.Warn("  Invalid QUEUE_SIZE, using 1")
		c.QueueSize = 1
	}
	return nil
}

func (c *Config) logSettings() {
	settings := []struct {
		key   string
		value interface{}
	}{
		{"LIBRARY_DIR", c.LibraryDir},
		{"CACHE_DIR", c.CacheDir},
		{"DATABASE_DIR", c.DatabaseDir},
		{"PORT", c.Port},
		{"METRICS_PORT", c.MetricsPort},
		{"METRICS_ENABLED", c.MetricsEnabled},
		{"WATCH_ENABLED", c.WatchEnabled},
		{"SETTLE_DELAY", fmt.Sprintf("%v x %d", c.SettleDelay, c.SettleAttempts)},
		{"SWEEP_ON_STARTUP", c.SweepOnStartup},
		{"SWEEP_INTERVAL", c.SweepInterval},
		{"TRANSCODE_TIMEOUT", c.TranscodeTimeout},
		{"INGEST_WORKERS", c.IngestWorkers},
		{"ENRICH_WORKERS", c.EnrichWorkers},
		{"QUEUE_SIZE", c.QueueSize},
		{"HASH_ALGORITHM", c.HashAlgorithm},
		{"FACE_CASCADE", valueOrNone(c.FaceCascade)},
		{"VIPS_ENABLED", c.VipsEnabled},
		{"MAX_UPLOAD_MB", c.MaxUploadMB},
		{"LOG_LEVEL", logging.GetLevel()},
	}
	for _, s := range settings {
		logging.Info("  %-20s %v", s.key+":", s.value)
	}
}

// prepareDirectories makes every configured path absolute and creates it.
// Derivative directories fall back to CACHE_DIR subdirectories.
func (c *Config) prepareDirectories() error {
	if c.PreviewDir == "" {
		c.PreviewDir = filepath.Join(c.CacheDir, "previews")
	}
	if c.ThumbnailDir == "" {
		c.ThumbnailDir = filepath.Join(c.CacheDir, "thumbnails")
	}
	for _, p := range []*string{&c.LibraryDir, &c.CacheDir, &c.DatabaseDir, &c.PreviewDir, &c.ThumbnailDir} {
		abs, err := filepath.Abs(*p)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", *p, err)
		}
		*p = abs
	}
	c.DatabasePath = filepath.Join(c.DatabaseDir, "media.db")

	required := []struct{ name, path string }{
		{"library", c.LibraryDir},
		{"database", c.DatabaseDir},
	}
	for _, dir := range required {
		logging.Info("  %s directory: %s", dir.name, dir.path)
		if err := ensureWritableDir(dir.path); err != nil {
			return fmt.Errorf("%s directory %s: %w", dir.name, dir.path, err)
		}
		logging.Info("  [OK] %s directory is writable", dir.name)
	}

	c.DerivativesEnabled = true
	for _, dir := range []struct{ name, path string }{
		{"previews", c.PreviewDir},
		{"thumbnails", c.ThumbnailDir},
	} {
		if err := ensureWritableDir(dir.path); err != nil {
			logging.Warn("  %s directory %s unusable, derivatives disabled: %v", dir.name, dir.path, err)
			c.DerivativesEnabled = false
			continue
		}
		logging.Debug("  [OK] %s directory ready: %s", dir.name, dir.path)
	}
	return nil
}

func ensureWritableDir(path string) error {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("creating: %w", err)
		}
	case err != nil:
		return err
	case !info.IsDir():
		return errors.New("not a directory")
	}

	probe, err := os.CreateTemp(path, ".write-test-*")
	if err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	name := probe.Name()
	probe.Close()
	if err := os.Remove(name); err != nil {
		logging.Warn("failed to remove write probe %s: %v", name, err)
	}
	return nil
}

// loadEnvFile loads ENV_FILE, or .env in the working directory, without
// overriding variables that are already set.
func loadEnvFile() {
	path, explicit := os.LookupEnv("ENV_FILE")
	if !explicit || path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			logging.Warn("  Failed to load %s: %v", path, err)
		}
		return
	}
	logging.Info("  Loaded environment from %s", path)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// envValue parses key with parse, falling back to defaultValue when the
// variable is unset or unparsable.
func envValue[T any](key string, defaultValue T, parse func(string) (T, error)) T {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := parse(raw)
	if err != nil {
		logging.Warn("Invalid value for %s: %q, using default: %v", key, raw, defaultValue)
		return defaultValue
	}
	return v
}

func getEnvBool(key string, defaultValue bool) bool {
	return envValue(key, defaultValue, strconv.ParseBool)
}

func getEnvInt(key string, defaultValue int) int {
	return envValue(key, defaultValue, strconv.Atoi)
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	return envValue(key, defaultValue, func(s string) (time.Duration, error) {
		d, err := time.ParseDuration(s)
		if err == nil && d < 0 {
			err = errors.New("negative duration")
		}
		return d, err
	})
}
