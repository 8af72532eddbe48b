package media

import (
	"fmt"
	"sync"

	"media-catalog/internal/logging"

	"github.com/davidbyttow/govips/v2/vips"
)

var (
	vipsInitialized bool
	vipsInitMutex   sync.Mutex
	vipsAvailable   bool
)

// vipsLogLevel maps the application log level onto libvips' verbosity.
// libvips filters by verbosity itself; the handler only routes by severity.
func vipsLogLevel(level logging.LogLevel) vips.LogLevel {
	switch level {
	case logging.LevelDebug:
		return vips.LogLevelInfo
	case logging.LevelWarn:
		return vips.LogLevelError
	case logging.LevelError:
		return vips.LogLevelCritical
	default:
		return vips.LogLevelWarning
	}
}

func vipsLogHandler(domain string, level vips.LogLevel, msg string) {
	switch level {
	case vips.LogLevelError, vips.LogLevelCritical:
		logging.Error("[%s] %s", domain, msg)
	case vips.LogLevelWarning:
		logging.Warn("[%s] %s", domain, msg)
	default:
		logging.Debug("[%s] %s", domain, msg)
	}
}

// InitVips starts libvips. Call once at startup; later calls are no-ops.
func InitVips() error {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		return nil
	}

	vips.LoggingSettings(vipsLogHandler, vipsLogLevel(logging.GetLevel()))

	// One image at a time keeps peak memory predictable on small hosts.
	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,
		MaxCacheMem:      50 * 1024 * 1024,
		MaxCacheSize:     100,
	})

	vipsInitialized = true
	vipsAvailable = true
	logging.Info("libvips initialized successfully (version: %s)", vips.Version)
	return nil
}

// ShutdownVips cleans up libvips resources. libvips cannot be restarted in
// the same process afterwards.
func ShutdownVips() {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		vips.Shutdown()
		vipsInitialized = false
		vipsAvailable = false
		logging.Info("libvips shutdown complete")
	}
}

// IsVipsAvailable returns whether libvips is initialized and available
func IsVipsAvailable() bool {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()
	return vipsAvailable
}

func loadWithVips(path string) (*vips.ImageRef, error) {
	params := vips.NewImportParams()
	// Tolerate minor corruption such as extraneous bytes before a JPEG marker.
	params.FailOnError.Set(false)
	params.AutoRotate.Set(true)
	return vips.LoadImageFromFile(path, params)
}

// fitWithVips shrinks ref in place so its long edge is at most maxEdge.
// Smaller images are left alone.
func fitWithVips(ref *vips.ImageRef, maxEdge int) error {
	long := max(ref.Width(), ref.Height())
	if long <= maxEdge {
		return nil
	}
	if err := ref.Resize(float64(maxEdge)/float64(long), vips.KernelAuto); err != nil {
		return fmt.Errorf("vips resize failed: %w", err)
	}
	return nil
}

// encodeWithVips writes each target as WebP. Targets must be ordered from
// largest to smallest since the image is shrunk progressively.
func encodeWithVips(src string, targets []imageTarget) []error {
	errs := make([]error, len(targets))

	ref, err := loadWithVips(src)
	if err != nil {
		for i := range errs {
			errs[i] = fmt.Errorf("vips failed to load image: %w", err)
		}
		return errs
	}
	defer ref.Close()

	for i, target := range targets {
		if err := fitWithVips(ref, target.maxEdge); err != nil {
			errs[i] = err
			continue
		}
		params := vips.NewWebpExportParams()
		params.StripMetadata = true
		params.Quality = target.quality
		data, _, err := ref.ExportWebp(params)
		if err != nil {
			errs[i] = fmt.Errorf("vips export failed: %w", err)
			continue
		}
		errs[i] = writeFileAtomic(target.path, data)
	}
	return errs
}
