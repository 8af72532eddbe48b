package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"media-catalog/internal/metrics"
)

// MetricsConfig holds configuration for the metrics middleware
type MetricsConfig struct {
	// SkipPaths are path prefixes that are not recorded.
	SkipPaths []string
}

// DefaultMetricsConfig skips the scrape endpoint and the health probes.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		SkipPaths: []string{"/metrics", "/health", "/healthz", "/livez", "/readyz"},
	}
}

func (c MetricsConfig) skip(path string) bool {
	for _, p := range c.SkipPaths {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// Metrics records request counts, latency and in-flight requests with the
// promhttp instrumentation handlers. The path label is the request path
// with item ids folded into {id}.
func Metrics(config MetricsConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if config.skip(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			route := prometheus.Labels{"path": normalizePath(r.URL.Path)}
			h := promhttp.InstrumentHandlerInFlight(metrics.HTTPRequestsInFlight,
				promhttp.InstrumentHandlerDuration(metrics.HTTPRequestDuration.MustCurryWith(route),
					promhttp.InstrumentHandlerCounter(metrics.HTTPRequestsTotal.MustCurryWith(route), next)))
			h.ServeHTTP(w, r)
		})
	}
}

// normalizePath replaces numeric segments with {id} so item routes share
// one label value.
func normalizePath(path string) string {
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if part == "" {
			continue
		}
		if _, err := strconv.ParseInt(part, 10, 64); err == nil {
			parts[i] = "{id}"
		}
	}
	return strings.Join(parts, "/")
}
