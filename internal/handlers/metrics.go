package handlers

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"media-catalog/internal/logging"
)

type scrapeErrorLog struct{}

func (scrapeErrorLog) Println(v ...interface{}) {
	logging.Warn("metrics scrape: %v", v)
}

// MetricsHandler serves the default registry. A collector that fails
// during a scrape is logged and skipped rather than failing the scrape.
func (h *Handlers) MetricsHandler() http.Handler {
	return promhttp.InstrumentMetricHandler(prometheus.DefaultRegisterer,
		promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
			ErrorLog:      scrapeErrorLog{},
			ErrorHandling: promhttp.ContinueOnError,
		}))
}
