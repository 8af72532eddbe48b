// Package middleware provides HTTP middleware for the catalog API.
//
// It includes:
//   - Structured access logging, one entry per request on the "access" logger
//   - Prometheus request counters, latency histograms and in-flight gauge
//   - Configurable filtering for health checks and scrape endpoints
package middleware
