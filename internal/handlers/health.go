package handlers

import (
	"net/http"
	"runtime"
	"time"

	"media-catalog/internal/indexer"
	"media-catalog/internal/logging"
	"media-catalog/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusStarting = "starting"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status            string `json:"status"`
	Ready             bool   `json:"ready"`
	Version           string `json:"version"`
	Uptime            string `json:"uptime"`
	Sweeping          bool   `json:"sweeping"`
	LastSweep         string `json:"lastSweep,omitempty"`
	InitialSweepError string `json:"initialSweepError,omitempty"`
	FilesSeen         int64  `json:"filesSeen"`
	HashAlgorithm     string `json:"hashAlgorithm"`

	LastSummary *indexer.SweepSummary `json:"lastSummary,omitempty"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`

	// Stats summary
	TotalItems      int `json:"totalItems,omitempty"`
	PendingAnalysis int `json:"pendingAnalysis,omitempty"`
	MissingHash     int `json:"missingHash,omitempty"`
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	healthStatus := h.sweeper.GetHealthStatus()

	response := HealthResponse{
		Ready:             healthStatus.Ready,
		Version:           startup.Version,
		Uptime:            healthStatus.Uptime,
		Sweeping:          healthStatus.Sweeping,
		InitialSweepError: healthStatus.InitialSweepError,
		FilesSeen:         healthStatus.FilesSeen,
		HashAlgorithm:     h.digests.Algorithm(),
		LastSummary:       healthStatus.LastSummary,
		GoVersion:         runtime.Version(),
		NumCPU:            runtime.NumCPU(),
		NumGoroutine:      runtime.NumGoroutine(),
	}

	switch {
	case healthStatus.InitialSweepError != "":
		response.Status = statusDegraded
	case healthStatus.Ready:
		response.Status = statusHealthy
	default:
		response.Status = statusStarting
	}

	if !healthStatus.LastSweep.IsZero() {
		response.LastSweep = healthStatus.LastSweep.Format(time.RFC3339)
	}

	if stats, err := h.catalog.GetStats(r.Context()); err != nil {
		logging.Warn("health: catalog stats unavailable: %v", err)
		response.Status = statusDegraded
	} else {
		response.TotalItems = stats.TotalItems
		response.PendingAnalysis = stats.PendingAnalysis
		response.MissingHash = stats.MissingHash
	}

	// Return 503 only if not ready at all
	status := http.StatusOK
	if !healthStatus.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSONResponse(w, status, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// HEAD gets headers only
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{"status": "alive"})
	}
}

// ReadinessCheck returns 200 once the startup sweep has finished.
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	if h.sweeper.IsReady() {
		writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	writeJSONResponse(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
}
