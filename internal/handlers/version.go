package handlers

import (
	"net/http"

	"media-catalog/internal/startup"
)

// GetVersion reports the build the service is running.
func (h *Handlers) GetVersion(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")
	writeJSONResponse(w, http.StatusOK, startup.GetBuildInfo())
}
