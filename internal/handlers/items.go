package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"media-catalog/internal/database"
	"media-catalog/internal/indexer"
	"media-catalog/internal/logging"
)

func itemID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id, err == nil && id > 0
}

// GetItem returns one catalogued item.
func (h *Handlers) GetItem(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(r)
	if !ok {
		writeJSONError(w, "invalid item id", http.StatusBadRequest)
		return
	}

	item, err := h.catalog.FindByID(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		writeJSONError(w, "item not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logging.Error("GetItem %d: %v", id, err)
		writeJSONError(w, "failed to load item", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusOK, item)
}

// DeleteItem removes an item with its original and derivatives.
func (h *Handlers) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(r)
	if !ok {
		writeJSONError(w, "invalid item id", http.StatusBadRequest)
		return
	}

	err := h.coord.Delete(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		writeJSONError(w, "item not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logging.Error("DeleteItem %d: %v", id, err)
		writeJSONError(w, "failed to delete item", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetStats returns catalog counters.
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.catalog.GetStats(r.Context())
	if err != nil {
		logging.Error("GetStats: %v", err)
		writeJSONError(w, "failed to load stats", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	writeJSONResponse(w, http.StatusOK, stats)
}

// TriggerSweep starts a reconciliation sweep in the background.
func (h *Handlers) TriggerSweep(w http.ResponseWriter, _ *http.Request) {
	if err := h.sweeper.Trigger(); err != nil {
		if errors.Is(err, indexer.ErrSweepInProgress) {
			writeJSONError(w, err.Error(), http.StatusConflict)
			return
		}
		logging.Error("TriggerSweep: %v", err)
		writeJSONError(w, "failed to start sweep", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusAccepted, map[string]string{"status": "started"})
}
