package handlers

import (
	"net/http"

	"photo-gallery/internal/library"
)

// GetScanProgress returns the state of the current or last scan
func (h *Handlers) GetScanProgress(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")
	writeJSONCode(w, http.StatusOK, h.lib.Progress())
}

// TriggerScan starts a full rescan, cancelling any scan in progress. In folder
// mode it returns to the library first.
func (h *Handlers) TriggerScan(w http.ResponseWriter, _ *http.Request) {
	if mode, _ := h.lib.Mode(); mode == library.ModeFolder {
		h.lib.ShowLibrary()
	} else {
		h.lib.StartScan()
	}
	writeJSONStatus(w, http.StatusAccepted, "scanning")
}
