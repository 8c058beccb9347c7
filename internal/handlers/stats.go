package handlers

import (
	"net/http"

	"photo-gallery/internal/library"
	"photo-gallery/internal/memory"
)

// MemoryStats reports the memory monitor's view.
type MemoryStats struct {
	Current string  `json:"current"`
	Limit   string  `json:"limit,omitempty"`
	Usage   float64 `json:"usage"`
	Level   string  `json:"level"`
}

// StatsResponse is the body of /api/stats.
type StatsResponse struct {
	library.Stats
	Viewport library.Viewport `json:"viewport"`
	Memory   *MemoryStats     `json:"memory,omitempty"`
}

// GetStats returns library, scan and pipeline counters
func (h *Handlers) GetStats(w http.ResponseWriter, _ *http.Request) {
	response := StatsResponse{
		Stats:    h.lib.Status(),
		Viewport: h.lib.Viewport(),
	}
	if h.monitor != nil {
		current, limit, usage := h.monitor.Stats()
		response.Memory = &MemoryStats{
			Current: memory.FormatBytes(current),
			Usage:   usage,
			Level:   h.monitor.Level().String(),
		}
		if limit > 0 {
			response.Memory.Limit = memory.FormatBytes(limit)
		}
	}

	w.Header().Set("Cache-Control", "no-cache")
	writeJSONCode(w, http.StatusOK, response)
}
