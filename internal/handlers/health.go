package handlers

import (
	"net/http"
	"runtime"
	"time"

	"photo-gallery/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusStarting = "starting"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Ready     bool   `json:"ready"`
	Version   string `json:"version"`
	Uptime    string `json:"uptime"`
	Mode      string `json:"mode"`
	Scanning  bool   `json:"scanning"`
	Images    int    `json:"images"`
	LastScan  string `json:"lastScan,omitempty"`
	ScanError string `json:"scanError,omitempty"`

	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// ready reports whether the gallery has something to show: a finished scan
// or images restored from the scan cache.
func (h *Handlers) ready() bool {
	return !h.lib.Progress().LastComplete.IsZero() || len(h.lib.Paths()) > 0
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	status := h.lib.Status()

	response := HealthResponse{
		Ready:        h.ready(),
		Version:      startup.Version,
		Uptime:       time.Since(h.started).Round(time.Second).String(),
		Mode:         string(status.Mode),
		Scanning:     status.Scan.Scanning,
		Images:       status.Images,
		ScanError:    status.Scan.LastError,
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}
	if !status.Scan.LastComplete.IsZero() {
		response.LastScan = status.Scan.LastComplete.Format(time.RFC3339)
	}

	switch {
	case !response.Ready:
		response.Status = statusStarting
	case response.ScanError != "":
		response.Status = statusDegraded
	default:
		response.Status = statusHealthy
	}

	code := http.StatusOK
	if !response.Ready {
		code = http.StatusServiceUnavailable
	}
	writeJSONCode(w, code, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}
	writeJSONStatus(w, http.StatusOK, "alive")
}

// ReadinessCheck returns 200 only when the gallery has images to show
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	if h.ready() {
		writeJSONStatus(w, http.StatusOK, "ready")
		return
	}
	writeJSONStatus(w, http.StatusServiceUnavailable, "not_ready")
}
