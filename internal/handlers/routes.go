package handlers

import (
	"net/http"

	"photo-gallery/internal/middleware"

	"github.com/gorilla/mux"
)

// RouterOptions configures the status server router.
type RouterOptions struct {
	MetricsEnabled  bool
	LogHealthChecks bool
}

// Router registers every status endpoint on a new mux router.
func (h *Handlers) Router(opts RouterOptions) *mux.Router {
	r := mux.NewRouter()

	logCfg := middleware.DefaultLoggingConfig()
	logCfg.LogHealthChecks = opts.LogHealthChecks
	r.Use(middleware.Logger(logCfg))
	if opts.MetricsEnabled {
		r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))
	}

	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet).Name("health")
	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods(http.MethodGet)
	r.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet).Name("version")
	if opts.MetricsEnabled {
		r.Handle("/metrics", h.MetricsHandler()).Methods(http.MethodGet).Name("metrics")
	}

	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.Compression(middleware.DefaultCompressionConfig()))
	api.HandleFunc("/stats", h.GetStats).Methods(http.MethodGet).Name("stats")
	api.HandleFunc("/scan", h.GetScanProgress).Methods(http.MethodGet)
	api.HandleFunc("/scan", h.TriggerScan).Methods(http.MethodPost)
	api.HandleFunc("/albums", h.ListAlbums).Methods(http.MethodGet)
	api.HandleFunc("/albums", h.AddAlbum).Methods(http.MethodPost)
	api.HandleFunc("/albums", h.RemoveAlbum).Methods(http.MethodDelete)
	api.HandleFunc("/recent", h.GetRecent).Methods(http.MethodGet)
	api.HandleFunc("/view", h.GetView).Methods(http.MethodGet)
	api.HandleFunc("/view", h.SetView).Methods(http.MethodPut)
	api.HandleFunc("/open", h.OpenFile).Methods(http.MethodPost)
	api.HandleFunc("/library", h.ShowLibrary).Methods(http.MethodPost)
	api.HandleFunc("/thumbnail", h.GetThumbnail).Methods(http.MethodGet)

	return r
}
