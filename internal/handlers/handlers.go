package handlers

import (
	"time"

	"photo-gallery/internal/library"
	"photo-gallery/internal/memory"
	"photo-gallery/internal/startup"
)

// defaultFrameTimeout bounds how long a request waits for the render thread.
const defaultFrameTimeout = 2 * time.Second

// Handlers serves the status API for one library.
type Handlers struct {
	lib          *library.Library
	monitor      *memory.Monitor
	thumbSize    int
	started      time.Time
	frameTimeout time.Duration
}

// New creates handlers for lib. config supplies the thumbnail size used for
// thumbnail requests.
func New(lib *library.Library, config *startup.Config) *Handlers {
	return &Handlers{
		lib:          lib,
		thumbSize:    config.ThumbnailSize,
		started:      time.Now(),
		frameTimeout: defaultFrameTimeout,
	}
}

// SetMemoryMonitor adds memory usage to the stats response.
func (h *Handlers) SetMemoryMonitor(m *memory.Monitor) {
	h.monitor = m
}
