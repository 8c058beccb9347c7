package handlers

import (
	"errors"
	"io/fs"
	"net/http"

	"photo-gallery/internal/library"
)

// ViewResponse describes what the gallery shows.
type ViewResponse struct {
	Mode     library.Mode     `json:"mode"`
	Folder   string           `json:"folder,omitempty"`
	Images   int              `json:"images"`
	Viewport library.Viewport `json:"viewport"`
	Index    *int             `json:"index,omitempty"`
}

func (h *Handlers) view() ViewResponse {
	mode, folder := h.lib.Mode()
	return ViewResponse{
		Mode:     mode,
		Folder:   folder,
		Images:   len(h.lib.Paths()),
		Viewport: h.lib.Viewport(),
	}
}

// GetView returns the current mode and viewport
func (h *Handlers) GetView(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")
	writeJSONCode(w, http.StatusOK, h.view())
}

// SetView moves the viewport; the next frame requests its thumbnails
func (h *Handlers) SetView(w http.ResponseWriter, r *http.Request) {
	var req library.Viewport
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Start < 0 || req.Count < 0 {
		writeJSONError(w, "start and count must not be negative", http.StatusBadRequest)
		return
	}
	h.lib.SetViewport(req.Start, req.Count)
	writeJSONCode(w, http.StatusOK, h.view())
}

// OpenFile switches to the folder of a file and scrolls to it
func (h *Handlers) OpenFile(w http.ResponseWriter, r *http.Request) {
	path, err := readPath(w, r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	index, err := h.lib.OpenFile(r.Context(), path)
	if errors.Is(err, fs.ErrNotExist) {
		writeJSONError(w, "file not found", http.StatusNotFound)
		return
	}
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp := h.view()
	resp.Index = &index
	writeJSONCode(w, http.StatusOK, resp)
}

// ShowLibrary leaves folder mode and rescans the library
func (h *Handlers) ShowLibrary(w http.ResponseWriter, _ *http.Request) {
	h.lib.ShowLibrary()
	writeJSONCode(w, http.StatusOK, h.view())
}
