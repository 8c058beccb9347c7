package handlers

import (
	"errors"
	"net/http"

	"photo-gallery/internal/albums"
	"photo-gallery/internal/library"
	"photo-gallery/internal/logging"
)

// AlbumsResponse lists album folders.
type AlbumsResponse struct {
	Albums []albums.Album `json:"albums"`
}

// writeStoreError maps album store errors onto status codes.
func writeStoreError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, library.ErrNoStore):
		writeJSONError(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, albums.ErrNotDirectory):
		writeJSONError(w, err.Error(), http.StatusBadRequest)
	default:
		logging.Error("Failed to %s: %v", op, err)
		writeJSONError(w, "Failed to "+op, http.StatusInternalServerError)
	}
}

// ListAlbums returns the stored album folders in the order they were added
func (h *Handlers) ListAlbums(w http.ResponseWriter, r *http.Request) {
	list, err := h.lib.Albums(r.Context())
	if err != nil {
		writeStoreError(w, "list albums", err)
		return
	}
	if list == nil {
		list = []albums.Album{}
	}
	writeJSONCode(w, http.StatusOK, AlbumsResponse{Albums: list})
}

// AddAlbum stores a folder as an album and rescans when it is new
func (h *Handlers) AddAlbum(w http.ResponseWriter, r *http.Request) {
	path, err := readPath(w, r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	added, err := h.lib.AddAlbum(r.Context(), path)
	if err != nil {
		writeStoreError(w, "add album", err)
		return
	}
	if !added {
		writeJSONStatus(w, http.StatusOK, "exists")
		return
	}
	writeJSONStatus(w, http.StatusCreated, "added")
}

// RemoveAlbum forgets an album folder and rescans when it was stored
func (h *Handlers) RemoveAlbum(w http.ResponseWriter, r *http.Request) {
	path, err := readPath(w, r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	removed, err := h.lib.RemoveAlbum(r.Context(), path)
	if err != nil {
		writeStoreError(w, "remove album", err)
		return
	}
	if !removed {
		writeJSONError(w, "album not found", http.StatusNotFound)
		return
	}
	writeJSONStatus(w, http.StatusOK, "removed")
}

// GetRecent returns recently opened files, newest first
func (h *Handlers) GetRecent(w http.ResponseWriter, r *http.Request) {
	recent, err := h.lib.Recent(r.Context())
	if err != nil {
		writeStoreError(w, "list recent files", err)
		return
	}
	if recent == nil {
		recent = []string{}
	}
	writeJSONCode(w, http.StatusOK, map[string][]string{"recent": recent})
}
