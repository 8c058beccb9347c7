package handlers

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"

	"photo-gallery/internal/logging"
	"photo-gallery/internal/pipeline"
	"photo-gallery/internal/render"
)

// GetThumbnail serves the thumbnail of an image in the current list. Cached
// thumbnails are returned at once; otherwise a decode is queued and the
// response is 202 with Retry-After.
func (h *Handlers) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeJSONError(w, "path is required", http.StatusBadRequest)
		return
	}
	if h.lib.IndexOf(path) < 0 {
		writeJSONError(w, "image not in gallery", http.StatusNotFound)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.frameTimeout)
	defer cancel()

	var bmp pipeline.Bitmap
	pipe := h.lib.Pipeline()
	err := h.lib.RunOnFrame(ctx, func() {
		bmp = pipe.GetCachedThumbnail(path)
		if bmp == nil {
			bmp = pipe.RequestThumbnail(path, h.thumbSize)
		}
	})
	if err != nil {
		writeJSONError(w, "render loop busy", http.StatusServiceUnavailable)
		return
	}
	if bmp == nil {
		w.Header().Set("Retry-After", "1")
		writeJSONStatus(w, http.StatusAccepted, "pending")
		return
	}

	format := render.FormatFor(bmp)
	var buf bytes.Buffer
	if err := render.Encode(&buf, bmp, format, 0); err != nil {
		if errors.Is(err, render.ErrReleased) {
			// Evicted between the lookup and the encode.
			w.Header().Set("Retry-After", "1")
			writeJSONStatus(w, http.StatusAccepted, "pending")
			return
		}
		logging.Error("Failed to encode thumbnail %s: %v", path, err)
		writeJSONError(w, "failed to encode thumbnail", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("Cache-Control", "private, max-age=60")
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		logging.Debug("Failed to write thumbnail: %v", err)
	}
}
