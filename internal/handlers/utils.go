package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"photo-gallery/internal/logging"
)

// maxRequestBody caps JSON request bodies.
const maxRequestBody = 64 << 10

// writeJSON encodes v as JSON and writes it to the response writer.
// Any encoding or write errors are logged since we typically cannot
// recover from them in an HTTP handler context.
func writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

// writeJSONCode writes v with the given status code.
func writeJSONCode(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	writeJSON(w, v)
}

// writeJSONError writes an error response as JSON with the given status code.
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	writeJSONCode(w, statusCode, map[string]string{"error": message})
}

// writeJSONStatus writes a simple status response as JSON.
func writeJSONStatus(w http.ResponseWriter, statusCode int, status string) {
	writeJSONCode(w, statusCode, map[string]string{"status": status})
}

// decodeJSON reads a bounded JSON body into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// PathRequest is the body of album and open requests.
type PathRequest struct {
	Path string `json:"path"`
}

// readPath takes the path from a JSON body, or from the path query parameter
// when the request has no body.
func readPath(w http.ResponseWriter, r *http.Request) (string, error) {
	if q := r.URL.Query().Get("path"); q != "" && r.ContentLength <= 0 {
		return q, nil
	}
	var req PathRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return "", err
	}
	if req.Path == "" {
		return "", fmt.Errorf("path is required")
	}
	return req.Path, nil
}
