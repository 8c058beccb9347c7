package middleware

import (
	"net/http"

	"photo-gallery/internal/logging"

	"github.com/klauspost/compress/gzhttp"
	"github.com/klauspost/compress/gzip"
)

// CompressionConfig holds configuration for the compression middleware
type CompressionConfig struct {
	// MinSize is the minimum response size in bytes before compression is applied
	MinSize int
	// Level is the gzip level (gzip.BestSpeed to gzip.BestCompression)
	Level int
	// CompressibleTypes lists the content types that are compressed
	CompressibleTypes []string
}

// DefaultCompressionConfig compresses JSON and text responses of 1KB or more.
// Encoded thumbnails are already compressed and pass through.
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		MinSize: 1024,
		Level:   gzip.BestSpeed,
		CompressibleTypes: []string{
			"application/json",
			"text/plain",
		},
	}
}

// Compression returns gzip middleware. An invalid configuration is logged
// and the handler is left uncompressed.
func Compression(config CompressionConfig) func(http.Handler) http.Handler {
	wrap, err := gzhttp.NewWrapper(
		gzhttp.MinSize(config.MinSize),
		gzhttp.CompressionLevel(config.Level),
		gzhttp.ContentTypes(config.CompressibleTypes),
	)
	if err != nil {
		logging.Warn("Response compression disabled: %v", err)
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return wrap(next)
	}
}
