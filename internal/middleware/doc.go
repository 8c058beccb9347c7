// Package middleware provides HTTP middleware for the gallery status server.
//
// It includes:
//   - Access logging through the logging package, with health checks and
//     /metrics filtered out
//   - Prometheus request metrics labelled by mux route template
//   - gzip compression of JSON responses
package middleware
