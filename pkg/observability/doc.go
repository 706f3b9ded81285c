// Package observability provides structured logging, Prometheus metrics and
// health probes for the Digital Lions backend.
package observability
