// Package middleware provides the HTTP request plumbing in front of the
// API handlers: bearer-token authentication against the identity
// provider and Redis-backed rate limiting.
package middleware
