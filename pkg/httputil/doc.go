// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Overview
//
// This package offers helper functions for JSON encoding/decoding, error responses,
// parameter parsing, validation, and the outer HTTP middleware.
//
// # Response Helpers
//
// JSON responses:
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteSuccess(w, resource)
//	httputil.WriteCreated(w, resource)
//
// Error responses:
//
//	httputil.WriteError(w, http.StatusBadRequest, err)
//	httputil.WriteBadRequest(w, "Invalid input")
//	httputil.WriteUnauthorized(w, "Token expired")
//	httputil.WriteForbidden(w, "Insufficient permissions")
//
// # Request Parsing
//
// JSON parsing:
//
//	var req createTeamRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // Error response already written
//	}
//
// Path parameters:
//
//	id, ok := httputil.ParsePathInt64OrError(w, r, "team_id")
//	userID, ok := httputil.ParsePathStringOrError(w, r, "user_id")
//
// Query parameters:
//
//	communityID, err := httputil.ParseQueryInt64(r, "community_id", 0)
//	cascade, err := httputil.ParseQueryBool(r, "cascade", false)
//
// # Middleware
//
//	router.Use(httputil.RequestIDMiddleware)
//	router.Use(httputil.LoggingMiddleware(log))
//	router.Use(httputil.RecoveryMiddleware)
//	router.Use(httputil.CORSMiddleware(origins))
//
// # Related Packages
//
//   - pkg/middleware: Authentication and rate limiting middleware
package httputil
