package rbac

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/digital-lions/backend/pkg/hierarchy"
	"github.com/digital-lions/backend/pkg/httputil"
	"github.com/digital-lions/backend/pkg/middleware"
)

// Handlers provides HTTP handlers for scoped role management
type Handlers struct {
	service    *Service
	authorizer *Authorizer
}

// NewHandlers creates new role handlers
func NewHandlers(service *Service, authorizer *Authorizer) *Handlers {
	return &Handlers{service: service, authorizer: authorizer}
}

// RegisterRoutes registers all role management routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/users/{user_id}/roles", h.GrantRole).Methods("POST")
	router.HandleFunc("/users/{user_id}/roles", h.ListRoles).Methods("GET")
	router.HandleFunc("/users/{user_id}/roles/{assignment_id}", h.RevokeRole).Methods("DELETE")
	router.HandleFunc("/roles/permissions", h.ListRolePermissions).Methods("GET")
}

// GrantRole assigns a scoped role to a user
func (h *Handlers) GrantRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := middleware.GetAuthContext(r)
	if caller == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	if err := h.authorizer.VerifyPermission(ctx, NewUser(caller.Subject), PermUsersWrite); err != nil {
		WriteServiceError(w, err)
		return
	}

	userID, ok := httputil.ParsePathStringOrError(w, r, "user_id")
	if !ok {
		return
	}

	var req struct {
		Role       string `json:"role"`
		Level      string `json:"level"`
		ResourceID int64  `json:"resource_id"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Role, "role") ||
		!httputil.RequireNonEmpty(w, req.Level, "level") ||
		!httputil.RequirePositive(w, req.ResourceID, "resource_id") {
		return
	}

	assignment, err := h.service.Grant(ctx, userID, req.Role, req.Level, req.ResourceID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	httputil.WriteCreated(w, assignment)
}

// ListRoles lists all scoped roles of a user
func (h *Handlers) ListRoles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := middleware.GetAuthContext(r)
	if caller == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	if err := h.authorizer.VerifyPermission(ctx, NewUser(caller.Subject), PermUsersRead); err != nil {
		WriteServiceError(w, err)
		return
	}

	userID, ok := httputil.ParsePathStringOrError(w, r, "user_id")
	if !ok {
		return
	}

	assignments, err := h.service.List(ctx, userID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	if assignments == nil {
		assignments = []Assignment{}
	}
	httputil.WriteSuccess(w, assignments)
}

// RevokeRole removes one scoped role from a user by assignment ID
func (h *Handlers) RevokeRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := middleware.GetAuthContext(r)
	if caller == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	if err := h.authorizer.VerifyPermission(ctx, NewUser(caller.Subject), PermUsersWrite); err != nil {
		WriteServiceError(w, err)
		return
	}

	userID, ok := httputil.ParsePathStringOrError(w, r, "user_id")
	if !ok {
		return
	}
	assignmentID, ok := httputil.ParsePathInt64OrError(w, r, "assignment_id")
	if !ok {
		return
	}

	if err := h.service.Revoke(ctx, userID, assignmentID); err != nil {
		WriteServiceError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// ListRolePermissions returns the static role to permission-set mapping
func (h *Handlers) ListRolePermissions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := middleware.GetAuthContext(r)
	if caller == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	if err := h.authorizer.VerifyPermission(ctx, NewUser(caller.Subject), PermRolesRead); err != nil {
		WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, RolePermissions)
}

// WriteServiceError maps role-service error kinds to HTTP statuses.
// Permission denials are always 403, never 404, so callers cannot probe
// resource existence through authorization failures.
func WriteServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInsufficientPermissions):
		httputil.WriteForbidden(w, err.Error())
	case errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrResourceNotFound),
		errors.Is(err, ErrRoleNotFoundForUser):
		httputil.WriteNotFoundError(w, err.Error())
	case errors.Is(err, ErrRoleAlreadyExists):
		httputil.WriteConflict(w, err.Error())
	case errors.Is(err, ErrUnknownRole),
		errors.Is(err, ErrRoleLevel),
		errors.Is(err, hierarchy.ErrBadLevel):
		httputil.WriteBadRequest(w, err.Error())
	default:
		httputil.WriteInternalError(w, err)
	}
}
