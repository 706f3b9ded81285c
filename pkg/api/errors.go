package api

import (
	"errors"
	"net/http"

	"github.com/digital-lions/backend/pkg/hierarchy"
	"github.com/digital-lions/backend/pkg/httputil"
	"github.com/digital-lions/backend/pkg/idp"
	"github.com/digital-lions/backend/pkg/middleware"
	"github.com/digital-lions/backend/pkg/program"
	"github.com/digital-lions/backend/pkg/rbac"
)

// writeError maps domain errors from every service onto HTTP statuses.
// Unrecognized errors fall through to the role service mapping, which
// ends at 500.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, hierarchy.ErrNotFound),
		errors.Is(err, program.ErrChildNotFound),
		errors.Is(err, program.ErrWorkshopNotFound),
		errors.Is(err, idp.ErrNotFound):
		httputil.WriteError(w, http.StatusNotFound, err)
	case errors.Is(err, hierarchy.ErrConflict),
		errors.Is(err, hierarchy.ErrHasChildren),
		errors.Is(err, program.ErrChildExists),
		errors.Is(err, program.ErrChildHasAttendance),
		errors.Is(err, program.ErrWorkshopExists),
		errors.Is(err, idp.ErrConflict):
		httputil.WriteError(w, http.StatusConflict, err)
	case errors.Is(err, hierarchy.ErrBadLevel),
		errors.Is(err, program.ErrWorkshopNumber),
		errors.Is(err, program.ErrChildNotInTeam),
		errors.Is(err, program.ErrIncompleteAttendance),
		errors.Is(err, program.ErrBadAttendance),
		errors.Is(err, idp.ErrBadRequest):
		httputil.WriteError(w, http.StatusBadRequest, err)
	default:
		rbac.WriteServiceError(w, err)
	}
}

// caller resolves the authenticated subject into an authorization user.
// Writes 401 and returns false when the request carries no auth context.
func caller(w http.ResponseWriter, r *http.Request) (*rbac.User, bool) {
	authCtx := middleware.GetAuthContext(r)
	if authCtx == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return nil, false
	}
	return rbac.NewUser(authCtx.Subject), true
}

// authorizeNode runs a node-bound permission check and writes the
// response on denial or error. Denied callers always see 403, never 404.
func authorizeNode(w http.ResponseWriter, r *http.Request, authorizer *rbac.Authorizer, user *rbac.User, perm rbac.Permission, node *hierarchy.Node) bool {
	ok, err := authorizer.HasPermissionOnResource(r.Context(), user, perm, node)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return false
	}
	if !ok {
		rbac.WriteServiceError(w, rbac.ErrInsufficientPermissions)
		return false
	}
	return true
}
