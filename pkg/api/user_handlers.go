package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/digital-lions/backend/pkg/httputil"
	"github.com/digital-lions/backend/pkg/idp"
	"github.com/digital-lions/backend/pkg/observability"
	"github.com/digital-lions/backend/pkg/rbac"
)

// UserHandlers serves user management. User accounts live in the
// identity provider; the local database only holds their scoped roles.
type UserHandlers struct {
	idp        idp.Client
	roles      *rbac.Store
	authorizer *rbac.Authorizer
	log        *observability.Logger
}

// NewUserHandlers creates the user management handlers. The role store
// is used to drop a user's assignments when the account is deleted.
func NewUserHandlers(client idp.Client, roles *rbac.Store, authorizer *rbac.Authorizer, log *observability.Logger) *UserHandlers {
	return &UserHandlers{idp: client, roles: roles, authorizer: authorizer, log: log}
}

// RegisterRoutes registers the user management routes.
func (h *UserHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/users", h.ListUsers).Methods("GET")
	router.HandleFunc("/users", h.CreateUser).Methods("POST")
	router.HandleFunc("/users/{user_id}", h.GetUser).Methods("GET")
	router.HandleFunc("/users/{user_id}", h.DeleteUser).Methods("DELETE")
}

// ListUsers lists all user accounts.
func (h *UserHandlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	if err := h.authorizer.VerifyPermission(r.Context(), user, rbac.PermUsersRead); err != nil {
		rbac.WriteServiceError(w, err)
		return
	}

	users, err := h.idp.ListUsers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if users == nil {
		users = []idp.User{}
	}
	httputil.WriteSuccess(w, users)
}

// GetUser returns one user account.
func (h *UserHandlers) GetUser(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	if err := h.authorizer.VerifyPermission(r.Context(), user, rbac.PermUsersRead); err != nil {
		rbac.WriteServiceError(w, err)
		return
	}
	userID, ok := httputil.ParsePathStringOrError(w, r, "user_id")
	if !ok {
		return
	}

	account, err := h.idp.GetUser(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, account)
}

// CreateUser invites a new user by email. The identity provider creates
// the account with a generated password and sends the reset mail.
func (h *UserHandlers) CreateUser(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	if err := h.authorizer.VerifyPermission(r.Context(), user, rbac.PermUsersWrite); err != nil {
		rbac.WriteServiceError(w, err)
		return
	}

	var req struct {
		Email string `json:"email"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) || !httputil.RequireNonEmpty(w, req.Email, "email") {
		return
	}

	account, err := h.idp.CreateUser(r.Context(), req.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	h.log.WithField("email", req.Email).Info("user created")
	httputil.WriteCreated(w, account)
}

// DeleteUser removes a user account and every scoped role they hold.
func (h *UserHandlers) DeleteUser(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	if err := h.authorizer.VerifyPermission(r.Context(), user, rbac.PermUsersWrite); err != nil {
		rbac.WriteServiceError(w, err)
		return
	}
	userID, ok := httputil.ParsePathStringOrError(w, r, "user_id")
	if !ok {
		return
	}

	if _, err := h.idp.GetUser(r.Context(), userID); err != nil {
		writeError(w, err)
		return
	}
	if err := h.idp.DeleteUser(r.Context(), userID); err != nil {
		writeError(w, err)
		return
	}
	if h.roles != nil {
		if err := h.roles.DeleteByUser(r.Context(), userID); err != nil {
			h.log.WithError(err).WithField("user_id", userID).Error("failed to drop assignments for deleted user")
		}
	}
	h.log.WithField("user_id", userID).Info("user deleted")
	httputil.WriteNoContent(w)
}
