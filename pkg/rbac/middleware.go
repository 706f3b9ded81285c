package rbac

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/digital-lions/backend/pkg/httputil"
	"github.com/digital-lions/backend/pkg/middleware"
)

// RequirePermission guards a route with a resource-independent permission
// check. Node-bound checks stay inside the handlers, where the target
// resource is known.
func RequirePermission(authorizer *Authorizer, perm Permission) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := middleware.GetAuthContext(r)
			if caller == nil {
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}
			if err := authorizer.VerifyPermission(r.Context(), NewUser(caller.Subject), perm); err != nil {
				WriteServiceError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
