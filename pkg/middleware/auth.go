package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/digital-lions/backend/pkg/observability"
)

// AuthContext carries the authenticated caller through the request
// context: the identity-provider subject plus the coarse permission
// claims baked into the token. Scoped authorization always goes through
// the role store; the token claims are informational.
type AuthContext struct {
	Subject     string
	Permissions []string
}

type contextKey string

const authContextKey contextKey = "auth"

// WithAuthContext attaches an auth context. Exposed for handler tests.
func WithAuthContext(ctx context.Context, authCtx *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey, authCtx)
}

// GetAuthContext extracts the auth context from a request, or nil when
// the request was not authenticated.
func GetAuthContext(r *http.Request) *AuthContext {
	authCtx, ok := r.Context().Value(authContextKey).(*AuthContext)
	if !ok {
		return nil
	}
	return authCtx
}

// TokenVerifier validates a raw bearer token.
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (*AuthContext, error)
}

// OIDCVerifier validates identity-provider JWTs via OIDC discovery.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier discovers the issuer and builds a verifier checking
// the given audience.
func NewOIDCVerifier(ctx context.Context, issuerURL, audience string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}
	return &OIDCVerifier{
		verifier: provider.Verifier(&oidc.Config{ClientID: audience}),
	}, nil
}

// Verify validates the token signature and claims and extracts the
// subject and permission claims.
func (v *OIDCVerifier) Verify(ctx context.Context, rawToken string) (*AuthContext, error) {
	token, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	var claims struct {
		Permissions []string `json:"permissions"`
	}
	if err := token.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse claims: %w", err)
	}

	return &AuthContext{Subject: token.Subject, Permissions: claims.Permissions}, nil
}

// AuthMiddleware authenticates requests with a bearer token
type AuthMiddleware struct {
	verifier TokenVerifier
	log      *observability.Logger
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(verifier TokenVerifier, log *observability.Logger) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier, log: log}
}

// Handler wraps an HTTP handler with bearer-token authentication. The
// subject is also stamped onto the request context for log correlation.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			unauthorized(w, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			unauthorized(w, "invalid authorization header format")
			return
		}

		authCtx, err := m.verifier.Verify(r.Context(), parts[1])
		if err != nil {
			m.log.WithError(err).Debug("token verification failed")
			unauthorized(w, "invalid or expired token")
			return
		}

		ctx := WithAuthContext(r.Context(), authCtx)
		ctx = observability.WithSubject(ctx, authCtx.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	fmt.Fprintf(w, `{"error":%q}`, message)
}
