package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/digital-lions/backend/pkg/hierarchy"
	"github.com/digital-lions/backend/pkg/httputil"
	"github.com/digital-lions/backend/pkg/idp"
	"github.com/digital-lions/backend/pkg/observability"
	"github.com/digital-lions/backend/pkg/program"
	"github.com/digital-lions/backend/pkg/rbac"
)

// Deps carries everything the server wires together. The main binary
// fills it in from config; tests fill in just the parts they exercise.
type Deps struct {
	Hierarchy  *hierarchy.Store
	Roles      *rbac.Store
	RoleSvc    *rbac.Service
	Authorizer *rbac.Authorizer
	Program    *program.Service
	IdP        idp.Client

	Health  *observability.HealthChecker
	Metrics *observability.Metrics
	Log     *observability.Logger

	// Optional outer middleware, outermost first. The main binary puts
	// authentication and rate limiting here; handler tests inject a
	// fake auth context instead.
	Middleware []mux.MiddlewareFunc
}

// Server is the assembled HTTP API.
type Server struct {
	router *mux.Router

	hierarchy *HierarchyHandlers
	program   *ProgramHandlers
	users     *UserHandlers
	roles     *rbac.Handlers

	health  *observability.HealthChecker
	metrics *observability.Metrics
	log     *observability.Logger
}

// NewServer creates the API server and registers all routes.
func NewServer(deps Deps) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		hierarchy: NewHierarchyHandlers(deps.Hierarchy, deps.Roles, deps.Authorizer, deps.Program),
		program:   NewProgramHandlers(deps.Program, deps.Hierarchy, deps.Authorizer),
		users:     NewUserHandlers(deps.IdP, deps.Roles, deps.Authorizer, deps.Log),
		roles:     rbac.NewHandlers(deps.RoleSvc, deps.Authorizer),
		health:    deps.Health,
		metrics:   deps.Metrics,
		log:       deps.Log,
	}
	s.setupRoutes(deps.Middleware)
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes(outer []mux.MiddlewareFunc) {
	// Operational routes stay outside authentication.
	if s.health != nil {
		s.router.HandleFunc("/health", s.health.Liveness).Methods("GET")
		s.router.HandleFunc("/health/ready", s.health.Readiness).Methods("GET")
	}
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	}

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(httputil.RecoveryMiddleware)
	for _, m := range outer {
		api.Use(m)
	}

	s.hierarchy.RegisterRoutes(api)
	s.program.RegisterRoutes(api)
	s.users.RegisterRoutes(api)
	s.roles.RegisterRoutes(api)
}

// Router exposes the underlying router so the main binary can wrap it.
func (s *Server) Router() *mux.Router {
	return s.router
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
