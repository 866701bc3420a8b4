// Package api exposes the PID relation service over HTTP: REST endpoints for
// identifier and relation mutations, read-side queries, a GraphQL endpoint,
// plus health and metrics.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pidstack/pidrelations/pkg/audit"
	"github.com/pidstack/pidrelations/pkg/auth"
	"github.com/pidstack/pidrelations/pkg/config"
	"github.com/pidstack/pidrelations/pkg/constraints"
	"github.com/pidstack/pidrelations/pkg/events"
	"github.com/pidstack/pidrelations/pkg/graphql"
	"github.com/pidstack/pidrelations/pkg/health"
	"github.com/pidstack/pidrelations/pkg/logging"
	"github.com/pidstack/pidrelations/pkg/metrics"
	"github.com/pidstack/pidrelations/pkg/pidstore"
	"github.com/pidstack/pidrelations/pkg/relations"
	"github.com/pidstack/pidrelations/pkg/versioning"
)

const maxBodySize = 1 << 20 // 1 MB

// Deps bundles the backends the server operates on
type Deps struct {
	PIDs     pidstore.Store
	Rels     relations.Store
	Registry *relations.Registry
	Bus      *events.Bus
	Audit    *audit.Log // nil disables audit logging
	Metrics  *metrics.Registry
	Logger   logging.Logger
}

// Server is the HTTP API server
type Server struct {
	cfg       *config.Config
	pids      pidstore.Store
	rels      relations.Store
	registry  *relations.Registry
	validator *constraints.Validator
	bus       *events.Bus
	auditLog  *audit.Log
	jwt       *auth.JWTManager
	apiKeys   *auth.APIKeyStore
	metrics   *metrics.Registry
	health    *health.Checker
	gql       *graphql.Handler
	logger    logging.Logger
	startTime time.Time

	httpServer *http.Server

	// last offline validation run, feeding the health check
	valMu       sync.Mutex
	valAt       time.Time
	valErrors   int
	valWarnings int
}

// NewServer creates an API server over the given stores
func NewServer(cfg *config.Config, deps Deps) (*Server, error) {
	if deps.Logger == nil {
		deps.Logger = logging.NewNopLogger()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.DefaultRegistry()
	}
	if deps.Bus == nil {
		deps.Bus = events.NewBus(events.WithBufferSize(cfg.Events.BufferSize))
	}

	s := &Server{
		cfg:       cfg,
		pids:      deps.PIDs,
		rels:      deps.Rels,
		registry:  deps.Registry,
		validator: constraints.NewRegistryValidator(deps.Registry, deps.PIDs),
		bus:       deps.Bus,
		auditLog:  deps.Audit,
		apiKeys:   auth.NewAPIKeyStore(),
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		startTime: time.Now(),
	}

	if cfg.Auth.Enabled {
		jwtManager, err := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize token verification: %w", err)
		}
		s.jwt = jwtManager
	}

	schema, err := graphql.GenerateSchema(graphql.NewResolver(deps.PIDs, deps.Rels, deps.Registry))
	if err != nil {
		return nil, fmt.Errorf("failed to build graphql schema: %w", err)
	}
	s.gql = graphql.NewHandler(schema)

	s.health = health.NewChecker()
	pidCheck := health.StoreCheck("pid_store", deps.PIDs.Ping)
	relCheck := health.StoreCheck("relation_store", deps.Rels.Ping)
	s.health.RegisterCheck("pid_store", pidCheck)
	s.health.RegisterCheck("relation_store", relCheck)
	s.health.RegisterReadinessCheck("pid_store", pidCheck)
	s.health.RegisterReadinessCheck("relation_store", relCheck)
	s.health.RegisterCheck("relation_types", health.RegistryCheck(func() int {
		return len(deps.Registry.All())
	}))
	s.health.RegisterCheck("graph_consistency", health.ValidationCheck(s.lastValidation))
	s.health.RegisterLivenessCheck("memory", health.MemoryCheck(func() (uint64, uint64) {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		return m.Alloc, m.Sys
	}))

	return s, nil
}

// Router builds the HTTP handler with all routes and middleware applied
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	// Health and observability
	mux.HandleFunc("GET /health", s.health.HTTPHandler())
	mux.HandleFunc("GET /health/ready", s.health.ReadinessHandler())
	mux.HandleFunc("GET /health/live", s.health.LivenessHandler())
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.metrics.GetPrometheusRegistry(), promhttp.HandlerOpts{}))

	// GraphQL read API
	mux.Handle("POST /graphql", s.gql)

	// PID lifecycle
	mux.Handle("POST /api/v1/pids", s.mutating(s.handleCreatePID))
	mux.HandleFunc("GET /api/v1/pids/{type}/{value}", s.handleGetPID)
	mux.HandleFunc("GET /api/v1/pids/{type}/{value}/resolve", s.handleResolvePID)
	mux.Handle("PUT /api/v1/pids/{type}/{value}/status", s.mutating(s.handleSetStatus))
	mux.Handle("PUT /api/v1/pids/{type}/{value}/redirect", s.mutating(s.handleRedirect))
	mux.HandleFunc("GET /api/v1/pids/{type}", s.handleListPIDs)

	// Relation queries
	mux.HandleFunc("GET /api/v1/pids/{type}/{value}/children", s.handleListRelated(true))
	mux.HandleFunc("GET /api/v1/pids/{type}/{value}/parents", s.handleListRelated(false))
	mux.HandleFunc("POST /api/v1/pids/{type}/{value}/traverse", s.handleTraverse)

	// Version chains
	mux.HandleFunc("GET /api/v1/pids/{type}/{value}/versions", s.handleGetVersions)
	mux.Handle("POST /api/v1/pids/{type}/{value}/versions", s.mutating(s.handleAddVersion))
	mux.HandleFunc("GET /api/v1/pids/{type}/{value}/draft", s.handleGetDraft)
	mux.Handle("POST /api/v1/pids/{type}/{value}/draft", s.mutating(s.handleCreateDraft))
	mux.Handle("DELETE /api/v1/pids/{type}/{value}/draft", s.mutating(s.handleDeleteDraft))
	mux.Handle("POST /api/v1/pids/{type}/{value}/draft/publish", s.mutating(s.handlePublishDraft))

	// Relation mutations
	mux.Handle("POST /api/v1/relations", s.mutating(s.handleCreateRelation))
	mux.Handle("DELETE /api/v1/relations", s.mutating(s.handleDeleteRelation))
	mux.HandleFunc("GET /api/v1/relation-types", s.handleListRelationTypes)

	// Offline consistency validation
	mux.HandleFunc("POST /api/v1/validate", s.handleValidate)

	// Administration
	mux.Handle("POST /api/v1/token", s.admin(s.handleMintToken))
	mux.Handle("POST /api/v1/apikeys", s.admin(s.handleCreateAPIKey))
	mux.Handle("GET /api/v1/apikeys", s.admin(s.handleListAPIKeys))
	mux.Handle("DELETE /api/v1/apikeys/{id}", s.admin(s.handleRevokeAPIKey))
	mux.Handle("GET /api/v1/audit/export", s.admin(s.handleAuditExport))

	var handler http.Handler = mux
	handler = s.bodySizeLimitMiddleware(handler)
	handler = s.metricsMiddleware(handler)
	handler = s.corsMiddleware(handler)
	handler = s.loggingMiddleware(handler)
	handler = s.panicRecoveryMiddleware(handler)
	return handler
}

// Start runs the HTTP server until the listener fails or Shutdown is called
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	s.logger.Info("api server listening", logging.String("addr", addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// APIKeys exposes the key store so operators can seed keys at startup
func (s *Server) APIKeys() *auth.APIKeyStore {
	return s.apiKeys
}

// Health exposes the health checker for additional component checks
func (s *Server) Health() *health.Checker {
	return s.health
}

func (s *Server) lastValidation() (time.Time, int, int) {
	s.valMu.Lock()
	defer s.valMu.Unlock()
	return s.valAt, s.valErrors, s.valWarnings
}

func (s *Server) recordValidation(result *constraints.ValidationResult) {
	errors := len(result.GetViolationsBySeverity(constraints.Error))
	warnings := len(result.GetViolationsBySeverity(constraints.Warning))
	infos := len(result.GetViolationsBySeverity(constraints.Info))
	s.metrics.RecordValidation(errors, warnings, infos)

	s.valMu.Lock()
	s.valAt = result.CheckedAt
	s.valErrors = errors
	s.valWarnings = warnings
	s.valMu.Unlock()
}

// chainFor builds the version chain around the PID addressed by the request
// path. A nil chain means the response has already been written.
func (s *Server) chainFor(w http.ResponseWriter, r *http.Request) (*versioning.Chain, *pidstore.PID) {
	pid := s.pidFromPath(w, r)
	if pid == nil {
		return nil, nil
	}
	chain, err := versioning.NewChain(s.rels, s.pids, pid, s.registry)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return nil, nil
	}
	return chain, pid
}

// pidFromPath loads the PID addressed by {type}/{value}, writing a 404 when
// it does not exist
func (s *Server) pidFromPath(w http.ResponseWriter, r *http.Request) *pidstore.PID {
	pid, err := s.pids.Get(r.Context(), r.PathValue("type"), r.PathValue("value"))
	if err != nil {
		s.respondStoreError(w, err)
		return nil
	}
	return pid
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			s.logger.Error("failed to encode response", logging.Err(err))
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, code, message string) {
	s.respondJSON(w, status, ErrorResponse{
		Error:   code,
		Message: message,
		Code:    status,
	})
}
