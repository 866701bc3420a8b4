package api

import (
	"context"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/pidstack/pidrelations/pkg/auth"
	"github.com/pidstack/pidrelations/pkg/logging"
)

type contextKey string

const claimsContextKey contextKey = "claims"

// claimsFrom returns the authenticated claims, or nil for anonymous requests
func claimsFrom(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsContextKey).(*auth.Claims)
	return claims
}

// actorFrom names the caller for audit records
func actorFrom(ctx context.Context) string {
	if claims := claimsFrom(ctx); claims != nil {
		return claims.Subject
	}
	return "anonymous"
}

// statusResponseWriter captures the status code for logging and metrics
type statusResponseWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusResponseWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (s *Server) panicRecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic in handler",
					logging.String("method", r.Method),
					logging.String("path", r.URL.Path),
					logging.String("panic", toString(rec)),
					logging.String("stack", string(debug.Stack())))
				s.respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func toString(v any) string {
	if err, ok := v.(error); ok {
		return err.Error()
	}
	if str, ok := v.(string); ok {
		return str
	}
	return "unknown panic"
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusResponseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		s.logger.Info("request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", sw.status),
			logging.Duration("duration", time.Since(start)),
			logging.String("remote", r.RemoteAddr))
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	for _, allowed := range s.cfg.Server.CORSOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		s.metrics.HTTPRequestsInFlight.Inc()
		defer s.metrics.HTTPRequestsInFlight.Dec()

		sw := &statusResponseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		// Pattern keeps the label cardinality bounded; unmatched requests
		// fall back to a single bucket.
		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		s.metrics.RecordHTTPRequest(r.Method, path, strconv.Itoa(sw.status), time.Since(start))
	})
}

func (s *Server) bodySizeLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
		}
		next.ServeHTTP(w, r)
	})
}

// mutating guards a write endpoint: when auth is enabled the caller must
// present a token or API key whose role may mutate
func (s *Server) mutating(handler http.HandlerFunc) http.Handler {
	return s.requireRole(handler, auth.CanMutate)
}

// admin guards an administration endpoint
func (s *Server) admin(handler http.HandlerFunc) http.Handler {
	return s.requireRole(handler, func(role string) bool {
		return role == auth.RoleAdmin
	})
}

func (s *Server) requireRole(handler http.HandlerFunc, allowed func(role string) bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.cfg.Auth.Enabled {
			handler(w, r)
			return
		}

		claims, err := s.authenticate(r)
		if err != nil {
			s.metrics.AuthFailuresTotal.Inc()
			s.respondError(w, http.StatusUnauthorized, "unauthorized", err.Error())
			return
		}
		if !allowed(claims.Role) {
			s.respondError(w, http.StatusForbidden, "forbidden", "insufficient role")
			return
		}

		ctx := context.WithValue(r.Context(), claimsContextKey, claims)
		handler(w, r.WithContext(ctx))
	})
}

// authenticate resolves the caller from a Bearer token or an X-API-Key header
func (s *Server) authenticate(r *http.Request) (*auth.Claims, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			return nil, auth.ErrInvalidToken
		}
		return s.jwt.ValidateToken(r.Context(), token)
	}

	if keyString := r.Header.Get("X-API-Key"); keyString != "" {
		key, err := s.apiKeys.Validate(keyString)
		if err != nil {
			return nil, err
		}
		return &auth.Claims{Subject: key.Name, Role: key.Role}, nil
	}

	return nil, auth.ErrInvalidToken
}
