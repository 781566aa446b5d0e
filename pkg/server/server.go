// Package server exposes the drift-detection pipeline over HTTP: a
// service manifest, health and metrics probes, template management,
// capture ingestion, log querying and export, a dashboard summary, and
// API-key administration.
package server

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/greywatch/driftwatch/pkg/api"
	"github.com/greywatch/driftwatch/pkg/auditlog"
	"github.com/greywatch/driftwatch/pkg/auth"
	"github.com/greywatch/driftwatch/pkg/canon"
	"github.com/greywatch/driftwatch/pkg/match"
	"github.com/greywatch/driftwatch/pkg/observability"
	"github.com/greywatch/driftwatch/pkg/patternrule"
	"github.com/greywatch/driftwatch/pkg/template"
	"github.com/greywatch/driftwatch/pkg/transition"
)

// MatchThreshold is the default minimum score for find_best_match to
// report a hit.
const MatchThreshold = 0.80

// DiffThreshold is the similarity floor below which a matched capture
// is still treated as a layout drift worth recording.
const DiffThreshold = 0.90

// Server wires the drift pipeline's pure components (canon, match,
// diff, transition, patternrule, drift) to durable storage (auditlog)
// and the authenticator, and serves them over HTTP.
type Server struct {
	Templates   *template.Store
	Log         *auditlog.Log
	Keys        *auth.KeyStore
	Limiter     *auth.RateLimiter
	IPLimiter   *api.IPLimiter
	Rules       *patternrule.Engine
	Metrics     *observability.Registry
	Health      *observability.HealthChecker
	Logger      *slog.Logger
	MaxBodyMB   int64
	CORSOrigins []string
	Clock       func() time.Time

	checkersMu sync.Mutex
	checkers   map[string]*transition.Checker

	baselineMu sync.Mutex
	baselines  map[string]*canon.Tree

	startedAt time.Time
}

// New constructs a Server. Callers set exported fields needed for
// their deployment (a nil *auditlog.Log or *auth.KeyStore will panic
// handlers that need them, matching the teacher's fail-fast wiring
// style) before calling Mux.
func New() *Server {
	return &Server{
		checkers:  make(map[string]*transition.Checker),
		baselines: make(map[string]*canon.Tree),
		Clock:     time.Now,
		startedAt: time.Now(),
	}
}

// checkerFor returns the transition.Checker tracking history for
// screenID, creating one on first use.
func (s *Server) checkerFor(screenID string) *transition.Checker {
	s.checkersMu.Lock()
	defer s.checkersMu.Unlock()
	c, ok := s.checkers[screenID]
	if !ok {
		c = transition.NewChecker(s.Templates)
		s.checkers[screenID] = c
	}
	return c
}

func (s *Server) baselineFor(screenID string) (*canon.Tree, bool) {
	s.baselineMu.Lock()
	defer s.baselineMu.Unlock()
	t, ok := s.baselines[screenID]
	return t, ok
}

func (s *Server) setBaseline(screenID string, t *canon.Tree) {
	s.baselineMu.Lock()
	defer s.baselineMu.Unlock()
	s.baselines[screenID] = t
}

// Mux builds the full middleware-wrapped handler tree: request-context
// logger → rate limiter → request-size cap → authenticator dependency
// (applied per-route, not globally) → handler.
func (s *Server) Mux() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /", s.handleManifest)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /templates", s.handleTemplateList)
	mux.HandleFunc("GET /templates/{id}", s.handleTemplateGet)
	mux.HandleFunc("POST /templates", s.requireRole(auth.PermWriteTemplate, s.handleTemplateCreate))
	mux.HandleFunc("POST /captures", s.requireRole(auth.PermWriteCaptures, s.handleCapture))
	mux.HandleFunc("GET /logs", s.handleLogs)
	mux.HandleFunc("GET /logs/export", s.handleLogsExport)
	mux.HandleFunc("GET /dashboard", s.handleDashboard)
	mux.HandleFunc("POST /auth/token", s.requireRole(auth.PermAdminKeys, s.handleIssueKey))
	mux.HandleFunc("POST /auth/validate", s.requireAuthenticated(s.handleValidateKey))
	mux.HandleFunc("GET /auth/keys", s.requireRole(auth.PermAdminKeys, s.handleListKeys))

	var handler http.Handler = mux
	handler = s.requestSizeCap(handler)
	if s.Limiter != nil {
		handler = s.Limiter.Middleware(handler)
	}
	if s.IPLimiter != nil {
		handler = s.IPLimiter.Middleware(handler)
	}
	handler = auth.CORSMiddleware(s.CORSOrigins)(handler)
	handler = s.logRequests(handler)
	handler = auth.RequestIDMiddleware(handler)
	return handler
}

// logRequests attaches a per-request observability context and logs
// completion with status and duration.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := s.Clock()
		rc := observability.RequestContext{
			RequestID: auth.RequestIDFromContext(r.Context()),
			Method:    r.Method,
			Path:      r.URL.Path,
			Client:    r.RemoteAddr,
		}
		ctx := observability.WithRequestContext(r.Context(), rc)
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r.WithContext(ctx))

		logger := s.Logger
		if logger == nil {
			logger = slog.Default()
		}
		observability.FromContext(ctx, logger).Info("request completed",
			"status", sw.status,
			"duration_ms", s.Clock().Sub(start).Milliseconds(),
		)
		if s.Metrics != nil {
			s.Metrics.Counter("http.requests.total").Add(1)
			s.Metrics.Histogram("http.request.duration_ms").Observe(float64(s.Clock().Sub(start).Milliseconds()))
		}
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// requestSizeCap rejects bodies larger than MaxBodyMB with 413. A
// declared Content-Length over the cap is rejected immediately;
// otherwise http.MaxBytesReader enforces the cap as the body is read,
// and handlers report that failure via api.WriteDecodeError.
func (s *Server) requestSizeCap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit := s.MaxBodyMB
		if limit <= 0 {
			limit = 5
		}
		maxBytes := limit * 1024 * 1024
		if r.ContentLength > maxBytes {
			api.WriteTooLarge(w, "")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		next.ServeHTTP(w, r)
	})
}

// authenticate resolves the X-API-Key header to a Principal, or
// reports why it could not.
func (s *Server) authenticate(r *http.Request) (auth.Principal, bool, string) {
	key := r.Header.Get("X-API-Key")
	if key == "" {
		return auth.Principal{}, false, "missing X-API-Key header"
	}
	if s.Keys == nil {
		return auth.Principal{}, false, "authenticator not configured"
	}
	rec, ok := s.Keys.Validate(key)
	if !ok {
		return auth.Principal{}, false, "unknown or revoked API key"
	}
	return auth.Principal{Name: rec.Name, Role: rec.Role}, true, ""
}

// requireAuthenticated wraps handler so it only runs once a valid key
// has resolved to a Principal placed in the request context.
func (s *Server) requireAuthenticated(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok, reason := s.authenticate(r)
		if !ok {
			api.WriteUnauthorized(w, reason)
			return
		}
		handler(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
	}
}

// requireRole wraps handler so it runs only for an authenticated
// Principal holding perm.
func (s *Server) requireRole(perm auth.Permission, handler http.HandlerFunc) http.HandlerFunc {
	return s.requireAuthenticated(func(w http.ResponseWriter, r *http.Request) {
		p, _ := auth.PrincipalFromContext(r.Context())
		if !auth.HasPermission(p.Role, perm) {
			api.WriteForbidden(w, "role "+string(p.Role)+" lacks permission "+string(perm))
			return
		}
		handler(w, r)
	})
}

func newUUID() string {
	return uuid.NewString()
}
