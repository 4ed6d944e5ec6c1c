// Package api is Deckhand's HTTP surface: a YAML-in/YAML-out API over the
// revision store and render orchestrator, adapted from the teacher's
// pkg/api — the same rate-limiting and idempotency middleware stack, a new
// YAML error envelope in place of the teacher's RFC 7807 JSON, and handlers
// for Deckhand's own endpoint table in place of the teacher's memory
// ingestion service.
package api

import (
	"net/http"
	"time"

	"github.com/deckhand/deckhand/pkg/auditlog"
	"github.com/deckhand/deckhand/pkg/render"
	"github.com/deckhand/deckhand/pkg/revision"
)

// Deps wires a Server to its collaborators.
type Deps struct {
	Store        revision.Store
	Orchestrator *render.Orchestrator
	Audit        auditlog.Logger

	AuthRequired bool
	AuthJWTKey   string

	// RateLimitRPS/RateLimitBurst default to a permissive 20 req/s, burst 40
	// per client IP when left zero.
	RateLimitRPS   int
	RateLimitBurst int

	// IdempotencyTTL defaults to 10 minutes when zero.
	IdempotencyTTL time.Duration
}

// Server holds the built mux and its dependencies.
type Server struct {
	deps Deps
	mux  *http.ServeMux
}

// NewServer builds a Server with every /api/v1.0 route registered.
func NewServer(deps Deps) *Server {
	if deps.RateLimitRPS == 0 {
		deps.RateLimitRPS = 20
	}
	if deps.RateLimitBurst == 0 {
		deps.RateLimitBurst = 40
	}
	if deps.IdempotencyTTL == 0 {
		deps.IdempotencyTTL = 10 * time.Minute
	}
	if deps.Audit == nil {
		deps.Audit = auditlog.NopLogger{}
	}

	s := &Server{deps: deps, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) routes() {
	mux := s.mux
	const prefix = "/api/v1.0"

	mux.HandleFunc("PUT "+prefix+"/buckets/{bucket}/documents", s.handlePutBucket)

	mux.HandleFunc("GET "+prefix+"/revisions", s.handleListRevisions)
	mux.HandleFunc("DELETE "+prefix+"/revisions", s.handleDeleteAllRevisions)
	mux.HandleFunc("GET "+prefix+"/revisions/{id}", s.handleGetRevision)
	mux.HandleFunc("GET "+prefix+"/revisions/{id}/documents", s.handleListDocuments)
	mux.HandleFunc("GET "+prefix+"/revisions/{id}/rendered-documents", s.handleRenderedDocuments)
	mux.HandleFunc("GET "+prefix+"/revisions/{from}/diff/{to}", s.handleDiff)
	mux.HandleFunc("POST "+prefix+"/rollback/{id}", s.handleRollback)

	mux.HandleFunc("PUT "+prefix+"/revisions/{id}/tags/{tag}", s.handleTags)
	mux.HandleFunc("GET "+prefix+"/revisions/{id}/tags/{tag}", s.handleTags)
	mux.HandleFunc("DELETE "+prefix+"/revisions/{id}/tags/{tag}", s.handleTags)
	mux.HandleFunc("GET "+prefix+"/revisions/{id}/tags", s.handleTags)

	mux.HandleFunc("POST "+prefix+"/revisions/{id}/validations/{name}/{entry}", s.handleValidations)
	mux.HandleFunc("POST "+prefix+"/revisions/{id}/validations/{name}", s.handleValidations)
	mux.HandleFunc("GET "+prefix+"/revisions/{id}/validations/{name}", s.handleValidations)
	mux.HandleFunc("GET "+prefix+"/revisions/{id}/validations", s.handleValidations)

	mux.HandleFunc("GET "+prefix+"/versions", s.handleVersions)
}

// Handler returns the fully wrapped HTTP handler: rate limiting, then auth,
// then idempotency replay for mutating requests, then routing.
func (s *Server) Handler() http.Handler {
	limiter := NewGlobalRateLimiter(s.deps.RateLimitRPS, s.deps.RateLimitBurst)
	idemStore := NewIdempotencyStore(s.deps.IdempotencyTTL)

	var h http.Handler = s.mux
	h = IdempotencyMiddleware(idemStore)(h)
	h = authMiddleware(s.deps.AuthRequired, s.deps.AuthJWTKey)(h)
	h = limiter.Middleware(h)
	return h
}
