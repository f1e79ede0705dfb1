// Package gateway is the authenticating edge of the platform. It
// terminates bearer tokens, enforces the route policy and forwards
// allowed requests to the directory service with identity headers
// attached.
package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/99004433/Multi-tenant-IAM/internal/auth"
	"github.com/99004433/Multi-tenant-IAM/internal/httpapi"
	"github.com/99004433/Multi-tenant-IAM/internal/obs"
	"github.com/99004433/Multi-tenant-IAM/internal/policy"
)

// Config assembles the gateway's collaborators.
type Config struct {
	Issuer       *auth.Issuer
	Codec        *auth.Codec
	Policy       *policy.Table
	DirectoryURL *url.URL
	Version      string

	// PublicPaths are reachable without a token, in addition to the
	// built-in auth and health endpoints.
	PublicPaths []string

	RateBurst     int
	RatePerSecond int
}

// Server is the gateway HTTP surface.
type Server struct {
	mux    *http.ServeMux
	issuer *auth.Issuer
	codec  *auth.Codec
	policy *policy.Table
	proxy  http.Handler

	publicPaths map[string]struct{}
	version     string

	rateBurst     int
	ratePerSecond int
}

func New(cfg Config) (*Server, error) {
	if cfg.Issuer == nil || cfg.Codec == nil {
		return nil, errors.New("gateway: issuer and codec are required")
	}
	if cfg.Policy == nil {
		return nil, errors.New("gateway: route policy is required")
	}
	if cfg.DirectoryURL == nil {
		return nil, errors.New("gateway: directory url is required")
	}

	s := &Server{
		mux:           http.NewServeMux(),
		issuer:        cfg.Issuer,
		codec:         cfg.Codec,
		policy:        cfg.Policy,
		proxy:         newDirectoryProxy(cfg.DirectoryURL),
		publicPaths:   make(map[string]struct{}, len(cfg.PublicPaths)),
		version:       cfg.Version,
		rateBurst:     cfg.RateBurst,
		ratePerSecond: cfg.RatePerSecond,
	}
	for _, p := range cfg.PublicPaths {
		s.publicPaths[p] = struct{}{}
	}

	s.mux.HandleFunc("/healthz", s.Healthz)
	s.mux.Handle("/metrics", obs.Handler())
	s.mux.HandleFunc("/api/auth/login", s.handleLogin)
	s.mux.HandleFunc("/api/auth/refresh", s.handleRefresh)
	s.mux.HandleFunc("/api/auth/register", s.handleRegister)
	s.mux.Handle("/", s.withAuth(s.authorize(s.forward())))

	return s, nil
}

// Handler assembles the middleware chain around the mux. Inbound
// identity headers are stripped before anything else runs so clients
// cannot impersonate the gateway.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	if s.ratePerSecond > 0 {
		h = httpapi.RateLimit(h, s.rateBurst, s.ratePerSecond)
	}
	h = obs.Instrument("gateway", h)
	h = httpapi.LoggingJSON(h)
	h = httpapi.RequestID(h)
	h = stripIdentityHeaders(h)
	return h
}

func (s *Server) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "iam-gateway",
		"version": s.version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) isPublicPath(path string) bool {
	_, ok := s.publicPaths[path]
	return ok
}

func stripIdentityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Header.Del(httpapi.HeaderUserID)
		r.Header.Del(httpapi.HeaderUserEmail)
		r.Header.Del(httpapi.HeaderOrgID)
		r.Header.Del(httpapi.HeaderUserRoles)
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := httpapi.RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}
