// Package httpapi is the HTTP layer of the directory service. It
// trusts the identity headers the gateway forwards and never inspects
// bearer tokens itself.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/99004433/Multi-tenant-IAM/internal/directory"
	"github.com/99004433/Multi-tenant-IAM/internal/obs"
)

// ReadyProbe reports whether the service can take traffic.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the directory HTTP surface.
type API struct {
	mux        *http.ServeMux
	svc        *directory.Service
	readyProbe ReadyProbe
	version    string

	rateBurst     int
	ratePerSecond int
}

// Option configures optional API behavior.
type Option func(*API)

// WithRateLimit enables the per-client token bucket.
func WithRateLimit(burst, perSecond int) Option {
	return func(a *API) {
		a.rateBurst = burst
		a.ratePerSecond = perSecond
	}
}

func New(svc *directory.Service, rp ReadyProbe, version string, opts ...Option) *API {
	a := &API{
		mux:        http.NewServeMux(),
		svc:        svc,
		readyProbe: rp,
		version:    version,
	}
	for _, opt := range opts {
		opt(a)
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/api/organizations", a.handleOrganizations)
	a.mux.HandleFunc("/api/organizations/", a.handleOrganizationResource)
	a.mux.HandleFunc("/api/groups/", a.handleGroupResource)
	a.mux.HandleFunc("/api/roles", a.handleRoles)
	a.mux.HandleFunc("/api/roles/", a.handleRoleResource)
	a.mux.HandleFunc("/api/users", a.handleUsers)
	a.mux.HandleFunc("/api/users/search", a.handleUserSearch)
	a.mux.HandleFunc("/api/users/", a.handleUserResource)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "resource not found")
	})

	return a
}

// Handler assembles the middleware chain around the mux.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = TrustedIdentity(h)
	if a.ratePerSecond > 0 {
		h = RateLimit(h, a.rateBurst, a.ratePerSecond)
	}
	h = obs.Instrument("directory", h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return h
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "iam-directory",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
