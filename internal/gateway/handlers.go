package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/99004433/Multi-tenant-IAM/internal/audit"
	"github.com/99004433/Multi-tenant-IAM/internal/auth"
	"github.com/99004433/Multi-tenant-IAM/internal/obs"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type registerRequest struct {
	OrganizationID string `json:"organization_id"`
	GroupID        string `json:"group_id"`
	Email          string `json:"email"`
	Password       string `json:"password"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	ContactNo      string `json:"contact_no"`
}

type sessionResponse struct {
	Token            string      `json:"token"`
	ExpiresAt        time.Time   `json:"expires_at"`
	RefreshToken     string      `json:"refresh_token,omitempty"`
	RefreshExpiresAt *time.Time  `json:"refresh_expires_at,omitempty"`
	User             sessionUser `json:"user"`
}

type sessionUser struct {
	ID             string   `json:"id"`
	Email          string   `json:"email"`
	OrganizationID string   `json:"organization_id"`
	Roles          []string `json:"roles"`
}

func sessionToResponse(session auth.Session) sessionResponse {
	resp := sessionResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		User: sessionUser{
			ID:             session.Identity.UserID,
			Email:          session.Identity.Email,
			OrganizationID: session.Identity.OrganizationID,
			Roles:          session.Identity.Roles,
		},
	}
	if session.RefreshToken != "" {
		resp.RefreshToken = session.RefreshToken
		t := session.RefreshExpiresAt
		resp.RefreshExpiresAt = &t
	}
	return resp
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	session, err := s.issuer.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			obs.CountAuthDecision("login", "deny")
			_ = audit.LogEvent(r.Context(), "auth.login.failed", map[string]any{
				"email": auth.NormalizeEmail(req.Email),
			})
			writeError(w, r, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "login failed")
		return
	}

	obs.CountAuthDecision("login", "allow")
	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{
		"user_id": session.Identity.UserID,
		"email":   session.Identity.Email,
	})
	writeJSON(w, http.StatusOK, sessionToResponse(session))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	session, err := s.issuer.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			obs.CountAuthDecision("refresh", "deny")
			_ = audit.LogEvent(r.Context(), "auth.refresh.failed", nil)
			writeError(w, r, http.StatusUnauthorized, "invalid token")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "refresh failed")
		return
	}

	obs.CountAuthDecision("refresh", "allow")
	_ = audit.LogEvent(r.Context(), "auth.refresh", map[string]any{
		"user_id": session.Identity.UserID,
	})
	writeJSON(w, http.StatusOK, sessionToResponse(session))
}

// handleRegister forwards self-registration to the directory's user
// endpoint. The request shape deliberately omits roles; new accounts
// get the directory's default role.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	payload, err := json.Marshal(req)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "register failed")
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.register", map[string]any{
		"email": auth.NormalizeEmail(req.Email),
	})

	forwarded := r.Clone(r.Context())
	forwarded.URL.Path = "/api/users"
	forwarded.Body = io.NopCloser(bytes.NewReader(payload))
	forwarded.ContentLength = int64(len(payload))
	forwarded.Header.Set("Content-Type", "application/json")
	s.proxy.ServeHTTP(w, forwarded)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}
