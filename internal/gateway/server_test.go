package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/99004433/Multi-tenant-IAM/internal/auth"
	"github.com/99004433/Multi-tenant-IAM/internal/policy"
)

type fakeUserSource struct {
	byEmail map[string]auth.CredentialRecord
	byID    map[string]auth.CredentialRecord
}

func (f *fakeUserSource) CredentialsByEmail(_ context.Context, email string) (auth.CredentialRecord, error) {
	record, ok := f.byEmail[email]
	if !ok {
		return auth.CredentialRecord{}, auth.ErrNotFound
	}
	return record, nil
}

func (f *fakeUserSource) CredentialsByID(_ context.Context, userID string) (auth.CredentialRecord, error) {
	record, ok := f.byID[userID]
	if !ok {
		return auth.CredentialRecord{}, auth.ErrNotFound
	}
	return record, nil
}

func (f *fakeUserSource) TouchLastLogin(context.Context, string) error { return nil }

type fakeRefreshStore struct {
	tokens map[string]*auth.RefreshToken
}

func newFakeRefreshStore() *fakeRefreshStore {
	return &fakeRefreshStore{tokens: map[string]*auth.RefreshToken{}}
}

func (f *fakeRefreshStore) Create(_ context.Context, tok *auth.RefreshToken) error {
	cp := *tok
	cp.CreatedAt = time.Now()
	f.tokens[tok.ID] = &cp
	return nil
}

func (f *fakeRefreshStore) Find(_ context.Context, id string) (*auth.RefreshToken, error) {
	tok, ok := f.tokens[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *tok
	return &cp, nil
}

func (f *fakeRefreshStore) MarkRevoked(_ context.Context, id string) error {
	tok, ok := f.tokens[id]
	if !ok {
		return auth.ErrNotFound
	}
	tok.Revoked = true
	return nil
}

func (f *fakeRefreshStore) MarkRevokedByUser(_ context.Context, userID string) error {
	for _, tok := range f.tokens {
		if tok.UserID == userID {
			tok.Revoked = true
		}
	}
	return nil
}

type directoryEcho struct {
	LastPath    string
	LastHeaders http.Header
	LastBody    []byte
}

func (d *directoryEcho) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d.LastPath = r.URL.Path
		d.LastHeaders = r.Header.Clone()
		d.LastBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"items":[]}`))
	})
}

func testServer(t *testing.T, echo *directoryEcho) (http.Handler, *httptest.Server) {
	t.Helper()

	hash, err := auth.HashPassword("secret123")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	alice := auth.CredentialRecord{
		UserID:         "user-alice",
		OrganizationID: "org-1",
		Email:          "alice@x.com",
		PasswordHash:   hash,
		Status:         "active",
		Roles:          []string{"ADMIN"},
	}
	carol := auth.CredentialRecord{
		UserID:         "user-carol",
		OrganizationID: "org-1",
		Email:          "carol@x.com",
		PasswordHash:   hash,
		Status:         "active",
		Roles:          []string{"VIEWER"},
	}
	source := &fakeUserSource{
		byEmail: map[string]auth.CredentialRecord{
			alice.Email: alice,
			carol.Email: carol,
		},
		byID: map[string]auth.CredentialRecord{
			alice.UserID: alice,
			carol.UserID: carol,
		},
	}

	codec, err := auth.NewCodec("test-secret-please-rotate")
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	verifier, err := auth.NewVerifier(source)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	issuer, err := auth.NewIssuer(verifier, codec, source, auth.WithRefreshStore(newFakeRefreshStore()))
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}

	rules, err := policy.Parse("/api/organizations=ADMIN;/api/users=ADMIN|SUPERADMIN;/api/admin=SUPERADMIN")
	if err != nil {
		t.Fatalf("policy.Parse: %v", err)
	}
	table, err := policy.New(rules)
	if err != nil {
		t.Fatalf("policy.New: %v", err)
	}

	upstream := httptest.NewServer(echo.handler())
	t.Cleanup(upstream.Close)
	target, err := url.Parse(upstream.URL)
	if err != nil {
		t.Fatalf("parse upstream url: %v", err)
	}

	srv, err := New(Config{
		Issuer:       issuer,
		Codec:        codec,
		Policy:       table,
		DirectoryURL: target,
		Version:      "test",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return srv.Handler(), upstream
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, h http.Handler, email, password string) sessionResponse {
	t.Helper()
	rec := postJSON(t, h, "/api/auth/login", map[string]string{"email": email, "password": password})
	if rec.Code != http.StatusOK {
		t.Fatalf("login returned %d: %s", rec.Code, rec.Body.String())
	}
	var session sessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &session); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	return session
}

func TestLoginIssuesSession(t *testing.T) {
	h, _ := testServer(t, &directoryEcho{})

	session := login(t, h, "alice@x.com", "secret123")
	if session.Token == "" || session.RefreshToken == "" {
		t.Fatalf("expected tokens, got %+v", session)
	}
	if session.User.ID != "user-alice" || session.User.OrganizationID != "org-1" {
		t.Fatalf("unexpected user: %+v", session.User)
	}
	if len(session.User.Roles) != 1 || session.User.Roles[0] != "ADMIN" {
		t.Fatalf("unexpected roles: %v", session.User.Roles)
	}
}

func TestLoginFailuresAreUniform(t *testing.T) {
	h, _ := testServer(t, &directoryEcho{})

	wrongPassword := postJSON(t, h, "/api/auth/login", map[string]string{"email": "alice@x.com", "password": "nope"})
	unknownUser := postJSON(t, h, "/api/auth/login", map[string]string{"email": "ghost@x.com", "password": "secret123"})

	if wrongPassword.Code != http.StatusUnauthorized || unknownUser.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401/401, got %d/%d", wrongPassword.Code, unknownUser.Code)
	}
	if wrongPassword.Body.String() != unknownUser.Body.String() {
		t.Fatalf("failure bodies differ: %q vs %q", wrongPassword.Body.String(), unknownUser.Body.String())
	}
}

func TestAuthorizedRequestIsProxiedWithIdentity(t *testing.T) {
	echo := &directoryEcho{}
	h, _ := testServer(t, echo)

	session := login(t, h, "alice@x.com", "secret123")

	req := httptest.NewRequest(http.MethodGet, "/api/organizations", nil)
	req.Header.Set("Authorization", "Bearer "+session.Token)
	// Spoofed identity must not survive the edge.
	req.Header.Set("X-User-ID", "user-mallory")
	req.Header.Set("X-User-Roles", "SUPERADMIN")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if echo.LastHeaders.Get("X-User-ID") != "user-alice" {
		t.Fatalf("expected forwarded identity, got %q", echo.LastHeaders.Get("X-User-ID"))
	}
	if echo.LastHeaders.Get("X-User-Roles") != "ADMIN" {
		t.Fatalf("expected forwarded roles, got %q", echo.LastHeaders.Get("X-User-Roles"))
	}
	if echo.LastHeaders.Get("X-Org-ID") != "org-1" {
		t.Fatalf("expected forwarded org, got %q", echo.LastHeaders.Get("X-Org-ID"))
	}
	if echo.LastHeaders.Get("X-Request-ID") == "" {
		t.Fatal("expected forwarded request id")
	}
}

func TestInsufficientRoleIsForbidden(t *testing.T) {
	h, _ := testServer(t, &directoryEcho{})

	session := login(t, h, "alice@x.com", "secret123")

	req := httptest.NewRequest(http.MethodGet, "/api/admin/settings", nil)
	req.Header.Set("Authorization", "Bearer "+session.Token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestUnmatchedPathDeniedFailClosed(t *testing.T) {
	h, _ := testServer(t, &directoryEcho{})

	session := login(t, h, "alice@x.com", "secret123")

	req := httptest.NewRequest(http.MethodGet, "/api/unlisted", nil)
	req.Header.Set("Authorization", "Bearer "+session.Token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for unmatched path, got %d", rec.Code)
	}
}

func TestMissingAndTamperedTokensAreUniform401(t *testing.T) {
	h, _ := testServer(t, &directoryEcho{})

	session := login(t, h, "alice@x.com", "secret123")

	missing := httptest.NewRequest(http.MethodGet, "/api/organizations", nil)
	missingRec := httptest.NewRecorder()
	h.ServeHTTP(missingRec, missing)

	parts := strings.Split(session.Token, ".")
	tampered := parts[0] + "." + parts[1] + "." + flipFirstChar(parts[2])
	tamperedReq := httptest.NewRequest(http.MethodGet, "/api/organizations", nil)
	tamperedReq.Header.Set("Authorization", "Bearer "+tampered)
	tamperedRec := httptest.NewRecorder()
	h.ServeHTTP(tamperedRec, tamperedReq)

	if missingRec.Code != http.StatusUnauthorized || tamperedRec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401/401, got %d/%d", missingRec.Code, tamperedRec.Code)
	}
}

func flipFirstChar(s string) string {
	if s == "" {
		return s
	}
	c := s[0]
	if c == 'A' {
		c = 'B'
	} else {
		c = 'A'
	}
	return string(c) + s[1:]
}

func TestRefreshRotatesToken(t *testing.T) {
	h, _ := testServer(t, &directoryEcho{})

	session := login(t, h, "alice@x.com", "secret123")

	rec := postJSON(t, h, "/api/auth/refresh", map[string]string{"refresh_token": session.RefreshToken})
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh returned %d: %s", rec.Code, rec.Body.String())
	}
	var next sessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &next); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if next.RefreshToken == "" || next.RefreshToken == session.RefreshToken {
		t.Fatalf("expected rotated refresh token")
	}

	// Replaying the consumed token must fail.
	rec = postJSON(t, h, "/api/auth/refresh", map[string]string{"refresh_token": session.RefreshToken})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 on replay, got %d", rec.Code)
	}
}

func TestRegisterForwardsToDirectoryUsers(t *testing.T) {
	echo := &directoryEcho{}
	h, _ := testServer(t, echo)

	rec := postJSON(t, h, "/api/auth/register", map[string]string{
		"organization_id": "org-1",
		"email":           "dave@x.com",
		"password":        "secret123",
		"first_name":      "Dave",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("register returned %d: %s", rec.Code, rec.Body.String())
	}
	if echo.LastPath != "/api/users" {
		t.Fatalf("expected forward to /api/users, got %q", echo.LastPath)
	}
	if echo.LastHeaders.Get("X-User-ID") != "" {
		t.Fatal("register must not carry identity headers")
	}
	var body map[string]any
	if err := json.Unmarshal(echo.LastBody, &body); err != nil {
		t.Fatalf("decode forwarded body: %v", err)
	}
	if _, ok := body["roles"]; ok {
		t.Fatal("register body must not contain roles")
	}
	if body["email"] != "dave@x.com" {
		t.Fatalf("unexpected forwarded email: %v", body["email"])
	}
}

func TestRegisterRejectsRolesField(t *testing.T) {
	h, _ := testServer(t, &directoryEcho{})
	rec := postJSON(t, h, "/api/auth/register", map[string]any{
		"organization_id": "org-1",
		"email":           "eve@x.com",
		"password":        "secret123",
		"roles":           []string{"SUPERADMIN"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for roles in register body, got %d", rec.Code)
	}
}
