package policy

import (
	"errors"
	"testing"

	"github.com/99004433/Multi-tenant-IAM/internal/auth"
)

func adminIdentity() auth.Identity {
	return auth.Identity{UserID: "u1", Email: "alice@x.com", Roles: []string{"ADMIN"}}
}

func TestLongestPrefixWins(t *testing.T) {
	table, err := New([]Rule{
		{Prefix: "/api", Roles: []string{"USER"}},
		{Prefix: "/api/users", Roles: []string{"ADMIN"}},
		{Prefix: "/api/users/reports", Roles: []string{"SUPERADMIN"}},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	cases := []struct {
		path string
		want string
	}{
		{"/api/albums", "/api"},
		{"/api/users", "/api/users"},
		{"/api/users/42", "/api/users"},
		{"/api/users/reports/daily", "/api/users/reports"},
	}
	for _, tc := range cases {
		rule, ok := table.Match(tc.path)
		if !ok {
			t.Fatalf("path %s: expected match", tc.path)
		}
		if rule.Prefix != tc.want {
			t.Fatalf("path %s: matched %s, want %s", tc.path, rule.Prefix, tc.want)
		}
	}
}

func TestPrefixRespectsSegmentBoundaries(t *testing.T) {
	table, err := New([]Rule{{Prefix: "/api/users", Roles: []string{"ADMIN"}}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := table.Match("/api/usersearch"); ok {
		t.Fatal("prefix must not match across segment boundaries")
	}
}

func TestDuplicatePrefixRejectedAtLoad(t *testing.T) {
	_, err := New([]Rule{
		{Prefix: "/api/users", Roles: []string{"ADMIN"}},
		{Prefix: "/api/users/", Roles: []string{"SUPERADMIN"}},
	})
	if !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}

func TestNewRejectsInvalidRules(t *testing.T) {
	cases := []struct {
		name  string
		rules []Rule
	}{
		{"empty table", nil},
		{"relative prefix", []Rule{{Prefix: "api/users", Roles: []string{"ADMIN"}}}},
		{"no roles", []Rule{{Prefix: "/api/users", Roles: []string{" ", ""}}}},
	}
	for _, tc := range cases {
		if _, err := New(tc.rules); !errors.Is(err, ErrConfig) {
			t.Fatalf("%s: expected ErrConfig, got %v", tc.name, err)
		}
	}
}

func TestAuthorize(t *testing.T) {
	table, err := New([]Rule{
		{Prefix: "/api/organizations", Roles: []string{"ADMIN"}},
		{Prefix: "/api/reports", Roles: []string{"SUPERADMIN"}},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := table.Authorize(adminIdentity(), "/api/organizations"); err != nil {
		t.Fatalf("expected pass-through, got %v", err)
	}
	if err := table.Authorize(adminIdentity(), "/api/reports"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestAuthorizeFailsClosed(t *testing.T) {
	table, err := New([]Rule{{Prefix: "/api/organizations", Roles: []string{"ADMIN"}}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// A valid identity on an unmatched path is still denied.
	if err := table.Authorize(adminIdentity(), "/internal/debug"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestParse(t *testing.T) {
	rules, err := Parse("/api/users=ADMIN|SUPERADMIN; /api/roles=ADMIN")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(rules))
	}
	table, err := New(rules)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rule, ok := table.Match("/api/users/7")
	if !ok || len(rule.Roles) != 2 {
		t.Fatalf("unexpected rule: %+v ok=%v", rule, ok)
	}

	if _, err := Parse("/api/users"); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig for missing roles, got %v", err)
	}
	if _, err := Parse(""); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig for empty policy, got %v", err)
	}
}
