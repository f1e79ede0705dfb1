// Package policy holds the static route policy the gateway consults
// before forwarding a request downstream. The table is built once at
// startup and read-only afterwards; unmatched paths are denied.
package policy

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/99004433/Multi-tenant-IAM/internal/auth"
)

var (
	// ErrForbidden is returned when the identity lacks a required role or
	// no rule matches the path (fail closed).
	ErrForbidden = errors.New("policy: forbidden")

	// ErrConfig marks an invalid policy table. It is fatal: the process
	// must refuse to start rather than resolve ambiguity per request.
	ErrConfig = errors.New("policy: invalid configuration")
)

// Rule grants access to every path under Prefix to identities carrying
// at least one of Roles.
type Rule struct {
	Prefix string
	Roles  []string
}

// Table is an ordered route policy. Longest prefix wins; duplicate
// prefixes are rejected at load time.
type Table struct {
	rules []Rule
}

// New validates rules and builds a Table sorted most-specific first.
func New(rules []Rule) (*Table, error) {
	if len(rules) == 0 {
		return nil, fmt.Errorf("%w: at least one rule is required", ErrConfig)
	}
	seen := make(map[string]struct{}, len(rules))
	out := make([]Rule, 0, len(rules))
	for _, rule := range rules {
		prefix := strings.TrimSpace(rule.Prefix)
		if !strings.HasPrefix(prefix, "/") {
			return nil, fmt.Errorf("%w: prefix %q must start with /", ErrConfig, rule.Prefix)
		}
		prefix = strings.TrimRight(prefix, "/")
		if prefix == "" {
			prefix = "/"
		}
		if _, ok := seen[prefix]; ok {
			return nil, fmt.Errorf("%w: duplicate prefix %q", ErrConfig, prefix)
		}
		roles := auth.NormalizeRoles(rule.Roles)
		if len(roles) == 0 {
			return nil, fmt.Errorf("%w: prefix %q has no roles", ErrConfig, prefix)
		}
		seen[prefix] = struct{}{}
		out = append(out, Rule{Prefix: prefix, Roles: roles})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return len(out[i].Prefix) > len(out[j].Prefix)
	})
	return &Table{rules: out}, nil
}

// Parse builds rules from the compact configuration form
// "/api/users=ADMIN|SUPERADMIN;/api/roles=ADMIN".
func Parse(raw string) ([]Rule, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty policy", ErrConfig)
	}
	var rules []Rule
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		prefix, roles, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("%w: entry %q must be prefix=role|role", ErrConfig, entry)
		}
		rules = append(rules, Rule{
			Prefix: strings.TrimSpace(prefix),
			Roles:  strings.Split(roles, "|"),
		})
	}
	return rules, nil
}

// Match returns the most specific rule covering path. A prefix matches
// the path itself or any segment below it; "/api/users" does not cover
// "/api/usersearch".
func (t *Table) Match(path string) (Rule, bool) {
	for _, rule := range t.rules {
		if rule.Prefix == "/" || path == rule.Prefix || strings.HasPrefix(path, rule.Prefix+"/") {
			return rule, true
		}
	}
	return Rule{}, false
}

// Authorize decides whether the identity may reach path. No matching
// rule means deny.
func (t *Table) Authorize(identity auth.Identity, path string) error {
	rule, ok := t.Match(path)
	if !ok {
		return fmt.Errorf("%w: no rule for path", ErrForbidden)
	}
	for _, role := range rule.Roles {
		if identity.HasRole(role) {
			return nil
		}
	}
	return fmt.Errorf("%w: requires one of %s", ErrForbidden, strings.Join(rule.Roles, ","))
}
