package auth

import "strings"

// Identity is the verified subject attached to a request once
// authentication succeeds. It is an immutable value: produced once per
// successful credential check or token verification, never mutated.
type Identity struct {
	UserID         string
	OrganizationID string
	Email          string
	Roles          []string
}

// HasRole reports whether the identity carries the given role.
// Comparison is case-insensitive.
func (id Identity) HasRole(role string) bool {
	role = strings.TrimSpace(role)
	if role == "" {
		return false
	}
	for _, r := range id.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// NormalizeEmail trims and lowercases an email for lookup and storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeRoles trims, uppercases and deduplicates role names while
// preserving order. Empty entries are dropped.
func NormalizeRoles(roles []string) []string {
	if len(roles) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(roles))
	var normalized []string
	for _, role := range roles {
		role = strings.ToUpper(strings.TrimSpace(role))
		if role == "" {
			continue
		}
		if _, ok := seen[role]; ok {
			continue
		}
		seen[role] = struct{}{}
		normalized = append(normalized, role)
	}
	return normalized
}
