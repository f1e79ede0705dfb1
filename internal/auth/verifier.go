package auth

import (
	"context"
	"errors"
	"strings"
)

// CredentialRecord is the read-only view of a stored account the core
// needs during login. It is owned by the user store; the core never
// persists it.
type CredentialRecord struct {
	UserID         string
	OrganizationID string
	Email          string
	PasswordHash   string
	Status         string
	Roles          []string
}

// UserSource is the user-lookup collaborator consulted during login and
// token refresh. Implementations return ErrNotFound when no account
// matches.
type UserSource interface {
	CredentialsByEmail(ctx context.Context, email string) (CredentialRecord, error)
	CredentialsByID(ctx context.Context, userID string) (CredentialRecord, error)
	TouchLastLogin(ctx context.Context, userID string) error
}

// AccountStatusActive is the only status allowed to authenticate.
const AccountStatusActive = "active"

// Verifier checks submitted credentials against the user store.
type Verifier struct {
	source UserSource
}

// NewVerifier constructs a Verifier over the given user source.
func NewVerifier(source UserSource) (*Verifier, error) {
	if source == nil {
		return nil, errors.New("auth: user source is required")
	}
	return &Verifier{source: source}, nil
}

// Verify authenticates an email/password pair and returns the resulting
// identity. Unknown email, wrong password and disabled accounts all
// produce ErrInvalidCredentials; only infrastructure failures surface
// as anything else.
func (v *Verifier) Verify(ctx context.Context, email, password string) (Identity, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return Identity{}, ErrInvalidCredentials
	}

	record, err := v.source.CredentialsByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Identity{}, ErrInvalidCredentials
		}
		return Identity{}, err
	}
	if !strings.EqualFold(record.Status, AccountStatusActive) {
		return Identity{}, ErrInvalidCredentials
	}
	if err := VerifyPassword(record.PasswordHash, password); err != nil {
		return Identity{}, ErrInvalidCredentials
	}

	return identityFromRecord(record), nil
}

func identityFromRecord(record CredentialRecord) Identity {
	return Identity{
		UserID:         record.UserID,
		OrganizationID: record.OrganizationID,
		Email:          NormalizeEmail(record.Email),
		Roles:          NormalizeRoles(record.Roles),
	}
}
