package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/99004433/Multi-tenant-IAM/internal/ids"
)

const (
	defaultAccessTTL  = 24 * time.Hour
	defaultRefreshTTL = 14 * 24 * time.Hour
)

// RefreshToken is a persisted refresh token record. Only the sha256 of
// the client secret half is stored.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}

// RefreshStore manages refresh token lifecycle.
type RefreshStore interface {
	Create(ctx context.Context, tok *RefreshToken) error
	Find(ctx context.Context, id string) (*RefreshToken, error)
	MarkRevoked(ctx context.Context, id string) error
	MarkRevokedByUser(ctx context.Context, userID string) error
}

// Session is the result of a successful login or refresh.
type Session struct {
	Token            string
	ExpiresAt        time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	Identity         Identity
}

// Issuer orchestrates login: credential verification followed by token
// minting. Repeated logins with the same credentials intentionally
// produce distinct tokens; no single-session constraint exists.
type Issuer struct {
	verifier *Verifier
	codec    *Codec
	source   UserSource
	refresh  RefreshStore

	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// IssuerOption configures Issuer behavior.
type IssuerOption func(*Issuer)

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) IssuerOption {
	return func(i *Issuer) {
		if ttl > 0 {
			i.accessTTL = ttl
		}
	}
}

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) IssuerOption {
	return func(i *Issuer) {
		if ttl > 0 {
			i.refreshTTL = ttl
		}
	}
}

// WithRefreshStore enables refresh token issuance and rotation.
func WithRefreshStore(store RefreshStore) IssuerOption {
	return func(i *Issuer) { i.refresh = store }
}

// WithIssuerClock overrides the time source (useful for tests).
func WithIssuerClock(fn func() time.Time) IssuerOption {
	return func(i *Issuer) {
		if fn != nil {
			i.now = fn
		}
	}
}

// NewIssuer constructs an Issuer.
func NewIssuer(verifier *Verifier, codec *Codec, source UserSource, opts ...IssuerOption) (*Issuer, error) {
	if verifier == nil || codec == nil {
		return nil, errors.New("auth: verifier and codec are required")
	}
	if source == nil {
		return nil, errors.New("auth: user source is required")
	}
	iss := &Issuer{
		verifier:   verifier,
		codec:      codec,
		source:     source,
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(iss)
	}
	return iss, nil
}

// Login verifies credentials and mints a session. Propagates
// ErrInvalidCredentials unchanged.
func (i *Issuer) Login(ctx context.Context, email, password string) (Session, error) {
	identity, err := i.verifier.Verify(ctx, email, password)
	if err != nil {
		return Session{}, err
	}
	session, err := i.mint(ctx, identity)
	if err != nil {
		return Session{}, err
	}
	// Last-login tracking feeds the inactivity sweep; a failure here must
	// not fail the login.
	_ = i.source.TouchLastLogin(ctx, identity.UserID)
	return session, nil
}

// Refresh rotates a refresh token and issues a new session. The old
// token is revoked before the new pair is created; presenting a token
// whose secret does not match the stored hash revokes the record.
func (i *Issuer) Refresh(ctx context.Context, raw string) (Session, error) {
	if i.refresh == nil {
		return Session{}, ErrInvalidToken
	}
	tokenID, secret, err := splitRefreshToken(raw)
	if err != nil {
		return Session{}, ErrInvalidToken
	}

	record, err := i.refresh.Find(ctx, tokenID)
	if err != nil {
		return Session{}, ErrInvalidToken
	}
	if record.Revoked || !i.now().Before(record.ExpiresAt) {
		return Session{}, ErrInvalidToken
	}
	if !refreshSecretMatches(record.TokenHash, secret) {
		_ = i.refresh.MarkRevoked(ctx, record.ID)
		return Session{}, ErrInvalidToken
	}

	credentials, err := i.source.CredentialsByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Session{}, ErrInvalidToken
		}
		return Session{}, err
	}
	if !strings.EqualFold(credentials.Status, AccountStatusActive) {
		return Session{}, ErrInvalidToken
	}

	if err := i.refresh.MarkRevoked(ctx, record.ID); err != nil {
		return Session{}, err
	}
	return i.mint(ctx, identityFromRecord(credentials))
}

func (i *Issuer) mint(ctx context.Context, identity Identity) (Session, error) {
	token, expiresAt, err := i.codec.Mint(identity, i.accessTTL)
	if err != nil {
		return Session{}, err
	}
	session := Session{
		Token:     token,
		ExpiresAt: expiresAt,
		Identity:  identity,
	}
	if i.refresh == nil {
		return session, nil
	}

	refreshString, record, err := i.generateRefreshToken(identity.UserID)
	if err != nil {
		return Session{}, err
	}
	if err := i.refresh.Create(ctx, record); err != nil {
		return Session{}, err
	}
	session.RefreshToken = refreshString
	session.RefreshExpiresAt = record.ExpiresAt
	return session, nil
}

func (i *Issuer) generateRefreshToken(userID string) (string, *RefreshToken, error) {
	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return "", nil, err
	}
	secret := base64.RawURLEncoding.EncodeToString(secretBytes)
	sum := sha256.Sum256([]byte(secret))
	record := &RefreshToken{
		ID:        ids.New(),
		UserID:    userID,
		TokenHash: hex.EncodeToString(sum[:]),
		ExpiresAt: i.now().Add(i.refreshTTL),
	}
	return record.ID + "." + secret, record, nil
}

func splitRefreshToken(raw string) (id, secret string, err error) {
	parts := strings.Split(strings.TrimSpace(raw), ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.New("invalid refresh token format")
	}
	return parts[0], parts[1], nil
}

func refreshSecretMatches(expectedHash, secret string) bool {
	sum := sha256.Sum256([]byte(secret))
	actual := hex.EncodeToString(sum[:])
	if len(expectedHash) != len(actual) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expectedHash), []byte(actual)) == 1
}
