package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const defaultIssuer = "iam-gateway"

// Internal verification failure kinds. All wrap ErrInvalidToken so the
// boundary collapses them into one signal; the messages stay available
// for audit logs.
var (
	errTokenMalformed = fmt.Errorf("%w: malformed", ErrInvalidToken)
	errTokenSignature = fmt.Errorf("%w: signature mismatch", ErrInvalidToken)
	errTokenExpired   = fmt.Errorf("%w: expired", ErrInvalidToken)
	errTokenClaims    = fmt.Errorf("%w: unexpected claims", ErrInvalidToken)
)

// Codec mints and verifies HS256-signed access tokens carrying identity
// claims. The signing secret is injected at construction and never read
// from process-wide state, so tests can run with distinct secrets.
type Codec struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// CodecOption configures Codec behavior.
type CodecOption func(*Codec)

// WithIssuer overrides the issuer claim.
func WithIssuer(issuer string) CodecOption {
	return func(c *Codec) {
		if strings.TrimSpace(issuer) != "" {
			c.issuer = strings.TrimSpace(issuer)
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) CodecOption {
	return func(c *Codec) {
		if fn != nil {
			c.now = fn
		}
	}
}

// NewCodec constructs a Codec for the given shared secret.
func NewCodec(secret string, opts ...CodecOption) (*Codec, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: signing secret is required")
	}
	c := &Codec{
		secret: []byte(secret),
		issuer: defaultIssuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// tokenClaims is the fixed wire shape of access token claims. Tokens
// whose payload does not parse into exactly this shape are rejected as
// malformed.
type tokenClaims struct {
	UserID string   `json:"userId"`
	OrgID  string   `json:"orgId"`
	Roles  []string `json:"roles"`
	jwt.RegisteredClaims
}

// Mint signs an access token for the identity. Subject is the email,
// issued-at is the codec clock, expiry is now+ttl.
func (c *Codec) Mint(identity Identity, ttl time.Duration) (string, time.Time, error) {
	if strings.TrimSpace(identity.Email) == "" || strings.TrimSpace(identity.UserID) == "" {
		return "", time.Time{}, errors.New("auth: identity email and user id are required")
	}
	if ttl <= 0 {
		return "", time.Time{}, errors.New("auth: ttl must be greater than zero")
	}

	now := c.now().UTC()
	expiresAt := now.Add(ttl)
	claims := tokenClaims{
		UserID: identity.UserID,
		OrgID:  identity.OrganizationID,
		Roles:  NormalizeRoles(identity.Roles),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   NormalizeEmail(identity.Email),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify checks signature, expiry and claim shape, returning the decoded
// identity. Every failure satisfies errors.Is(err, ErrInvalidToken);
// callers must surface nothing more specific than that.
func (c *Codec) Verify(raw string) (Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Identity{}, errTokenMalformed
	}

	claims := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(raw, claims,
		func(t *jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithIssuer(c.issuer),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return Identity{}, errTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return Identity{}, errTokenSignature
		case errors.Is(err, jwt.ErrTokenInvalidIssuer), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
			return Identity{}, errTokenClaims
		default:
			return Identity{}, errTokenMalformed
		}
	}
	if !parsed.Valid {
		return Identity{}, errTokenSignature
	}
	if strings.TrimSpace(claims.Subject) == "" || strings.TrimSpace(claims.UserID) == "" {
		return Identity{}, errTokenClaims
	}
	if claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return Identity{}, errTokenClaims
	}
	if claims.ExpiresAt.Time.Before(claims.IssuedAt.Time) {
		return Identity{}, errTokenClaims
	}

	return Identity{
		UserID:         claims.UserID,
		OrganizationID: claims.OrgID,
		Email:          claims.Subject,
		Roles:          NormalizeRoles(claims.Roles),
	}, nil
}
