package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token kinds carried in the "type" claim. The discriminator is what keeps a
// refresh token from being replayed as an access token and vice versa.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Claims is the signed payload: subject, kind and the registered time claims.
type Claims struct {
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// Codec issues and verifies HS256-signed, time-bound tokens.
type Codec struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// CodecOption configures a Codec.
type CodecOption func(*Codec)

// WithIssuer sets the iss claim stamped into every token.
func WithIssuer(issuer string) CodecOption {
	return func(c *Codec) { c.issuer = strings.TrimSpace(issuer) }
}

// WithAccessTTL overrides the access token lifetime.
func WithAccessTTL(ttl time.Duration) CodecOption {
	return func(c *Codec) {
		if ttl > 0 {
			c.accessTTL = ttl
		}
	}
}

// WithRefreshTTL overrides the refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) CodecOption {
	return func(c *Codec) {
		if ttl > 0 {
			c.refreshTTL = ttl
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

const (
	defaultAccessTTL  = 30 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
)

// NewCodec builds a Codec signing with the given symmetric secret.
func NewCodec(secret string, opts ...CodecOption) (*Codec, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: token secret is required")
	}
	c := &Codec{
		secret:     []byte(secret),
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// IssueAccessToken signs a short-lived access token for subject.
func (c *Codec) IssueAccessToken(subject string) (string, time.Time, error) {
	return c.issue(subject, TokenTypeAccess, c.accessTTL)
}

// IssueRefreshToken signs a long-lived refresh token for subject.
func (c *Codec) IssueRefreshToken(subject string) (string, time.Time, error) {
	return c.issue(subject, TokenTypeRefresh, c.refreshTTL)
}

func (c *Codec) issue(subject, kind string, ttl time.Duration) (string, time.Time, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", time.Time{}, errors.New("auth: subject is required")
	}
	now := c.now().UTC()
	exp := now.Add(ttl)
	claims := Claims{
		Type: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Decode verifies signature and structure only. Expiry and token kind are
// deliberately not enforced here; use DecodeTyped on any trust boundary.
func (c *Codec) Decode(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrTokenInvalid
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrTokenInvalid
		}
		return c.secret, nil
	}, jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, ErrTokenInvalid
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// DecodeTyped decodes and additionally rejects mismatched kind, a bad issuer
// and missing or past expiry. A token without exp is treated as expired.
func (c *Codec) DecodeTyped(token, wantType string) (*Claims, error) {
	claims, err := c.Decode(token)
	if err != nil {
		return nil, err
	}
	if c.issuer != "" && claims.Issuer != "" && !strings.EqualFold(claims.Issuer, c.issuer) {
		return nil, ErrTokenInvalid
	}
	if claims.Type != wantType {
		return nil, ErrWrongTokenType
	}
	if claims.ExpiresAt == nil || !c.now().UTC().Before(claims.ExpiresAt.Time) {
		return nil, ErrTokenExpired
	}
	return claims, nil
}
