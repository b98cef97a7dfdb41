package auth

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"
)

// Service orchestrates credential verification, token issuance and rotation.
// It is stateless between requests; every call operates against the store it
// was built with.
type Service struct {
	store  Store
	codec  *Codec
	hasher *Hasher

	revokeOnRotate bool
	now            func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithRevokeOnRotate enables the rotation denylist: a refresh token that has
// been exchanged once is rejected on reuse. Off by default, in which case a
// superseded refresh token stays valid until its own expiry.
func WithRevokeOnRotate(enabled bool) ServiceOption {
	return func(s *Service) { s.revokeOnRotate = enabled }
}

// WithServiceClock overrides the time source (useful for tests).
func WithServiceClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService wires the authentication core together.
func NewService(store Store, codec *Codec, hasher *Hasher, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	if codec == nil {
		return nil, errors.New("auth: token codec is required")
	}
	if hasher == nil {
		hasher = NewHasher(0)
	}
	svc := &Service{store: store, codec: codec, hasher: hasher, now: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Codec exposes the token codec for callers that only need verification.
func (s *Service) Codec() *Codec { return s.codec }

// Authenticate verifies identifier and secret against the credential store.
// Unknown identifier, wrong secret and deactivated account all fail with
// ErrInvalidCredentials so the caller cannot enumerate accounts.
func (s *Service) Authenticate(ctx context.Context, identifier, secret string) (*User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || secret == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := s.store.Users(ctx).FindByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.Active {
		return nil, ErrInvalidCredentials
	}
	if !s.hasher.Verify(secret, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// CreateTokens issues a fresh access/refresh pair for the subject. No session
// state is consulted.
func (s *Service) CreateTokens(userID int64) (TokenPair, error) {
	subject := strconv.FormatInt(userID, 10)
	access, accessExp, err := s.codec.IssueAccessToken(subject)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshExp, err := s.codec.IssueRefreshToken(subject)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		TokenType:        "bearer",
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// RefreshTokens validates a refresh token and issues a brand-new pair.
// Malformed, expired and wrong-typed tokens, revoked tokens and vanished or
// deactivated subjects all fail uniformly with ErrUnauthorized.
func (s *Service) RefreshTokens(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.codec.DecodeTyped(refreshToken, TokenTypeRefresh)
	if err != nil {
		return TokenPair{}, ErrUnauthorized
	}
	if s.revokeOnRotate {
		revoked, err := s.store.RevokedTokens(ctx).IsRevoked(ctx, claims.ID)
		if err != nil {
			return TokenPair{}, err
		}
		if revoked {
			return TokenPair{}, ErrUnauthorized
		}
	}

	user, err := s.resolveSubject(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnauthorized) {
			return TokenPair{}, ErrUnauthorized
		}
		return TokenPair{}, err
	}
	if !user.Active {
		return TokenPair{}, ErrUnauthorized
	}

	if s.revokeOnRotate {
		if err := s.store.RevokedTokens(ctx).Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
			return TokenPair{}, err
		}
	}
	return s.CreateTokens(user.ID)
}

// CurrentUser resolves an access token to a live user record with roles and
// permissions loaded. Any token or lookup failure is ErrUnauthorized.
func (s *Service) CurrentUser(ctx context.Context, accessToken string) (*User, error) {
	claims, err := s.codec.DecodeTyped(accessToken, TokenTypeAccess)
	if err != nil {
		return nil, ErrUnauthorized
	}
	user, err := s.resolveSubject(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnauthorized) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	return user, nil
}

// Register creates an active, non-superuser account with no roles. Duplicate
// email or username surfaces as ErrConflict.
func (s *Service) Register(ctx context.Context, u *User, secret string) error {
	if u == nil {
		return ErrInvalidInput
	}
	u.Email = strings.TrimSpace(strings.ToLower(u.Email))
	u.Username = strings.TrimSpace(u.Username)
	if u.Email == "" || !strings.Contains(u.Email, "@") {
		return ErrInvalidInput
	}
	if u.Username == "" {
		return ErrInvalidInput
	}
	hash, err := s.hasher.Hash(secret)
	if err != nil {
		return ErrInvalidInput
	}
	u.PasswordHash = hash
	u.Active = true
	u.Superuser = false
	return s.store.Users(ctx).Create(ctx, u)
}

func (s *Service) resolveSubject(ctx context.Context, subject string) (*User, error) {
	id, err := strconv.ParseInt(subject, 10, 64)
	if err != nil {
		return nil, ErrUnauthorized
	}
	return s.store.Users(ctx).FindByID(ctx, id)
}
