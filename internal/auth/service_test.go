package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"pressline.org/internal/auth"
	"pressline.org/internal/store/memory"
)

// testHasher uses the minimum bcrypt cost to keep the suite fast.
func testHasher(t *testing.T) *auth.Hasher {
	t.Helper()
	return auth.NewHasher(4)
}

func newTestService(t *testing.T, st auth.Store, opts ...auth.ServiceOption) *auth.Service {
	t.Helper()
	codec := newTestCodec(t, auth.WithIssuer("pressline"))
	svc, err := auth.NewService(st, codec, testHasher(t), opts...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func seedUser(t *testing.T, st auth.Store, username, email, password string, active bool) *auth.User {
	t.Helper()
	hash, err := testHasher(t).Hash(password)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	u := &auth.User{
		Name:         "Test User",
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Active:       active,
	}
	if err := st.Users(context.Background()).Create(context.Background(), u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func TestAuthenticate(t *testing.T) {
	st := memory.New()
	svc := newTestService(t, st)
	seedUser(t, st, "alice", "alice@example.com", "s3cret!23", true)
	seedUser(t, st, "mallory", "mallory@example.com", "pw-mallory", false)
	ctx := context.Background()

	cases := []struct {
		name       string
		identifier string
		secret     string
		wantErr    error
	}{
		{"by username", "alice", "s3cret!23", nil},
		{"by email", "alice@example.com", "s3cret!23", nil},
		{"identifier padded", "  alice  ", "s3cret!23", nil},
		{"wrong password", "alice", "wrong", auth.ErrInvalidCredentials},
		{"unknown identifier", "nobody", "s3cret!23", auth.ErrInvalidCredentials},
		{"inactive account", "mallory", "pw-mallory", auth.ErrInvalidCredentials},
		{"empty identifier", "", "s3cret!23", auth.ErrInvalidCredentials},
		{"empty secret", "alice", "", auth.ErrInvalidCredentials},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			user, err := svc.Authenticate(ctx, tc.identifier, tc.secret)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("err = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Authenticate: %v", err)
			}
			if user.Username != "alice" {
				t.Fatalf("username = %q, want alice", user.Username)
			}
		})
	}
}

func TestCreateTokens(t *testing.T) {
	st := memory.New()
	svc := newTestService(t, st)
	pair, err := svc.CreateTokens(42)
	if err != nil {
		t.Fatalf("CreateTokens: %v", err)
	}
	if pair.TokenType != "bearer" {
		t.Fatalf("token_type = %q, want bearer", pair.TokenType)
	}
	access, err := svc.Codec().DecodeTyped(pair.AccessToken, auth.TokenTypeAccess)
	if err != nil {
		t.Fatalf("decode access: %v", err)
	}
	refresh, err := svc.Codec().DecodeTyped(pair.RefreshToken, auth.TokenTypeRefresh)
	if err != nil {
		t.Fatalf("decode refresh: %v", err)
	}
	if access.Subject != "42" || refresh.Subject != "42" {
		t.Fatalf("subjects = %q/%q, want 42", access.Subject, refresh.Subject)
	}
	if !refresh.ExpiresAt.After(access.ExpiresAt.Time) {
		t.Fatal("refresh token should outlive the access token")
	}
}

func TestRefreshTokensRejectsUniformly(t *testing.T) {
	st := memory.New()
	svc := newTestService(t, st)
	user := seedUser(t, st, "alice", "alice@example.com", "s3cret!23", true)
	ctx := context.Background()

	pair, err := svc.CreateTokens(user.ID)
	if err != nil {
		t.Fatalf("CreateTokens: %v", err)
	}

	// The access token must not rotate the session.
	if _, err := svc.RefreshTokens(ctx, pair.AccessToken); !errors.Is(err, auth.ErrUnauthorized) {
		t.Fatalf("access token as refresh: err = %v, want ErrUnauthorized", err)
	}
	if _, err := svc.RefreshTokens(ctx, "garbage"); !errors.Is(err, auth.ErrUnauthorized) {
		t.Fatalf("malformed token: err = %v, want ErrUnauthorized", err)
	}

	// Token for a subject that no longer exists.
	ghost, errT := svc.CreateTokens(999)
	if errT != nil {
		t.Fatalf("CreateTokens: %v", errT)
	}
	if _, err := svc.RefreshTokens(ctx, ghost.RefreshToken); !errors.Is(err, auth.ErrUnauthorized) {
		t.Fatalf("vanished subject: err = %v, want ErrUnauthorized", err)
	}

	// Deactivated subject.
	if err := st.Users(ctx).SetActive(ctx, user.ID, false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	if _, err := svc.RefreshTokens(ctx, pair.RefreshToken); !errors.Is(err, auth.ErrUnauthorized) {
		t.Fatalf("inactive subject: err = %v, want ErrUnauthorized", err)
	}
}

func TestRefreshTokensRotates(t *testing.T) {
	st := memory.New()
	svc := newTestService(t, st)
	user := seedUser(t, st, "alice", "alice@example.com", "s3cret!23", true)
	ctx := context.Background()

	pair, err := svc.CreateTokens(user.ID)
	if err != nil {
		t.Fatalf("CreateTokens: %v", err)
	}
	next, err := svc.RefreshTokens(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("RefreshTokens: %v", err)
	}
	claims, err := svc.Codec().DecodeTyped(next.AccessToken, auth.TokenTypeAccess)
	if err != nil {
		t.Fatalf("decode rotated access: %v", err)
	}
	if claims.Subject != "1" {
		t.Fatalf("subject = %q, want 1", claims.Subject)
	}

	// Rotation revocation is off by default: the old refresh token still works.
	if _, err := svc.RefreshTokens(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("reuse without revocation: %v", err)
	}
}

func TestRefreshTokensRevokeOnRotate(t *testing.T) {
	st := memory.New()
	svc := newTestService(t, st, auth.WithRevokeOnRotate(true))
	user := seedUser(t, st, "alice", "alice@example.com", "s3cret!23", true)
	ctx := context.Background()

	pair, err := svc.CreateTokens(user.ID)
	if err != nil {
		t.Fatalf("CreateTokens: %v", err)
	}
	if _, err := svc.RefreshTokens(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("first rotation: %v", err)
	}
	if _, err := svc.RefreshTokens(ctx, pair.RefreshToken); !errors.Is(err, auth.ErrUnauthorized) {
		t.Fatalf("reuse after rotation: err = %v, want ErrUnauthorized", err)
	}
}

func TestCurrentUser(t *testing.T) {
	st := memory.New()
	svc := newTestService(t, st)
	user := seedUser(t, st, "alice", "alice@example.com", "s3cret!23", true)
	ctx := context.Background()

	pair, err := svc.CreateTokens(user.ID)
	if err != nil {
		t.Fatalf("CreateTokens: %v", err)
	}
	got, err := svc.CurrentUser(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("CurrentUser: %v", err)
	}
	if got.ID != user.ID || got.Username != "alice" {
		t.Fatalf("got user %d/%q", got.ID, got.Username)
	}

	if _, err := svc.CurrentUser(ctx, pair.RefreshToken); !errors.Is(err, auth.ErrUnauthorized) {
		t.Fatalf("refresh token as access: err = %v, want ErrUnauthorized", err)
	}
	if _, err := svc.CurrentUser(ctx, "garbage"); !errors.Is(err, auth.ErrUnauthorized) {
		t.Fatalf("malformed token: err = %v, want ErrUnauthorized", err)
	}
}

func TestCurrentUserExpiredToken(t *testing.T) {
	st := memory.New()
	now := time.Now().UTC()
	clock := now
	codec, err := auth.NewCodec("test-secret-0123456789",
		auth.WithAccessTTL(time.Minute),
		auth.WithClock(func() time.Time { return clock }),
	)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	svc, err := auth.NewService(st, codec, testHasher(t))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	user := seedUser(t, st, "alice", "alice@example.com", "s3cret!23", true)

	pair, err := svc.CreateTokens(user.ID)
	if err != nil {
		t.Fatalf("CreateTokens: %v", err)
	}
	clock = now.Add(time.Hour)
	if _, err := svc.CurrentUser(context.Background(), pair.AccessToken); !errors.Is(err, auth.ErrUnauthorized) {
		t.Fatalf("expired access: err = %v, want ErrUnauthorized", err)
	}
}

func TestRegister(t *testing.T) {
	st := memory.New()
	svc := newTestService(t, st)
	ctx := context.Background()

	u := &auth.User{Name: "Alice", Username: "alice", Email: "Alice@Example.COM"}
	if err := svc.Register(ctx, u, "s3cret!23"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if u.Email != "alice@example.com" {
		t.Fatalf("email = %q, want lowercased", u.Email)
	}
	if !u.Active || u.Superuser {
		t.Fatalf("active=%v superuser=%v, want active non-superuser", u.Active, u.Superuser)
	}
	if _, err := svc.Authenticate(ctx, "alice", "s3cret!23"); err != nil {
		t.Fatalf("Authenticate after Register: %v", err)
	}

	dup := &auth.User{Name: "Alice 2", Username: "alice", Email: "other@example.com"}
	if err := svc.Register(ctx, dup, "pw"); !errors.Is(err, auth.ErrConflict) {
		t.Fatalf("duplicate username: err = %v, want ErrConflict", err)
	}

	for _, bad := range []*auth.User{
		{Username: "bob", Email: "not-an-email"},
		{Username: "", Email: "bob@example.com"},
	} {
		if err := svc.Register(ctx, bad, "pw"); !errors.Is(err, auth.ErrInvalidInput) {
			t.Fatalf("Register(%+v): err = %v, want ErrInvalidInput", bad, err)
		}
	}
}
