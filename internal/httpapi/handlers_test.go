package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"pressline.org/internal/auth"
	"pressline.org/internal/content"
	"pressline.org/internal/store/memory"
)

type testEnv struct {
	t       *testing.T
	baseURL string
	client  *http.Client
	store   *memory.Store
	auth    *auth.Service
	admin   *auth.Admin
}

func newTestEnv(t *testing.T, codecOpts ...auth.CodecOption) *testEnv {
	t.Helper()

	st := memory.New()
	opts := append([]auth.CodecOption{auth.WithIssuer("pressline-test")}, codecOpts...)
	codec, err := auth.NewCodec("test-secret-0123456789", opts...)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	svc, err := auth.NewService(st, codec, auth.NewHasher(4))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	admin, err := auth.NewAdmin(st)
	if err != nil {
		t.Fatalf("NewAdmin: %v", err)
	}
	posts, err := content.NewService(content.NewInMemoryStore())
	if err != nil {
		t.Fatalf("content.NewService: %v", err)
	}

	api := New(svc, admin, posts, ReadyProbe{}, "test", WithRateLimit(1000, 1000))
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &testEnv{
		t:       t,
		baseURL: srv.URL,
		client:  srv.Client(),
		store:   st,
		auth:    svc,
		admin:   admin,
	}
}

func (e *testEnv) do(method, path, token string, body any) *http.Response {
	e.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			e.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, e.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		e.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		e.t.Fatalf("do request: %v", err)
	}
	return resp
}

// provisionSuperuser seeds a superuser directly through the service.
func (e *testEnv) provisionSuperuser() {
	e.t.Helper()
	_, err := e.auth.EnsureSuperuser(context.Background(), auth.SuperuserSpec{
		Email:    "root@example.com",
		Username: "root",
		Name:     "Root",
		Password: "s3cret!23",
	})
	if err != nil {
		e.t.Fatalf("EnsureSuperuser: %v", err)
	}
}

func (e *testEnv) register(username, email, password string) {
	e.t.Helper()
	resp := e.do(http.MethodPost, "/v1/auth/register", "", map[string]any{
		"name":     username,
		"email":    email,
		"username": username,
		"password": password,
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		e.t.Fatalf("register %s: status %d", username, resp.StatusCode)
	}
}

func (e *testEnv) login(identifier, password string) auth.TokenPair {
	e.t.Helper()
	resp := e.do(http.MethodPost, "/v1/auth/login", "", map[string]any{
		"username": identifier,
		"password": password,
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		e.t.Fatalf("login %s: status %d", identifier, resp.StatusCode)
	}
	var pair auth.TokenPair
	if err := json.NewDecoder(resp.Body).Decode(&pair); err != nil {
		e.t.Fatalf("decode token pair: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		e.t.Fatal("empty token pair")
	}
	return pair
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestHealthReadyInfo(t *testing.T) {
	e := newTestEnv(t)

	for _, path := range []string{"/healthz", "/readyz", "/v1/info"} {
		resp := e.do(http.MethodGet, path, "", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: status %d", path, resp.StatusCode)
		}
		resp.Body.Close()
	}
}

func TestRegisterLoginMeFlow(t *testing.T) {
	e := newTestEnv(t)
	e.register("alice", "alice@example.com", "s3cret!23")

	pair := e.login("alice", "s3cret!23")
	if pair.TokenType != "bearer" {
		t.Fatalf("token_type = %q, want bearer", pair.TokenType)
	}

	// Login with the email identifier works too.
	e.login("alice@example.com", "s3cret!23")

	resp := e.do(http.MethodGet, "/v1/auth/me", pair.AccessToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me: status %d", resp.StatusCode)
	}
	me := decode[auth.User](t, resp)
	if me.Username != "alice" || me.Superuser {
		t.Fatalf("me = %+v", me)
	}
	if me.PasswordHash != "" {
		t.Fatal("password hash leaked in response")
	}
}

func TestLoginFailuresAreUniform(t *testing.T) {
	e := newTestEnv(t)
	e.register("alice", "alice@example.com", "s3cret!23")

	for name, body := range map[string]map[string]any{
		"wrong password": {"username": "alice", "password": "nope"},
		"unknown user":   {"username": "nobody", "password": "s3cret!23"},
	} {
		resp := e.do(http.MethodPost, "/v1/auth/login", "", body)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("%s: status %d, want 401", name, resp.StatusCode)
		}
		payload := decode[map[string]any](t, resp)
		if payload["error"] != msgInvalidCredentials {
			t.Fatalf("%s: error = %v", name, payload["error"])
		}
	}
}

func TestRegisterDuplicateConflict(t *testing.T) {
	e := newTestEnv(t)
	e.register("alice", "alice@example.com", "s3cret!23")

	resp := e.do(http.MethodPost, "/v1/auth/register", "", map[string]any{
		"username": "alice",
		"email":    "other@example.com",
		"password": "pw",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status %d, want 409", resp.StatusCode)
	}
}

func TestRefreshRotation(t *testing.T) {
	e := newTestEnv(t)
	e.register("alice", "alice@example.com", "s3cret!23")
	pair := e.login("alice", "s3cret!23")

	resp := e.do(http.MethodPost, "/v1/auth/refresh", "", map[string]any{
		"refresh_token": pair.RefreshToken,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh: status %d", resp.StatusCode)
	}
	next := decode[auth.TokenPair](t, resp)
	if next.AccessToken == "" {
		t.Fatal("empty rotated access token")
	}

	// An access token is not accepted on the refresh endpoint.
	resp = e.do(http.MethodPost, "/v1/auth/refresh", "", map[string]any{
		"refresh_token": pair.AccessToken,
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("access-as-refresh: status %d, want 401", resp.StatusCode)
	}
}

func TestProtectedRouteRequiresToken(t *testing.T) {
	e := newTestEnv(t)

	resp := e.do(http.MethodGet, "/v1/auth/me", "", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", resp.StatusCode)
	}
	if resp.Header.Get("WWW-Authenticate") != "Bearer" {
		t.Fatal("missing WWW-Authenticate header")
	}
}

func TestRequestIDPropagates(t *testing.T) {
	e := newTestEnv(t)

	resp := e.do(http.MethodGet, "/healthz", "", nil)
	defer resp.Body.Close()
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("expected X-Request-ID header")
	}
}

func TestUnknownJSONFieldRejected(t *testing.T) {
	e := newTestEnv(t)

	resp := e.do(http.MethodPost, "/v1/auth/login", "", map[string]any{
		"username": "alice",
		"password": "pw",
		"bogus":    true,
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", resp.StatusCode)
	}
}
