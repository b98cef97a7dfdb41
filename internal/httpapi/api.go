// Package httpapi is the HTTP surface of the Pressline API: authentication,
// RBAC administration, user management and posts.
package httpapi

import (
	"net/http"

	"pressline.org/internal/auth"
	"pressline.org/internal/content"
	"pressline.org/internal/obs"
)

// API is the HTTP layer. Handlers delegate to the auth and content services
// and translate their errors to status codes.
type API struct {
	mux        *http.ServeMux
	auth       *auth.Service
	admin      *auth.Admin
	posts      *content.Service
	readyProbe ReadyProbe
	version    string

	rateBurst  int
	ratePerSec int
}

// Option configures the API.
type Option func(*API)

// WithRateLimit sets the per-client token bucket parameters.
func WithRateLimit(burst, perSecond int) Option {
	return func(a *API) {
		if burst > 0 && perSecond > 0 {
			a.rateBurst = burst
			a.ratePerSec = perSecond
		}
	}
}

// New builds the API and registers all routes.
func New(authSvc *auth.Service, admin *auth.Admin, posts *content.Service, rp ReadyProbe, version string, opts ...Option) *API {
	a := &API{
		mux:        http.NewServeMux(),
		auth:       authSvc,
		admin:      admin,
		posts:      posts,
		readyProbe: rp,
		version:    version,
		rateBurst:  20,
		ratePerSec: 10,
	}
	for _, opt := range opts {
		opt(a)
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// authentication
	a.mux.HandleFunc("/v1/auth/register", a.handleRegister)
	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("/v1/auth/refresh", a.handleRefresh)
	a.mux.HandleFunc("/v1/auth/me", a.handleMe)

	// RBAC administration
	a.mux.HandleFunc("/v1/roles", a.handleRolesCollection)
	a.mux.HandleFunc("/v1/roles/", a.handleRoleResource)
	a.mux.HandleFunc("/v1/permissions", a.handlePermissionsCollection)
	a.mux.HandleFunc("/v1/permissions/", a.handlePermissionResource)

	// user management
	a.mux.HandleFunc("/v1/users", a.handleUsersCollection)
	a.mux.HandleFunc("/v1/users/", a.handleUserResource)

	// posts
	a.mux.HandleFunc("/v1/posts", a.handlePostsCollection)
	a.mux.HandleFunc("/v1/posts/", a.handlePostResource)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped http.Handler for the server.
func (a *API) Handler() http.Handler {
	h := http.Handler(a.mux)
	h = a.withAuth(h)
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}
