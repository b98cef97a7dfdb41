package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"pressline.org/internal/auth"
	"pressline.org/internal/obs"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "

	// Uniform messages: token failures never reveal whether the token was
	// malformed, expired or of the wrong kind, and permission failures never
	// name the missing permission.
	msgInvalidCredentials = "could not validate credentials"
	msgInactiveUser       = "inactive user"
	msgForbidden          = "not enough permissions"
)

var publicPaths = []string{
	"/v1/auth/register",
	"/v1/auth/login",
	"/v1/auth/refresh",
	"/v1/info",
	"/metrics",
	"/healthz",
	"/readyz",
	"/",
}

// withAuth resolves the bearer token into a user for every protected route.
// The user carried in context is loaded fresh from the store, so role changes
// and deactivation take effect on the next request, not at token expiry.
func (a *API) withAuth(next http.Handler) http.Handler {
	if a == nil || a.auth == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			obs.AuthFailure("token")
			unauthorized(w, r)
			return
		}

		user, err := a.auth.CurrentUser(r.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrUnauthorized) {
				obs.AuthFailure("token")
				unauthorized(w, r)
				return
			}
			writeError(w, r, http.StatusInternalServerError, "authentication error")
			return
		}
		if !user.Active {
			writeError(w, r, http.StatusForbidden, msgInactiveUser)
			return
		}

		ctx := auth.ContextWithUser(r.Context(), user)
		ctx = auth.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requirePermission gates a handler on (resource, action). Returns the actor
// when allowed; writes the response and returns nil otherwise.
func (a *API) requirePermission(w http.ResponseWriter, r *http.Request, resource, action string) *auth.User {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		unauthorized(w, r)
		return nil
	}
	if !auth.Authorize(user, resource, action) {
		obs.AuthFailure("permission")
		writeError(w, r, http.StatusForbidden, msgForbidden)
		return nil
	}
	return user
}

func unauthorized(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeError(w, r, http.StatusUnauthorized, msgInvalidCredentials)
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
