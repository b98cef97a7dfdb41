package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"pressline.org/internal/audit"
	"pressline.org/internal/auth"
	"pressline.org/internal/obs"
)

type registerRequest struct {
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number"`
	Email       string `json:"email"`
	Username    string `json:"username"`
	Password    string `json:"password"`
}

type loginRequest struct {
	// Username carries the login identifier; either username or email works.
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "password is required")
		return
	}
	user := &auth.User{
		Name:        strings.TrimSpace(req.Name),
		PhoneNumber: strings.TrimSpace(req.PhoneNumber),
		Email:       req.Email,
		Username:    req.Username,
	}
	if err := a.auth.Register(r.Context(), user, req.Password); err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.register", map[string]any{
		"user_id":  user.ID,
		"username": user.Username,
	})
	writeJSON(w, http.StatusCreated, user)
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	user, err := a.auth.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			obs.AuthFailure("credentials")
			unauthorized(w, r)
			return
		}
		writeError(w, r, http.StatusInternalServerError, "authentication error")
		return
	}

	pair, err := a.auth.CreateTokens(user.ID)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{
		"user_id":  user.ID,
		"username": user.Username,
	})
	writeJSON(w, http.StatusOK, pair)
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		writeError(w, r, http.StatusBadRequest, "refresh_token is required")
		return
	}

	pair, err := a.auth.RefreshTokens(r.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthorized) {
			obs.AuthFailure("token")
			unauthorized(w, r)
			return
		}
		writeError(w, r, http.StatusInternalServerError, "token rotation failed")
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.refresh", nil)
	writeJSON(w, http.StatusOK, pair)
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		unauthorized(w, r)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func handleAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, auth.ErrUnauthorized), errors.Is(err, auth.ErrInvalidCredentials):
		unauthorized(w, r)
	case errors.Is(err, auth.ErrForbidden):
		writeError(w, r, http.StatusForbidden, msgForbidden)
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
