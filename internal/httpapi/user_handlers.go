package httpapi

import (
	"net/http"
	"strings"

	"pressline.org/internal/audit"
)

func (a *API) handleUsersCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if a.requirePermission(w, r, "users", "read") == nil {
		return
	}
	limit, offset, err := parsePage(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	users, err := a.admin.ListUsers(r.Context(), limit, offset)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": users})
}

// handleUserResource serves /v1/users/{id} and /v1/users/{id}/roles/{roleID}.
func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/users/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	userID, err := parseID(parts[0])
	if err != nil {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch {
	case len(parts) == 1:
		a.userByID(w, r, userID)
	case len(parts) == 3 && parts[1] == "roles":
		roleID, err := parseID(parts[2])
		if err != nil {
			writeError(w, r, http.StatusNotFound, "resource not found")
			return
		}
		a.userRole(w, r, userID, roleID)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) userByID(w http.ResponseWriter, r *http.Request, userID int64) {
	switch r.Method {
	case http.MethodGet:
		if a.requirePermission(w, r, "users", "read") == nil {
			return
		}
		user, err := a.admin.GetUser(r.Context(), userID)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	case http.MethodDelete:
		// Soft delete: the account is deactivated, not removed.
		if a.requirePermission(w, r, "users", "delete") == nil {
			return
		}
		if err := a.admin.DeactivateUser(r.Context(), userID); err != nil {
			handleAuthError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "users.deactivate", map[string]any{"user_id": userID})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodDelete)
	}
}

func (a *API) userRole(w http.ResponseWriter, r *http.Request, userID, roleID int64) {
	switch r.Method {
	case http.MethodPost:
		if a.requirePermission(w, r, "users", "update") == nil {
			return
		}
		if err := a.admin.AssignRole(r.Context(), userID, roleID); err != nil {
			handleAuthError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "users.role.assign", map[string]any{
			"user_id": userID,
			"role_id": roleID,
		})
		w.WriteHeader(http.StatusNoContent)
	case http.MethodDelete:
		if a.requirePermission(w, r, "users", "update") == nil {
			return
		}
		if err := a.admin.RemoveRole(r.Context(), userID, roleID); err != nil {
			handleAuthError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "users.role.remove", map[string]any{
			"user_id": userID,
			"role_id": roleID,
		})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodDelete)
	}
}
