package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"pressline.org/internal/audit"
	"pressline.org/internal/auth"
)

type createRoleRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type updateRoleRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type createPermissionRequest struct {
	Name        string `json:"name"`
	Resource    string `json:"resource"`
	Action      string `json:"action"`
	Description string `json:"description"`
}

type updatePermissionRequest struct {
	Name        *string `json:"name"`
	Resource    *string `json:"resource"`
	Action      *string `json:"action"`
	Description *string `json:"description"`
}

func (a *API) handleRolesCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if a.requirePermission(w, r, "roles", "read") == nil {
			return
		}
		limit, offset, err := parsePage(r)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		roles, err := a.admin.ListRoles(r.Context(), limit, offset)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": roles})
	case http.MethodPost:
		if a.requirePermission(w, r, "roles", "create") == nil {
			return
		}
		var req createRoleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		role, err := a.admin.CreateRole(r.Context(), req.Name, req.Description)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "rbac.role.create", map[string]any{
			"role_id": role.ID,
			"name":    role.Name,
		})
		w.Header().Set("Location", fmt.Sprintf("/v1/roles/%d", role.ID))
		writeJSON(w, http.StatusCreated, role)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleRoleResource serves /v1/roles/{id} and /v1/roles/{id}/permissions/{permID}.
func (a *API) handleRoleResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/roles/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	roleID, err := parseID(parts[0])
	if err != nil {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch {
	case len(parts) == 1:
		a.roleByID(w, r, roleID)
	case len(parts) == 3 && parts[1] == "permissions":
		permID, err := parseID(parts[2])
		if err != nil {
			writeError(w, r, http.StatusNotFound, "resource not found")
			return
		}
		a.rolePermission(w, r, roleID, permID)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) roleByID(w http.ResponseWriter, r *http.Request, roleID int64) {
	switch r.Method {
	case http.MethodGet:
		if a.requirePermission(w, r, "roles", "read") == nil {
			return
		}
		role, err := a.admin.GetRole(r.Context(), roleID)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, role)
	case http.MethodPut, http.MethodPatch:
		if a.requirePermission(w, r, "roles", "update") == nil {
			return
		}
		var req updateRoleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		role, err := a.admin.UpdateRole(r.Context(), roleID, auth.RoleUpdate{
			Name:        req.Name,
			Description: req.Description,
		})
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "rbac.role.update", map[string]any{"role_id": roleID})
		writeJSON(w, http.StatusOK, role)
	case http.MethodDelete:
		if a.requirePermission(w, r, "roles", "delete") == nil {
			return
		}
		if err := a.admin.DeleteRole(r.Context(), roleID); err != nil {
			handleAuthError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "rbac.role.delete", map[string]any{"role_id": roleID})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodPatch, http.MethodDelete)
	}
}

func (a *API) rolePermission(w http.ResponseWriter, r *http.Request, roleID, permID int64) {
	switch r.Method {
	case http.MethodPost:
		if a.requirePermission(w, r, "roles", "update") == nil {
			return
		}
		if err := a.admin.AttachPermission(r.Context(), roleID, permID); err != nil {
			handleAuthError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "rbac.role.permission.attach", map[string]any{
			"role_id":       roleID,
			"permission_id": permID,
		})
		w.WriteHeader(http.StatusNoContent)
	case http.MethodDelete:
		if a.requirePermission(w, r, "roles", "update") == nil {
			return
		}
		if err := a.admin.DetachPermission(r.Context(), roleID, permID); err != nil {
			handleAuthError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "rbac.role.permission.detach", map[string]any{
			"role_id":       roleID,
			"permission_id": permID,
		})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodDelete)
	}
}

func (a *API) handlePermissionsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if a.requirePermission(w, r, "permissions", "read") == nil {
			return
		}
		limit, offset, err := parsePage(r)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		perms, err := a.admin.ListPermissions(r.Context(), limit, offset)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": perms})
	case http.MethodPost:
		if a.requirePermission(w, r, "permissions", "create") == nil {
			return
		}
		var req createPermissionRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		perm, err := a.admin.CreatePermission(r.Context(), req.Name, req.Resource, req.Action, req.Description)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "rbac.permission.create", map[string]any{
			"permission_id": perm.ID,
			"name":          perm.Name,
		})
		w.Header().Set("Location", fmt.Sprintf("/v1/permissions/%d", perm.ID))
		writeJSON(w, http.StatusCreated, perm)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handlePermissionResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/permissions/"), "/")
	if path == "" || strings.Contains(path, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	permID, err := parseID(path)
	if err != nil {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		if a.requirePermission(w, r, "permissions", "read") == nil {
			return
		}
		perm, err := a.admin.GetPermission(r.Context(), permID)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, perm)
	case http.MethodPut, http.MethodPatch:
		if a.requirePermission(w, r, "permissions", "update") == nil {
			return
		}
		var req updatePermissionRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		perm, err := a.admin.UpdatePermission(r.Context(), permID, auth.PermissionUpdate{
			Name:        req.Name,
			Resource:    req.Resource,
			Action:      req.Action,
			Description: req.Description,
		})
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "rbac.permission.update", map[string]any{"permission_id": permID})
		writeJSON(w, http.StatusOK, perm)
	case http.MethodDelete:
		if a.requirePermission(w, r, "permissions", "delete") == nil {
			return
		}
		if err := a.admin.DeletePermission(r.Context(), permID); err != nil {
			handleAuthError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "rbac.permission.delete", map[string]any{"permission_id": permID})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodPatch, http.MethodDelete)
	}
}
