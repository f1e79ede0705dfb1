package httpapi

import (
	"net/http"
	"strings"

	"github.com/99004433/Multi-tenant-IAM/internal/audit"
	"github.com/99004433/Multi-tenant-IAM/internal/directory"
)

type roleRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type roleUpdateRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

func (a *API) handleRoles(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req roleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		role, err := a.svc.CreateRole(r.Context(), req.Name, req.Description)
		if err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "directory.role.create", map[string]any{
			"role_id": role.ID,
			"name":    role.Name,
		})
		w.Header().Set("Location", "/api/roles/"+role.ID)
		writeJSON(w, http.StatusCreated, role)
	case http.MethodGet:
		roles, err := a.svc.ListRoles(r.Context())
		if err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		if roles == nil {
			roles = []directory.Role{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": roles})
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
	}
}

func (a *API) handleRoleResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/roles/"), "/")
	if path == "" || strings.Contains(path, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	roleID := path
	switch r.Method {
	case http.MethodGet:
		role, err := a.svc.GetRole(r.Context(), roleID)
		if err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, role)
	case http.MethodPut:
		var req roleUpdateRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		role, err := a.svc.UpdateRole(r.Context(), roleID, directory.RoleUpdate{
			Name:        req.Name,
			Description: req.Description,
		})
		if err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "directory.role.update", map[string]any{
			"role_id": role.ID,
		})
		writeJSON(w, http.StatusOK, role)
	case http.MethodDelete:
		if err := a.svc.DeleteRole(r.Context(), roleID); err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "directory.role.delete", map[string]any{
			"role_id": roleID,
		})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}
