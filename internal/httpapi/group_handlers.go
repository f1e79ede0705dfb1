package httpapi

import (
	"net/http"
	"strings"

	"github.com/99004433/Multi-tenant-IAM/internal/audit"
	"github.com/99004433/Multi-tenant-IAM/internal/directory"
)

type groupUpdateRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

func (a *API) handleGroupResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/groups/"), "/")
	if path == "" || strings.Contains(path, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	groupID := path
	switch r.Method {
	case http.MethodGet:
		group, err := a.svc.GetGroup(r.Context(), groupID)
		if err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, group)
	case http.MethodPut:
		var req groupUpdateRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		group, err := a.svc.UpdateGroup(r.Context(), groupID, directory.GroupUpdate{
			Name:        req.Name,
			Description: req.Description,
		})
		if err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "directory.group.update", map[string]any{
			"group_id": group.ID,
		})
		writeJSON(w, http.StatusOK, group)
	case http.MethodDelete:
		if err := a.svc.DeleteGroup(r.Context(), groupID); err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "directory.group.delete", map[string]any{
			"group_id": groupID,
		})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}
