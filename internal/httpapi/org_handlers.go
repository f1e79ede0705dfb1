package httpapi

import (
	"net/http"
	"strings"

	"github.com/99004433/Multi-tenant-IAM/internal/audit"
	"github.com/99004433/Multi-tenant-IAM/internal/directory"
)

type organizationRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ParentOrgID string `json:"parent_org_id"`
}

type organizationUpdateRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	ParentOrgID *string `json:"parent_org_id"`
}

type groupRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (a *API) handleOrganizations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createOrganization(w, r)
	case http.MethodGet:
		a.listOrganizations(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
	}
}

func (a *API) createOrganization(w http.ResponseWriter, r *http.Request) {
	var req organizationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	org, err := a.svc.CreateOrganization(r.Context(), req.Name, req.Description, req.ParentOrgID)
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "directory.organization.create", map[string]any{
		"organization_id": org.ID,
		"name":            org.Name,
	})
	w.Header().Set("Location", "/api/organizations/"+org.ID)
	writeJSON(w, http.StatusCreated, org)
}

func (a *API) listOrganizations(w http.ResponseWriter, r *http.Request) {
	page, err := pageFromRequest(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	page = page.Normalize()
	orgs, total, err := a.svc.ListOrganizations(r.Context(), page)
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	if orgs == nil {
		orgs = []directory.Organization{}
	}
	writeJSON(w, http.StatusOK, pagedResponse{Items: orgs, Total: total, Page: page.Number, Size: page.Size})
}

func (a *API) handleOrganizationResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/organizations/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	orgID := parts[0]
	switch {
	case len(parts) == 1:
		a.organizationByID(w, r, orgID)
	case len(parts) == 2 && parts[1] == "groups":
		a.organizationGroups(w, r, orgID)
	case len(parts) == 2 && parts[1] == "users":
		a.organizationUsers(w, r, orgID)
	case len(parts) == 2 && parts[1] == "hierarchy":
		a.organizationHierarchy(w, r, orgID)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) organizationByID(w http.ResponseWriter, r *http.Request, orgID string) {
	switch r.Method {
	case http.MethodGet:
		org, err := a.svc.GetOrganization(r.Context(), orgID)
		if err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, org)
	case http.MethodPut:
		var req organizationUpdateRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		org, err := a.svc.UpdateOrganization(r.Context(), orgID, directory.OrganizationUpdate{
			Name:        req.Name,
			Description: req.Description,
			ParentID:    req.ParentOrgID,
		})
		if err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "directory.organization.update", map[string]any{
			"organization_id": org.ID,
		})
		writeJSON(w, http.StatusOK, org)
	case http.MethodDelete:
		if err := a.svc.DeleteOrganization(r.Context(), orgID); err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "directory.organization.delete", map[string]any{
			"organization_id": orgID,
		})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

// organizationHierarchy serves the organization with its descendant
// tree nested under children.
func (a *API) organizationHierarchy(w http.ResponseWriter, r *http.Request, orgID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	node, err := a.svc.GetOrganizationHierarchy(r.Context(), orgID)
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, node)
}

func (a *API) organizationGroups(w http.ResponseWriter, r *http.Request, orgID string) {
	switch r.Method {
	case http.MethodPost:
		var req groupRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		group, err := a.svc.CreateGroup(r.Context(), orgID, req.Name, req.Description)
		if err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "directory.group.create", map[string]any{
			"organization_id": orgID,
			"group_id":        group.ID,
			"name":            group.Name,
		})
		w.Header().Set("Location", "/api/groups/"+group.ID)
		writeJSON(w, http.StatusCreated, group)
	case http.MethodGet:
		groups, err := a.svc.ListGroups(r.Context(), orgID)
		if err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		if groups == nil {
			groups = []directory.Group{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": groups})
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
	}
}

func (a *API) organizationUsers(w http.ResponseWriter, r *http.Request, orgID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	page, err := pageFromRequest(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	page = page.Normalize()
	users, total, err := a.svc.ListUsers(r.Context(), orgID, page)
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	if users == nil {
		users = []directory.User{}
	}
	writeJSON(w, http.StatusOK, pagedResponse{Items: users, Total: total, Page: page.Number, Size: page.Size})
}
