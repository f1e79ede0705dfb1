package httpapi

import (
	"net/http"
	"strings"

	"github.com/99004433/Multi-tenant-IAM/internal/audit"
	"github.com/99004433/Multi-tenant-IAM/internal/directory"
)

type createUserRequest struct {
	OrganizationID string   `json:"organization_id"`
	GroupID        string   `json:"group_id"`
	Email          string   `json:"email"`
	Password       string   `json:"password"`
	FirstName      string   `json:"first_name"`
	LastName       string   `json:"last_name"`
	ContactNo      string   `json:"contact_no"`
	Roles          []string `json:"roles"`
}

type updateUserRequest struct {
	Email     *string `json:"email"`
	Password  *string `json:"password"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	ContactNo *string `json:"contact_no"`
	GroupID   *string `json:"group_id"`
	Status    *string `json:"status"`
}

type assignRoleRequest struct {
	RoleID string `json:"role_id"`
}

func (a *API) handleUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, err := a.svc.CreateUser(r.Context(), directory.NewUser{
		OrganizationID: req.OrganizationID,
		GroupID:        req.GroupID,
		Email:          req.Email,
		Password:       req.Password,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		ContactNo:      req.ContactNo,
		Roles:          req.Roles,
	})
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "directory.user.create", map[string]any{
		"user_id":         user.ID,
		"organization_id": user.OrganizationID,
		"email":           user.Email,
	})
	w.Header().Set("Location", "/api/users/"+user.ID)
	writeJSON(w, http.StatusCreated, user)
}

func (a *API) handleUserSearch(w http.ResponseWriter, r *http.Request) {
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
	users, total, err := a.svc.SearchUsersByEmail(r.Context(), r.URL.Query().Get("q"), page)
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	if users == nil {
		users = []directory.User{}
	}
	writeJSON(w, http.StatusOK, pagedResponse{Items: users, Total: total, Page: page.Number, Size: page.Size})
}

func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/users/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	userID := parts[0]
	switch {
	case len(parts) == 1:
		a.userByID(w, r, userID)
	case len(parts) == 2 && parts[1] == "roles":
		a.assignUserRole(w, r, userID)
	case len(parts) == 3 && parts[1] == "roles":
		a.removeUserRole(w, r, userID, parts[2])
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) userByID(w http.ResponseWriter, r *http.Request, userID string) {
	switch r.Method {
	case http.MethodGet:
		user, err := a.svc.GetUser(r.Context(), userID)
		if err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	case http.MethodPut:
		var req updateUserRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		user, err := a.svc.UpdateUser(r.Context(), userID, directory.UserUpdate{
			Email:     req.Email,
			Password:  req.Password,
			FirstName: req.FirstName,
			LastName:  req.LastName,
			ContactNo: req.ContactNo,
			GroupID:   req.GroupID,
			Status:    req.Status,
		})
		if err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "directory.user.update", map[string]any{
			"user_id": user.ID,
		})
		writeJSON(w, http.StatusOK, user)
	case http.MethodDelete:
		if err := a.svc.DeleteUser(r.Context(), userID); err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "directory.user.delete", map[string]any{
			"user_id": userID,
		})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) assignUserRole(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req assignRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	assignment, err := a.svc.AssignRole(r.Context(), userID, req.RoleID)
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "directory.user.assign_role", map[string]any{
		"user_id": userID,
		"role_id": assignment.RoleID,
	})
	writeJSON(w, http.StatusCreated, assignment)
}

func (a *API) removeUserRole(w http.ResponseWriter, r *http.Request, userID, roleID string) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodDelete)
		return
	}
	if err := a.svc.RemoveRoleAssignment(r.Context(), userID, roleID); err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "directory.user.remove_role", map[string]any{
		"user_id": userID,
		"role_id": roleID,
	})
	w.WriteHeader(http.StatusNoContent)
}
