// Package directory implements tenant CRUD: organizations, users,
// groups and roles. It sits behind the gateway and trusts the identity
// the gateway forwards; it performs no credential checks of its own.
package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/99004433/Multi-tenant-IAM/internal/auth"
	"github.com/99004433/Multi-tenant-IAM/internal/mail"
	"github.com/99004433/Multi-tenant-IAM/internal/obs"
)

const generatedPasswordLength = 12

// Service provides validated directory operations over a Store.
type Service struct {
	store  Store
	sender mail.Sender
}

// NewService constructs a Service. Sender may be nil when credential
// mails are not wanted (tests, local runs).
func NewService(store Store, sender mail.Sender) (*Service, error) {
	if store == nil {
		return nil, errors.New("directory: store is required")
	}
	return &Service{store: store, sender: sender}, nil
}

// Organizations ------------------------------------------------------------

func (s *Service) CreateOrganization(ctx context.Context, name, description, parentID string) (Organization, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Organization{}, fmt.Errorf("%w: organization name is required", ErrInvalidInput)
	}
	parentID = strings.TrimSpace(parentID)
	if parentID != "" {
		if _, err := s.store.GetOrganization(ctx, parentID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return Organization{}, fmt.Errorf("%w: unknown parent organization %s", ErrInvalidInput, parentID)
			}
			return Organization{}, err
		}
	}
	return s.store.CreateOrganization(ctx, Organization{
		ParentID:    parentID,
		Name:        name,
		Description: strings.TrimSpace(description),
	})
}

func (s *Service) GetOrganization(ctx context.Context, id string) (Organization, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Organization{}, fmt.Errorf("%w: organization_id is required", ErrInvalidInput)
	}
	return s.store.GetOrganization(ctx, id)
}

func (s *Service) ListOrganizations(ctx context.Context, page Page) ([]Organization, int64, error) {
	return s.store.ListOrganizations(ctx, page.Normalize())
}

func (s *Service) UpdateOrganization(ctx context.Context, id string, upd OrganizationUpdate) (Organization, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Organization{}, fmt.Errorf("%w: organization_id is required", ErrInvalidInput)
	}
	if upd.Name != nil {
		trimmed := strings.TrimSpace(*upd.Name)
		if trimmed == "" {
			return Organization{}, fmt.Errorf("%w: organization name is required", ErrInvalidInput)
		}
		upd.Name = &trimmed
	}
	if upd.ParentID != nil {
		parentID := strings.TrimSpace(*upd.ParentID)
		if parentID != "" {
			if err := s.checkReparent(ctx, id, parentID); err != nil {
				return Organization{}, err
			}
		}
		upd.ParentID = &parentID
	}
	return s.store.UpdateOrganization(ctx, id, upd)
}

// checkReparent rejects a new parent that would make the organization
// an ancestor of itself.
func (s *Service) checkReparent(ctx context.Context, id, parentID string) error {
	seen := map[string]bool{}
	current := parentID
	for current != "" {
		if current == id {
			return fmt.Errorf("%w: parent %s would make %s its own ancestor", ErrInvalidInput, parentID, id)
		}
		if seen[current] {
			// Pre-existing cycle in stored data; reparenting onto it
			// does not involve id, so allow it.
			break
		}
		seen[current] = true
		org, err := s.store.GetOrganization(ctx, current)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return fmt.Errorf("%w: unknown parent organization %s", ErrInvalidInput, current)
			}
			return err
		}
		current = org.ParentID
	}
	return nil
}

// GetOrganizationHierarchy returns the organization with its subtree
// attached. The build tolerates broken parent links in stored data; an
// organization is attached at most once.
func (s *Service) GetOrganizationHierarchy(ctx context.Context, id string) (*OrganizationNode, error) {
	root, err := s.GetOrganization(ctx, id)
	if err != nil {
		return nil, err
	}
	descendants, err := s.store.ListOrganizationSubtree(ctx, root.ID)
	if err != nil {
		return nil, err
	}

	nodes := map[string]*OrganizationNode{
		root.ID: {Organization: root, Children: []*OrganizationNode{}},
	}
	for _, org := range descendants {
		nodes[org.ID] = &OrganizationNode{Organization: org, Children: []*OrganizationNode{}}
	}
	attached := map[string]bool{root.ID: true}
	for _, org := range descendants {
		parent, ok := nodes[org.ParentID]
		if !ok || attached[org.ID] {
			continue
		}
		attached[org.ID] = true
		parent.Children = append(parent.Children, nodes[org.ID])
	}
	return nodes[root.ID], nil
}

func (s *Service) DeleteOrganization(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: organization_id is required", ErrInvalidInput)
	}
	return s.store.DeleteOrganization(ctx, id)
}

// Groups -------------------------------------------------------------------

func (s *Service) CreateGroup(ctx context.Context, orgID, name, description string) (Group, error) {
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return Group{}, fmt.Errorf("%w: organization_id is required", ErrInvalidInput)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Group{}, fmt.Errorf("%w: group name is required", ErrInvalidInput)
	}
	return s.store.CreateGroup(ctx, Group{
		OrganizationID: orgID,
		Name:           name,
		Description:    strings.TrimSpace(description),
	})
}

func (s *Service) GetGroup(ctx context.Context, id string) (Group, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Group{}, fmt.Errorf("%w: group_id is required", ErrInvalidInput)
	}
	return s.store.GetGroup(ctx, id)
}

func (s *Service) ListGroups(ctx context.Context, orgID string) ([]Group, error) {
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return nil, fmt.Errorf("%w: organization_id is required", ErrInvalidInput)
	}
	return s.store.ListGroupsByOrg(ctx, orgID)
}

func (s *Service) UpdateGroup(ctx context.Context, id string, upd GroupUpdate) (Group, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Group{}, fmt.Errorf("%w: group_id is required", ErrInvalidInput)
	}
	if upd.Name != nil {
		trimmed := strings.TrimSpace(*upd.Name)
		if trimmed == "" {
			return Group{}, fmt.Errorf("%w: group name is required", ErrInvalidInput)
		}
		upd.Name = &trimmed
	}
	return s.store.UpdateGroup(ctx, id, upd)
}

func (s *Service) DeleteGroup(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: group_id is required", ErrInvalidInput)
	}
	return s.store.DeleteGroup(ctx, id)
}

// Roles --------------------------------------------------------------------

func (s *Service) CreateRole(ctx context.Context, name, description string) (Role, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		return Role{}, fmt.Errorf("%w: role name is required", ErrInvalidInput)
	}
	return s.store.CreateRole(ctx, Role{
		Name:        name,
		Description: strings.TrimSpace(description),
	})
}

func (s *Service) GetRole(ctx context.Context, id string) (Role, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Role{}, fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	return s.store.GetRole(ctx, id)
}

func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.store.ListRoles(ctx)
}

func (s *Service) UpdateRole(ctx context.Context, id string, upd RoleUpdate) (Role, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Role{}, fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	if upd.Name != nil {
		name := strings.ToUpper(strings.TrimSpace(*upd.Name))
		if name == "" {
			return Role{}, fmt.Errorf("%w: role name is required", ErrInvalidInput)
		}
		upd.Name = &name
	}
	return s.store.UpdateRole(ctx, id, upd)
}

func (s *Service) DeleteRole(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	return s.store.DeleteRole(ctx, id)
}

// Users --------------------------------------------------------------------

// CreateUser validates and persists a new account. When no password is
// supplied one is generated and mailed to the account address.
func (s *Service) CreateUser(ctx context.Context, input NewUser) (User, error) {
	input.OrganizationID = strings.TrimSpace(input.OrganizationID)
	if input.OrganizationID == "" {
		return User{}, fmt.Errorf("%w: organization_id is required", ErrInvalidInput)
	}
	email := auth.NormalizeEmail(input.Email)
	if email == "" || !strings.Contains(email, "@") {
		return User{}, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}

	password := strings.TrimSpace(input.Password)
	generated := false
	if password == "" {
		var err error
		password, err = auth.GeneratePassword(generatedPasswordLength)
		if err != nil {
			return User{}, err
		}
		generated = true
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return User{}, err
	}

	roleNames := auth.NormalizeRoles(input.Roles)
	if len(roleNames) == 0 {
		roleNames = []string{"USER"}
	}
	roleIDs := make([]string, 0, len(roleNames))
	for _, name := range roleNames {
		role, err := s.store.GetRoleByName(ctx, name)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return User{}, fmt.Errorf("%w: unknown role %s", ErrInvalidInput, name)
			}
			return User{}, err
		}
		roleIDs = append(roleIDs, role.ID)
	}

	user, err := s.store.CreateUser(ctx, User{
		OrganizationID: input.OrganizationID,
		GroupID:        strings.TrimSpace(input.GroupID),
		Email:          email,
		FirstName:      strings.TrimSpace(input.FirstName),
		LastName:       strings.TrimSpace(input.LastName),
		ContactNo:      strings.TrimSpace(input.ContactNo),
		Status:         UserStatusActive,
	}, hash, roleIDs)
	if err != nil {
		return User{}, err
	}

	if generated && s.sender != nil {
		// Best effort: account creation must not fail on mail trouble.
		if err := s.sender.Send(ctx, mail.UserCreated(email, password)); err != nil {
			obs.LogEntry(map[string]any{
				"level": "warn",
				"msg":   "credentials mail failed",
				"email": email,
				"error": err.Error(),
			})
		}
	}
	return user, nil
}

func (s *Service) GetUser(ctx context.Context, id string) (User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return User{}, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	return s.store.GetUser(ctx, id)
}

func (s *Service) ListUsers(ctx context.Context, orgID string, page Page) ([]User, int64, error) {
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return nil, 0, fmt.Errorf("%w: organization_id is required", ErrInvalidInput)
	}
	return s.store.ListUsers(ctx, orgID, page.Normalize())
}

// SearchUsersByEmail finds users whose email contains the query,
// case-insensitive. A blank query returns no results rather than
// scanning the whole table.
func (s *Service) SearchUsersByEmail(ctx context.Context, query string, page Page) ([]User, int64, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, 0, nil
	}
	return s.store.SearchUsersByEmail(ctx, query, page.Normalize())
}

func (s *Service) UpdateUser(ctx context.Context, id string, upd UserUpdate) (User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return User{}, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	if upd.Email != nil {
		email := auth.NormalizeEmail(*upd.Email)
		if email == "" || !strings.Contains(email, "@") {
			return User{}, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
		}
		upd.Email = &email
	}
	if upd.Status != nil {
		status := strings.ToLower(strings.TrimSpace(*upd.Status))
		if status != UserStatusActive && status != UserStatusInactive {
			return User{}, fmt.Errorf("%w: unsupported status %s", ErrInvalidInput, status)
		}
		upd.Status = &status
	}
	if upd.Password != nil {
		password := strings.TrimSpace(*upd.Password)
		if password == "" {
			return User{}, fmt.Errorf("%w: password is required", ErrInvalidInput)
		}
		hash, err := auth.HashPassword(password)
		if err != nil {
			return User{}, err
		}
		upd.Password = &hash
	}
	return s.store.UpdateUser(ctx, id, upd)
}

func (s *Service) DeleteUser(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	return s.store.DeleteUser(ctx, id)
}

// AssignRole links a user to a role by role id.
func (s *Service) AssignRole(ctx context.Context, userID, roleID string) (UserRoleAssignment, error) {
	userID = strings.TrimSpace(userID)
	roleID = strings.TrimSpace(roleID)
	if userID == "" || roleID == "" {
		return UserRoleAssignment{}, fmt.Errorf("%w: user_id and role_id are required", ErrInvalidInput)
	}
	return s.store.AssignRole(ctx, userID, roleID)
}

// RemoveRoleAssignment unlinks a user from a role.
func (s *Service) RemoveRoleAssignment(ctx context.Context, userID, roleID string) error {
	userID = strings.TrimSpace(userID)
	roleID = strings.TrimSpace(roleID)
	if userID == "" || roleID == "" {
		return fmt.Errorf("%w: user_id and role_id are required", ErrInvalidInput)
	}
	return s.store.RemoveRoleAssignment(ctx, userID, roleID)
}
