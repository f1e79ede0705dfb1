package directory

import "context"

// Store describes persistence operations required by the directory.
// Implementations return ErrNotFound / ErrConflict sentinels.
type Store interface {
	CreateOrganization(ctx context.Context, org Organization) (Organization, error)
	GetOrganization(ctx context.Context, id string) (Organization, error)
	ListOrganizations(ctx context.Context, page Page) ([]Organization, int64, error)
	// ListOrganizationSubtree returns all descendants of the given
	// organization, root excluded, in no particular order.
	ListOrganizationSubtree(ctx context.Context, rootID string) ([]Organization, error)
	UpdateOrganization(ctx context.Context, id string, upd OrganizationUpdate) (Organization, error)
	DeleteOrganization(ctx context.Context, id string) error

	CreateGroup(ctx context.Context, group Group) (Group, error)
	GetGroup(ctx context.Context, id string) (Group, error)
	ListGroupsByOrg(ctx context.Context, orgID string) ([]Group, error)
	UpdateGroup(ctx context.Context, id string, upd GroupUpdate) (Group, error)
	DeleteGroup(ctx context.Context, id string) error

	CreateRole(ctx context.Context, role Role) (Role, error)
	GetRole(ctx context.Context, id string) (Role, error)
	GetRoleByName(ctx context.Context, name string) (Role, error)
	ListRoles(ctx context.Context) ([]Role, error)
	UpdateRole(ctx context.Context, id string, upd RoleUpdate) (Role, error)
	DeleteRole(ctx context.Context, id string) error

	CreateUser(ctx context.Context, user User, passwordHash string, roleIDs []string) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
	ListUsers(ctx context.Context, orgID string, page Page) ([]User, int64, error)
	SearchUsersByEmail(ctx context.Context, query string, page Page) ([]User, int64, error)
	UpdateUser(ctx context.Context, id string, upd UserUpdate) (User, error)
	DeleteUser(ctx context.Context, id string) error

	AssignRole(ctx context.Context, userID, roleID string) (UserRoleAssignment, error)
	RemoveRoleAssignment(ctx context.Context, userID, roleID string) error
}
