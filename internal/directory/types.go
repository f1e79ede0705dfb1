package directory

import "time"

// User account statuses. The inactivity sweep moves accounts from
// active to inactive; inactive accounts cannot authenticate.
const (
	UserStatusActive   = "active"
	UserStatusInactive = "inactive"
)

// Organization is a tenant. Every user, group and role assignment is
// scoped to exactly one organization. Organizations form a tree via
// ParentID; a blank ParentID marks a root.
type Organization struct {
	ID          string    `json:"id"`
	ParentID    string    `json:"parent_org_id,omitempty"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// OrganizationNode is an organization with its descendants attached,
// as returned by the hierarchy read.
type OrganizationNode struct {
	Organization
	Children []*OrganizationNode `json:"children"`
}

// Group is an organizational subdivision users may belong to.
type Group struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Role is a global authorization label referenced by the gateway's
// route policy.
type Role struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// User is an account. Roles holds resolved role names; the password
// hash never leaves the store layer.
type User struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	GroupID        string     `json:"group_id,omitempty"`
	Email          string     `json:"email"`
	FirstName      string     `json:"first_name,omitempty"`
	LastName       string     `json:"last_name,omitempty"`
	ContactNo      string     `json:"contact_no,omitempty"`
	Status         string     `json:"status"`
	Roles          []string   `json:"roles"`
	LastLogin      *time.Time `json:"last_login,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// UserRoleAssignment links a user to a role.
type UserRoleAssignment struct {
	UserID    string    `json:"user_id"`
	RoleID    string    `json:"role_id"`
	CreatedAt time.Time `json:"created_at"`
}

// NewUser is the input for account creation. When Password is empty the
// service generates one and mails it to the new account.
type NewUser struct {
	OrganizationID string
	GroupID        string
	Email          string
	Password       string
	FirstName      string
	LastName       string
	ContactNo      string
	Roles          []string
}

// OrganizationUpdate applies partial changes; nil fields are untouched.
// An empty ParentID detaches the organization from its parent.
type OrganizationUpdate struct {
	Name        *string
	Description *string
	ParentID    *string
}

// GroupUpdate applies partial changes; nil fields are untouched.
type GroupUpdate struct {
	Name        *string
	Description *string
}

// RoleUpdate applies partial changes; nil fields are untouched.
type RoleUpdate struct {
	Name        *string
	Description *string
}

// UserUpdate applies partial changes; nil fields are untouched.
// Password is plaintext on input and hashed by the service.
type UserUpdate struct {
	Email     *string
	Password  *string
	FirstName *string
	LastName  *string
	ContactNo *string
	GroupID   *string
	Status    *string
}

// Page is a pagination request. Number is zero-based.
type Page struct {
	Number  int
	Size    int
	SortBy  string
	SortDir string
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Normalize clamps page parameters to safe bounds.
func (p Page) Normalize() Page {
	if p.Number < 0 {
		p.Number = 0
	}
	if p.Size <= 0 {
		p.Size = defaultPageSize
	}
	if p.Size > maxPageSize {
		p.Size = maxPageSize
	}
	if p.SortDir != "desc" {
		p.SortDir = "asc"
	}
	return p
}

// Offset returns the row offset for the page.
func (p Page) Offset() int {
	return p.Number * p.Size
}
