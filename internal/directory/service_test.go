package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/99004433/Multi-tenant-IAM/internal/auth"
	"github.com/99004433/Multi-tenant-IAM/internal/mail"
)

type memStore struct {
	orgs        map[string]Organization
	groups      map[string]Group
	roles       map[string]Role
	users       map[string]User
	hashes      map[string]string
	assignments map[string][]string
	nextID      int
	failWith    error
}

func newMemStore() *memStore {
	s := &memStore{
		orgs:        map[string]Organization{},
		groups:      map[string]Group{},
		roles:       map[string]Role{},
		users:       map[string]User{},
		hashes:      map[string]string{},
		assignments: map[string][]string{},
	}
	for _, name := range []string{"ADMIN", "SUPERADMIN", "USER", "VIEWER"} {
		id := s.id()
		s.roles[id] = Role{ID: id, Name: name}
	}
	return s
}

func (s *memStore) id() string {
	s.nextID++
	return fmt.Sprintf("id-%d", s.nextID)
}

func (s *memStore) CreateOrganization(_ context.Context, org Organization) (Organization, error) {
	if s.failWith != nil {
		return Organization{}, s.failWith
	}
	for _, existing := range s.orgs {
		if existing.Name == org.Name {
			return Organization{}, ErrConflict
		}
	}
	org.ID = s.id()
	s.orgs[org.ID] = org
	return org, nil
}

func (s *memStore) GetOrganization(_ context.Context, id string) (Organization, error) {
	org, ok := s.orgs[id]
	if !ok {
		return Organization{}, ErrNotFound
	}
	return org, nil
}

func (s *memStore) ListOrganizations(_ context.Context, _ Page) ([]Organization, int64, error) {
	out := make([]Organization, 0, len(s.orgs))
	for _, org := range s.orgs {
		out = append(out, org)
	}
	return out, int64(len(out)), nil
}

func (s *memStore) ListOrganizationSubtree(_ context.Context, rootID string) ([]Organization, error) {
	var out []Organization
	seen := map[string]bool{rootID: true}
	queue := []string{rootID}
	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]
		for _, org := range s.orgs {
			if org.ParentID == parent && !seen[org.ID] {
				seen[org.ID] = true
				out = append(out, org)
				queue = append(queue, org.ID)
			}
		}
	}
	return out, nil
}

func (s *memStore) UpdateOrganization(_ context.Context, id string, upd OrganizationUpdate) (Organization, error) {
	org, ok := s.orgs[id]
	if !ok {
		return Organization{}, ErrNotFound
	}
	if upd.Name != nil {
		org.Name = *upd.Name
	}
	if upd.Description != nil {
		org.Description = *upd.Description
	}
	if upd.ParentID != nil {
		org.ParentID = *upd.ParentID
	}
	s.orgs[id] = org
	return org, nil
}

func (s *memStore) DeleteOrganization(_ context.Context, id string) error {
	if _, ok := s.orgs[id]; !ok {
		return ErrNotFound
	}
	delete(s.orgs, id)
	return nil
}

func (s *memStore) CreateGroup(_ context.Context, group Group) (Group, error) {
	group.ID = s.id()
	s.groups[group.ID] = group
	return group, nil
}

func (s *memStore) GetGroup(_ context.Context, id string) (Group, error) {
	group, ok := s.groups[id]
	if !ok {
		return Group{}, ErrNotFound
	}
	return group, nil
}

func (s *memStore) ListGroupsByOrg(_ context.Context, orgID string) ([]Group, error) {
	var out []Group
	for _, group := range s.groups {
		if group.OrganizationID == orgID {
			out = append(out, group)
		}
	}
	return out, nil
}

func (s *memStore) UpdateGroup(_ context.Context, id string, upd GroupUpdate) (Group, error) {
	group, ok := s.groups[id]
	if !ok {
		return Group{}, ErrNotFound
	}
	if upd.Name != nil {
		group.Name = *upd.Name
	}
	if upd.Description != nil {
		group.Description = *upd.Description
	}
	s.groups[id] = group
	return group, nil
}

func (s *memStore) DeleteGroup(_ context.Context, id string) error {
	if _, ok := s.groups[id]; !ok {
		return ErrNotFound
	}
	delete(s.groups, id)
	return nil
}

func (s *memStore) CreateRole(_ context.Context, role Role) (Role, error) {
	for _, existing := range s.roles {
		if existing.Name == role.Name {
			return Role{}, ErrConflict
		}
	}
	role.ID = s.id()
	s.roles[role.ID] = role
	return role, nil
}

func (s *memStore) GetRole(_ context.Context, id string) (Role, error) {
	role, ok := s.roles[id]
	if !ok {
		return Role{}, ErrNotFound
	}
	return role, nil
}

func (s *memStore) GetRoleByName(_ context.Context, name string) (Role, error) {
	for _, role := range s.roles {
		if role.Name == name {
			return role, nil
		}
	}
	return Role{}, ErrNotFound
}

func (s *memStore) ListRoles(_ context.Context) ([]Role, error) {
	out := make([]Role, 0, len(s.roles))
	for _, role := range s.roles {
		out = append(out, role)
	}
	return out, nil
}

func (s *memStore) UpdateRole(_ context.Context, id string, upd RoleUpdate) (Role, error) {
	role, ok := s.roles[id]
	if !ok {
		return Role{}, ErrNotFound
	}
	if upd.Name != nil {
		role.Name = *upd.Name
	}
	if upd.Description != nil {
		role.Description = *upd.Description
	}
	s.roles[id] = role
	return role, nil
}

func (s *memStore) DeleteRole(_ context.Context, id string) error {
	if _, ok := s.roles[id]; !ok {
		return ErrNotFound
	}
	delete(s.roles, id)
	return nil
}

func (s *memStore) CreateUser(_ context.Context, user User, passwordHash string, roleIDs []string) (User, error) {
	for _, existing := range s.users {
		if existing.Email == user.Email {
			return User{}, ErrConflict
		}
	}
	user.ID = s.id()
	names := make([]string, 0, len(roleIDs))
	for _, roleID := range roleIDs {
		role, ok := s.roles[roleID]
		if !ok {
			return User{}, ErrNotFound
		}
		names = append(names, role.Name)
	}
	user.Roles = names
	s.users[user.ID] = user
	s.hashes[user.ID] = passwordHash
	s.assignments[user.ID] = roleIDs
	return user, nil
}

func (s *memStore) GetUser(_ context.Context, id string) (User, error) {
	user, ok := s.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

func (s *memStore) ListUsers(_ context.Context, orgID string, _ Page) ([]User, int64, error) {
	var out []User
	for _, user := range s.users {
		if user.OrganizationID == orgID {
			out = append(out, user)
		}
	}
	return out, int64(len(out)), nil
}

func (s *memStore) SearchUsersByEmail(_ context.Context, query string, _ Page) ([]User, int64, error) {
	var out []User
	for _, user := range s.users {
		if strings.Contains(user.Email, strings.ToLower(query)) {
			out = append(out, user)
		}
	}
	return out, int64(len(out)), nil
}

func (s *memStore) UpdateUser(_ context.Context, id string, upd UserUpdate) (User, error) {
	user, ok := s.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	if upd.Email != nil {
		user.Email = *upd.Email
	}
	if upd.Status != nil {
		user.Status = *upd.Status
	}
	if upd.Password != nil {
		s.hashes[id] = *upd.Password
	}
	if upd.FirstName != nil {
		user.FirstName = *upd.FirstName
	}
	if upd.LastName != nil {
		user.LastName = *upd.LastName
	}
	if upd.ContactNo != nil {
		user.ContactNo = *upd.ContactNo
	}
	if upd.GroupID != nil {
		user.GroupID = *upd.GroupID
	}
	s.users[id] = user
	return user, nil
}

func (s *memStore) DeleteUser(_ context.Context, id string) error {
	if _, ok := s.users[id]; !ok {
		return ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *memStore) AssignRole(_ context.Context, userID, roleID string) (UserRoleAssignment, error) {
	if _, ok := s.users[userID]; !ok {
		return UserRoleAssignment{}, ErrNotFound
	}
	role, ok := s.roles[roleID]
	if !ok {
		return UserRoleAssignment{}, ErrNotFound
	}
	for _, existing := range s.assignments[userID] {
		if existing == roleID {
			return UserRoleAssignment{}, ErrConflict
		}
	}
	s.assignments[userID] = append(s.assignments[userID], roleID)
	user := s.users[userID]
	user.Roles = append(user.Roles, role.Name)
	s.users[userID] = user
	return UserRoleAssignment{UserID: userID, RoleID: roleID}, nil
}

func (s *memStore) RemoveRoleAssignment(_ context.Context, userID, roleID string) error {
	roleIDs := s.assignments[userID]
	for i, existing := range roleIDs {
		if existing == roleID {
			s.assignments[userID] = append(roleIDs[:i], roleIDs[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

type recordingSender struct {
	sent []mail.Message
	fail error
}

func (r *recordingSender) Send(_ context.Context, msg mail.Message) error {
	if r.fail != nil {
		return r.fail
	}
	r.sent = append(r.sent, msg)
	return nil
}

func newTestService(t *testing.T, store Store, sender mail.Sender) *Service {
	t.Helper()
	svc, err := NewService(store, sender)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestCreateOrganizationValidation(t *testing.T) {
	svc := newTestService(t, newMemStore(), nil)
	ctx := context.Background()

	if _, err := svc.CreateOrganization(ctx, "   ", "", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	org, err := svc.CreateOrganization(ctx, "  Acme  ", "main tenant", "")
	if err != nil {
		t.Fatalf("CreateOrganization: %v", err)
	}
	if org.Name != "Acme" {
		t.Fatalf("expected trimmed name, got %q", org.Name)
	}
	if _, err := svc.CreateOrganization(ctx, "Acme", "", ""); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on duplicate name, got %v", err)
	}
	if _, err := svc.CreateOrganization(ctx, "Branch", "", "org-ghost"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown parent, got %v", err)
	}
}

func TestOrganizationHierarchy(t *testing.T) {
	svc := newTestService(t, newMemStore(), nil)
	ctx := context.Background()

	root, err := svc.CreateOrganization(ctx, "Group", "", "")
	if err != nil {
		t.Fatalf("CreateOrganization: %v", err)
	}
	east, err := svc.CreateOrganization(ctx, "East", "", root.ID)
	if err != nil {
		t.Fatalf("CreateOrganization: %v", err)
	}
	if _, err := svc.CreateOrganization(ctx, "West", "", root.ID); err != nil {
		t.Fatalf("CreateOrganization: %v", err)
	}
	desk, err := svc.CreateOrganization(ctx, "East Desk", "", east.ID)
	if err != nil {
		t.Fatalf("CreateOrganization: %v", err)
	}

	node, err := svc.GetOrganizationHierarchy(ctx, root.ID)
	if err != nil {
		t.Fatalf("GetOrganizationHierarchy: %v", err)
	}
	if node.ID != root.ID || len(node.Children) != 2 {
		t.Fatalf("expected two children under root, got %+v", node)
	}
	var eastNode *OrganizationNode
	for _, child := range node.Children {
		if child.ID == east.ID {
			eastNode = child
		}
	}
	if eastNode == nil {
		t.Fatalf("east missing from hierarchy: %+v", node.Children)
	}
	if len(eastNode.Children) != 1 || eastNode.Children[0].ID != desk.ID {
		t.Fatalf("expected desk under east, got %+v", eastNode.Children)
	}

	leaf, err := svc.GetOrganizationHierarchy(ctx, desk.ID)
	if err != nil {
		t.Fatalf("GetOrganizationHierarchy: %v", err)
	}
	if len(leaf.Children) != 0 {
		t.Fatalf("expected leaf to have no children, got %+v", leaf.Children)
	}
}

func TestReparentRejectsCycles(t *testing.T) {
	svc := newTestService(t, newMemStore(), nil)
	ctx := context.Background()

	root, err := svc.CreateOrganization(ctx, "Group", "", "")
	if err != nil {
		t.Fatalf("CreateOrganization: %v", err)
	}
	child, err := svc.CreateOrganization(ctx, "Branch", "", root.ID)
	if err != nil {
		t.Fatalf("CreateOrganization: %v", err)
	}

	self := root.ID
	if _, err := svc.UpdateOrganization(ctx, root.ID, OrganizationUpdate{ParentID: &self}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for self-parent, got %v", err)
	}
	descendant := child.ID
	if _, err := svc.UpdateOrganization(ctx, root.ID, OrganizationUpdate{ParentID: &descendant}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for descendant parent, got %v", err)
	}

	detach := ""
	updated, err := svc.UpdateOrganization(ctx, child.ID, OrganizationUpdate{ParentID: &detach})
	if err != nil {
		t.Fatalf("UpdateOrganization: %v", err)
	}
	if updated.ParentID != "" {
		t.Fatalf("expected detached child, got parent %q", updated.ParentID)
	}
}

func TestCreateUserDefaultsToUserRole(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store, nil)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, NewUser{
		OrganizationID: "org-1",
		Email:          "  Alice@X.com ",
		Password:       "secret123",
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if user.Email != "alice@x.com" {
		t.Fatalf("expected normalized email, got %q", user.Email)
	}
	if len(user.Roles) != 1 || user.Roles[0] != "USER" {
		t.Fatalf("expected default USER role, got %v", user.Roles)
	}
	if user.Status != UserStatusActive {
		t.Fatalf("expected active status, got %q", user.Status)
	}
	hash := store.hashes[user.ID]
	if hash == "" || hash == "secret123" {
		t.Fatalf("expected hashed password, got %q", hash)
	}
	if err := auth.VerifyPassword(hash, "secret123"); err != nil {
		t.Fatalf("stored hash does not verify: %v", err)
	}
}

func TestCreateUserGeneratesAndMailsPassword(t *testing.T) {
	sender := &recordingSender{}
	svc := newTestService(t, newMemStore(), sender)

	user, err := svc.CreateUser(context.Background(), NewUser{
		OrganizationID: "org-1",
		Email:          "bob@x.com",
		Roles:          []string{"admin"},
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if len(user.Roles) != 1 || user.Roles[0] != "ADMIN" {
		t.Fatalf("expected normalized ADMIN role, got %v", user.Roles)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected one credentials mail, got %d", len(sender.sent))
	}
	if sender.sent[0].To != "bob@x.com" {
		t.Fatalf("mail sent to wrong recipient: %s", sender.sent[0].To)
	}
	if !strings.Contains(sender.sent[0].Body, "Password: ") {
		t.Fatalf("mail body missing password: %q", sender.sent[0].Body)
	}
}

func TestCreateUserSurvivesMailFailure(t *testing.T) {
	sender := &recordingSender{fail: errors.New("relay down")}
	svc := newTestService(t, newMemStore(), sender)

	if _, err := svc.CreateUser(context.Background(), NewUser{
		OrganizationID: "org-1",
		Email:          "carol@x.com",
	}); err != nil {
		t.Fatalf("CreateUser should not fail on mail error, got %v", err)
	}
}

func TestCreateUserRejectsUnknownRole(t *testing.T) {
	svc := newTestService(t, newMemStore(), nil)

	_, err := svc.CreateUser(context.Background(), NewUser{
		OrganizationID: "org-1",
		Email:          "dave@x.com",
		Password:       "secret123",
		Roles:          []string{"WIZARD"},
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown role, got %v", err)
	}
}

func TestCreateUserRejectsBadEmail(t *testing.T) {
	svc := newTestService(t, newMemStore(), nil)
	for _, email := range []string{"", "   ", "not-an-email"} {
		if _, err := svc.CreateUser(context.Background(), NewUser{
			OrganizationID: "org-1",
			Email:          email,
		}); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("email %q: expected ErrInvalidInput, got %v", email, err)
		}
	}
}

func TestUpdateUserStatusValidation(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store, nil)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, NewUser{OrganizationID: "org-1", Email: "eve@x.com", Password: "secret123"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	bad := "frozen"
	if _, err := svc.UpdateUser(ctx, user.ID, UserUpdate{Status: &bad}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for bad status, got %v", err)
	}

	inactive := "INACTIVE"
	updated, err := svc.UpdateUser(ctx, user.ID, UserUpdate{Status: &inactive})
	if err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if updated.Status != UserStatusInactive {
		t.Fatalf("expected lowered status, got %q", updated.Status)
	}
}

func TestUpdateUserHashesPassword(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store, nil)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, NewUser{OrganizationID: "org-1", Email: "frank@x.com", Password: "secret123"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	next := "newsecret456"
	if _, err := svc.UpdateUser(ctx, user.ID, UserUpdate{Password: &next}); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if err := auth.VerifyPassword(store.hashes[user.ID], "newsecret456"); err != nil {
		t.Fatalf("new hash does not verify: %v", err)
	}
}

func TestSearchUsersBlankQueryReturnsNothing(t *testing.T) {
	svc := newTestService(t, newMemStore(), nil)
	users, total, err := svc.SearchUsersByEmail(context.Background(), "   ", Page{})
	if err != nil {
		t.Fatalf("SearchUsersByEmail: %v", err)
	}
	if len(users) != 0 || total != 0 {
		t.Fatalf("expected empty result, got %d/%d", len(users), total)
	}
}

func TestAssignAndRemoveRole(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store, nil)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, NewUser{OrganizationID: "org-1", Email: "gina@x.com", Password: "secret123"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	admin, err := store.GetRoleByName(ctx, "ADMIN")
	if err != nil {
		t.Fatalf("GetRoleByName: %v", err)
	}

	if _, err := svc.AssignRole(ctx, user.ID, admin.ID); err != nil {
		t.Fatalf("AssignRole: %v", err)
	}
	if _, err := svc.AssignRole(ctx, user.ID, admin.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on duplicate assignment, got %v", err)
	}
	if err := svc.RemoveRoleAssignment(ctx, user.ID, admin.ID); err != nil {
		t.Fatalf("RemoveRoleAssignment: %v", err)
	}
	if err := svc.RemoveRoleAssignment(ctx, user.ID, admin.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after removal, got %v", err)
	}
}

func TestRoleNamesAreUppercased(t *testing.T) {
	svc := newTestService(t, newMemStore(), nil)
	role, err := svc.CreateRole(context.Background(), " auditor ", "read only")
	if err != nil {
		t.Fatalf("CreateRole: %v", err)
	}
	if role.Name != "AUDITOR" {
		t.Fatalf("expected uppercased name, got %q", role.Name)
	}
}
