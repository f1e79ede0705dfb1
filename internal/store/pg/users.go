package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/99004433/Multi-tenant-IAM/internal/auth"
	"github.com/99004433/Multi-tenant-IAM/internal/directory"
	"github.com/99004433/Multi-tenant-IAM/internal/ids"
)

var userSortColumns = map[string]string{
	"email":      "email",
	"created_at": "created_at",
	"last_login": "last_login",
}

const userColumns = `id, organization_id, group_id, email, first_name, last_name, contact_no, status, last_login, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (directory.User, error) {
	var (
		user      directory.User
		groupID   sql.NullString
		firstName sql.NullString
		lastName  sql.NullString
		contactNo sql.NullString
		lastLogin sql.NullTime
	)
	err := row.Scan(&user.ID, &user.OrganizationID, &groupID, &user.Email, &firstName,
		&lastName, &contactNo, &user.Status, &lastLogin, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return directory.User{}, err
	}
	user.GroupID = groupID.String
	user.FirstName = firstName.String
	user.LastName = lastName.String
	user.ContactNo = contactNo.String
	if lastLogin.Valid {
		t := lastLogin.Time
		user.LastLogin = &t
	}
	return user, nil
}

func (s *Store) CreateUser(ctx context.Context, user directory.User, passwordHash string, roleIDs []string) (directory.User, error) {
	if s.db == nil {
		return directory.User{}, errors.New("database connection unavailable")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return directory.User{}, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		insert into users (id, organization_id, group_id, email, password_hash, first_name, last_name, contact_no, status)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		returning `+userColumns+`
	`, ids.New(), user.OrganizationID, nullIfEmpty(user.GroupID), user.Email, passwordHash,
		nullIfEmpty(user.FirstName), nullIfEmpty(user.LastName), nullIfEmpty(user.ContactNo), user.Status)
	out, err := scanUser(row)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return directory.User{}, directory.ErrConflict
			case pgErrForeignKeyViolation:
				return directory.User{}, directory.ErrNotFound
			}
		}
		return directory.User{}, err
	}

	names := make([]string, 0, len(roleIDs))
	for _, roleID := range roleIDs {
		var name string
		err := tx.QueryRowContext(ctx, `
			insert into user_roles (user_id, role_id)
			values ($1, $2)
			returning (select name from roles where id = $2)
		`, out.ID, roleID).Scan(&name)
		if err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
				return directory.User{}, directory.ErrNotFound
			}
			return directory.User{}, err
		}
		names = append(names, name)
	}
	if err := tx.Commit(); err != nil {
		return directory.User{}, err
	}
	out.Roles = names
	return out, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (directory.User, error) {
	if s.db == nil {
		return directory.User{}, errors.New("database connection unavailable")
	}
	row := s.db.QueryRowContext(ctx, `
		select `+userColumns+`
		from users
		where id = $1
	`, id)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return directory.User{}, directory.ErrNotFound
	}
	if err != nil {
		return directory.User{}, err
	}
	user.Roles, err = s.roleNamesForUser(ctx, id)
	if err != nil {
		return directory.User{}, err
	}
	return user, nil
}

func (s *Store) ListUsers(ctx context.Context, orgID string, page directory.Page) ([]directory.User, int64, error) {
	if s.db == nil {
		return nil, 0, errors.New("database connection unavailable")
	}
	var total int64
	if err := s.db.QueryRowContext(ctx, `select count(*) from users where organization_id = $1`, orgID).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := fmt.Sprintf(`
		select `+userColumns+`
		from users
		where organization_id = $1
		order by %s %s
		limit $2 offset $3
	`, sortColumn(page.SortBy, userSortColumns), sortDirection(page.SortDir))
	return s.queryUsers(ctx, total, query, orgID, page.Size, page.Offset())
}

func (s *Store) SearchUsersByEmail(ctx context.Context, query string, page directory.Page) ([]directory.User, int64, error) {
	if s.db == nil {
		return nil, 0, errors.New("database connection unavailable")
	}
	pattern := "%" + strings.ToLower(query) + "%"
	var total int64
	if err := s.db.QueryRowContext(ctx, `select count(*) from users where email like $1`, pattern).Scan(&total); err != nil {
		return nil, 0, err
	}
	sqlQuery := fmt.Sprintf(`
		select `+userColumns+`
		from users
		where email like $1
		order by %s %s
		limit $2 offset $3
	`, sortColumn(page.SortBy, userSortColumns), sortDirection(page.SortDir))
	return s.queryUsers(ctx, total, sqlQuery, pattern, page.Size, page.Offset())
}

func (s *Store) queryUsers(ctx context.Context, total int64, query string, args ...any) ([]directory.User, int64, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var users []directory.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	for i := range users {
		users[i].Roles, err = s.roleNamesForUser(ctx, users[i].ID)
		if err != nil {
			return nil, 0, err
		}
	}
	return users, total, nil
}

func (s *Store) UpdateUser(ctx context.Context, id string, upd directory.UserUpdate) (directory.User, error) {
	if s.db == nil {
		return directory.User{}, errors.New("database connection unavailable")
	}
	var (
		sets []string
		args []any
		idx  = 1
	)
	appendSet := func(column string, value any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, idx))
		args = append(args, value)
		idx++
	}
	if upd.Email != nil {
		appendSet("email", *upd.Email)
	}
	if upd.Password != nil {
		appendSet("password_hash", *upd.Password)
	}
	if upd.FirstName != nil {
		appendSet("first_name", nullIfEmpty(*upd.FirstName))
	}
	if upd.LastName != nil {
		appendSet("last_name", nullIfEmpty(*upd.LastName))
	}
	if upd.ContactNo != nil {
		appendSet("contact_no", nullIfEmpty(*upd.ContactNo))
	}
	if upd.GroupID != nil {
		appendSet("group_id", nullIfEmpty(*upd.GroupID))
	}
	if upd.Status != nil {
		appendSet("status", *upd.Status)
	}
	if len(sets) > 0 {
		sets = append(sets, "updated_at = now()")
		query := fmt.Sprintf(`update users set %s where id = $%d`, strings.Join(sets, ", "), idx)
		args = append(args, id)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			if pgErr, ok := maybePgError(err); ok {
				switch pgErr.Code {
				case pgErrUniqueViolation:
					return directory.User{}, directory.ErrConflict
				case pgErrForeignKeyViolation:
					return directory.User{}, directory.ErrNotFound
				}
			}
			return directory.User{}, err
		}
		aff, err := res.RowsAffected()
		if err != nil {
			return directory.User{}, err
		}
		if aff == 0 {
			return directory.User{}, directory.ErrNotFound
		}
	}
	return s.GetUser(ctx, id)
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `delete from users where id = $1`, id)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return directory.ErrNotFound
	}
	return nil
}

func (s *Store) AssignRole(ctx context.Context, userID, roleID string) (directory.UserRoleAssignment, error) {
	if s.db == nil {
		return directory.UserRoleAssignment{}, errors.New("database connection unavailable")
	}
	var assignment directory.UserRoleAssignment
	err := s.db.QueryRowContext(ctx, `
		insert into user_roles (user_id, role_id)
		values ($1, $2)
		returning user_id, role_id, created_at
	`, userID, roleID).Scan(&assignment.UserID, &assignment.RoleID, &assignment.CreatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return directory.UserRoleAssignment{}, directory.ErrConflict
			case pgErrForeignKeyViolation:
				return directory.UserRoleAssignment{}, directory.ErrNotFound
			}
		}
		return directory.UserRoleAssignment{}, err
	}
	return assignment, nil
}

func (s *Store) RemoveRoleAssignment(ctx context.Context, userID, roleID string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `
		delete from user_roles
		where user_id = $1 and role_id = $2
	`, userID, roleID)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return directory.ErrNotFound
	}
	return nil
}

func (s *Store) roleNamesForUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		select r.name
		from user_roles ur
		join roles r on r.id = ur.role_id
		where ur.user_id = $1
		order by r.name
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return names, nil
}

// --- auth.UserSource ---

func (s *Store) CredentialsByEmail(ctx context.Context, email string) (auth.CredentialRecord, error) {
	return s.credentials(ctx, `
		select id, organization_id, email, password_hash, status
		from users
		where email = $1
	`, email)
}

func (s *Store) CredentialsByID(ctx context.Context, userID string) (auth.CredentialRecord, error) {
	return s.credentials(ctx, `
		select id, organization_id, email, password_hash, status
		from users
		where id = $1
	`, userID)
}

func (s *Store) credentials(ctx context.Context, query string, arg any) (auth.CredentialRecord, error) {
	if s.db == nil {
		return auth.CredentialRecord{}, errors.New("database connection unavailable")
	}
	var record auth.CredentialRecord
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&record.UserID, &record.OrganizationID,
		&record.Email, &record.PasswordHash, &record.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.CredentialRecord{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.CredentialRecord{}, err
	}
	record.Roles, err = s.roleNamesForUser(ctx, record.UserID)
	if err != nil {
		return auth.CredentialRecord{}, err
	}
	return record, nil
}

func (s *Store) TouchLastLogin(ctx context.Context, userID string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	_, err := s.db.ExecContext(ctx, `update users set last_login = now() where id = $1`, userID)
	return err
}

// DeactivateDormant marks active accounts with no login since the
// cutoff as inactive and returns their emails. Accounts that never
// logged in are judged by creation time.
func (s *Store) DeactivateDormant(ctx context.Context, cutoff time.Time) ([]string, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		update users
		set status = 'inactive', updated_at = now()
		where status = 'active'
		  and coalesce(last_login, created_at) < $1
		returning email
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		emails = append(emails, email)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return emails, nil
}
