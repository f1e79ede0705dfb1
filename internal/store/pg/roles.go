package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/99004433/Multi-tenant-IAM/internal/directory"
	"github.com/99004433/Multi-tenant-IAM/internal/ids"
)

func (s *Store) CreateRole(ctx context.Context, role directory.Role) (directory.Role, error) {
	if s.db == nil {
		return directory.Role{}, errors.New("database connection unavailable")
	}
	var (
		out  directory.Role
		desc sql.NullString
	)
	row := s.db.QueryRowContext(ctx, `
		insert into roles (id, name, description)
		values ($1, $2, $3)
		returning id, name, description, created_at, updated_at
	`, ids.New(), role.Name, nullIfEmpty(role.Description))
	if err := row.Scan(&out.ID, &out.Name, &desc, &out.CreatedAt, &out.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return directory.Role{}, directory.ErrConflict
		}
		return directory.Role{}, err
	}
	if desc.Valid {
		out.Description = desc.String
	}
	return out, nil
}

func (s *Store) GetRole(ctx context.Context, id string) (directory.Role, error) {
	if s.db == nil {
		return directory.Role{}, errors.New("database connection unavailable")
	}
	var (
		out  directory.Role
		desc sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		select id, name, description, created_at, updated_at
		from roles
		where id = $1
	`, id).Scan(&out.ID, &out.Name, &desc, &out.CreatedAt, &out.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return directory.Role{}, directory.ErrNotFound
	}
	if err != nil {
		return directory.Role{}, err
	}
	if desc.Valid {
		out.Description = desc.String
	}
	return out, nil
}

func (s *Store) GetRoleByName(ctx context.Context, name string) (directory.Role, error) {
	if s.db == nil {
		return directory.Role{}, errors.New("database connection unavailable")
	}
	var (
		out  directory.Role
		desc sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		select id, name, description, created_at, updated_at
		from roles
		where name = $1
	`, name).Scan(&out.ID, &out.Name, &desc, &out.CreatedAt, &out.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return directory.Role{}, directory.ErrNotFound
	}
	if err != nil {
		return directory.Role{}, err
	}
	if desc.Valid {
		out.Description = desc.String
	}
	return out, nil
}

func (s *Store) ListRoles(ctx context.Context) ([]directory.Role, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, name, description, created_at, updated_at
		from roles
		order by name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []directory.Role
	for rows.Next() {
		var (
			role directory.Role
			desc sql.NullString
		)
		if err := rows.Scan(&role.ID, &role.Name, &desc, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		if desc.Valid {
			role.Description = desc.String
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

func (s *Store) UpdateRole(ctx context.Context, id string, upd directory.RoleUpdate) (directory.Role, error) {
	if s.db == nil {
		return directory.Role{}, errors.New("database connection unavailable")
	}
	var (
		sets []string
		args []any
		idx  = 1
	)
	if upd.Name != nil {
		sets = append(sets, fmt.Sprintf("name = $%d", idx))
		args = append(args, *upd.Name)
		idx++
	}
	if upd.Description != nil {
		if *upd.Description == "" {
			sets = append(sets, "description = NULL")
		} else {
			sets = append(sets, fmt.Sprintf("description = $%d", idx))
			args = append(args, *upd.Description)
			idx++
		}
	}
	if len(sets) > 0 {
		sets = append(sets, "updated_at = now()")
		query := fmt.Sprintf(`update roles set %s where id = $%d`, strings.Join(sets, ", "), idx)
		args = append(args, id)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
				return directory.Role{}, directory.ErrConflict
			}
			return directory.Role{}, err
		}
		aff, err := res.RowsAffected()
		if err != nil {
			return directory.Role{}, err
		}
		if aff == 0 {
			return directory.Role{}, directory.ErrNotFound
		}
	}
	return s.GetRole(ctx, id)
}

func (s *Store) DeleteRole(ctx context.Context, id string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `delete from roles where id = $1`, id)
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
