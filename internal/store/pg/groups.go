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

func (s *Store) CreateGroup(ctx context.Context, group directory.Group) (directory.Group, error) {
	if s.db == nil {
		return directory.Group{}, errors.New("database connection unavailable")
	}
	var (
		out  directory.Group
		desc sql.NullString
	)
	row := s.db.QueryRowContext(ctx, `
		insert into groups (id, organization_id, name, description)
		values ($1, $2, $3, $4)
		returning id, organization_id, name, description, created_at, updated_at
	`, ids.New(), group.OrganizationID, group.Name, nullIfEmpty(group.Description))
	if err := row.Scan(&out.ID, &out.OrganizationID, &out.Name, &desc, &out.CreatedAt, &out.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return directory.Group{}, directory.ErrConflict
			case pgErrForeignKeyViolation:
				return directory.Group{}, directory.ErrNotFound
			}
		}
		return directory.Group{}, err
	}
	if desc.Valid {
		out.Description = desc.String
	}
	return out, nil
}

func (s *Store) GetGroup(ctx context.Context, id string) (directory.Group, error) {
	if s.db == nil {
		return directory.Group{}, errors.New("database connection unavailable")
	}
	var (
		out  directory.Group
		desc sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		select id, organization_id, name, description, created_at, updated_at
		from groups
		where id = $1
	`, id).Scan(&out.ID, &out.OrganizationID, &out.Name, &desc, &out.CreatedAt, &out.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return directory.Group{}, directory.ErrNotFound
	}
	if err != nil {
		return directory.Group{}, err
	}
	if desc.Valid {
		out.Description = desc.String
	}
	return out, nil
}

func (s *Store) ListGroupsByOrg(ctx context.Context, orgID string) ([]directory.Group, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, organization_id, name, description, created_at, updated_at
		from groups
		where organization_id = $1
		order by name
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []directory.Group
	for rows.Next() {
		var (
			group directory.Group
			desc  sql.NullString
		)
		if err := rows.Scan(&group.ID, &group.OrganizationID, &group.Name, &desc, &group.CreatedAt, &group.UpdatedAt); err != nil {
			return nil, err
		}
		if desc.Valid {
			group.Description = desc.String
		}
		groups = append(groups, group)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return groups, nil
}

func (s *Store) UpdateGroup(ctx context.Context, id string, upd directory.GroupUpdate) (directory.Group, error) {
	if s.db == nil {
		return directory.Group{}, errors.New("database connection unavailable")
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
		query := fmt.Sprintf(`update groups set %s where id = $%d`, strings.Join(sets, ", "), idx)
		args = append(args, id)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
				return directory.Group{}, directory.ErrConflict
			}
			return directory.Group{}, err
		}
		aff, err := res.RowsAffected()
		if err != nil {
			return directory.Group{}, err
		}
		if aff == 0 {
			return directory.Group{}, directory.ErrNotFound
		}
	}
	return s.GetGroup(ctx, id)
}

func (s *Store) DeleteGroup(ctx context.Context, id string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `delete from groups where id = $1`, id)
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
