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

var orgSortColumns = map[string]string{
	"name":       "name",
	"created_at": "created_at",
}

const orgColumns = `id, parent_org_id, name, description, created_at, updated_at`

func scanOrganization(row interface{ Scan(...any) error }) (directory.Organization, error) {
	var (
		out    directory.Organization
		parent sql.NullString
		desc   sql.NullString
	)
	if err := row.Scan(&out.ID, &parent, &out.Name, &desc, &out.CreatedAt, &out.UpdatedAt); err != nil {
		return directory.Organization{}, err
	}
	if parent.Valid {
		out.ParentID = parent.String
	}
	if desc.Valid {
		out.Description = desc.String
	}
	return out, nil
}

func (s *Store) CreateOrganization(ctx context.Context, org directory.Organization) (directory.Organization, error) {
	if s.db == nil {
		return directory.Organization{}, errors.New("database connection unavailable")
	}
	row := s.db.QueryRowContext(ctx, `
		insert into organizations (id, parent_org_id, name, description)
		values ($1, $2, $3, $4)
		returning `+orgColumns+`
	`, ids.New(), nullIfEmpty(org.ParentID), org.Name, nullIfEmpty(org.Description))
	out, err := scanOrganization(row)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return directory.Organization{}, directory.ErrConflict
			case pgErrForeignKeyViolation:
				return directory.Organization{}, directory.ErrNotFound
			}
		}
		return directory.Organization{}, err
	}
	return out, nil
}

func (s *Store) GetOrganization(ctx context.Context, id string) (directory.Organization, error) {
	if s.db == nil {
		return directory.Organization{}, errors.New("database connection unavailable")
	}
	row := s.db.QueryRowContext(ctx, `
		select `+orgColumns+`
		from organizations
		where id = $1
	`, id)
	out, err := scanOrganization(row)
	if errors.Is(err, sql.ErrNoRows) {
		return directory.Organization{}, directory.ErrNotFound
	}
	if err != nil {
		return directory.Organization{}, err
	}
	return out, nil
}

func (s *Store) ListOrganizations(ctx context.Context, page directory.Page) ([]directory.Organization, int64, error) {
	if s.db == nil {
		return nil, 0, errors.New("database connection unavailable")
	}
	var total int64
	if err := s.db.QueryRowContext(ctx, `select count(*) from organizations`).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		select `+orgColumns+`
		from organizations
		order by %s %s
		limit $1 offset $2
	`, sortColumn(page.SortBy, orgSortColumns), sortDirection(page.SortDir))
	rows, err := s.db.QueryContext(ctx, query, page.Size, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []directory.Organization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, org)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

// ListOrganizationSubtree walks the parent links downward from rootID.
// The path array stops the recursion on cyclic parent data.
func (s *Store) ListOrganizationSubtree(ctx context.Context, rootID string) ([]directory.Organization, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		with recursive subtree as (
			select id, parent_org_id, name, description, created_at, updated_at, array[id] as path
			from organizations
			where parent_org_id = $1
			union all
			select o.id, o.parent_org_id, o.name, o.description, o.created_at, o.updated_at, s.path || o.id
			from organizations o
			join subtree s on o.parent_org_id = s.id
			where not o.id = any(s.path)
		)
		select `+orgColumns+` from subtree
	`, rootID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []directory.Organization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, org)
	}
	return result, rows.Err()
}

func (s *Store) UpdateOrganization(ctx context.Context, id string, upd directory.OrganizationUpdate) (directory.Organization, error) {
	if s.db == nil {
		return directory.Organization{}, errors.New("database connection unavailable")
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
	if upd.ParentID != nil {
		if *upd.ParentID == "" {
			sets = append(sets, "parent_org_id = NULL")
		} else {
			sets = append(sets, fmt.Sprintf("parent_org_id = $%d", idx))
			args = append(args, *upd.ParentID)
			idx++
		}
	}
	if len(sets) > 0 {
		sets = append(sets, "updated_at = now()")
		query := fmt.Sprintf(`update organizations set %s where id = $%d`, strings.Join(sets, ", "), idx)
		args = append(args, id)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			if pgErr, ok := maybePgError(err); ok {
				switch pgErr.Code {
				case pgErrUniqueViolation:
					return directory.Organization{}, directory.ErrConflict
				case pgErrForeignKeyViolation:
					return directory.Organization{}, directory.ErrNotFound
				}
			}
			return directory.Organization{}, err
		}
		aff, err := res.RowsAffected()
		if err != nil {
			return directory.Organization{}, err
		}
		if aff == 0 {
			return directory.Organization{}, directory.ErrNotFound
		}
	}
	return s.GetOrganization(ctx, id)
}

func (s *Store) DeleteOrganization(ctx context.Context, id string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `delete from organizations where id = $1`, id)
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
