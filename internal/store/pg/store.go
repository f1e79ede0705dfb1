// Package pg implements the directory store and the auth credential
// sources on Postgres via database/sql over the pgx stdlib driver.
package pg

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/99004433/Multi-tenant-IAM/internal/auth"
	"github.com/99004433/Multi-tenant-IAM/internal/directory"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

type Store struct {
	db *sql.DB
}

var (
	_ directory.Store   = (*Store)(nil)
	_ auth.UserSource   = (*Store)(nil)
	_ auth.RefreshStore = (*Store)(nil)
)

// Open connects to Postgres and returns a Store with tuned pool
// defaults.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewStore wraps an existing connection. Used by tests with sqlmock.
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// --- helpers ---

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

func nullIfEmpty(s string) sql.NullString {
	s = strings.TrimSpace(s)
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// sortColumn maps a requested sort field to a real column, falling
// back to created_at so callers cannot inject arbitrary SQL.
func sortColumn(requested string, allowed map[string]string) string {
	if col, ok := allowed[strings.ToLower(strings.TrimSpace(requested))]; ok {
		return col
	}
	return "created_at"
}

func sortDirection(dir string) string {
	if dir == "desc" {
		return "desc"
	}
	return "asc"
}
