package pg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/99004433/Multi-tenant-IAM/internal/auth"
)

func (s *Store) Create(ctx context.Context, tok *auth.RefreshToken) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	return s.db.QueryRowContext(ctx, `
		insert into refresh_tokens (id, user_id, token_hash, expires_at)
		values ($1, $2, $3, $4)
		returning created_at
	`, tok.ID, tok.UserID, tok.TokenHash, tok.ExpiresAt).Scan(&tok.CreatedAt)
}

func (s *Store) Find(ctx context.Context, id string) (*auth.RefreshToken, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	var tok auth.RefreshToken
	err := s.db.QueryRowContext(ctx, `
		select id, user_id, token_hash, expires_at, revoked, created_at
		from refresh_tokens
		where id = $1
	`, id).Scan(&tok.ID, &tok.UserID, &tok.TokenHash, &tok.ExpiresAt, &tok.Revoked, &tok.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tok, nil
}

func (s *Store) MarkRevoked(ctx context.Context, id string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `update refresh_tokens set revoked = true where id = $1`, id)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func (s *Store) MarkRevokedByUser(ctx context.Context, userID string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	_, err := s.db.ExecContext(ctx, `update refresh_tokens set revoked = true where user_id = $1`, userID)
	return err
}
