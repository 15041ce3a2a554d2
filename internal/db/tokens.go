package db

import (
	"context"
	"time"
)

// Refresh tokens are a server-side allow-list: a cryptographically valid
// token that is missing here is rejected.

func (s *Store) SaveRefreshToken(ctx context.Context, userID int64, token string) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO refresh_tokens (user_id, token) VALUES ($1, $2)
		ON CONFLICT (token) DO NOTHING
	`, userID, token)
	return translate(err)
}

func (s *Store) RefreshTokenExists(ctx context.Context, token string) (bool, error) {
	var exists bool
	err := s.Pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM refresh_tokens WHERE token = $1)`, token).Scan(&exists)
	return exists, translate(err)
}

func (s *Store) DeleteRefreshToken(ctx context.Context, token string) error {
	_, err := s.Pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE token = $1`, token)
	return translate(err)
}

// DeleteRefreshTokensForUser revokes every session, used after a password
// reset.
func (s *Store) DeleteRefreshTokensForUser(ctx context.Context, userID int64) error {
	_, err := s.Pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID)
	return translate(err)
}

func (s *Store) CreatePasswordReset(ctx context.Context, userID int64, token string, expiresAt time.Time) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO password_resets (user_id, token, expires_at) VALUES ($1, $2, $3)
	`, userID, token, expiresAt)
	return translate(err)
}

// ConsumePasswordReset deletes the row and returns the user id. Expired or
// unknown tokens come back as ErrNotFound.
func (s *Store) ConsumePasswordReset(ctx context.Context, token string) (int64, error) {
	var userID int64
	err := s.Pool.QueryRow(ctx, `
		DELETE FROM password_resets WHERE token = $1 AND expires_at > NOW() RETURNING user_id
	`, token).Scan(&userID)
	if err != nil {
		return 0, translate(err)
	}
	return userID, nil
}
