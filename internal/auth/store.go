package auth

import (
	"context"
	"database/sql"
	"time"
)

// TokenStore persists refresh tokens so logout can revoke them.
type TokenStore struct {
	db *sql.DB
}

// NewTokenStore creates a token store.
func NewTokenStore(db *sql.DB) *TokenStore {
	return &TokenStore{db: db}
}

// Save stores a refresh token for rotation checks.
func (s *TokenStore) Save(ctx context.Context, personID, token string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (person_id, token, expires_at)
		VALUES ($1, $2, $3)
	`, personID, token, expiresAt)
	return err
}

// Revoke marks a token revoked.
func (s *TokenStore) Revoke(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_tokens SET revoked = TRUE WHERE token = $1`, token)
	return err
}
