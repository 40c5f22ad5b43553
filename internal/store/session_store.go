package store

import (
	"context"
	"database/sql"
	"errors"

	"bankledger/internal/session"
)

// SessionStore keeps login sessions in Postgres. The unique principal_id
// column enforces one live token per principal.
type SessionStore struct {
	db DB
}

func NewSessionStore(db DB) *SessionStore {
	return &SessionStore{db: db}
}

func (s *SessionStore) Put(ctx context.Context, sess session.Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (token_id, principal_id, role, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (principal_id) DO UPDATE
		SET token_id = EXCLUDED.token_id,
		    role = EXCLUDED.role,
		    issued_at = EXCLUDED.issued_at,
		    expires_at = EXCLUDED.expires_at
	`, sess.TokenID, sess.PrincipalID, sess.Role, sess.IssuedAt, sess.ExpiresAt)
	return err
}

func (s *SessionStore) Get(ctx context.Context, tokenID string) (session.Session, error) {
	var row session.Session
	err := s.db.GetContext(ctx, &row, `
		SELECT token_id, principal_id, role, issued_at, expires_at
		FROM sessions
		WHERE token_id = $1
	`, tokenID)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Session{}, session.ErrNotFound
	}
	if err != nil {
		return session.Session{}, err
	}
	return row, nil
}

func (s *SessionStore) Delete(ctx context.Context, tokenID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE token_id = $1`, tokenID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return session.ErrNotFound
	}
	return nil
}
