// Package session maps opaque bearer tokens to principals.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bankledger/internal/auth"
	"bankledger/internal/models"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("session not found")
)

type Principal struct {
	ID   int64       `json:"id"`
	Role models.Kind `json:"role"`
}

// Session is what a Store keeps per live token. TokenID is the token's jti.
type Session struct {
	TokenID     string      `db:"token_id"`
	PrincipalID int64       `db:"principal_id"`
	Role        models.Kind `db:"role"`
	IssuedAt    time.Time   `db:"issued_at"`
	ExpiresAt   *time.Time  `db:"expires_at"`
}

// Store holds at most one session per principal. Put replaces any session
// the principal already has; Get reports ErrNotFound for unknown ids.
type Store interface {
	Put(ctx context.Context, s Session) error
	Get(ctx context.Context, tokenID string) (Session, error)
	Delete(ctx context.Context, tokenID string) error
}

type Manager struct {
	store  Store
	secret string
	ttl    time.Duration
	now    func() time.Time
}

// NewManager issues tokens signed with secret. A zero ttl means sessions
// live until logout or the next login.
func NewManager(store Store, secret string, ttl time.Duration) *Manager {
	return &Manager{
		store:  store,
		secret: secret,
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (m *Manager) Login(ctx context.Context, p Principal) (string, error) {
	sessionID, err := auth.NewSessionID()
	if err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	now := m.now()
	sess := Session{
		TokenID:     sessionID,
		PrincipalID: p.ID,
		Role:        p.Role,
		IssuedAt:    now,
	}
	if m.ttl > 0 {
		expires := now.Add(m.ttl)
		sess.ExpiresAt = &expires
	}

	token, err := auth.GenerateToken(m.secret, sessionID, p.ID, string(p.Role), now, m.ttl)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	if err := m.store.Put(ctx, sess); err != nil {
		return "", err
	}
	return token, nil
}

func (m *Manager) Resolve(ctx context.Context, token string) (Principal, error) {
	claims, err := auth.ParseToken(m.secret, token)
	if err != nil {
		return Principal{}, ErrUnauthorized
	}
	sess, err := m.store.Get(ctx, claims.ID)
	if errors.Is(err, ErrNotFound) {
		return Principal{}, ErrUnauthorized
	}
	if err != nil {
		return Principal{}, err
	}
	if sess.PrincipalID != claims.PrincipalID || string(sess.Role) != claims.Role {
		return Principal{}, ErrUnauthorized
	}
	if sess.ExpiresAt != nil && !m.now().Before(*sess.ExpiresAt) {
		return Principal{}, ErrUnauthorized
	}
	return Principal{ID: sess.PrincipalID, Role: sess.Role}, nil
}

// Logout clears the session behind token. Unknown, stale or malformed tokens
// are accepted silently.
func (m *Manager) Logout(ctx context.Context, token string) error {
	claims, err := auth.ParseTokenIgnoringExpiry(m.secret, token)
	if err != nil {
		return nil
	}
	if err := m.store.Delete(ctx, claims.ID); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}
