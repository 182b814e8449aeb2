// Package session implements the cookie-token session lifecycle. The browser
// holds a high-entropy token; only its SHA-256 is persisted, so a database
// compromise does not yield usable credentials.
package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/gin728/ginblog/internal/store"
	users "github.com/gin728/ginblog/internal/user"
)

// Lifetime is the fixed session duration. Validation extends a session by the
// full lifetime once it is past its midpoint.
const Lifetime = 30 * 24 * time.Hour

// GenerateToken returns a new random session token. It is handed to the
// browser exactly once and never stored.
func GenerateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// IDFromToken derives the persisted session id from a raw token.
func IDFromToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

type Manager struct {
	sessions *store.SessionStore
	users    *store.UserStore
	now      func() time.Time
}

func NewManager(sessions *store.SessionStore, userStore *store.UserStore) *Manager {
	return &Manager{
		sessions: sessions,
		users:    userStore,
		now:      time.Now,
	}
}

func (m *Manager) Create(ctx context.Context, token, userID string) (*users.Session, error) {
	session := &users.Session{
		ID:        IDFromToken(token),
		UserID:    userID,
		ExpiresAt: m.now().Add(Lifetime),
	}
	if err := m.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

// Validate is the single authenticated-request gate. A missing or expired
// session yields (nil, nil, nil) rather than an error; expired rows are
// deleted on first sight. Past the lifetime midpoint the expiry is slid
// forward by the full lifetime. Concurrent renewals race benignly: extension
// is monotonic and last write wins.
func (m *Manager) Validate(ctx context.Context, token string) (*users.Session, *users.User, error) {
	session, err := m.sessions.Get(ctx, IDFromToken(token))
	if err != nil {
		return nil, nil, fmt.Errorf("look up session: %w", err)
	}
	if session == nil {
		return nil, nil, nil
	}

	now := m.now()
	if !now.Before(session.ExpiresAt) {
		if err := m.sessions.Delete(ctx, session.ID); err != nil {
			return nil, nil, fmt.Errorf("delete expired session: %w", err)
		}
		return nil, nil, nil
	}

	user, err := m.users.GetUser(ctx, session.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("load session user: %w", err)
	}

	if !now.Before(session.ExpiresAt.Add(-Lifetime / 2)) {
		session.ExpiresAt = now.Add(Lifetime)
		if err := m.sessions.UpdateExpiry(ctx, session.ID, session.ExpiresAt); err != nil {
			return nil, nil, fmt.Errorf("renew session: %w", err)
		}
	}

	return session, user, nil
}

// Invalidate deletes the session matching the token. Logout path.
func (m *Manager) Invalidate(ctx context.Context, token string) error {
	return m.sessions.Delete(ctx, IDFromToken(token))
}

// InvalidateAll deletes every live session. Used by the admin reset, which
// must clear sessions before users for the foreign key.
func (m *Manager) InvalidateAll(ctx context.Context) error {
	return m.sessions.DeleteAll(ctx)
}
