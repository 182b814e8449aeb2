package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	users "github.com/gin728/ginblog/internal/user"
	"github.com/jmoiron/sqlx"
)

type SessionStore struct {
	db *sqlx.DB
}

// expires_at is stored as unix seconds.
type sessionRow struct {
	ID        string `db:"id"`
	UserID    string `db:"user_id"`
	ExpiresAt int64  `db:"expires_at"`
}

func NewSessionStore(db *sqlx.DB) *SessionStore {
	return &SessionStore{db: db}
}

func (s *SessionStore) Create(ctx context.Context, session *users.Session) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO sessions (id, user_id, expires_at) VALUES (?, ?, ?)",
		session.ID, session.UserID, session.ExpiresAt.Unix(),
	)
	return err
}

// Get returns the session with the given derived id, or nil when absent.
// Expiry is not checked here; that is the session manager's concern.
func (s *SessionStore) Get(ctx context.Context, id string) (*users.Session, error) {
	var row sessionRow
	err := s.db.GetContext(ctx, &row, "SELECT * FROM sessions WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &users.Session{
		ID:        row.ID,
		UserID:    row.UserID,
		ExpiresAt: time.Unix(row.ExpiresAt, 0),
	}, nil
}

func (s *SessionStore) UpdateExpiry(ctx context.Context, id string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE sessions SET expires_at = ? WHERE id = ?",
		expiresAt.Unix(), id,
	)
	return err
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	return err
}

func (s *SessionStore) DeleteAll(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM sessions")
	return err
}
