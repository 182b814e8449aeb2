package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	users "github.com/gin728/ginblog/internal/user"
	"github.com/jmoiron/sqlx"
)

type UserStore struct {
	db *sqlx.DB
}

const (
	getUserQuery = "SELECT * FROM users WHERE id = ?"

	createUserQuery = `
		INSERT INTO users (
			id, github_id, google_id, discord_id,
			username, avatar, bio, social_links,
			github_username, github_avatar,
			google_username, google_avatar,
			discord_username, discord_avatar,
			is_admin
		) VALUES (
			:id, :github_id, :google_id, :discord_id,
			:username, :avatar, :bio, :social_links,
			:github_username, :github_avatar,
			:google_username, :google_avatar,
			:discord_username, :discord_avatar,
			:is_admin
		)
	`
	updateNameAndAvatarQuery = `
		UPDATE users SET
		username = ?,
		avatar = ?
		WHERE id = ?
	`
)

func NewUserStore(db *sqlx.DB) *UserStore {
	return &UserStore{db: db}
}

// providerColumns maps a provider name to its linkage columns. Column names
// cannot be bound as query parameters, so the whitelist here is the guard.
func providerColumns(provider string) (idCol, usernameCol, avatarCol string, err error) {
	switch provider {
	case users.ProviderGithub:
		return "github_id", "github_username", "github_avatar", nil
	case users.ProviderGoogle:
		return "google_id", "google_username", "google_avatar", nil
	case users.ProviderDiscord:
		return "discord_id", "discord_username", "discord_avatar", nil
	}
	return "", "", "", fmt.Errorf("unknown provider %q", provider)
}

func (s *UserStore) GetUser(ctx context.Context, id string) (*users.User, error) {
	var user users.User
	err := s.db.GetContext(ctx, &user, getUserQuery, id)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByProviderID returns the user owning the given provider identity, or
// nil when no user has it linked.
func (s *UserStore) GetUserByProviderID(ctx context.Context, provider, externalID string) (*users.User, error) {
	idCol, _, _, err := providerColumns(provider)
	if err != nil {
		return nil, err
	}

	var user users.User
	err = s.db.GetContext(ctx, &user, fmt.Sprintf("SELECT * FROM users WHERE %s = ?", idCol), externalID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *UserStore) CreateUser(ctx context.Context, user *users.User) error {
	_, err := s.db.NamedExecContext(ctx, createUserQuery, user)
	return err
}

// LinkProvider writes the provider linkage columns of an existing user.
// Relinking the same identity to the same user is a no-op update.
func (s *UserStore) LinkProvider(ctx context.Context, userID, provider, externalID, username string, avatar *string) error {
	idCol, usernameCol, avatarCol, err := providerColumns(provider)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(
		"UPDATE users SET %s = ?, %s = ?, %s = ? WHERE id = ?",
		idCol, usernameCol, avatarCol,
	)
	_, err = s.db.ExecContext(ctx, query, externalID, username, avatar, userID)
	return err
}

func (s *UserStore) UpdateNameAndAvatar(ctx context.Context, userID, username string, avatar *string) error {
	_, err := s.db.ExecContext(ctx, updateNameAndAvatarQuery, username, avatar, userID)
	return err
}

// DeleteAllUsers removes every user row. Sessions must be deleted first.
func (s *UserStore) DeleteAllUsers(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM users")
	return err
}
