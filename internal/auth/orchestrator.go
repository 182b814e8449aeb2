package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/gin728/ginblog/internal/store"
	users "github.com/gin728/ginblog/internal/user"
	"github.com/google/uuid"
)

// ErrProviderAlreadyLinked means the asserted provider identity belongs to a
// different local account than the one currently logged in.
var ErrProviderAlreadyLinked = errors.New("provider identity already linked to another account")

// ErrProviderNotLinked means the chosen provider has no cached identity for
// this user.
var ErrProviderNotLinked = errors.New("provider not linked to this account")

// Orchestrator decides, for each completed provider authentication, whether
// to create a user, log into an existing one, or link the provider to the
// current session's user. One instance serves all providers.
type Orchestrator struct {
	users *store.UserStore
}

func NewOrchestrator(userStore *store.UserStore) *Orchestrator {
	return &Orchestrator{users: userStore}
}

// Authenticate resolves an assertion to the user that owns the new session.
// currentUserID is the user behind any session cookie present before the
// flow began; nil means the caller was not logged in.
//
// Evaluated in order:
//   - logged in, identity owned by someone else: ErrProviderAlreadyLinked,
//     nothing mutated
//   - logged in otherwise: link the provider to the current user (idempotent
//     when relinking the same identity)
//   - logged out, identity known: log into its owner, nothing mutated
//   - logged out, identity unknown: create a user with the active display
//     identity defaulted from this provider
func (o *Orchestrator) Authenticate(ctx context.Context, provider string, assertion *Assertion, currentUserID *string) (string, error) {
	existing, err := o.users.GetUserByProviderID(ctx, provider, assertion.ExternalID)
	if err != nil {
		return "", fmt.Errorf("look up %s identity: %w", provider, err)
	}

	if currentUserID != nil {
		if existing != nil && existing.ID != *currentUserID {
			return "", ErrProviderAlreadyLinked
		}
		err := o.users.LinkProvider(ctx, *currentUserID, provider, assertion.ExternalID, assertion.Username, assertion.Avatar)
		if err != nil {
			return "", fmt.Errorf("link %s identity: %w", provider, err)
		}
		return *currentUserID, nil
	}

	if existing != nil {
		return existing.ID, nil
	}

	user := &users.User{
		ID:       uuid.New().String(),
		Username: assertion.Username,
		Avatar:   assertion.Avatar,
	}
	user.SetProviderIdentity(provider, assertion.ExternalID, assertion.Username, assertion.Avatar)
	if err := o.users.CreateUser(ctx, user); err != nil {
		return "", fmt.Errorf("create user: %w", err)
	}
	return user.ID, nil
}

// UseProviderInfo switches the user's active display identity to a linked
// provider's cached username/avatar. "custom" always succeeds and writes
// nothing; the display fields stay whatever was last set.
func (o *Orchestrator) UseProviderInfo(ctx context.Context, userID, provider string) (*users.User, error) {
	user, err := o.users.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	if provider == users.ProviderCustom {
		return user, nil
	}

	username, avatar, ok := user.ProviderIdentity(provider)
	if !ok {
		return nil, ErrProviderNotLinked
	}

	if err := o.users.UpdateNameAndAvatar(ctx, userID, username, avatar); err != nil {
		return nil, fmt.Errorf("update display identity: %w", err)
	}
	user.Username = username
	user.Avatar = avatar
	return user, nil
}
