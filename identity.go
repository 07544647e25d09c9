package checkout

import (
	"context"
	"errors"
	"strings"

	"github.com/xraph/checkout/id"
	"github.com/xraph/checkout/types"
	"github.com/xraph/checkout/user"
)

// ──────────────────────────────────────────────────
// Identity
// ──────────────────────────────────────────────────

// ResolveUser returns the user for an external principal, creating it on
// first contact. Concurrent first contacts race on the store's uniqueness
// constraint and every loser returns the winner's row.
func (c *Checkout) ResolveUser(ctx context.Context, principalID int64, displayName string) (*user.User, error) {
	u, err := c.store.GetUserByPrincipal(ctx, principalID)
	switch {
	case err == nil:
		return c.refreshDisplayName(ctx, u, displayName)
	case !errors.Is(err, ErrUserNotFound):
		return nil, &IdentityStoreError{PrincipalID: principalID, Err: err}
	}

	u = &user.User{
		Entity:      types.NewEntity(),
		ID:          id.NewUserID(),
		PrincipalID: principalID,
		DisplayName: displayName,
	}

	err = c.store.CreateUser(ctx, u)
	if err == nil {
		c.plugins.EmitUserCreated(ctx, u)
		c.logger.Info("user created", "user_id", u.ID.String(), "principal_id", principalID)
		return u, nil
	}
	if !errors.Is(err, ErrAlreadyExists) {
		return nil, &IdentityStoreError{PrincipalID: principalID, Err: err}
	}

	winner, err := c.store.GetUserByPrincipal(ctx, principalID)
	if err != nil {
		return nil, &IdentityStoreError{PrincipalID: principalID, Err: err}
	}
	return c.refreshDisplayName(ctx, winner, displayName)
}

func (c *Checkout) refreshDisplayName(ctx context.Context, u *user.User, displayName string) (*user.User, error) {
	if displayName == "" || displayName == u.DisplayName {
		return u, nil
	}
	u.DisplayName = displayName
	if err := c.store.UpdateUser(ctx, u); err != nil {
		return nil, &IdentityStoreError{PrincipalID: u.PrincipalID, Err: err}
	}
	return u, nil
}

// SetUserEmail stores the address used for card payment receipts.
func (c *Checkout) SetUserEmail(ctx context.Context, userID id.UserID, email string) (*user.User, error) {
	email = strings.TrimSpace(email)
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 || strings.ContainsAny(email, " \t\n") {
		return nil, ValidationError{Field: "email", Message: "must look like name@host"}
	}

	u, err := c.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	u.Email = email
	if err := c.store.UpdateUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// GetUser retrieves a user by ID.
func (c *Checkout) GetUser(ctx context.Context, userID id.UserID) (*user.User, error) {
	return c.store.GetUser(ctx, userID)
}
