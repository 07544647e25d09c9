package user

import (
	"context"

	"github.com/xraph/checkout/id"
)

// Store persists users. CreateUser must report a principal collision as
// checkout.ErrAlreadyExists so that concurrent resolvers can re-fetch.
type Store interface {
	CreateUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, userID id.UserID) (*User, error)
	GetUserByPrincipal(ctx context.Context, principalID int64) (*User, error)
	UpdateUser(ctx context.Context, u *User) error
}
