// Package user defines the customer identity resolved from an external
// chat principal.
package user

import (
	"github.com/xraph/checkout/id"
	"github.com/xraph/checkout/types"
)

// User is created lazily on first contact and never deleted.
type User struct {
	types.Entity
	ID          id.UserID `json:"id"`
	PrincipalID int64     `json:"principal_id"`
	DisplayName string    `json:"display_name"`
	Login       string    `json:"login,omitempty"`
	Email       string    `json:"email,omitempty"`
}

// HasEmail reports whether the user can receive card receipts.
func (u *User) HasEmail() bool { return u.Email != "" }
