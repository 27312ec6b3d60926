// Package model defines the data structures used throughout the application.
package model

import "time"

// Role is the coarse permission level of a user.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User represents a registered account.
//
// Accounts are created either by email/password registration or by the first
// GitHub login. PasswordHash is empty for GitHub-only accounts and GitHubID is
// nil for password-only accounts; either path yields the same User row.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         Role      `json:"role"`
	Bio          string    `json:"bio,omitempty"`
	AvatarURL    string    `json:"avatarUrl,omitempty"`
	GitHubID     *int64    `json:"-"`
	PasswordHash string    `json:"-"` // never serialized
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Identity is the verified caller of a request, as resolved by the session
// layer. A nil *Identity means the caller is anonymous.
type Identity struct {
	UserID string
	Email  string
	Role   Role
}

// IsAdmin reports whether the identity carries the ADMIN role.
func (id *Identity) IsAdmin() bool {
	return id != nil && id.Role == RoleAdmin
}
