package model

import "time"

// Roles a user can hold.  Admins may edit any play; members only their own.
const (
	RoleMember = "MEMBER"
	RoleAdmin  = "ADMIN"
)

// User represents an application user record as stored in the
// `users` table.  DisplayName and AvatarURL form the public profile
// shown next to reviews.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Email        – unique email address.
//  PasswordHash – bcrypt hashed password.
//  Role         – MEMBER or ADMIN.
//  DisplayName  – optional public name.
//  AvatarURL    – optional avatar image.
//  IsActive     – whether the account is active.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	Role         string    // users.role
	DisplayName  string    // users.display_name (nullable)
	AvatarURL    string    // users.avatar_url (nullable)
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// CanEdit reports whether u may modify a record owned by ownerID.
func (u User) CanEdit(ownerID uint64) bool {
	return u.Role == RoleAdmin || (u.ID != 0 && u.ID == ownerID)
}
