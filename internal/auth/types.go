package auth

import "time"

// User is a registered account. The role is assigned at registration and
// immutable afterwards; workflow records reference users by id only.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	FullName     string
	RoleID       int64
	CreatedAt    time.Time
}

// Role groups permissions. Roles are static reference data seeded by
// migrations, never created through the API.
type Role struct {
	ID   int64
	Name string
}

// Permission is a fine-grained capability identified by a unique name
// such as "content.approve".
type Permission struct {
	ID   int64
	Name string
}

// RoleGrant links a role to a permission name. The full set of grants
// is the single source of truth the evaluator snapshots.
type RoleGrant struct {
	RoleID     int64
	Permission string
}

// Principal is the identity resolved from a verified token. All fields
// come from the signed claims; nothing is re-fetched at request time.
type Principal struct {
	UserID   int64
	Username string
	RoleID   int64
	Role     string
}
