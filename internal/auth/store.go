package auth

import (
	"context"

	"pressdesk.org/internal/audit"
)

// Store describes persistence operations required by the auth subsystem.
type Store interface {
	Users(ctx context.Context) UserStore
	Roles(ctx context.Context) RoleStore
	Permissions(ctx context.Context) PermissionStore
}

// UserStore manages accounts. Create persists the user together with
// the supplied audit entry as one atomic unit.
type UserStore interface {
	Create(ctx context.Context, u *User, entry *audit.Entry) error
	Find(ctx context.Context, id int64) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	List(ctx context.Context) ([]*User, error)
}

// RoleStore reads the static role table.
type RoleStore interface {
	Find(ctx context.Context, id int64) (*Role, error)
	FindByName(ctx context.Context, name string) (*Role, error)
	List(ctx context.Context) ([]*Role, error)
}

// PermissionStore manages the permission catalog and the role grants
// the evaluator snapshots.
type PermissionStore interface {
	Ensure(ctx context.Context, names []string) error
	List(ctx context.Context) ([]Permission, error)
	Grants(ctx context.Context) ([]RoleGrant, error)
	SetForRole(ctx context.Context, roleID int64, names []string) error
}
