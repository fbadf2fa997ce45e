package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pressdesk.org/internal/audit"
)

// Service provides registration, login and token verification, with the
// audit coupling the trail requires: no success response is produced
// before its entry is durable.
type Service struct {
	store  Store
	trail  audit.Log
	tokens *Tokens
}

// TokenPair is the issued credential material.
type TokenPair struct {
	AccessToken string
	ExpiresAt   time.Time
}

// RegisterInput is the self-registration payload.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	FullName string
	RoleID   int64
}

// NewService wires the identity service.
func NewService(store Store, trail audit.Log, tokens *Tokens) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	if trail == nil {
		return nil, errors.New("auth: audit log is required")
	}
	if tokens == nil {
		return nil, errors.New("auth: token signer is required")
	}
	return &Service{store: store, trail: trail, tokens: tokens}, nil
}

// EnsureBuiltins makes sure the permission catalog exists.
func (s *Service) EnsureBuiltins(ctx context.Context) error {
	return s.store.Permissions(ctx).Ensure(ctx, BuiltinPermissions)
}

// Register creates an account with the requested role. The user row and
// its USER_CREATED entry are persisted as one atomic unit.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	username := strings.TrimSpace(strings.ToLower(in.Username))
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	email := strings.TrimSpace(strings.ToLower(in.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.Password) == "" {
		return nil, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	role, err := s.store.Roles(ctx).Find(ctx, in.RoleID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown role %d", ErrInvalidInput, in.RoleID)
		}
		return nil, err
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user := &User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(in.FullName),
		RoleID:       role.ID,
	}
	entry := &audit.Entry{
		Action: audit.ActionUserCreated,
		Details: map[string]any{
			"username": username,
			"role":     role.Name,
		},
	}
	if err := s.store.Users(ctx).Create(ctx, user, entry); err != nil {
		return nil, err
	}
	return user, nil
}

// Login authenticates credentials and issues an access token. Every
// attempt leaves a trail entry: LOGIN on success, LOGIN_FAILED on a bad
// username or password.
func (s *Service) Login(ctx context.Context, username, password string) (TokenPair, *User, error) {
	username = strings.TrimSpace(strings.ToLower(username))
	if username == "" || password == "" {
		return TokenPair{}, nil, ErrUnauthenticated
	}
	user, err := s.store.Users(ctx).FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			if aerr := s.trail.Append(ctx, &audit.Entry{
				Action:  audit.ActionLoginFailed,
				Details: map[string]any{"username": username},
			}); aerr != nil {
				return TokenPair{}, nil, aerr
			}
			return TokenPair{}, nil, ErrUnauthenticated
		}
		return TokenPair{}, nil, err
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		if aerr := s.trail.Append(ctx, &audit.Entry{
			Action:  audit.ActionLoginFailed,
			UserID:  audit.Ref(user.ID),
			Details: map[string]any{"username": username},
		}); aerr != nil {
			return TokenPair{}, nil, aerr
		}
		return TokenPair{}, nil, ErrUnauthenticated
	}
	role, err := s.store.Roles(ctx).Find(ctx, user.RoleID)
	if err != nil {
		return TokenPair{}, nil, err
	}
	token, exp, err := s.tokens.Issue(user, role.Name)
	if err != nil {
		return TokenPair{}, nil, err
	}
	if err := s.trail.Append(ctx, &audit.Entry{
		Action:  audit.ActionLogin,
		UserID:  audit.Ref(user.ID),
		Details: map[string]any{"username": username, "role": role.Name},
	}); err != nil {
		return TokenPair{}, nil, err
	}
	return TokenPair{AccessToken: token, ExpiresAt: exp}, user, nil
}

// VerifyToken resolves a bearer token to a principal. Default is deny.
func (s *Service) VerifyToken(raw string) (Principal, error) {
	return s.tokens.Verify(raw)
}

// Profile loads the account behind a verified principal.
func (s *Service) Profile(ctx context.Context, userID int64) (*User, error) {
	return s.store.Users(ctx).Find(ctx, userID)
}

// DefaultRole is the role assigned to self-registered accounts.
func (s *Service) DefaultRole(ctx context.Context) (*Role, error) {
	return s.store.Roles(ctx).FindByName(ctx, "user")
}

// RoleName resolves a role id for display.
func (s *Service) RoleName(ctx context.Context, roleID int64) (string, error) {
	role, err := s.store.Roles(ctx).Find(ctx, roleID)
	if err != nil {
		return "", err
	}
	return role.Name, nil
}

// ListUsers returns all accounts; callers gate this behind user.read.
func (s *Service) ListUsers(ctx context.Context) ([]*User, error) {
	return s.store.Users(ctx).List(ctx)
}

// SetRolePermissions replaces a role's grant set and records the new
// set in the trail. Callers refresh the evaluator snapshot afterwards;
// issued tokens keep their role claim, only the capabilities change.
func (s *Service) SetRolePermissions(ctx context.Context, roleID int64, names []string, actorID int64) error {
	role, err := s.store.Roles(ctx).Find(ctx, roleID)
	if err != nil {
		return err
	}
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("%w: permission names must be non-empty", ErrInvalidInput)
		}
	}
	if err := s.store.Permissions(ctx).SetForRole(ctx, roleID, names); err != nil {
		return err
	}
	return s.trail.Append(ctx, &audit.Entry{
		Action:   audit.ActionUpdateRole,
		UserID:   audit.Ref(actorID),
		RecordID: audit.Ref(roleID),
		Details:  map[string]any{"role": role.Name, "permissions": names},
	})
}
