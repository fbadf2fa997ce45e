package auth

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenIssuer = "pressdesk"

const defaultAccessTTL = 15 * time.Minute

// Claims carries the signed identity. Subject holds the user id; the
// role is embedded so authorization never diverges from what was signed.
type Claims struct {
	Username string `json:"username"`
	RoleID   int64  `json:"role_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Tokens signs and verifies HS256 bearer tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// TokenOption configures Tokens.
type TokenOption func(*Tokens)

// WithAccessTTL overrides the access token lifetime.
func WithAccessTTL(ttl time.Duration) TokenOption {
	return func(t *Tokens) {
		if ttl > 0 {
			t.ttl = ttl
		}
	}
}

// WithClock overrides the time source (used by expiry tests).
func WithClock(now func() time.Time) TokenOption {
	return func(t *Tokens) {
		if now != nil {
			t.now = now
		}
	}
}

// NewTokens constructs the signer/verifier from the shared secret.
func NewTokens(secret string, opts ...TokenOption) (*Tokens, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, fmt.Errorf("%w: token secret is required", ErrInvalidInput)
	}
	t := &Tokens{
		secret: []byte(secret),
		ttl:    defaultAccessTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Issue signs an access token for the user.
func (t *Tokens) Issue(user *User, roleName string) (string, time.Time, error) {
	if user == nil || user.ID == 0 {
		return "", time.Time{}, fmt.Errorf("%w: user is required", ErrInvalidInput)
	}
	now := t.now().UTC()
	exp := now.Add(t.ttl)
	claims := Claims{
		Username: user.Username,
		RoleID:   user.RoleID,
		Role:     roleName,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Verify checks signature, issuer and expiry and resolves the principal
// from the verified claims. Any ambiguity is a denial, never an allow.
func (t *Tokens) Verify(raw string) (Principal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Principal{}, ErrUnauthenticated
	}
	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(tok *jwt.Token) (any, error) {
		if tok.Method != jwt.SigningMethodHS256 {
			return nil, ErrUnauthenticated
		}
		return t.secret, nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !parsed.Valid {
		return Principal{}, ErrUnauthenticated
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return Principal{}, ErrUnauthenticated
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return Principal{}, ErrUnauthenticated
	}
	if claims.RoleID <= 0 {
		return Principal{}, ErrUnauthenticated
	}
	return Principal{
		UserID:   userID,
		Username: claims.Username,
		RoleID:   claims.RoleID,
		Role:     claims.Role,
	}, nil
}
