package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"pressdesk.org/internal/audit"
	"pressdesk.org/internal/auth"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/api/auth/register",
	"/api/auth/login",
	"/healthz",
	"/readyz",
	"/metrics",
}

// withAuth verifies the bearer token on every non-public request and
// attaches the principal. No identity means 401 before routing.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}
		principal, err := a.svc.VerifyToken(token)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "invalid token")
			return
		}
		ctx := auth.ContextWithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requirePermission resolves the principal and asks the evaluator. A
// denial appends the ACCESS_DENIED entry before the 403 is written; the
// entry records the role and the attempted endpoint.
func (a *API) requirePermission(w http.ResponseWriter, r *http.Request, perm string) (auth.Principal, bool) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return auth.Principal{}, false
	}
	if !a.eval.Allowed(principal.RoleID, perm) {
		a.denyAccess(w, r, principal)
		return auth.Principal{}, false
	}
	return principal, true
}

// requirePrincipal is for endpoints gated by authentication only.
func (a *API) requirePrincipal(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return auth.Principal{}, false
	}
	return principal, true
}

// denyAccess records the rejection and answers 403. The trail append
// happens first: a denial that cannot be recorded is a server error.
func (a *API) denyAccess(w http.ResponseWriter, r *http.Request, principal auth.Principal) {
	entry := audit.AccessDenied(principal.UserID, principal.Role, r.URL.Path)
	if err := a.trail.Append(r.Context(), entry); err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeError(w, r, http.StatusForbidden, "permission denied")
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
