package httpapi

import (
	"net/http"
	"time"

	"pressdesk.org/internal/auth"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	RoleID   int64  `json:"role_id"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokensView struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.RoleID == 0 {
		// Self-registration defaults to the least-privileged role.
		role, err := a.svc.DefaultRole(r.Context())
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		req.RoleID = role.ID
	}
	user, err := a.svc.Register(r.Context(), auth.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		RoleID:   req.RoleID,
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	roleName, err := a.svc.RoleName(r.Context(), user.RoleID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, toUserView(user, roleName))
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	pair, user, err := a.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	roleName, err := a.svc.RoleName(r.Context(), user.RoleID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{
		"user": toUserView(user, roleName),
		"tokens": tokensView{
			AccessToken: pair.AccessToken,
			TokenType:   "Bearer",
			ExpiresAt:   pair.ExpiresAt,
		},
	})
}

func (a *API) profile(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.requirePrincipal(w, r)
	if !ok {
		return
	}
	user, err := a.svc.Profile(r.Context(), principal.UserID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toUserView(user, principal.Role))
}
