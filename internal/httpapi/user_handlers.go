package httpapi

import (
	"net/http"

	"pressdesk.org/internal/auth"
)

func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requirePermission(w, r, auth.PermUserRead); !ok {
		return
	}
	users, err := a.svc.ListUsers(r.Context())
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	views := make([]userView, 0, len(users))
	for _, user := range users {
		views = append(views, toUserView(user, ""))
	}
	writeData(w, http.StatusOK, views)
}
