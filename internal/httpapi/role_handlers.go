package httpapi

import (
	"net/http"

	"pressdesk.org/internal/auth"
)

type rolePermissionsRequest struct {
	Permissions []string `json:"permissions"`
}

// setRolePermissions replaces a role's grant set and refreshes the
// evaluator snapshot, so the change is visible on the next request
// without reissuing tokens.
func (a *API) setRolePermissions(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.requirePermission(w, r, auth.PermRoleManage)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var req rolePermissionsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.svc.SetRolePermissions(r.Context(), id, req.Permissions, principal.UserID); err != nil {
		handleDomainError(w, r, err)
		return
	}
	if err := a.eval.Refresh(r.Context()); err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeData(w, http.StatusOK, map[string]any{
		"role_id":     id,
		"permissions": req.Permissions,
	})
}
