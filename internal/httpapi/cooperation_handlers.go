package httpapi

import (
	"net/http"
	"strings"

	"pressdesk.org/internal/audit"
	"pressdesk.org/internal/auth"
	"pressdesk.org/internal/workflow"
)

type cooperationRequest struct {
	Institution  string `json:"institution"`
	ContactName  string `json:"contact_name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Purpose      string `json:"purpose"`
	EventDate    string `json:"event_date"`
	DocumentName string `json:"document_name"`
	DocumentMime string `json:"document_mime"`
}

func (a *API) createCooperation(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.requirePermission(w, r, auth.PermSubmitCoop)
	if !ok {
		return
	}
	var req cooperationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Institution) == "" {
		writeError(w, r, http.StatusBadRequest, "institution is required")
		return
	}
	coop := &workflow.Cooperation{
		RequesterID:  principal.UserID,
		Institution:  strings.TrimSpace(req.Institution),
		ContactName:  req.ContactName,
		Email:        req.Email,
		Phone:        req.Phone,
		Purpose:      req.Purpose,
		EventDate:    req.EventDate,
		DocumentName: req.DocumentName,
		DocumentMime: req.DocumentMime,
	}
	entry := audit.New(audit.ActionSubmitCoop, principal.UserID, 0, map[string]any{
		"institution": coop.Institution,
		"role":        principal.Role,
	})
	if err := a.flow.Cooperations(r.Context()).Create(r.Context(), coop, entry); err != nil {
		handleDomainError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/cooperations/"+pathSegment(coop.ID))
	writeData(w, http.StatusCreated, toCooperationView(coop))
}

func (a *API) getCooperation(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requirePrincipal(w, r); !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	coop, err := a.flow.Cooperations(r.Context()).Find(r.Context(), id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toCooperationView(coop))
}

// coopAction gates verify behind verify_coop and approve behind
// approve_coop; ordering is enforced by the workflow transition table.
func (a *API) coopAction(action workflow.Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		perm := auth.PermVerifyCoop
		if action == workflow.ActionApprove {
			perm = auth.PermApproveCoop
		}
		principal, ok := a.requirePermission(w, r, perm)
		if !ok {
			return
		}
		id, err := pathID(r)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		actor := workflow.Actor{UserID: principal.UserID, Role: principal.Role}
		coop, err := a.flow.Cooperations(r.Context()).Transition(r.Context(), id, actor, action)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, toCooperationView(coop))
	}
}
