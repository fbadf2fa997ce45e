package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"pressdesk.org/internal/audit"
	"pressdesk.org/internal/auth"
	"pressdesk.org/internal/workflow"
)

type contentRequest struct {
	Title      string `json:"title"`
	Excerpt    string `json:"excerpt"`
	Body       string `json:"body"`
	CategoryID int64  `json:"category_id"`
}

type transitionRequest struct {
	Notes string `json:"notes"`
}

func (a *API) createContent(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.requirePermission(w, r, auth.PermContentCreate)
	if !ok {
		return
	}
	var req contentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, r, http.StatusBadRequest, "title is required")
		return
	}
	item := &workflow.Content{
		Title:      strings.TrimSpace(req.Title),
		Excerpt:    req.Excerpt,
		Body:       req.Body,
		CategoryID: req.CategoryID,
		AuthorID:   principal.UserID,
	}
	entry := audit.New(audit.ActionCreateContent, principal.UserID, 0, map[string]any{
		"title": item.Title,
		"role":  principal.Role,
	})
	if err := a.flow.Contents(r.Context()).Create(r.Context(), item, entry); err != nil {
		handleDomainError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/contents/"+pathSegment(item.ID))
	writeData(w, http.StatusCreated, toContentView(item))
}

func (a *API) listContents(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requirePrincipal(w, r); !ok {
		return
	}
	items, err := a.flow.Contents(r.Context()).List(r.Context())
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	views := make([]contentView, 0, len(items))
	for _, item := range items {
		views = append(views, toContentView(item))
	}
	writeData(w, http.StatusOK, views)
}

func (a *API) getContent(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requirePrincipal(w, r); !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	item, err := a.flow.Contents(r.Context()).Find(r.Context(), id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toContentView(item))
}

// updateContent edits a draft. Only the author may edit, and only
// before submission.
func (a *API) updateContent(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.requirePrincipal(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var req contentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	item, err := a.flow.Contents(r.Context()).Find(r.Context(), id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	if item.AuthorID != principal.UserID {
		a.denyAccess(w, r, principal)
		return
	}
	item.Title = strings.TrimSpace(req.Title)
	item.Excerpt = req.Excerpt
	item.Body = req.Body
	item.CategoryID = req.CategoryID
	entry := audit.New(audit.ActionUpdateContent, principal.UserID, item.ID, map[string]any{
		"record_id": item.ID,
		"role":      principal.Role,
	})
	if err := a.flow.Contents(r.Context()).Update(r.Context(), item, entry); err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toContentView(item))
}

// contentAction builds the handler for one transition verb. Permission
// gates: approve and reject need content.approve, publish needs
// content.publish, submit is ownership-checked by the workflow.
func (a *API) contentAction(action workflow.Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var principal auth.Principal
		var ok bool
		switch action {
		case workflow.ActionApprove, workflow.ActionReject:
			principal, ok = a.requirePermission(w, r, auth.PermContentApprove)
		case workflow.ActionPublish:
			principal, ok = a.requirePermission(w, r, auth.PermContentPublish)
		default:
			principal, ok = a.requirePrincipal(w, r)
		}
		if !ok {
			return
		}

		id, err := pathID(r)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		var notes string
		if r.ContentLength > 0 {
			var req transitionRequest
			if err := decodeJSON(w, r, &req); err != nil {
				writeError(w, r, http.StatusBadRequest, err.Error())
				return
			}
			notes = req.Notes
		}

		actor := workflow.Actor{UserID: principal.UserID, Role: principal.Role}
		item, err := a.flow.Contents(r.Context()).Transition(r.Context(), id, actor, action, notes)
		if err != nil {
			if errors.Is(err, workflow.ErrNotOwner) {
				a.denyAccess(w, r, principal)
				return
			}
			handleDomainError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, toContentView(item))
	}
}

func (a *API) contentHistory(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requirePrincipal(w, r); !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	recs, err := a.flow.Contents(r.Context()).History(r.Context(), id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	views := make([]approvalView, 0, len(recs))
	for _, rec := range recs {
		views = append(views, toApprovalView(rec))
	}
	writeData(w, http.StatusOK, views)
}
