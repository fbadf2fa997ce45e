package httpapi

import (
	"net/http"
	"strings"

	"pressdesk.org/internal/audit"
	"pressdesk.org/internal/auth"
	"pressdesk.org/internal/workflow"
)

type categoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Color       string `json:"color"`
}

func (a *API) createCategory(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.requirePermission(w, r, auth.PermCategoryCreate)
	if !ok {
		return
	}
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, r, http.StatusBadRequest, "name is required")
		return
	}
	cat := &workflow.Category{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Icon:        req.Icon,
		Color:       req.Color,
	}
	entry := audit.New(audit.ActionCreateCategory, principal.UserID, 0, map[string]any{
		"name": cat.Name,
		"role": principal.Role,
	})
	if err := a.flow.Categories(r.Context()).Create(r.Context(), cat, entry); err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, toCategoryView(cat))
}

func (a *API) listCategories(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requirePrincipal(w, r); !ok {
		return
	}
	cats, err := a.flow.Categories(r.Context()).List(r.Context())
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	views := make([]categoryView, 0, len(cats))
	for _, cat := range cats {
		views = append(views, toCategoryView(cat))
	}
	writeData(w, http.StatusOK, views)
}
