package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"pressdesk.org/internal/auth"
)

type listAuditResponse struct {
	Items     []auditView `json:"items"`
	NextAfter int64       `json:"next_after"`
	AsOf      time.Time   `json:"as_of"`
}

// listAuditLogs pages the trail by id watermark: ?after=N&limit=M
// returns entries with id > N in ascending id order.
func (a *API) listAuditLogs(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requirePermission(w, r, auth.PermAuditRead); !ok {
		return
	}
	limit, err := parsePositiveInt(r.URL.Query().Get("limit"), 100, 1, 1000)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var after int64
	if raw := strings.TrimSpace(r.URL.Query().Get("after")); raw != "" {
		after, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || after < 0 {
			writeError(w, r, http.StatusBadRequest, "after must be a non-negative integer")
			return
		}
	}
	entries, err := a.trail.ListAfter(r.Context(), after, limit)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	views := make([]auditView, 0, len(entries))
	next := after
	for _, e := range entries {
		views = append(views, toAuditView(e))
		next = e.ID
	}
	writeData(w, http.StatusOK, listAuditResponse{
		Items:     views,
		NextAfter: next,
		AsOf:      time.Now().UTC(),
	})
}
