// Package httpapi is the HTTP surface: routing, authentication,
// permission checks and the JSON envelope. Handlers stay thin; workflow
// rules live in the workflow package and persistence in the stores.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"pressdesk.org/internal/audit"
	"pressdesk.org/internal/auth"
	"pressdesk.org/internal/obs"
	"pressdesk.org/internal/workflow"
)

// ReadyProbe checks backing-store readiness (a DB ping when present).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	svc        *auth.Service
	eval       *auth.Evaluator
	flow       workflow.Store
	trail      audit.Log
	readyProbe ReadyProbe
	version    string
}

// New wires all routes. Method and wildcard matching is done by the
// ServeMux patterns; unauthenticated access is rejected by withAuth
// before any handler runs.
func New(svc *auth.Service, eval *auth.Evaluator, flow workflow.Store, trail audit.Log, rp ReadyProbe, version string) *API {
	a := &API{
		mux:        http.NewServeMux(),
		svc:        svc,
		eval:       eval,
		flow:       flow,
		trail:      trail,
		readyProbe: rp,
		version:    version,
	}

	m := a.mux

	// health/ready
	m.HandleFunc("GET /healthz", a.Healthz)
	m.HandleFunc("GET /readyz", a.Ready)

	// Prometheus metrics
	m.Handle("GET /metrics", obs.Handler())

	// identity
	m.HandleFunc("POST /api/auth/register", a.register)
	m.HandleFunc("POST /api/auth/login", a.login)
	m.HandleFunc("GET /api/auth/profile", a.profile)

	// content workflow
	m.HandleFunc("POST /api/contents/{$}", a.createContent)
	m.HandleFunc("GET /api/contents/{$}", a.listContents)
	m.HandleFunc("GET /api/contents/{id}", a.getContent)
	m.HandleFunc("PUT /api/contents/{id}", a.updateContent)
	m.HandleFunc("POST /api/contents/{id}/submit", a.contentAction(workflow.ActionSubmit))
	m.HandleFunc("POST /api/contents/{id}/approve", a.contentAction(workflow.ActionApprove))
	m.HandleFunc("POST /api/contents/{id}/reject", a.contentAction(workflow.ActionReject))
	m.HandleFunc("POST /api/contents/{id}/publish", a.contentAction(workflow.ActionPublish))
	m.HandleFunc("GET /api/contents/{id}/history", a.contentHistory)

	// categories
	m.HandleFunc("POST /api/categories/{$}", a.createCategory)
	m.HandleFunc("GET /api/categories/{$}", a.listCategories)

	// cooperation requests
	m.HandleFunc("POST /api/cooperations/{$}", a.createCooperation)
	m.HandleFunc("GET /api/cooperations/{id}", a.getCooperation)
	m.HandleFunc("POST /api/cooperations/{id}/verify", a.coopAction(workflow.ActionVerify))
	m.HandleFunc("POST /api/cooperations/{id}/approve", a.coopAction(workflow.ActionApprove))

	// administration
	m.HandleFunc("GET /api/users/{$}", a.listUsers)
	m.HandleFunc("PUT /api/roles/{id}/permissions", a.setRolePermissions)
	m.HandleFunc("GET /api/audit-logs", a.listAuditLogs)

	return a
}

// Handler returns the full middleware chain around the mux.
func (a *API) Handler() http.Handler {
	h := a.withAuth(a.mux)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "pressdesk-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.readyProbe.Check(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}
