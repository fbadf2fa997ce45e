// Package audit is the append-only trail of security-relevant and
// state-changing actions. Entry ids are assigned by the store and are
// strictly monotonic; the id is the only ordering consumers may rely on.
package audit

import (
	"context"
	"encoding/json"
	"time"
)

// Action codes recorded in the trail.
const (
	ActionLogin          = "LOGIN"
	ActionLoginFailed    = "LOGIN_FAILED"
	ActionUserCreated    = "USER_CREATED"
	ActionCreateContent  = "CREATE_CONTENT"
	ActionUpdateContent  = "UPDATE_CONTENT"
	ActionSubmitContent  = "SUBMIT_CONTENT"
	ActionVerifyContent  = "VERIFY_CONTENT"
	ActionApproveContent = "APPROVE_CONTENT"
	ActionRejectContent  = "REJECT_CONTENT"
	ActionPublishContent = "PUBLISH_CONTENT"
	ActionCreateCategory = "CREATE_CATEGORY"
	ActionSubmitCoop     = "SUBMIT_COOP"
	ActionVerifyCoop     = "VERIFY_COOP"
	ActionApproveCoop    = "APPROVE_COOP"
	ActionAccessDenied   = "ACCESS_DENIED"
	ActionUpdateRole     = "UPDATE_ROLE_PERMISSIONS"
)

// Entry is one immutable audit record. UserID is nil for anonymous
// actions (failed logins for unknown accounts); RecordID is nil when no
// single entity was affected.
type Entry struct {
	ID        int64
	Action    string
	UserID    *int64
	RecordID  *int64
	Details   map[string]any
	CreatedAt time.Time
}

// Log is the recorder and reader contract. Append must be durable
// before the triggering request is acknowledged; entries are never
// updated or removed.
type Log interface {
	Append(ctx context.Context, entry *Entry) error
	ListAfter(ctx context.Context, afterID int64, limit int) ([]Entry, error)
}

// Ref boxes an id for the nullable actor/record columns.
func Ref(id int64) *int64 { return &id }

// New builds an entry for the given action and actor.
func New(action string, actorID int64, recordID int64, details map[string]any) *Entry {
	return &Entry{
		Action:   action,
		UserID:   Ref(actorID),
		RecordID: Ref(recordID),
		Details:  details,
	}
}

// AccessDenied builds the mandatory entry for an authorization
// rejection, naming the actor's role and the attempted endpoint.
func AccessDenied(actorID int64, role, endpoint string) *Entry {
	return &Entry{
		Action:  ActionAccessDenied,
		UserID:  Ref(actorID),
		Details: map[string]any{"role": role, "endpoint": endpoint},
	}
}

// ResolveRecordID recovers the affected entity id without inspecting
// the action name: the record_id column first, then details.record_id,
// then details.new_values.record_id.
func (e *Entry) ResolveRecordID() (int64, bool) {
	if e.RecordID != nil {
		return *e.RecordID, true
	}
	if id, ok := detailInt(e.Details["record_id"]); ok {
		return id, true
	}
	if nested, ok := e.Details["new_values"].(map[string]any); ok {
		return detailInt(nested["record_id"])
	}
	return 0, false
}

func detailInt(v any) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case float64:
		return int64(t), true
	case json.Number:
		i, err := t.Int64()
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

// MarshalDetails serializes the payload for storage. A nil map becomes
// an empty JSON object so consumers never see SQL nulls.
func MarshalDetails(details map[string]any) ([]byte, error) {
	if details == nil {
		details = map[string]any{}
	}
	return json.Marshal(details)
}

// UnmarshalDetails is the inverse of MarshalDetails.
func UnmarshalDetails(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
