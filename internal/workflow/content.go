package workflow

import "pressdesk.org/internal/audit"

// requiredApprovalStages is how many completed approve actions a
// content item needs before publish becomes reachable.
const requiredApprovalStages = 2

// contentTransitions is the closed (state, action) → state relation.
// Anything absent here is an invalid transition. Note that approve on
// an approved item maps back to approved: the second stage is a
// gate-pass recorded in the approval history, not a distinct status.
var contentTransitions = map[ContentStatus]map[Action]ContentStatus{
	ContentDraft: {
		ActionSubmit: ContentPending,
	},
	ContentPending: {
		ActionApprove: ContentApproved,
		ActionReject:  ContentRejected,
	},
	ContentApproved: {
		ActionApprove: ContentApproved,
		ActionReject:  ContentRejected,
		ActionPublish: ContentPublished,
	},
}

// ContentDecision is the outcome of evaluating a transition against a
// consistent snapshot of the record. Stores obtain it inside their
// critical section and persist all three effects atomically.
type ContentDecision struct {
	Next        ContentStatus
	AuditAction string
	// Approval is non-nil when the action adds a history entry.
	Approval *ApprovalRecord
}

// DecideContent evaluates (current status, completed approve stages,
// actor, action) and returns what must be persisted. It is pure: stores
// call it under their own record lock so two racing callers cannot both
// pass the same gate.
func DecideContent(c *Content, approvedStages int, actor Actor, action Action, notes string) (ContentDecision, error) {
	next, ok := contentTransitions[c.Status][action]
	if !ok {
		return ContentDecision{}, ErrInvalidTransition
	}

	switch action {
	case ActionSubmit:
		if c.AuthorID != actor.UserID {
			return ContentDecision{}, ErrNotOwner
		}
		return ContentDecision{Next: next, AuditAction: audit.ActionSubmitContent}, nil

	case ActionApprove:
		if c.Status == ContentApproved && approvedStages >= requiredApprovalStages {
			// Both gates already passed; the only way forward is publish.
			return ContentDecision{}, ErrInvalidTransition
		}
		auditAction := audit.ActionVerifyContent
		if c.Status == ContentApproved {
			auditAction = audit.ActionApproveContent
		}
		return ContentDecision{
			Next:        next,
			AuditAction: auditAction,
			Approval: &ApprovalRecord{
				ContentID:    c.ID,
				ApproverID:   actor.UserID,
				ApproverRole: actor.Role,
				Action:       "approve",
				Notes:        notes,
			},
		}, nil

	case ActionReject:
		return ContentDecision{
			Next:        next,
			AuditAction: audit.ActionRejectContent,
			Approval: &ApprovalRecord{
				ContentID:    c.ID,
				ApproverID:   actor.UserID,
				ApproverRole: actor.Role,
				Action:       "reject",
				Notes:        notes,
			},
		}, nil

	case ActionPublish:
		if approvedStages < requiredApprovalStages {
			return ContentDecision{}, ErrInvalidTransition
		}
		return ContentDecision{Next: next, AuditAction: audit.ActionPublishContent}, nil
	}
	return ContentDecision{}, ErrInvalidTransition
}

// ContentAuditEntry builds the trail entry for a committed transition.
func ContentAuditEntry(auditAction string, actor Actor, c *Content, notes string) *audit.Entry {
	details := map[string]any{
		"record_id": c.ID,
		"status":    string(c.Status),
		"role":      actor.Role,
	}
	if notes != "" {
		details["notes"] = notes
	}
	return audit.New(auditAction, actor.UserID, c.ID, details)
}
