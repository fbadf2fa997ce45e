package workflow

import "pressdesk.org/internal/audit"

// coopTransitions: strictly sequential, no reject branch.
var coopTransitions = map[CooperationStatus]map[Action]CooperationStatus{
	CoopSubmitted: {
		ActionVerify: CoopVerified,
	},
	CoopVerified: {
		ActionApprove: CoopApproved,
	},
}

var coopAuditActions = map[Action]string{
	ActionVerify:  audit.ActionVerifyCoop,
	ActionApprove: audit.ActionApproveCoop,
}

// CooperationDecision mirrors ContentDecision for the cooperation machine.
type CooperationDecision struct {
	Next        CooperationStatus
	AuditAction string
}

// DecideCooperation evaluates a cooperation transition. Out-of-order
// calls (approve before verify) fail with ErrInvalidTransition.
func DecideCooperation(c *Cooperation, action Action) (CooperationDecision, error) {
	next, ok := coopTransitions[c.Status][action]
	if !ok {
		return CooperationDecision{}, ErrInvalidTransition
	}
	return CooperationDecision{Next: next, AuditAction: coopAuditActions[action]}, nil
}

// CooperationAuditEntry builds the trail entry for a committed
// cooperation transition.
func CooperationAuditEntry(auditAction string, actor Actor, c *Cooperation) *audit.Entry {
	return audit.New(auditAction, actor.UserID, c.ID, map[string]any{
		"record_id": c.ID,
		"status":    string(c.Status),
		"role":      actor.Role,
	})
}
