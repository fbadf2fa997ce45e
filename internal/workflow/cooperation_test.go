package workflow

import (
	"testing"

	"github.com/stretchr/testify/require"

	"pressdesk.org/internal/audit"
)

func TestDecideCooperationSequence(t *testing.T) {
	c := &Cooperation{ID: 3, Status: CoopSubmitted}

	d, err := DecideCooperation(c, ActionVerify)
	require.NoError(t, err)
	require.Equal(t, CoopVerified, d.Next)
	require.Equal(t, audit.ActionVerifyCoop, d.AuditAction)

	c.Status = CoopVerified
	d, err = DecideCooperation(c, ActionApprove)
	require.NoError(t, err)
	require.Equal(t, CoopApproved, d.Next)
	require.Equal(t, audit.ActionApproveCoop, d.AuditAction)
}

func TestDecideCooperationOutOfOrder(t *testing.T) {
	c := &Cooperation{ID: 3, Status: CoopSubmitted}
	_, err := DecideCooperation(c, ActionApprove)
	require.ErrorIs(t, err, ErrInvalidTransition)

	c.Status = CoopVerified
	_, err = DecideCooperation(c, ActionVerify)
	require.ErrorIs(t, err, ErrInvalidTransition)

	c.Status = CoopApproved
	for _, action := range []Action{ActionVerify, ActionApprove, ActionSubmit, ActionReject} {
		_, err = DecideCooperation(c, action)
		require.ErrorIs(t, err, ErrInvalidTransition, "%s on approved", action)
	}
}

func TestCooperationAuditEntryShape(t *testing.T) {
	actor := Actor{UserID: 5, Role: "supervisor"}
	c := &Cooperation{ID: 3, Status: CoopApproved}

	entry := CooperationAuditEntry(audit.ActionApproveCoop, actor, c)
	require.Equal(t, int64(5), *entry.UserID)
	require.Equal(t, int64(3), *entry.RecordID)
	require.Equal(t, "approved", entry.Details["status"])
	require.Equal(t, "supervisor", entry.Details["role"])
}
