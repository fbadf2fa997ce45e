package workflow

import (
	"testing"

	"github.com/stretchr/testify/require"

	"pressdesk.org/internal/audit"
)

func draft(author int64) *Content {
	return &Content{ID: 7, AuthorID: author, Status: ContentDraft, Title: "t"}
}

func TestDecideContentSubmit(t *testing.T) {
	author := Actor{UserID: 10, Role: "user"}

	d, err := DecideContent(draft(10), 0, author, ActionSubmit, "")
	require.NoError(t, err)
	require.Equal(t, ContentPending, d.Next)
	require.Equal(t, audit.ActionSubmitContent, d.AuditAction)
	require.Nil(t, d.Approval)
}

func TestDecideContentSubmitOwnershipGate(t *testing.T) {
	stranger := Actor{UserID: 11, Role: "user"}
	_, err := DecideContent(draft(10), 0, stranger, ActionSubmit, "")
	require.ErrorIs(t, err, ErrNotOwner)
}

func TestDecideContentTwoApprovalStages(t *testing.T) {
	staff := Actor{UserID: 20, Role: "staff"}
	supervisor := Actor{UserID: 30, Role: "supervisor"}

	c := draft(10)
	c.Status = ContentPending

	// Stage one: pending -> approved, recorded as verification.
	d1, err := DecideContent(c, 0, staff, ActionApprove, "looks fine")
	require.NoError(t, err)
	require.Equal(t, ContentApproved, d1.Next)
	require.Equal(t, audit.ActionVerifyContent, d1.AuditAction)
	require.NotNil(t, d1.Approval)
	require.Equal(t, "approve", d1.Approval.Action)
	require.Equal(t, "staff", d1.Approval.ApproverRole)

	// Stage two: approved -> approved, recorded as final approval.
	c.Status = ContentApproved
	d2, err := DecideContent(c, 1, supervisor, ActionApprove, "")
	require.NoError(t, err)
	require.Equal(t, ContentApproved, d2.Next)
	require.Equal(t, audit.ActionApproveContent, d2.AuditAction)
	require.NotNil(t, d2.Approval)

	// Third approve attempt: both gates already passed.
	_, err = DecideContent(c, 2, supervisor, ActionApprove, "")
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestDecideContentPublishRequiresBothStages(t *testing.T) {
	supervisor := Actor{UserID: 30, Role: "supervisor"}
	c := draft(10)
	c.Status = ContentApproved

	_, err := DecideContent(c, 0, supervisor, ActionPublish, "")
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = DecideContent(c, 1, supervisor, ActionPublish, "")
	require.ErrorIs(t, err, ErrInvalidTransition)

	d, err := DecideContent(c, 2, supervisor, ActionPublish, "")
	require.NoError(t, err)
	require.Equal(t, ContentPublished, d.Next)
	require.Equal(t, audit.ActionPublishContent, d.AuditAction)
	require.Nil(t, d.Approval)
}

func TestDecideContentRejectKeepsNotes(t *testing.T) {
	staff := Actor{UserID: 20, Role: "staff"}
	c := draft(10)
	c.Status = ContentPending

	notes := "sources are missing; please cite the ministry release"
	d, err := DecideContent(c, 0, staff, ActionReject, notes)
	require.NoError(t, err)
	require.Equal(t, ContentRejected, d.Next)
	require.Equal(t, audit.ActionRejectContent, d.AuditAction)
	require.NotNil(t, d.Approval)
	require.Equal(t, "reject", d.Approval.Action)
	require.Equal(t, notes, d.Approval.Notes)
}

func TestDecideContentRejectAtSecondStage(t *testing.T) {
	supervisor := Actor{UserID: 30, Role: "supervisor"}
	c := draft(10)
	c.Status = ContentApproved

	d, err := DecideContent(c, 1, supervisor, ActionReject, "policy conflict")
	require.NoError(t, err)
	require.Equal(t, ContentRejected, d.Next)
}

func TestDecideContentInvalidTransitions(t *testing.T) {
	actor := Actor{UserID: 10, Role: "user"}

	cases := []struct {
		status ContentStatus
		action Action
	}{
		{ContentDraft, ActionApprove},
		{ContentDraft, ActionReject},
		{ContentDraft, ActionPublish},
		{ContentPending, ActionSubmit},
		{ContentPending, ActionPublish},
		{ContentRejected, ActionSubmit},
		{ContentRejected, ActionApprove},
		{ContentRejected, ActionPublish},
		{ContentPublished, ActionSubmit},
		{ContentPublished, ActionApprove},
		{ContentPublished, ActionPublish},
	}
	for _, tc := range cases {
		c := draft(10)
		c.Status = tc.status
		_, err := DecideContent(c, 2, actor, tc.action, "")
		require.ErrorIs(t, err, ErrInvalidTransition, "%s on %s", tc.action, tc.status)
	}
}

func TestContentAuditEntryShape(t *testing.T) {
	actor := Actor{UserID: 20, Role: "staff"}
	c := draft(10)
	c.Status = ContentRejected

	entry := ContentAuditEntry(audit.ActionRejectContent, actor, c, "needs work")
	require.Equal(t, audit.ActionRejectContent, entry.Action)
	require.Equal(t, int64(20), *entry.UserID)
	require.Equal(t, int64(7), *entry.RecordID)
	require.Equal(t, int64(7), entry.Details["record_id"])
	require.Equal(t, "rejected", entry.Details["status"])
	require.Equal(t, "staff", entry.Details["role"])
	require.Equal(t, "needs work", entry.Details["notes"])

	entry = ContentAuditEntry(audit.ActionSubmitContent, actor, c, "")
	_, hasNotes := entry.Details["notes"]
	require.False(t, hasNotes)
}
