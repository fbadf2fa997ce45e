package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"pressdesk.org/internal/audit"
	"pressdesk.org/internal/auth"
	"pressdesk.org/internal/workflow"
)

func seedUser(t *testing.T, s *Store, username string, roleID int64) *auth.User {
	t.Helper()
	user := &auth.User{
		Username:     username,
		Email:        username + "@example.kz",
		PasswordHash: "x",
		RoleID:       roleID,
	}
	err := s.Users(context.Background()).Create(context.Background(), user, &audit.Entry{
		Action: audit.ActionUserCreated,
	})
	if err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return user
}

func TestSeedRBACGrants(t *testing.T) {
	s := New()
	s.SeedRBAC()
	ctx := context.Background()

	role, err := s.Roles(ctx).FindByName(ctx, "supervisor")
	if err != nil {
		t.Fatalf("find role: %v", err)
	}
	grants, err := s.Permissions(ctx).Grants(ctx)
	if err != nil {
		t.Fatalf("grants: %v", err)
	}
	has := func(roleID int64, perm string) bool {
		for _, g := range grants {
			if g.RoleID == roleID && g.Permission == perm {
				return true
			}
		}
		return false
	}
	if !has(role.ID, auth.PermContentPublish) || !has(role.ID, auth.PermAuditRead) {
		t.Fatal("supervisor missing expected grants")
	}
	userRole, _ := s.Roles(ctx).FindByName(ctx, "user")
	if has(userRole.ID, auth.PermContentApprove) {
		t.Fatal("user role must not hold content.approve")
	}
}

func TestUserCreateConflictAndAuditCoupling(t *testing.T) {
	s := New()
	s.SeedRBAC()
	ctx := context.Background()

	u := seedUser(t, s, "erlan", 1)
	if u.ID == 0 {
		t.Fatal("id not assigned")
	}

	dup := &auth.User{Username: "erlan", Email: "other@example.kz", PasswordHash: "x", RoleID: 1}
	err := s.Users(ctx).Create(ctx, dup, &audit.Entry{Action: audit.ActionUserCreated})
	if !errors.Is(err, auth.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	entries, err := s.ListAfter(ctx, 0, 100)
	if err != nil {
		t.Fatalf("ListAfter: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("failed create must not leave an entry: %d entries", len(entries))
	}
	if entries[0].Action != audit.ActionUserCreated {
		t.Fatalf("unexpected entry: %+v", entries[0])
	}
	if entries[0].RecordID == nil || *entries[0].RecordID != u.ID {
		t.Fatal("entry not linked to the created user")
	}
}

func TestContentLifecycleWithTrail(t *testing.T) {
	s := New()
	s.SeedRBAC()
	ctx := context.Background()

	author := seedUser(t, s, "author", 1)
	staff := seedUser(t, s, "staff", 2)
	supervisor := seedUser(t, s, "boss", 3)

	item := &workflow.Content{AuthorID: author.ID, Title: "Budget review"}
	err := s.Contents(ctx).Create(ctx, item, audit.New(audit.ActionCreateContent, author.ID, 0, nil))
	if err != nil {
		t.Fatalf("create content: %v", err)
	}
	if item.Status != workflow.ContentDraft {
		t.Fatalf("new content must be draft, got %s", item.Status)
	}

	authorActor := workflow.Actor{UserID: author.ID, Role: "user"}
	staffActor := workflow.Actor{UserID: staff.ID, Role: "staff"}
	bossActor := workflow.Actor{UserID: supervisor.ID, Role: "supervisor"}

	// Submission by a non-author fails and leaves no trail entry.
	before, _ := s.ListAfter(ctx, 0, 1000)
	if _, err := s.Contents(ctx).Transition(ctx, item.ID, staffActor, workflow.ActionSubmit, ""); !errors.Is(err, workflow.ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	after, _ := s.ListAfter(ctx, 0, 1000)
	if len(after) != len(before) {
		t.Fatal("failed transition must not append to the trail")
	}

	steps := []struct {
		actor  workflow.Actor
		action workflow.Action
		status workflow.ContentStatus
		audit  string
	}{
		{authorActor, workflow.ActionSubmit, workflow.ContentPending, audit.ActionSubmitContent},
		{staffActor, workflow.ActionApprove, workflow.ContentApproved, audit.ActionVerifyContent},
		{bossActor, workflow.ActionApprove, workflow.ContentApproved, audit.ActionApproveContent},
		{bossActor, workflow.ActionPublish, workflow.ContentPublished, audit.ActionPublishContent},
	}
	for _, step := range steps {
		got, err := s.Contents(ctx).Transition(ctx, item.ID, step.actor, step.action, "")
		if err != nil {
			t.Fatalf("%s: %v", step.action, err)
		}
		if got.Status != step.status {
			t.Fatalf("%s: expected %s, got %s", step.action, step.status, got.Status)
		}
		entries, _ := s.ListAfter(ctx, 0, 1000)
		last := entries[len(entries)-1]
		if last.Action != step.audit {
			t.Fatalf("%s: expected trail action %s, got %s", step.action, step.audit, last.Action)
		}
		if id, ok := last.ResolveRecordID(); !ok || id != item.ID {
			t.Fatalf("%s: trail entry not linked to content", step.action)
		}
	}

	history, err := s.Contents(ctx).History(ctx, item.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 approval records, got %d", len(history))
	}
	if history[0].ApproverRole != "staff" || history[1].ApproverRole != "supervisor" {
		t.Fatalf("unexpected approver roles: %+v", history)
	}
}

func TestPublishBeforeSecondStageFails(t *testing.T) {
	s := New()
	s.SeedRBAC()
	ctx := context.Background()

	author := seedUser(t, s, "author", 1)
	staff := seedUser(t, s, "staff", 2)

	item := &workflow.Content{AuthorID: author.ID, Title: "Draft"}
	if err := s.Contents(ctx).Create(ctx, item, nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	authorActor := workflow.Actor{UserID: author.ID, Role: "user"}
	staffActor := workflow.Actor{UserID: staff.ID, Role: "staff"}

	if _, err := s.Contents(ctx).Transition(ctx, item.ID, authorActor, workflow.ActionSubmit, ""); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := s.Contents(ctx).Transition(ctx, item.ID, staffActor, workflow.ActionApprove, ""); err != nil {
		t.Fatalf("first approve: %v", err)
	}
	_, err := s.Contents(ctx).Transition(ctx, item.ID, staffActor, workflow.ActionPublish, "")
	if !errors.Is(err, workflow.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestConcurrentApprovalsPassExactlyTwoGates(t *testing.T) {
	s := New()
	s.SeedRBAC()
	ctx := context.Background()

	author := seedUser(t, s, "author", 1)
	staff := seedUser(t, s, "staff", 2)

	item := &workflow.Content{AuthorID: author.ID, Title: "Race"}
	if err := s.Contents(ctx).Create(ctx, item, nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	authorActor := workflow.Actor{UserID: author.ID, Role: "user"}
	if _, err := s.Contents(ctx).Transition(ctx, item.ID, authorActor, workflow.ActionSubmit, ""); err != nil {
		t.Fatalf("submit: %v", err)
	}

	staffActor := workflow.Actor{UserID: staff.ID, Role: "staff"}
	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.Contents(ctx).Transition(ctx, item.ID, staffActor, workflow.ActionApprove, "")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, workflow.ErrInvalidTransition) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 2 {
		t.Fatalf("expected exactly 2 approvals to pass, got %d", succeeded)
	}
	history, _ := s.Contents(ctx).History(ctx, item.ID)
	if len(history) != 2 {
		t.Fatalf("expected 2 approval records, got %d", len(history))
	}
}

func TestUpdateRefusedAfterSubmission(t *testing.T) {
	s := New()
	s.SeedRBAC()
	ctx := context.Background()

	author := seedUser(t, s, "author", 1)
	item := &workflow.Content{AuthorID: author.ID, Title: "Original"}
	if err := s.Contents(ctx).Create(ctx, item, nil); err != nil {
		t.Fatalf("create: %v", err)
	}

	// A stale snapshot read before the submit commits, as a raced
	// editor would hold.
	snapshot, err := s.Contents(ctx).Find(ctx, item.ID)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}

	authorActor := workflow.Actor{UserID: author.ID, Role: "user"}
	if _, err := s.Contents(ctx).Transition(ctx, item.ID, authorActor, workflow.ActionSubmit, ""); err != nil {
		t.Fatalf("submit: %v", err)
	}

	before, _ := s.ListAfter(ctx, 0, 1000)
	snapshot.Title = "edited after submission"
	err = s.Contents(ctx).Update(ctx, snapshot, audit.New(audit.ActionUpdateContent, author.ID, snapshot.ID, nil))
	if !errors.Is(err, workflow.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	got, _ := s.Contents(ctx).Find(ctx, item.ID)
	if got.Title != "Original" || got.Status != workflow.ContentPending {
		t.Fatalf("pending content was edited: status=%s title=%q", got.Status, got.Title)
	}
	after, _ := s.ListAfter(ctx, 0, 1000)
	if len(after) != len(before) {
		t.Fatal("refused update must not append to the trail")
	}
}

func TestCooperationTransitions(t *testing.T) {
	s := New()
	s.SeedRBAC()
	ctx := context.Background()

	requester := seedUser(t, s, "requester", 1)
	staff := seedUser(t, s, "staff", 2)
	boss := seedUser(t, s, "boss", 3)

	coop := &workflow.Cooperation{RequesterID: requester.ID, Institution: "Nazarbayev University"}
	err := s.Cooperations(ctx).Create(ctx, coop, audit.New(audit.ActionSubmitCoop, requester.ID, 0, nil))
	if err != nil {
		t.Fatalf("create coop: %v", err)
	}
	if coop.Status != workflow.CoopSubmitted {
		t.Fatalf("new request must be submitted, got %s", coop.Status)
	}

	bossActor := workflow.Actor{UserID: boss.ID, Role: "supervisor"}
	if _, err := s.Cooperations(ctx).Transition(ctx, coop.ID, bossActor, workflow.ActionApprove); !errors.Is(err, workflow.ErrInvalidTransition) {
		t.Fatalf("approve before verify must fail, got %v", err)
	}

	staffActor := workflow.Actor{UserID: staff.ID, Role: "staff"}
	got, err := s.Cooperations(ctx).Transition(ctx, coop.ID, staffActor, workflow.ActionVerify)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got.Status != workflow.CoopVerified {
		t.Fatalf("expected verified, got %s", got.Status)
	}

	got, err = s.Cooperations(ctx).Transition(ctx, coop.ID, bossActor, workflow.ActionApprove)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if got.Status != workflow.CoopApproved {
		t.Fatalf("expected approved, got %s", got.Status)
	}
}

func TestListAfterWatermark(t *testing.T) {
	s := New()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := s.Append(ctx, &audit.Entry{Action: audit.ActionLogin}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	all, err := s.ListAfter(ctx, 0, 100)
	if err != nil {
		t.Fatalf("ListAfter: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].ID <= all[i-1].ID {
			t.Fatal("ids must be strictly ascending")
		}
	}

	tail, err := s.ListAfter(ctx, all[2].ID, 100)
	if err != nil {
		t.Fatalf("ListAfter: %v", err)
	}
	if len(tail) != 2 {
		t.Fatalf("expected 2 entries after watermark, got %d", len(tail))
	}
	if tail[0].ID != all[3].ID {
		t.Fatal("watermark read must start just past the cursor")
	}

	limited, err := s.ListAfter(ctx, 0, 2)
	if err != nil {
		t.Fatalf("ListAfter: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("limit not applied: %d", len(limited))
	}
}

func TestListAfterDetailsAreCopies(t *testing.T) {
	s := New()
	ctx := context.Background()

	entry := &audit.Entry{Action: audit.ActionLogin, Details: map[string]any{"role": "staff"}}
	if err := s.Append(ctx, entry); err != nil {
		t.Fatalf("Append: %v", err)
	}

	first, err := s.ListAfter(ctx, 0, 10)
	if err != nil {
		t.Fatalf("ListAfter: %v", err)
	}
	first[0].Details["role"] = "mutated"

	second, err := s.ListAfter(ctx, 0, 10)
	if err != nil {
		t.Fatalf("ListAfter: %v", err)
	}
	if second[0].Details["role"] != "staff" {
		t.Fatalf("trail details mutated through a returned entry: %v", second[0].Details)
	}
}
