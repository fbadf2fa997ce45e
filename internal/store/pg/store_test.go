package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"pressdesk.org/internal/audit"
	"pressdesk.org/internal/auth"
	"pressdesk.org/internal/workflow"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewWithDB(db), mock
}

func TestListAfterQueriesWatermark(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"id", "action", "user_id", "record_id", "details", "created_at"}).
		AddRow(int64(6), audit.ActionLogin, int64(1), nil, []byte(`{"role":"staff"}`), now).
		AddRow(int64(7), audit.ActionSubmitContent, int64(1), int64(9), []byte(`{}`), now)
	mock.ExpectQuery("from audit_logs").WithArgs(int64(5), 10).WillReturnRows(rows)

	entries, err := s.ListAfter(context.Background(), 5, 10)
	if err != nil {
		t.Fatalf("ListAfter: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].ID != 6 || entries[1].ID != 7 {
		t.Fatalf("unexpected ids: %+v", entries)
	}
	if entries[0].Details["role"] != "staff" {
		t.Fatalf("details not decoded: %v", entries[0].Details)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserCreateCouplesAuditInOneTx(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("insert into users").
		WithArgs("dana", "dana@example.kz", "hash", "", int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(11), now))
	mock.ExpectQuery("insert into audit_logs").
		WithArgs(audit.ActionUserCreated, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(3), now))
	mock.ExpectCommit()

	user := &auth.User{Username: "dana", Email: "dana@example.kz", PasswordHash: "hash", RoleID: 1}
	entry := &audit.Entry{Action: audit.ActionUserCreated}
	if err := s.Users(context.Background()).Create(context.Background(), user, entry); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if user.ID != 11 {
		t.Fatalf("id not filled: %d", user.ID)
	}
	if entry.ID != 3 || entry.RecordID == nil || *entry.RecordID != 11 {
		t.Fatalf("entry not filled: %+v", entry)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserCreateMapsUniqueViolation(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("insert into users").
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	user := &auth.User{Username: "dup", Email: "dup@example.kz", PasswordHash: "hash", RoleID: 1}
	err := s.Users(context.Background()).Create(context.Background(), user, nil)
	if !errors.Is(err, auth.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdateRefusesNonDraftRows(t *testing.T) {
	s, mock := newMockStore(t)

	// The update predicate filters on status; a row that was submitted
	// in the meantime matches nothing.
	mock.ExpectBegin()
	mock.ExpectQuery("update contents").
		WithArgs(int64(9), "edited", "", "", int64(0), "draft").
		WillReturnRows(sqlmock.NewRows([]string{"status", "created_at", "updated_at"}))
	mock.ExpectQuery("select exists").
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	item := &workflow.Content{ID: 9, Title: "edited"}
	err := s.Contents(context.Background()).Update(context.Background(), item, nil)
	if !errors.Is(err, workflow.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdateMissingRowIsNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("update contents").
		WithArgs(int64(77), "edited", "", "", int64(0), "draft").
		WillReturnRows(sqlmock.NewRows([]string{"status", "created_at", "updated_at"}))
	mock.ExpectQuery("select exists").
		WithArgs(int64(77)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectRollback()

	item := &workflow.Content{ID: 77, Title: "edited"}
	err := s.Contents(context.Background()).Update(context.Background(), item, nil)
	if !errors.Is(err, workflow.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTransitionRollsBackOnInvalidAction(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("for update").
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "title", "excerpt", "body", "category_id", "author_id", "status", "created_at", "updated_at",
		}).AddRow(int64(9), "t", "", "", int64(0), int64(1), "draft", now, now))
	mock.ExpectQuery("select count").
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectRollback()

	actor := workflow.Actor{UserID: 2, Role: "staff"}
	_, err := s.Contents(context.Background()).Transition(context.Background(), 9, actor, workflow.ActionApprove, "")
	if !errors.Is(err, workflow.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTransitionCommitsStatusApprovalAndAudit(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("from contents").
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "title", "excerpt", "body", "category_id", "author_id", "status", "created_at", "updated_at",
		}).AddRow(int64(9), "t", "", "", int64(0), int64(1), "pending", now, now))
	mock.ExpectQuery("select count").
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("update contents set status").
		WithArgs(int64(9), "approved").
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(now))
	mock.ExpectQuery("insert into approval_records").
		WithArgs(int64(9), int64(2), "staff", "approve", "ok").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(1), now))
	mock.ExpectQuery("insert into audit_logs").
		WithArgs(audit.ActionVerifyContent, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(8), now))
	mock.ExpectCommit()

	actor := workflow.Actor{UserID: 2, Role: "staff"}
	item, err := s.Contents(context.Background()).Transition(context.Background(), 9, actor, workflow.ActionApprove, "ok")
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if item.Status != workflow.ContentApproved {
		t.Fatalf("expected approved, got %s", item.Status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
