package httpapi

import (
	"time"

	"pressdesk.org/internal/audit"
	"pressdesk.org/internal/auth"
	"pressdesk.org/internal/workflow"
)

// View types fix the wire shape independently of the domain structs.

type userView struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	RoleID    int64     `json:"role_id"`
	Role      string    `json:"role,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserView(u *auth.User, roleName string) userView {
	return userView{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FullName:  u.FullName,
		RoleID:    u.RoleID,
		Role:      roleName,
		CreatedAt: u.CreatedAt,
	}
}

type contentView struct {
	ID         int64     `json:"id"`
	Title      string    `json:"title"`
	Excerpt    string    `json:"excerpt"`
	Body       string    `json:"body"`
	CategoryID int64     `json:"category_id"`
	AuthorID   int64     `json:"author_id"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func toContentView(c *workflow.Content) contentView {
	return contentView{
		ID:         c.ID,
		Title:      c.Title,
		Excerpt:    c.Excerpt,
		Body:       c.Body,
		CategoryID: c.CategoryID,
		AuthorID:   c.AuthorID,
		Status:     string(c.Status),
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}

type approvalView struct {
	ID           int64     `json:"id"`
	ContentID    int64     `json:"content_id"`
	ApproverID   int64     `json:"approver_id"`
	ApproverRole string    `json:"approver_role"`
	Action       string    `json:"action"`
	Notes        string    `json:"notes"`
	CreatedAt    time.Time `json:"created_at"`
}

func toApprovalView(rec workflow.ApprovalRecord) approvalView {
	return approvalView{
		ID:           rec.ID,
		ContentID:    rec.ContentID,
		ApproverID:   rec.ApproverID,
		ApproverRole: rec.ApproverRole,
		Action:       rec.Action,
		Notes:        rec.Notes,
		CreatedAt:    rec.CreatedAt,
	}
}

type categoryView struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	Color       string    `json:"color"`
	CreatedAt   time.Time `json:"created_at"`
}

func toCategoryView(c *workflow.Category) categoryView {
	return categoryView{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		Icon:        c.Icon,
		Color:       c.Color,
		CreatedAt:   c.CreatedAt,
	}
}

type cooperationView struct {
	ID           int64     `json:"id"`
	RequesterID  int64     `json:"requester_id"`
	Institution  string    `json:"institution"`
	ContactName  string    `json:"contact_name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	Purpose      string    `json:"purpose"`
	EventDate    string    `json:"event_date"`
	DocumentName string    `json:"document_name"`
	DocumentMime string    `json:"document_mime"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

func toCooperationView(c *workflow.Cooperation) cooperationView {
	return cooperationView{
		ID:           c.ID,
		RequesterID:  c.RequesterID,
		Institution:  c.Institution,
		ContactName:  c.ContactName,
		Email:        c.Email,
		Phone:        c.Phone,
		Purpose:      c.Purpose,
		EventDate:    c.EventDate,
		DocumentName: c.DocumentName,
		DocumentMime: c.DocumentMime,
		Status:       string(c.Status),
		CreatedAt:    c.CreatedAt,
	}
}

type auditView struct {
	ID        int64          `json:"id"`
	Action    string         `json:"action"`
	UserID    *int64         `json:"user_id"`
	RecordID  *int64         `json:"record_id"`
	Details   map[string]any `json:"details"`
	CreatedAt time.Time      `json:"created_at"`
}

func toAuditView(e audit.Entry) auditView {
	details := e.Details
	if details == nil {
		details = map[string]any{}
	}
	return auditView{
		ID:        e.ID,
		Action:    e.Action,
		UserID:    e.UserID,
		RecordID:  e.RecordID,
		Details:   details,
		CreatedAt: e.CreatedAt,
	}
}
