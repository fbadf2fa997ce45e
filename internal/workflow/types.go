package workflow

import "time"

// ContentStatus is the observable lifecycle state of a content item.
type ContentStatus string

const (
	ContentDraft     ContentStatus = "draft"
	ContentPending   ContentStatus = "pending"
	ContentApproved  ContentStatus = "approved"
	ContentRejected  ContentStatus = "rejected"
	ContentPublished ContentStatus = "published"
)

// CooperationStatus is the lifecycle state of a cooperation request.
type CooperationStatus string

const (
	CoopSubmitted CooperationStatus = "submitted"
	CoopVerified  CooperationStatus = "verified"
	CoopApproved  CooperationStatus = "approved"
)

// Action names a requested transition.
type Action string

const (
	ActionSubmit  Action = "submit"
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionPublish Action = "publish"
	ActionVerify  Action = "verify"
)

// Content is a publishable item. Status mutates only through Transition.
type Content struct {
	ID         int64
	AuthorID   int64
	CategoryID int64
	Title      string
	Excerpt    string
	Body       string
	Status     ContentStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ApprovalRecord is one append-only history entry per approval-stage
// action. ApproverRole is a snapshot taken at action time, not a join.
type ApprovalRecord struct {
	ID           int64
	ContentID    int64
	ApproverID   int64
	ApproverRole string
	Action       string // "approve" or "reject"
	Notes        string
	CreatedAt    time.Time
}

// Category is reference data for content classification.
type Category struct {
	ID          int64
	Name        string
	Description string
	Icon        string
	Color       string
	CreatedAt   time.Time
}

// Cooperation is an institutional cooperation request. The document is
// stored by reference only; blob storage is an external collaborator.
type Cooperation struct {
	ID           int64
	RequesterID  int64
	Institution  string
	ContactName  string
	Email        string
	Phone        string
	Purpose      string
	EventDate    string
	DocumentName string
	DocumentMime string
	Status       CooperationStatus
	CreatedAt    time.Time
}

// Actor identifies who is attempting a transition; the role name is
// snapshotted into approval records and audit details.
type Actor struct {
	UserID int64
	Role   string
}
