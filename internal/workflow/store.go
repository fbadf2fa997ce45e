package workflow

import (
	"context"

	"pressdesk.org/internal/audit"
)

// Store describes persistence for the workflow subsystem. Every
// mutating method couples the entity write with its audit entry: both
// become visible together or not at all.
type Store interface {
	Contents(ctx context.Context) ContentStore
	Categories(ctx context.Context) CategoryStore
	Cooperations(ctx context.Context) CooperationStore
}

// ContentStore manages content items and their approval history.
//
// Create assigns the id, sets status to draft and persists the entity
// together with the entry (the store fills the entry's record id).
// Transition serializes per record: it evaluates DecideContent against
// the current row under a record-level lock and persists status change,
// approval record and audit entry as one atomic unit, or nothing.
type ContentStore interface {
	Create(ctx context.Context, c *Content, entry *audit.Entry) error
	Update(ctx context.Context, c *Content, entry *audit.Entry) error
	Find(ctx context.Context, id int64) (*Content, error)
	List(ctx context.Context) ([]*Content, error)
	Transition(ctx context.Context, id int64, actor Actor, action Action, notes string) (*Content, error)
	History(ctx context.Context, contentID int64) ([]ApprovalRecord, error)
}

// CategoryStore manages content categories.
type CategoryStore interface {
	Create(ctx context.Context, c *Category, entry *audit.Entry) error
	List(ctx context.Context) ([]*Category, error)
}

// CooperationStore manages cooperation requests.
type CooperationStore interface {
	Create(ctx context.Context, c *Cooperation, entry *audit.Entry) error
	Find(ctx context.Context, id int64) (*Cooperation, error)
	Transition(ctx context.Context, id int64, actor Actor, action Action) (*Cooperation, error)
}
