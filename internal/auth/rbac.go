package auth

import (
	"context"
	"errors"
	"sync/atomic"
)

type grantSnapshot map[int64]map[string]struct{}

// Evaluator answers allow/deny for (role, permission) pairs. It holds
// the RolePermission relation as an immutable snapshot so the hot path
// is a pair of map lookups; Refresh swaps in a new snapshot without
// blocking readers.
type Evaluator struct {
	store Store
	snap  atomic.Value // grantSnapshot
}

// NewEvaluator builds an evaluator with an empty snapshot. Call Refresh
// before serving traffic; an unrefreshed evaluator denies everything.
func NewEvaluator(store Store) (*Evaluator, error) {
	if store == nil {
		return nil, errors.New("auth: evaluator store is required")
	}
	e := &Evaluator{store: store}
	e.snap.Store(grantSnapshot{})
	return e, nil
}

// Refresh rebuilds the snapshot from the stored grants. Safe to call
// concurrently with Allowed; readers see either the old or the new
// relation, never a partial one.
func (e *Evaluator) Refresh(ctx context.Context) error {
	grants, err := e.store.Permissions(ctx).Grants(ctx)
	if err != nil {
		return err
	}
	next := make(grantSnapshot)
	for _, g := range grants {
		set, ok := next[g.RoleID]
		if !ok {
			set = make(map[string]struct{})
			next[g.RoleID] = set
		}
		set[g.Permission] = struct{}{}
	}
	e.snap.Store(next)
	return nil
}

// Allowed reports whether the role holds the permission. Unknown roles
// and unknown permission names are denials, never errors.
func (e *Evaluator) Allowed(roleID int64, permission string) bool {
	if roleID <= 0 || permission == "" {
		return false
	}
	snap := e.snap.Load().(grantSnapshot)
	set, ok := snap[roleID]
	if !ok {
		return false
	}
	_, ok = set[permission]
	return ok
}
