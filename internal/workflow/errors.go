package workflow

import "errors"

var (
	ErrNotFound = errors.New("workflow: not found")

	// ErrInvalidTransition means the workflow precondition was not met:
	// wrong source state or incomplete approval stages. The operation is
	// all-or-nothing; no state mutates and no audit entry is written.
	ErrInvalidTransition = errors.New("workflow: invalid transition")

	// ErrNotOwner means an ownership-gated action was attempted by a
	// user other than the record's author.
	ErrNotOwner = errors.New("workflow: not the owner")
)
