package policy

import "errors"

var (
	// ErrDenied means the identity resolved but the action is not permitted.
	// Messages never reveal whether the target resource exists.
	ErrDenied = errors.New("access denied")
	// ErrConflict means the action would violate a documented invariant.
	ErrConflict = errors.New("operation conflicts with portal invariants")
)
