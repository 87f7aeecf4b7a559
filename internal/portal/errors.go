package portal

import (
	"errors"

	"legitheque.org/internal/policy"
)

var (
	// ErrUnauthenticated means no identity could be resolved. Checked before
	// any resource lookup.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrValidation covers malformed input: missing fields, short passwords
	// or reasons, oversized or non-PDF files, out-of-range numbers.
	ErrValidation = errors.New("invalid input")
	// ErrNotFound means the target entity or its backing file is missing.
	ErrNotFound = errors.New("not found")

	// ErrDenied and ErrConflict come from the policy engine so errors.Is
	// works across both packages.
	ErrDenied   = policy.ErrDenied
	ErrConflict = policy.ErrConflict
)
