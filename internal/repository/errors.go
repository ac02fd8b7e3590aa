package repository

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/casdoc/casdoc/internal/store"
	"github.com/casdoc/casdoc/internal/validation"
)

var (
	// ErrNotFound mirrors the store sentinel so callers depend on one
	// package only.
	ErrNotFound = store.ErrNotFound

	// ErrOptimisticLock means a conditional write lost the race: the stored
	// token no longer matches the one the entity carried. Recoverable by
	// re-loading, re-applying the mutation and saving again; the repository
	// never retries on the caller's behalf.
	ErrOptimisticLock = errors.New("repository: optimistic locking failure")

	// ErrDuplicateKey means an insert hit an existing key.
	ErrDuplicateKey = errors.New("repository: duplicate key")

	// ErrMissingKey means a save or delete had no usable key.
	ErrMissingKey = errors.New("repository: missing key")
)

// ValidationError reports failed constraints; it is returned before any
// store I/O happens.
type ValidationError struct {
	Violations []validation.Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return fmt.Sprintf("repository: validation failed: %s", strings.Join(parts, "; "))
}
