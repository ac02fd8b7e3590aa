// Package store defines the document store client: keyed get/put/remove
// primitives with compare-and-swap semantics. The CAS token is the sole
// arbiter of which concurrent writer wins; callers treat it as opaque and
// round-trip it unmodified between a read and the next conditional write.
package store

import (
	"context"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/casdoc/casdoc/internal/document"
)

// CAS is the opaque concurrency token associated with a stored document.
// Every successful mutation of a document changes its token.
type CAS string

var (
	ErrNotFound    = errors.New("store: document not found")
	ErrCASMismatch = errors.New("store: cas mismatch")
	ErrKeyExists   = errors.New("store: key already exists")
)

// PutOptions controls the conditional-write behavior of Put.
//
// At most one of IfAbsent and IfCAS may be set. With neither set the write
// is unconditional (last-writer-wins). TTL of zero means the document never
// expires.
type PutOptions struct {
	IfAbsent bool
	IfCAS    *CAS
	TTL      time.Duration
}

// Store is the document store client. Implementations are safe for
// concurrent use; the conditional write is atomic at the store level.
type Store interface {
	// Get returns the document and its current token, or ErrNotFound.
	Get(ctx context.Context, key string) (document.Document, CAS, error)

	// Put writes the document under key and returns the new token.
	// IfAbsent writes fail with ErrKeyExists when the key is taken; IfCAS
	// writes fail with ErrCASMismatch when the stored token differs
	// (a deleted document also invalidates its token).
	Put(ctx context.Context, key string, doc document.Document, opts PutOptions) (CAS, error)

	// Remove deletes the document. A non-nil ifCAS makes the removal
	// conditional with the same mismatch semantics as Put.
	Remove(ctx context.Context, key string, ifCAS *CAS) error
}

func casUintString(n uint64) string {
	return strconv.FormatUint(n, 10)
}

// checkPut validates key and document before any backend I/O.
func checkPut(key string, doc document.Document) error {
	if err := document.ValidKey(key); err != nil {
		return err
	}
	return doc.Validate()
}
