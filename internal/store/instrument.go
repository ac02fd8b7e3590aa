package store

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/casdoc/casdoc/internal/document"
	"github.com/casdoc/casdoc/pkg/metrics"
)

// Instrumented wraps a Store and counts every call in the store_ops metric,
// labeled with the backend name. Semantics are otherwise unchanged.
type Instrumented struct {
	inner   Store
	backend string
}

func Instrument(inner Store, backend string) *Instrumented {
	return &Instrumented{inner: inner, backend: backend}
}

func (s *Instrumented) count(op string, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		result = "miss"
	case errors.Is(err, ErrCASMismatch):
		result = "conflict"
	case errors.Is(err, ErrKeyExists):
		result = "duplicate"
	default:
		result = "error"
	}
	metrics.StoreOps.WithLabelValues(s.backend, op, result).Inc()
}

func (s *Instrumented) Get(ctx context.Context, key string) (document.Document, CAS, error) {
	doc, cas, err := s.inner.Get(ctx, key)
	s.count("get", err)
	return doc, cas, err
}

func (s *Instrumented) Put(ctx context.Context, key string, doc document.Document, opts PutOptions) (CAS, error) {
	cas, err := s.inner.Put(ctx, key, doc, opts)
	s.count("put", err)
	return cas, err
}

func (s *Instrumented) Remove(ctx context.Context, key string, ifCAS *CAS) error {
	err := s.inner.Remove(ctx, key, ifCAS)
	s.count("remove", err)
	return err
}
