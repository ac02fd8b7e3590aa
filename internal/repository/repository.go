// Package repository implements the versioned load/mutate/save cycle over a
// document store. Each save is validate → encode → conditional write; the
// store's compare-and-swap is the sole arbiter among concurrent writers, so
// the repository itself stays stateless and safe for any number of callers.
package repository

import (
	"context"
	"reflect"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/casdoc/casdoc/internal/codec"
	"github.com/casdoc/casdoc/internal/entity"
	"github.com/casdoc/casdoc/internal/store"
	"github.com/casdoc/casdoc/internal/validation"
	"github.com/casdoc/casdoc/pkg/metrics"
)

// Repository persists entities of type T as documents.
//
// Save semantics by token state:
//   - versioned type, token populated: conditional update; a stale token
//     surfaces ErrOptimisticLock and nothing changes in the store.
//   - versioned type, token empty: insert-only; an existing key surfaces
//     ErrDuplicateKey.
//   - unversioned type: unconditional upsert (last-writer-wins).
type Repository[T any] struct {
	store store.Store
	codec *codec.Codec
	desc  *entity.Descriptor
	gate  validation.Gate
}

// New wires a repository from its collaborators. The descriptor must
// describe T. A nil gate disables validation.
func New[T any](st store.Store, c *codec.Codec, d *entity.Descriptor, g validation.Gate) (*Repository[T], error) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if d.Type != t {
		return nil, errors.Wrapf(entity.ErrBadDescriptor, "descriptor is for %s, repository is for %s", d.Type, t)
	}
	if g == nil {
		g = validation.None{}
	}
	return &Repository[T]{store: st, codec: c, desc: d, gate: g}, nil
}

// FindByID loads, decodes and version-stamps the entity stored under key.
// Returns ErrNotFound when no document exists.
func (r *Repository[T]) FindByID(ctx context.Context, key string) (*T, error) {
	doc, cas, err := r.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			metrics.RepositoryOps.WithLabelValues("find", "miss").Inc()
			return nil, err
		}
		metrics.RepositoryOps.WithLabelValues("find", "error").Inc()
		return nil, err
	}

	e := new(T)
	if err := r.codec.Decode(doc, e); err != nil {
		metrics.RepositoryOps.WithLabelValues("find", "error").Inc()
		return nil, err
	}
	r.desc.SetKey(e, key)
	r.desc.SetCAS(e, cas)
	metrics.RepositoryOps.WithLabelValues("find", "ok").Inc()
	return e, nil
}

// Save runs the full cycle and, on success, returns the entity updated with
// its new token. On any failure the stored document is untouched.
func (r *Repository[T]) Save(ctx context.Context, e *T) (*T, error) {
	if violations := r.gate.Validate(e); len(violations) > 0 {
		metrics.RepositoryOps.WithLabelValues("save", "invalid").Inc()
		return nil, &ValidationError{Violations: violations}
	}

	key := r.desc.Key(e)
	opts := store.PutOptions{TTL: r.desc.Expiry}

	if r.desc.Versioned() {
		if cas := r.desc.CAS(e); cas != "" {
			if key == "" {
				metrics.RepositoryOps.WithLabelValues("save", "error").Inc()
				return nil, errors.Wrap(ErrMissingKey, "update carries a token but no key")
			}
			opts.IfCAS = &cas
		} else {
			opts.IfAbsent = true
			if key == "" {
				key = uuid.NewString()
				r.desc.SetKey(e, key)
			}
		}
	} else if key == "" {
		key = uuid.NewString()
		r.desc.SetKey(e, key)
	}

	doc, err := r.codec.Encode(e)
	if err != nil {
		metrics.RepositoryOps.WithLabelValues("save", "error").Inc()
		return nil, err
	}
	// the token is store metadata, never document content
	if f := r.desc.VersionDocField(); f != "" {
		delete(doc, f)
	}

	newCAS, err := r.store.Put(ctx, key, doc, opts)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrCASMismatch):
			metrics.RepositoryOps.WithLabelValues("save", "conflict").Inc()
			metrics.OptimisticConflicts.Inc()
			return nil, errors.Wrapf(ErrOptimisticLock, "key %q: %v", key, err)
		case errors.Is(err, store.ErrKeyExists):
			metrics.RepositoryOps.WithLabelValues("save", "duplicate").Inc()
			return nil, errors.Wrapf(ErrDuplicateKey, "key %q", key)
		default:
			metrics.RepositoryOps.WithLabelValues("save", "error").Inc()
			return nil, err
		}
	}

	r.desc.SetCAS(e, newCAS)
	metrics.RepositoryOps.WithLabelValues("save", "ok").Inc()
	return e, nil
}

// Delete removes the document under key. A non-nil ifCAS makes the removal
// conditional; a stale token surfaces ErrOptimisticLock.
func (r *Repository[T]) Delete(ctx context.Context, key string, ifCAS *store.CAS) error {
	if key == "" {
		return ErrMissingKey
	}
	err := r.store.Remove(ctx, key, ifCAS)
	switch {
	case err == nil:
		metrics.RepositoryOps.WithLabelValues("delete", "ok").Inc()
		return nil
	case errors.Is(err, store.ErrCASMismatch):
		metrics.RepositoryOps.WithLabelValues("delete", "conflict").Inc()
		metrics.OptimisticConflicts.Inc()
		return errors.Wrapf(ErrOptimisticLock, "key %q: %v", key, err)
	case errors.Is(err, store.ErrNotFound):
		metrics.RepositoryOps.WithLabelValues("delete", "miss").Inc()
		return err
	default:
		metrics.RepositoryOps.WithLabelValues("delete", "error").Inc()
		return err
	}
}
