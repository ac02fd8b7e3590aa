// Package accounts is a typed-entity service built on the versioned
// repository: create, load, mutate and delete accounts with optimistic
// concurrency end to end. It is the reference consumer of the persistence
// stack and the surface the HTTP handlers talk to.
package accounts

import (
	"context"
	"time"

	"github.com/casdoc/casdoc/internal/codec"
	"github.com/casdoc/casdoc/internal/entity"
	"github.com/casdoc/casdoc/internal/repository"
	"github.com/casdoc/casdoc/internal/store"
	"github.com/casdoc/casdoc/internal/validation"
)

type Service struct {
	repo *repository.Repository[Account]
	now  func() time.Time
}

// NewService builds the account repository over the given store: descriptor
// for Account, default codec and the struct-tag validation gate.
func NewService(st store.Store) (*Service, error) {
	desc, err := entity.Describe[Account]("ID", "CAS", 0)
	if err != nil {
		return nil, err
	}
	entity.Register(desc)
	repo, err := repository.New[Account](st, codec.New(), desc, validation.NewStructGate())
	if err != nil {
		return nil, err
	}
	return &Service{repo: repo, now: time.Now}, nil
}

// Create inserts a new account. The entity must not carry a token; an empty
// ID gets a generated one. An existing ID fails with ErrDuplicateKey.
func (s *Service) Create(ctx context.Context, a *Account) (*Account, error) {
	a.CAS = ""
	now := s.now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	return s.repo.Save(ctx, a)
}

// Get loads the account with its current token.
func (s *Service) Get(ctx context.Context, id string) (*Account, error) {
	return s.repo.FindByID(ctx, id)
}

// Update saves the caller's copy conditionally on the token it carries. A
// concurrent writer surfaces as ErrOptimisticLock; the caller re-loads and
// retries the whole cycle.
func (s *Service) Update(ctx context.Context, a *Account) (*Account, error) {
	a.UpdatedAt = s.now().UTC()
	return s.repo.Save(ctx, a)
}

// Rename is one full load-modify-save round: it demonstrates the cycle the
// repository contract expects of callers.
func (s *Service) Rename(ctx context.Context, id, firstName string) (*Account, error) {
	a, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	a.FirstName = firstName
	a.UpdatedAt = s.now().UTC()
	return s.repo.Save(ctx, a)
}

// Delete removes the account, conditionally when ifCAS is non-nil.
func (s *Service) Delete(ctx context.Context, id string, ifCAS *store.CAS) error {
	return s.repo.Delete(ctx, id, ifCAS)
}
