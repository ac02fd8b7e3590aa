package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/casdoc/casdoc/internal/codec"
	"github.com/casdoc/casdoc/internal/document"
	"github.com/casdoc/casdoc/internal/entity"
	"github.com/casdoc/casdoc/internal/store"
	"github.com/casdoc/casdoc/internal/validation"
)

type user struct {
	ID        string    `doc:"id"`
	Version   store.CAS `doc:"-"`
	FirstName string    `doc:"firstname" validate:"required"`
}

type counterDoc struct {
	ID    string `doc:"id"`
	Count int    `doc:"count"`
}

func userRepo(t *testing.T, st store.Store, gate validation.Gate) *Repository[user] {
	t.Helper()
	desc, err := entity.Describe[user]("ID", "Version", 0)
	require.NoError(t, err)
	r, err := New[user](st, codec.New(), desc, gate)
	require.NoError(t, err)
	return r
}

func TestSaveAssignsTokenAndFindRoundTrips(t *testing.T) {
	r := userRepo(t, store.NewMemory(), nil)
	ctx := context.Background()

	// the canonical cycle: insert, read, mutate, conditional save
	u := &user{ID: "u1", FirstName: "Foo"}
	saved, err := r.Save(ctx, u)
	require.NoError(t, err)
	t1 := saved.Version
	require.NotEmpty(t, t1)

	loaded, err := r.FindByID(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, "u1", loaded.ID)
	require.Equal(t, "Foo", loaded.FirstName)
	require.Equal(t, t1, loaded.Version)

	loaded.FirstName = "Bar"
	saved2, err := r.Save(ctx, loaded)
	require.NoError(t, err)
	require.NotEqual(t, t1, saved2.Version)

	// a second save still carrying the old token loses
	stale := &user{ID: "u1", Version: t1, FirstName: "Baz"}
	_, err = r.Save(ctx, stale)
	require.ErrorIs(t, err, ErrOptimisticLock)

	// the losing write changed nothing
	final, err := r.FindByID(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, "Bar", final.FirstName)
}

func TestInsertOnlyWhenTokenEmpty(t *testing.T) {
	r := userRepo(t, store.NewMemory(), nil)
	ctx := context.Background()

	_, err := r.Save(ctx, &user{ID: "u1", FirstName: "Foo"})
	require.NoError(t, err)

	// a token-less save against an existing key is a duplicate insert
	_, err = r.Save(ctx, &user{ID: "u1", FirstName: "Other"})
	require.ErrorIs(t, err, ErrDuplicateKey)
}

func TestEmptyKeyGetsGenerated(t *testing.T) {
	r := userRepo(t, store.NewMemory(), nil)
	ctx := context.Background()

	saved, err := r.Save(ctx, &user{FirstName: "Foo"})
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)

	loaded, err := r.FindByID(ctx, saved.ID)
	require.NoError(t, err)
	require.Equal(t, "Foo", loaded.FirstName)
}

func TestFindByIDMiss(t *testing.T) {
	r := userRepo(t, store.NewMemory(), nil)
	_, err := r.FindByID(context.Background(), "nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestExactlyOneConcurrentSaverWins(t *testing.T) {
	r := userRepo(t, store.NewMemory(), nil)
	ctx := context.Background()

	saved, err := r.Save(ctx, &user{ID: "u1", FirstName: "Foo"})
	require.NoError(t, err)
	token := saved.Version

	const savers = 8
	var wg sync.WaitGroup
	results := make([]error, savers)
	for i := 0; i < savers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u := &user{ID: "u1", Version: token, FirstName: "Racer"}
			_, results[i] = r.Save(ctx, u)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range results {
		if err == nil {
			winners++
		} else {
			require.ErrorIs(t, err, ErrOptimisticLock)
		}
	}
	require.Equal(t, 1, winners)
}

// recordingStore counts calls and captures put options; used to prove the
// validation gate short-circuits before any I/O and that expiry propagates.
type recordingStore struct {
	store.Store
	calls   int
	lastPut store.PutOptions
}

func (s *recordingStore) Get(ctx context.Context, key string) (document.Document, store.CAS, error) {
	s.calls++
	return s.Store.Get(ctx, key)
}

func (s *recordingStore) Put(ctx context.Context, key string, doc document.Document, opts store.PutOptions) (store.CAS, error) {
	s.calls++
	s.lastPut = opts
	return s.Store.Put(ctx, key, doc, opts)
}

func (s *recordingStore) Remove(ctx context.Context, key string, ifCAS *store.CAS) error {
	s.calls++
	return s.Store.Remove(ctx, key, ifCAS)
}

func TestValidationShortCircuitsBeforeIO(t *testing.T) {
	rec := &recordingStore{Store: store.NewMemory()}
	r := userRepo(t, rec, validation.NewStructGate())
	ctx := context.Background()

	_, err := r.Save(ctx, &user{ID: "u1"}) // FirstName required
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.NotEmpty(t, verr.Violations)
	require.Equal(t, 0, rec.calls, "no store call may happen for an invalid entity")
}

func TestExpiryPropagatesToPut(t *testing.T) {
	rec := &recordingStore{Store: store.NewMemory()}
	desc, err := entity.Describe[user]("ID", "Version", 10*time.Second)
	require.NoError(t, err)
	r, err := New[user](rec, codec.New(), desc, nil)
	require.NoError(t, err)

	_, err = r.Save(context.Background(), &user{ID: "u1", FirstName: "Foo"})
	require.NoError(t, err)
	require.Equal(t, 10*time.Second, rec.lastPut.TTL)
}

func TestTokenNeverEncodesIntoDocument(t *testing.T) {
	type leaky struct {
		ID      string    `doc:"id"`
		Version store.CAS `doc:"version"` // not excluded on purpose
		Name    string    `doc:"name"`
	}
	st := store.NewMemory()
	desc, err := entity.Describe[leaky]("ID", "Version", 0)
	require.NoError(t, err)
	r, err := New[leaky](st, codec.New(), desc, nil)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = r.Save(ctx, &leaky{ID: "l1", Name: "x"})
	require.NoError(t, err)

	doc, _, err := st.Get(ctx, "l1")
	require.NoError(t, err)
	_, present := doc["version"]
	require.False(t, present, "token is store metadata, not document content")
}

func TestUnversionedTypeUpserts(t *testing.T) {
	st := store.NewMemory()
	desc, err := entity.Describe[counterDoc]("ID", "", 0)
	require.NoError(t, err)
	r, err := New[counterDoc](st, codec.New(), desc, nil)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = r.Save(ctx, &counterDoc{ID: "c1", Count: 1})
	require.NoError(t, err)

	// last writer wins, no token needed
	_, err = r.Save(ctx, &counterDoc{ID: "c1", Count: 2})
	require.NoError(t, err)

	loaded, err := r.FindByID(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, 2, loaded.Count)
}

func TestDelete(t *testing.T) {
	r := userRepo(t, store.NewMemory(), nil)
	ctx := context.Background()

	saved, err := r.Save(ctx, &user{ID: "u1", FirstName: "Foo"})
	require.NoError(t, err)
	t1 := saved.Version

	saved.FirstName = "Bar"
	saved2, err := r.Save(ctx, saved)
	require.NoError(t, err)

	require.ErrorIs(t, r.Delete(ctx, "u1", &t1), ErrOptimisticLock)
	require.NoError(t, r.Delete(ctx, "u1", &saved2.Version))
	require.ErrorIs(t, r.Delete(ctx, "u1", nil), ErrNotFound)
	require.ErrorIs(t, r.Delete(ctx, "", nil), ErrMissingKey)
}

func TestNewRejectsMismatchedDescriptor(t *testing.T) {
	desc, err := entity.Describe[counterDoc]("ID", "", 0)
	require.NoError(t, err)
	_, err = New[user](store.NewMemory(), codec.New(), desc, nil)
	require.ErrorIs(t, err, entity.ErrBadDescriptor)
}
