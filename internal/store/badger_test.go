package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/casdoc/casdoc/internal/document"
)

func newBadgerStore(t *testing.T) *Badger {
	t.Helper()
	b, err := NewBadger("") // in-memory
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestBadgerPutGetRemove(t *testing.T) {
	b := newBadgerStore(t)
	ctx := context.Background()

	cas, err := b.Put(ctx, "k1", document.Document{"v": "one"}, PutOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, cas)

	doc, got, err := b.Get(ctx, "k1")
	require.NoError(t, err)
	require.Equal(t, cas, got)
	require.Equal(t, "one", doc["v"])

	require.NoError(t, b.Remove(ctx, "k1", nil))
	_, _, err = b.Get(ctx, "k1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestBadgerConditionalWrite(t *testing.T) {
	b := newBadgerStore(t)
	ctx := context.Background()

	cas1, err := b.Put(ctx, "k", document.Document{"n": float64(1)}, PutOptions{IfAbsent: true})
	require.NoError(t, err)

	_, err = b.Put(ctx, "k", document.Document{"n": float64(2)}, PutOptions{IfAbsent: true})
	require.ErrorIs(t, err, ErrKeyExists)

	cas2, err := b.Put(ctx, "k", document.Document{"n": float64(2)}, PutOptions{IfCAS: &cas1})
	require.NoError(t, err)
	require.NotEqual(t, cas1, cas2)

	_, err = b.Put(ctx, "k", document.Document{"n": float64(3)}, PutOptions{IfCAS: &cas1})
	require.ErrorIs(t, err, ErrCASMismatch)
}

func TestBadgerConditionalRemove(t *testing.T) {
	b := newBadgerStore(t)
	ctx := context.Background()

	cas1, err := b.Put(ctx, "k", document.Document{"n": float64(1)}, PutOptions{})
	require.NoError(t, err)
	cas2, err := b.Put(ctx, "k", document.Document{"n": float64(2)}, PutOptions{})
	require.NoError(t, err)

	require.ErrorIs(t, b.Remove(ctx, "k", &cas1), ErrCASMismatch)
	require.NoError(t, b.Remove(ctx, "k", &cas2))
	require.ErrorIs(t, b.Remove(ctx, "k", nil), ErrNotFound)
}
