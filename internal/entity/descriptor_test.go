package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/casdoc/casdoc/internal/store"
)

type note struct {
	ID      string    `doc:"id"`
	Version store.CAS `doc:"-"`
	Body    string    `doc:"body"`
}

type unversionedNote struct {
	ID   string `doc:"id"`
	Body string `doc:"body"`
}

func TestDescribeChecksFields(t *testing.T) {
	d, err := Describe[note]("ID", "Version", 10*time.Second)
	require.NoError(t, err)
	require.True(t, d.Versioned())
	require.Equal(t, 10*time.Second, d.Expiry)

	_, err = Describe[note]("Missing", "Version", 0)
	require.ErrorIs(t, err, ErrBadDescriptor)

	_, err = Describe[note]("ID", "Body", 0)
	require.ErrorIs(t, err, ErrBadDescriptor, "version field must be store.CAS")

	_, err = Describe[note]("ID", "Version", -time.Second)
	require.ErrorIs(t, err, ErrBadDescriptor)
}

func TestDescribeUnversioned(t *testing.T) {
	d, err := Describe[unversionedNote]("ID", "", 0)
	require.NoError(t, err)
	require.False(t, d.Versioned())
	require.Equal(t, store.CAS(""), d.CAS(&unversionedNote{ID: "n1"}))
}

func TestAccessors(t *testing.T) {
	d, err := Describe[note]("ID", "Version", 0)
	require.NoError(t, err)

	n := &note{}
	d.SetKey(n, "n1")
	d.SetCAS(n, store.CAS("7"))
	require.Equal(t, "n1", d.Key(n))
	require.Equal(t, store.CAS("7"), d.CAS(n))
	require.Equal(t, "n1", n.ID)
	require.Equal(t, store.CAS("7"), n.Version)
}

func TestVersionDocFieldHonorsTag(t *testing.T) {
	d, err := Describe[note]("ID", "Version", 0)
	require.NoError(t, err)
	// Version is tagged doc:"-": it never encodes, nothing to strip
	require.Equal(t, "", d.VersionDocField())

	type leaky struct {
		ID      string    `doc:"id"`
		Version store.CAS `doc:"version"`
	}
	d2, err := Describe[leaky]("ID", "Version", 0)
	require.NoError(t, err)
	require.Equal(t, "version", d2.VersionDocField())
}

func TestRegistry(t *testing.T) {
	d, err := Describe[note]("ID", "Version", 0)
	require.NoError(t, err)
	Register(d)

	got, err := For[note]()
	require.NoError(t, err)
	require.Same(t, d, got)

	type unknown struct{ ID string }
	_, err = For[unknown]()
	require.ErrorIs(t, err, ErrNotRegistered)
}
