// Package entity holds per-type persistence metadata: which struct field
// carries the document key, which (if any) holds the CAS token, and the
// declared expiry. Descriptors are built once at startup and looked up by
// type identity; nothing here is re-validated per call.
package entity

import (
	"reflect"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/casdoc/casdoc/internal/codec"
	"github.com/casdoc/casdoc/internal/store"
)

var (
	ErrBadDescriptor = errors.New("entity: invalid descriptor")
	ErrNotRegistered = errors.New("entity: type not registered")
)

var casType = reflect.TypeOf(store.CAS(""))

// Descriptor describes how one entity type maps onto a stored document.
// A type without a VersionField opts out of conditional writes entirely.
type Descriptor struct {
	Type         reflect.Type
	KeyField     string
	VersionField string // empty when the type is not version tracked
	Expiry       time.Duration

	keyIndex     int
	versionIndex int
	versionDoc   string // encoded name of the version field, if it would encode
}

// Describe builds and checks a descriptor for T. keyField must name an
// exported string field; versionField, when non-empty, must name an exported
// store.CAS field. expiry of zero means documents of this type never expire.
func Describe[T any](keyField, versionField string, expiry time.Duration) (*Descriptor, error) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if t.Kind() != reflect.Struct {
		return nil, errors.Wrapf(ErrBadDescriptor, "%s is not a struct", t)
	}
	if expiry < 0 {
		return nil, errors.Wrap(ErrBadDescriptor, "negative expiry")
	}

	d := &Descriptor{
		Type:         t,
		KeyField:     keyField,
		VersionField: versionField,
		Expiry:       expiry,
		versionIndex: -1,
	}

	kf, ok := t.FieldByName(keyField)
	if !ok || !kf.IsExported() || len(kf.Index) != 1 {
		return nil, errors.Wrapf(ErrBadDescriptor, "key field %q not found on %s", keyField, t)
	}
	if kf.Type.Kind() != reflect.String {
		return nil, errors.Wrapf(ErrBadDescriptor, "key field %q must be a string", keyField)
	}
	d.keyIndex = kf.Index[0]

	if versionField != "" {
		vf, ok := t.FieldByName(versionField)
		if !ok || !vf.IsExported() || len(vf.Index) != 1 {
			return nil, errors.Wrapf(ErrBadDescriptor, "version field %q not found on %s", versionField, t)
		}
		if vf.Type != casType {
			return nil, errors.Wrapf(ErrBadDescriptor, "version field %q must be store.CAS", versionField)
		}
		d.versionIndex = vf.Index[0]
		if name, encodes := codec.FieldName(vf); encodes {
			d.versionDoc = name
		}
	}
	return d, nil
}

// Versioned reports whether this type carries a CAS token.
func (d *Descriptor) Versioned() bool { return d.versionIndex >= 0 }

// VersionDocField is the document field name the version field would encode
// under, or empty when it is excluded (tagged `doc:"-"`) or absent. The
// repository strips it from encoded documents: the token is store metadata,
// never document content.
func (d *Descriptor) VersionDocField() string { return d.versionDoc }

func (d *Descriptor) structOf(e any) reflect.Value {
	v := reflect.ValueOf(e)
	for v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	return v
}

// Key reads the key field of e.
func (d *Descriptor) Key(e any) string {
	return d.structOf(e).Field(d.keyIndex).String()
}

// SetKey writes the key field of e (which must be addressable, i.e. a
// pointer).
func (d *Descriptor) SetKey(e any, key string) {
	d.structOf(e).Field(d.keyIndex).SetString(key)
}

// CAS reads the token field of e; empty for unversioned types.
func (d *Descriptor) CAS(e any) store.CAS {
	if !d.Versioned() {
		return ""
	}
	return d.structOf(e).Field(d.versionIndex).Interface().(store.CAS)
}

// SetCAS writes the token field of e; no-op for unversioned types.
func (d *Descriptor) SetCAS(e any, cas store.CAS) {
	if !d.Versioned() {
		return
	}
	d.structOf(e).Field(d.versionIndex).Set(reflect.ValueOf(cas))
}

// Registry maps type identity to descriptor. Register at process start,
// look up on the hot path with a read lock only.
var (
	regMu    sync.RWMutex
	registry = map[reflect.Type]*Descriptor{}
)

// Register records d for its type, replacing any previous registration.
func Register(d *Descriptor) {
	regMu.Lock()
	defer regMu.Unlock()
	registry[d.Type] = d
}

// For returns the descriptor registered for T.
func For[T any]() (*Descriptor, error) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	regMu.RLock()
	defer regMu.RUnlock()
	d, ok := registry[t]
	if !ok {
		return nil, errors.Wrapf(ErrNotRegistered, "%s", t)
	}
	return d, nil
}
