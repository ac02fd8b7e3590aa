package document

import (
	"github.com/cockroachdb/errors"
)

// Document is the generic stored representation of an entity: a mapping from
// field name to value. Values are restricted to nil, bool, int64, float64,
// string, []any and nested Document (or map[string]any). The structure must
// be a tree; Validate enforces this with a depth cap.
type Document map[string]any

// MaxKeyLength is the longest key a store will accept.
const MaxKeyLength = 250

// maxDepth bounds nesting so a cyclic structure fails fast instead of
// recursing forever.
const maxDepth = 32

var (
	ErrInvalidKey   = errors.New("document: invalid key")
	ErrInvalidValue = errors.New("document: value outside the document model")
	ErrTooDeep      = errors.New("document: nesting exceeds maximum depth")
)

// ValidKey reports whether key is usable as a store key.
func ValidKey(key string) error {
	if key == "" {
		return errors.Wrap(ErrInvalidKey, "empty")
	}
	if len(key) > MaxKeyLength {
		return errors.Wrapf(ErrInvalidKey, "%d bytes exceeds %d", len(key), MaxKeyLength)
	}
	return nil
}

// Validate walks the document and rejects values outside the restricted
// model and nesting deeper than the cap.
func (d Document) Validate() error {
	return validateMapping(d, 0)
}

func validateMapping(m map[string]any, depth int) error {
	if depth >= maxDepth {
		return ErrTooDeep
	}
	for name, v := range m {
		if name == "" || len(name) > MaxKeyLength {
			return errors.Wrapf(ErrInvalidValue, "field name %q", name)
		}
		if err := validateValue(v, depth+1); err != nil {
			return errors.Wrapf(err, "field %q", name)
		}
	}
	return nil
}

func validateValue(v any, depth int) error {
	if depth >= maxDepth {
		return ErrTooDeep
	}
	switch t := v.(type) {
	case nil, bool, string:
		return nil
	case int, int32, int64, float32, float64:
		return nil
	case []any:
		for i, e := range t {
			if err := validateValue(e, depth+1); err != nil {
				return errors.Wrapf(err, "index %d", i)
			}
		}
		return nil
	case Document:
		return validateMapping(t, depth)
	case map[string]any:
		return validateMapping(t, depth)
	default:
		return errors.Wrapf(ErrInvalidValue, "type %T", v)
	}
}

// Clone returns a deep copy so stored documents never alias caller state.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case Document:
		return t.Clone()
	case map[string]any:
		return Document(t).Clone()
	default:
		return v
	}
}
