// Package codec converts typed entities to and from the generic Document
// representation. Conversion is driven by an ordered list of rules: the
// first rule matching a value's type in the requested direction wins, so
// more specific rules must be registered before generic ones. Primitive
// values pass through unchanged, nested structs, slices and maps are handled
// recursively, and nil-valued fields are omitted from the encoded document.
package codec

import (
	"reflect"

	"github.com/cockroachdb/errors"

	"github.com/casdoc/casdoc/internal/document"
)

var (
	// ErrUnsupportedType is returned by Encode when a value has no
	// applicable rule and is not a primitive, sequence, mapping or struct.
	ErrUnsupportedType = errors.New("codec: unsupported type")
	// ErrTypeMismatch is returned by Decode when the stored shape does not
	// match the target field's declared type.
	ErrTypeMismatch = errors.New("codec: type mismatch")
)

// Direction tags a rule as applicable on the read path, the write path, or
// both.
type Direction int

const (
	Read Direction = 1 << iota
	Write
	Both = Read | Write
)

// Rule is a directed converter for one concrete type. Encode turns an
// application value into a document value, Decode the reverse. Either may be
// nil when the corresponding direction is not declared.
type Rule struct {
	Type      reflect.Type
	Direction Direction
	Encode    func(v any) (any, error)
	Decode    func(stored any) (any, error)
}

// Codec applies conversion rules over a reflective walk of entity structs.
// A Codec is immutable after construction and safe for concurrent use.
type Codec struct {
	rules []Rule
}

// New builds a Codec from the given rules, evaluated in argument order.
// Built-in rules (time.Time as epoch milliseconds) are appended after the
// caller's so they can be overridden.
func New(rules ...Rule) *Codec {
	all := make([]Rule, 0, len(rules)+1)
	all = append(all, rules...)
	all = append(all, TimeRule())
	return &Codec{rules: all}
}

func (c *Codec) rule(t reflect.Type, dir Direction) *Rule {
	for i := range c.rules {
		r := &c.rules[i]
		if r.Type == t && r.Direction&dir != 0 {
			return r
		}
	}
	return nil
}

// Encode converts a struct (or pointer to struct) into a Document.
func (c *Codec) Encode(entity any) (document.Document, error) {
	v := reflect.ValueOf(entity)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, errors.Wrap(ErrUnsupportedType, "nil entity")
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, errors.Wrapf(ErrUnsupportedType, "entity kind %s", v.Kind())
	}
	return c.encodeStruct(v)
}

func (c *Codec) encodeStruct(v reflect.Value) (document.Document, error) {
	doc := document.Document{}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		name, ok := FieldName(sf)
		if !ok {
			continue
		}
		enc, omit, err := c.encodeValue(v.Field(i))
		if err != nil {
			return nil, errors.Wrapf(err, "field %q", name)
		}
		if omit {
			continue
		}
		doc[name] = enc
	}
	return doc, nil
}

// encodeValue returns the document value for v, or omit=true when the field
// must be left out of the document (nil pointers, nil slices, nil maps).
func (c *Codec) encodeValue(v reflect.Value) (enc any, omit bool, err error) {
	if r := c.rule(v.Type(), Write); r != nil && r.Encode != nil {
		out, err := r.Encode(v.Interface())
		if err != nil {
			return nil, false, err
		}
		return out, false, nil
	}

	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return nil, true, nil
		}
		return c.encodeValue(v.Elem())
	case reflect.Bool:
		return v.Bool(), false, nil
	case reflect.String:
		return v.String(), false, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), false, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(v.Uint()), false, nil
	case reflect.Float32, reflect.Float64:
		return v.Float(), false, nil
	case reflect.Struct:
		nested, err := c.encodeStruct(v)
		if err != nil {
			return nil, false, err
		}
		return nested, false, nil
	case reflect.Slice:
		if v.IsNil() {
			return nil, true, nil
		}
		fallthrough
	case reflect.Array:
		out := make([]any, v.Len())
		for i := 0; i < v.Len(); i++ {
			e, omitted, err := c.encodeValue(v.Index(i))
			if err != nil {
				return nil, false, errors.Wrapf(err, "index %d", i)
			}
			if omitted {
				e = nil
			}
			out[i] = e
		}
		return out, false, nil
	case reflect.Map:
		if v.IsNil() {
			return nil, true, nil
		}
		if v.Type().Key().Kind() != reflect.String {
			return nil, false, errors.Wrapf(ErrUnsupportedType, "map key kind %s", v.Type().Key().Kind())
		}
		out := document.Document{}
		iter := v.MapRange()
		for iter.Next() {
			e, omitted, err := c.encodeValue(iter.Value())
			if err != nil {
				return nil, false, errors.Wrapf(err, "key %q", iter.Key().String())
			}
			if omitted {
				continue
			}
			out[iter.Key().String()] = e
		}
		return out, false, nil
	default:
		return nil, false, errors.Wrapf(ErrUnsupportedType, "kind %s", v.Kind())
	}
}

// Decode populates target (a pointer to struct) from the document. Fields
// absent from the document keep their zero value.
func (c *Codec) Decode(doc document.Document, target any) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return errors.Wrap(ErrTypeMismatch, "target must be a non-nil pointer")
	}
	v = v.Elem()
	if v.Kind() != reflect.Struct {
		return errors.Wrapf(ErrTypeMismatch, "target kind %s", v.Kind())
	}
	return c.decodeStruct(doc, v)
}

func (c *Codec) decodeStruct(doc document.Document, v reflect.Value) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		name, ok := FieldName(sf)
		if !ok {
			continue
		}
		stored, present := doc[name]
		if !present || stored == nil {
			continue
		}
		if err := c.decodeValue(stored, v.Field(i)); err != nil {
			return errors.Wrapf(err, "field %q", name)
		}
	}
	return nil
}

func (c *Codec) decodeValue(stored any, target reflect.Value) error {
	if r := c.rule(target.Type(), Read); r != nil && r.Decode != nil {
		out, err := r.Decode(stored)
		if err != nil {
			return err
		}
		ov := reflect.ValueOf(out)
		if !ov.Type().AssignableTo(target.Type()) {
			return errors.Wrapf(ErrTypeMismatch, "rule for %s produced %T", target.Type(), out)
		}
		target.Set(ov)
		return nil
	}

	switch target.Kind() {
	case reflect.Pointer:
		p := reflect.New(target.Type().Elem())
		if err := c.decodeValue(stored, p.Elem()); err != nil {
			return err
		}
		target.Set(p)
		return nil
	case reflect.Interface:
		sv := reflect.ValueOf(stored)
		if !sv.Type().AssignableTo(target.Type()) {
			return errors.Wrapf(ErrTypeMismatch, "stored %T is not assignable to %s", stored, target.Type())
		}
		target.Set(sv)
		return nil
	case reflect.Bool:
		b, ok := stored.(bool)
		if !ok {
			return errors.Wrapf(ErrTypeMismatch, "want bool, stored %T", stored)
		}
		target.SetBool(b)
		return nil
	case reflect.String:
		s, ok := stored.(string)
		if !ok {
			return errors.Wrapf(ErrTypeMismatch, "want string, stored %T", stored)
		}
		target.SetString(s)
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, ok := storedInt(stored)
		if !ok {
			return errors.Wrapf(ErrTypeMismatch, "want integer, stored %T", stored)
		}
		if target.OverflowInt(n) {
			return errors.Wrapf(ErrTypeMismatch, "%d overflows %s", n, target.Type())
		}
		target.SetInt(n)
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, ok := storedInt(stored)
		if !ok || n < 0 {
			return errors.Wrapf(ErrTypeMismatch, "want unsigned integer, stored %T", stored)
		}
		if target.OverflowUint(uint64(n)) {
			return errors.Wrapf(ErrTypeMismatch, "%d overflows %s", n, target.Type())
		}
		target.SetUint(uint64(n))
		return nil
	case reflect.Float32, reflect.Float64:
		f, ok := storedFloat(stored)
		if !ok {
			return errors.Wrapf(ErrTypeMismatch, "want number, stored %T", stored)
		}
		target.SetFloat(f)
		return nil
	case reflect.Struct:
		m, ok := storedMapping(stored)
		if !ok {
			return errors.Wrapf(ErrTypeMismatch, "want mapping, stored %T", stored)
		}
		return c.decodeStruct(m, target)
	case reflect.Array:
		seq, ok := stored.([]any)
		if !ok {
			return errors.Wrapf(ErrTypeMismatch, "want sequence, stored %T", stored)
		}
		if len(seq) != target.Len() {
			return errors.Wrapf(ErrTypeMismatch, "sequence length %d does not fit %s", len(seq), target.Type())
		}
		for i, e := range seq {
			if e == nil {
				continue
			}
			if err := c.decodeValue(e, target.Index(i)); err != nil {
				return errors.Wrapf(err, "index %d", i)
			}
		}
		return nil
	case reflect.Slice:
		seq, ok := stored.([]any)
		if !ok {
			return errors.Wrapf(ErrTypeMismatch, "want sequence, stored %T", stored)
		}
		out := reflect.MakeSlice(target.Type(), len(seq), len(seq))
		for i, e := range seq {
			if e == nil {
				continue
			}
			if err := c.decodeValue(e, out.Index(i)); err != nil {
				return errors.Wrapf(err, "index %d", i)
			}
		}
		target.Set(out)
		return nil
	case reflect.Map:
		if target.Type().Key().Kind() != reflect.String {
			return errors.Wrapf(ErrTypeMismatch, "map key kind %s", target.Type().Key().Kind())
		}
		m, ok := storedMapping(stored)
		if !ok {
			return errors.Wrapf(ErrTypeMismatch, "want mapping, stored %T", stored)
		}
		out := reflect.MakeMapWithSize(target.Type(), len(m))
		for k, e := range m {
			ev := reflect.New(target.Type().Elem()).Elem()
			if e != nil {
				if err := c.decodeValue(e, ev); err != nil {
					return errors.Wrapf(err, "key %q", k)
				}
			}
			out.SetMapIndex(reflect.ValueOf(k), ev)
		}
		target.Set(out)
		return nil
	default:
		return errors.Wrapf(ErrTypeMismatch, "target kind %s", target.Kind())
	}
}

func storedInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		// JSON round-trips integers as float64; accept exact values only.
		if n == float64(int64(n)) {
			return int64(n), true
		}
		return 0, false
	default:
		return 0, false
	}
}

func storedFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func storedMapping(v any) (document.Document, bool) {
	switch m := v.(type) {
	case document.Document:
		return m, true
	case map[string]any:
		return m, true
	default:
		return nil, false
	}
}
