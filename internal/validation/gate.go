// Package validation runs constraint checks on entities before any store
// I/O. Gates are pure functions of entity state: no I/O, no retained state.
package validation

import (
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
)

// Violation is one failed constraint. Ordering of violations is stable
// (sorted by field) for error reporting; it carries no semantic weight.
type Violation struct {
	Field      string `json:"field"`
	Constraint string `json:"constraint"`
	Message    string `json:"message"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

// Gate validates an entity. An empty result means valid.
type Gate interface {
	Validate(entity any) []Violation
}

// None accepts everything.
type None struct{}

func (None) Validate(any) []Violation { return nil }

// StructGate checks `validate` struct tags via go-playground/validator.
type StructGate struct {
	v *validator.Validate
}

func NewStructGate() *StructGate {
	return &StructGate{v: validator.New(validator.WithRequiredStructEnabled())}
}

func (s *StructGate) Validate(entity any) []Violation {
	err := s.v.Struct(entity)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		// non-constraint failure (e.g. not a struct): report as a single
		// violation rather than panicking at save time
		return []Violation{{Field: "", Constraint: "struct", Message: err.Error()}}
	}
	out := make([]Violation, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, Violation{
			Field:      fe.Namespace(),
			Constraint: fe.Tag(),
			Message:    fe.Error(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}

// Chain runs gates in order and concatenates their violations.
type Chain []Gate

func (c Chain) Validate(entity any) []Violation {
	var out []Violation
	for _, g := range c {
		out = append(out, g.Validate(entity)...)
	}
	return out
}

// Func adapts a plain function into a Gate.
type Func func(entity any) []Violation

func (f Func) Validate(entity any) []Violation { return f(entity) }
