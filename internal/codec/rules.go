package codec

import (
	"reflect"
	"time"

	"github.com/cockroachdb/errors"
)

var timeType = reflect.TypeOf(time.Time{})

// TimeRule encodes time.Time as int64 epoch milliseconds and decodes it back
// to UTC. Millisecond precision is the explicit contract of the stored form;
// finer precision is not silently kept.
func TimeRule() Rule {
	return Rule{
		Type:      timeType,
		Direction: Both,
		Encode: func(v any) (any, error) {
			t, ok := v.(time.Time)
			if !ok {
				return nil, errors.Wrapf(ErrUnsupportedType, "time rule got %T", v)
			}
			if t.IsZero() {
				return int64(0), nil
			}
			return t.UnixMilli(), nil
		},
		Decode: func(stored any) (any, error) {
			ms, ok := storedInt(stored)
			if !ok {
				return nil, errors.Wrapf(ErrTypeMismatch, "want epoch millis, stored %T", stored)
			}
			if ms == 0 {
				return time.Time{}, nil
			}
			return time.UnixMilli(ms).UTC(), nil
		},
	}
}
