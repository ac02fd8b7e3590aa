package codec

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/casdoc/casdoc/internal/document"
)

type address struct {
	Street string `doc:"street"`
	City   string `doc:"city"`
}

type profile struct {
	ID        string         `doc:"id"`
	Age       int            `doc:"age"`
	Score     float64        `doc:"score"`
	Active    bool           `doc:"active"`
	Nickname  *string        `doc:"nickname"`
	Tags      []string       `doc:"tags"`
	Counts    map[string]int `doc:"counts"`
	Home      address        `doc:"home"`
	Visits    []address      `doc:"visits"`
	CreatedAt time.Time      `doc:"createdAt"`
	secret    string         // unexported, never encoded
	Skipped   string         `doc:"-"`
}

func TestRoundTrip(t *testing.T) {
	c := New()
	nick := "kat"
	in := profile{
		ID:        "p1",
		Age:       34,
		Score:     88.5,
		Active:    true,
		Nickname:  &nick,
		Tags:      []string{"a", "b"},
		Counts:    map[string]int{"x": 1, "y": 2},
		Home:      address{Street: "Main 1", City: "Graz"},
		Visits:    []address{{Street: "Side 2", City: "Linz"}},
		CreatedAt: time.UnixMilli(1700000000000).UTC(),
	}

	doc, err := c.Encode(in)
	require.NoError(t, err)
	require.NoError(t, doc.Validate())

	var out profile
	require.NoError(t, c.Decode(doc, &out))

	// secret and Skipped never travel, everything else must round-trip
	in.secret = ""
	in.Skipped = ""
	require.Equal(t, in, out)
}

func TestNilFieldsAreOmitted(t *testing.T) {
	c := New()
	doc, err := c.Encode(profile{ID: "p2"})
	require.NoError(t, err)

	_, hasNick := doc["nickname"]
	require.False(t, hasNick)
	_, hasTags := doc["tags"]
	require.False(t, hasTags)
	_, hasCounts := doc["counts"]
	require.False(t, hasCounts)
}

func TestAbsentFieldsDecodeToZero(t *testing.T) {
	c := New()
	var out profile
	require.NoError(t, c.Decode(document.Document{"id": "p3"}, &out))
	require.Equal(t, "p3", out.ID)
	require.Nil(t, out.Nickname)
	require.Nil(t, out.Tags)
	require.Zero(t, out.Age)
	require.True(t, out.CreatedAt.IsZero())
}

type loudString string

func TestRuleOrderFirstMatchWins(t *testing.T) {
	upper := Rule{
		Type:      reflect.TypeOf(loudString("")),
		Direction: Write,
		Encode: func(v any) (any, error) {
			return strings.ToUpper(string(v.(loudString))), nil
		},
	}
	lower := Rule{
		Type:      reflect.TypeOf(loudString("")),
		Direction: Write,
		Encode: func(v any) (any, error) {
			return strings.ToLower(string(v.(loudString))), nil
		},
	}

	type msg struct {
		Text loudString `doc:"text"`
	}

	doc, err := New(upper, lower).Encode(msg{Text: "Hello"})
	require.NoError(t, err)
	require.Equal(t, "HELLO", doc["text"])

	doc, err = New(lower, upper).Encode(msg{Text: "Hello"})
	require.NoError(t, err)
	require.Equal(t, "hello", doc["text"])
}

func TestRuleDirectionIsRespected(t *testing.T) {
	readOnly := Rule{
		Type:      reflect.TypeOf(loudString("")),
		Direction: Read,
		Decode: func(stored any) (any, error) {
			return loudString(stored.(string) + "!"), nil
		},
	}
	type msg struct {
		Text loudString `doc:"text"`
	}
	c := New(readOnly)

	// write path has no rule; the string kind passes through
	doc, err := c.Encode(msg{Text: "hi"})
	require.NoError(t, err)
	require.Equal(t, "hi", doc["text"])

	var out msg
	require.NoError(t, c.Decode(document.Document{"text": "hi"}, &out))
	require.Equal(t, loudString("hi!"), out.Text)
}

func TestTimeEncodesAsEpochMillis(t *testing.T) {
	c := New()
	type stamped struct {
		At time.Time `doc:"at"`
	}
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	doc, err := c.Encode(stamped{At: at})
	require.NoError(t, err)
	require.Equal(t, at.UnixMilli(), doc["at"])

	var out stamped
	require.NoError(t, c.Decode(doc, &out))
	require.True(t, at.Equal(out.At))
}

func TestArrayFieldRoundTrips(t *testing.T) {
	c := New()
	type fixed struct {
		Pair  [2]int     `doc:"pair"`
		Homes [1]address `doc:"homes"`
	}
	in := fixed{Pair: [2]int{1, 2}, Homes: [1]address{{Street: "Main 1", City: "Graz"}}}

	doc, err := c.Encode(in)
	require.NoError(t, err)
	require.NoError(t, doc.Validate())

	var out fixed
	require.NoError(t, c.Decode(doc, &out))
	require.Equal(t, in, out)

	// a stored sequence of the wrong length cannot fill a fixed array
	err = c.Decode(document.Document{"pair": []any{int64(1)}}, &out)
	require.ErrorIs(t, err, ErrTypeMismatch)
}

func TestInterfaceFieldRoundTrips(t *testing.T) {
	c := New()
	type free struct {
		Extra any `doc:"extra"`
	}

	doc, err := c.Encode(free{Extra: "hello"})
	require.NoError(t, err)

	var out free
	require.NoError(t, c.Decode(doc, &out))
	require.Equal(t, "hello", out.Extra)

	// document values all fit an any field, including nested shapes
	var out2 free
	require.NoError(t, c.Decode(document.Document{"extra": []any{"a", int64(1)}}, &out2))
	require.Equal(t, []any{"a", int64(1)}, out2.Extra)

	// a nil value decodes to a zero (nil) field, same as any other kind
	var out3 free
	require.NoError(t, c.Decode(document.Document{"extra": nil}, &out3))
	require.Nil(t, out3.Extra)
}

func TestUnsupportedTypeFailsEncode(t *testing.T) {
	c := New()
	type bad struct {
		Ch chan int `doc:"ch"`
	}
	_, err := c.Encode(bad{Ch: make(chan int)})
	require.ErrorIs(t, err, ErrUnsupportedType)
}

func TestShapeMismatchFailsDecode(t *testing.T) {
	c := New()
	type target struct {
		Age int `doc:"age"`
	}
	var out target
	err := c.Decode(document.Document{"age": "not a number"}, &out)
	require.ErrorIs(t, err, ErrTypeMismatch)

	type nested struct {
		Home address `doc:"home"`
	}
	var out2 nested
	err = c.Decode(document.Document{"home": "flat"}, &out2)
	require.ErrorIs(t, err, ErrTypeMismatch)
}

func TestJSONNumbersDecodeIntoInts(t *testing.T) {
	// JSON unmarshalling yields float64; exact integral values must decode
	c := New()
	type target struct {
		Age int `doc:"age"`
	}
	var out target
	require.NoError(t, c.Decode(document.Document{"age": float64(41)}, &out))
	require.Equal(t, 41, out.Age)

	err := c.Decode(document.Document{"age": 41.5}, &out)
	require.ErrorIs(t, err, ErrTypeMismatch)
}

func TestFieldNameFallsBackToLoweredName(t *testing.T) {
	c := New()
	type untagged struct {
		FirstName string
	}
	doc, err := c.Encode(untagged{FirstName: "Foo"})
	require.NoError(t, err)
	require.Equal(t, "firstName", mustOnlyKey(t, doc))
}

func mustOnlyKey(t *testing.T, d document.Document) string {
	t.Helper()
	require.Len(t, d, 1)
	for k := range d {
		return k
	}
	return ""
}
