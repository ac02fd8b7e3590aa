package codec

import (
	"reflect"
	"strings"
	"unicode"
	"unicode/utf8"
)

// FieldName resolves the document field name for a struct field: the `doc`
// tag when present, otherwise the field name with its first rune lowered.
// Unexported fields and fields tagged `doc:"-"` report ok=false.
func FieldName(sf reflect.StructField) (name string, ok bool) {
	if !sf.IsExported() {
		return "", false
	}
	tag := sf.Tag.Get("doc")
	if tag == "-" {
		return "", false
	}
	if tag != "" {
		if i := strings.IndexByte(tag, ','); i >= 0 {
			tag = tag[:i]
		}
		if tag != "" {
			return tag, true
		}
	}
	r, size := utf8.DecodeRuneInString(sf.Name)
	return string(unicode.ToLower(r)) + sf.Name[size:], true
}
