package httpapi

import "github.com/casdoc/casdoc/internal/store"

// ETag renders a CAS token in the quoted form HTTP expects.
func ETag(cas store.CAS) string { return `"` + string(cas) + `"` }

// TrimETag strips the surrounding quotes of an If-Match value; a bare token
// passes through unchanged. Shared by every handler that parses conditional
// headers so the quoting rules cannot drift.
func TrimETag(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
