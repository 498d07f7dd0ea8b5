// File: internal/uri/uri.go
// Package uri builds query strings from flat key/value data.
package uri

import (
	"sort"
	"strings"

	json "github.com/json-iterator/go"
)

// Param is a single key/value pair appended to a URL.
type Param struct {
	Key   string
	Value any
}

// Params is an ordered set of query parameters.
type Params []Param

// FromMap converts a map into Params ordered by key.
func FromMap(m map[string]any) Params {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	params := make(Params, 0, len(keys))
	for _, k := range keys {
		params = append(params, Param{Key: k, Value: m[k]})
	}
	return params
}

// ObjectToURI appends every param to url as key=value, escaping both sides.
//
// The first separator is "?" only when url has no "?" and includeQuestionMark
// is set. With includeQuestionMark false and no "?" in url, the first pair is
// appended with no separator at all ("http://xa=1"). Later pairs use "&".
// Non-string values are JSON encoded before escaping.
func ObjectToURI(url string, data Params, includeQuestionMark bool) string {
	var b strings.Builder
	b.WriteString(url)
	hasQuery := strings.Contains(url, "?")

	for i, p := range data {
		switch {
		case hasQuery || i > 0:
			b.WriteByte('&')
		case includeQuestionMark:
			b.WriteByte('?')
		}
		b.WriteString(EncodeURIComponent(p.Key))
		b.WriteByte('=')
		b.WriteString(EncodeURIComponent(stringify(p.Value)))
	}
	return b.String()
}

// valueJSON matches the standard library encoding except that <, > and & are
// written literally. Percent-encoding escapes them afterwards.
var valueJSON = json.Config{
	EscapeHTML:             false,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
}.Froze()

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	out, err := valueJSON.MarshalToString(v)
	if err != nil {
		// Unencodable values (channels, funcs) serialize as undefined would.
		return "undefined"
	}
	return out
}

const upperhex = "0123456789ABCDEF"

// EncodeURIComponent percent-encodes s as UTF-8, leaving only
// A-Z a-z 0-9 - _ . ! ~ * ' ( ) untouched.
func EncodeURIComponent(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if unreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&0x0f])
	}
	return b.String()
}

func unreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '-', '_', '.', '!', '~', '*', '\'', '(', ')':
		return true
	}
	return false
}
