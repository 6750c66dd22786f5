// Package tag implements the {ILQ:...} mini-language.
//
// Format: {ILQ:<name>=<value>[,<value>...];...}. The language ignores
// whitespace and the case of the marker and of parameter names; a trailing
// semicolon is allowed.
//
//   - id: question id, or ids separated by commas (required)
//   - marks: 0 hidden, 2 max only, 3 mark and max (default)
//   - flags: 0 hidden, 1 visible (default)
//   - readonly: 0 interactive (default), 1 review only
package tag

import (
	"strings"
	"unicode"
)

// Parse turns one raw tag, as returned by Scan, into Options. Values are not
// interpreted here; see Options.IDs, Marks, Flags and ReadOnly.
func Parse(raw string) (*Options, error) {
	s := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, raw)

	if !hasMarkerAt(s, 0) {
		return nil, malformed(raw, "missing {ILQ: marker")
	}
	s = strings.TrimSuffix(s[len(marker):], "}")

	o := newOptions()
	for _, clause := range strings.Split(s, ";") {
		if clause == "" {
			continue
		}
		key, val, ok := strings.Cut(clause, "=")
		if !ok {
			return nil, malformed(raw, "clause %q has no '='", clause)
		}
		if key == "" {
			return nil, malformed(raw, "clause %q has no name", clause)
		}
		o.set(strings.ToLower(key), Value{items: strings.Split(val, ",")})
	}
	if _, ok := o.values["id"]; !ok {
		return nil, malformed(raw, "missing id")
	}
	return o, nil
}
