package tag

import "strings"

const marker = "{ilq:"

// Match is one tag occurrence; Raw is text[Start:End] including braces.
type Match struct {
	Start int
	End   int
	Raw   string
}

// Contains reports whether text holds the tag marker, ignoring ASCII case.
func Contains(text string) bool {
	return indexMarker(text, 0) >= 0
}

// Scan returns tag occurrences left to right. A tag is closed by the first
// '}' after its marker, so values can never contain '}'. A marker without
// a closing brace is not a tag.
func Scan(text string) []Match {
	var out []Match
	pos := 0
	for {
		start := indexMarker(text, pos)
		if start < 0 {
			return out
		}
		rel := strings.IndexByte(text[start+len(marker):], '}')
		if rel < 0 {
			// nothing after this point can close a tag either
			return out
		}
		end := start + len(marker) + rel + 1
		out = append(out, Match{Start: start, End: end, Raw: text[start:end]})
		pos = end
	}
}

// ReplaceAll substitutes every tag with repl(raw). The first error aborts the
// whole replacement and is returned with an empty string.
func ReplaceAll(text string, repl func(raw string) (string, error)) (string, error) {
	matches := Scan(text)
	if len(matches) == 0 {
		return text, nil
	}
	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, m := range matches {
		s, err := repl(m.Raw)
		if err != nil {
			return "", err
		}
		b.WriteString(text[last:m.Start])
		b.WriteString(s)
		last = m.End
	}
	b.WriteString(text[last:])
	return b.String(), nil
}

func indexMarker(text string, from int) int {
	for i := from; i+len(marker) <= len(text); i++ {
		if text[i] != '{' {
			continue
		}
		if hasMarkerAt(text, i) {
			return i
		}
	}
	return -1
}

func hasMarkerAt(s string, i int) bool {
	if len(s)-i < len(marker) {
		return false
	}
	for j := 0; j < len(marker); j++ {
		if lowerASCII(s[i+j]) != marker[j] {
			return false
		}
	}
	return true
}

func lowerASCII(c byte) byte {
	if 'A' <= c && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}
