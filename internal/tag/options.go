package tag

import (
	"strconv"
	"strings"
)

type MarksMode int

const (
	MarksHidden     MarksMode = 0
	MarksMaxOnly    MarksMode = 2
	MarksMarkAndMax MarksMode = 3
)

type FlagsMode int

const (
	FlagsHidden  FlagsMode = 0
	FlagsVisible FlagsMode = 1
)

// Value is a clause value: a single string or an ordered list.
type Value struct {
	items []string
}

func (v Value) IsList() bool { return len(v.items) > 1 }

// String returns the single value, or the list joined by commas.
func (v Value) String() string { return strings.Join(v.items, ",") }

func (v Value) List() []string { return append([]string(nil), v.items...) }

// Options is the untyped result of parsing one tag. Keys are lower-cased and
// kept in first-insertion order; unknown keys are retained.
type Options struct {
	keys   []string
	values map[string]Value
}

func newOptions() *Options {
	return &Options{values: map[string]Value{}}
}

func (o *Options) set(key string, v Value) {
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = v
}

func (o *Options) Keys() []string { return append([]string(nil), o.keys...) }

func (o *Options) Get(key string) (Value, bool) {
	v, ok := o.values[strings.ToLower(key)]
	return v, ok
}

// IDs returns the question ids in tag order. Empty list elements (a trailing
// comma) are ignored. Elements that are not a positive integer come back in
// invalid, in tag order; they name no question and are skipped when rendering.
func (o *Options) IDs() (ids []int64, invalid []string) {
	v := o.values["id"]
	ids = make([]int64, 0, len(v.items))
	for _, s := range v.items {
		if s == "" {
			continue
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || n <= 0 {
			invalid = append(invalid, s)
			continue
		}
		ids = append(ids, n)
	}
	return ids, invalid
}

// Marks returns the marks mode; ok is false when the key is absent or its
// value is not one of the recognised codes.
func (o *Options) Marks() (MarksMode, bool) {
	n, ok := o.code("marks")
	if !ok {
		return 0, false
	}
	switch m := MarksMode(n); m {
	case MarksHidden, MarksMaxOnly, MarksMarkAndMax:
		return m, true
	}
	return 0, false
}

func (o *Options) Flags() (FlagsMode, bool) {
	n, ok := o.code("flags")
	if !ok {
		return 0, false
	}
	switch f := FlagsMode(n); f {
	case FlagsHidden, FlagsVisible:
		return f, true
	}
	return 0, false
}

func (o *Options) ReadOnly() (readonly bool, ok bool) {
	n, ok := o.code("readonly")
	if !ok {
		return false, false
	}
	switch n {
	case 0:
		return false, true
	case 1:
		return true, true
	}
	return false, false
}

func (o *Options) code(key string) (int, bool) {
	v, ok := o.values[key]
	if !ok || v.IsList() {
		return 0, false
	}
	n, err := strconv.Atoi(v.String())
	if err != nil {
		return 0, false
	}
	return n, true
}

// String serializes the options back into tag form.
func (o *Options) String() string {
	var b strings.Builder
	b.WriteString("{ILQ:")
	for i, k := range o.keys {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(o.values[k].String())
	}
	b.WriteByte('}')
	return b.String()
}
