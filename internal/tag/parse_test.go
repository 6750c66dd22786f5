package tag_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/mind-engage/mindengage-ilq/internal/tag"
)

type typed struct {
	ids      []int64
	marks    tag.MarksMode
	marksOK  bool
	flags    tag.FlagsMode
	flagsOK  bool
	readonly bool
	roOK     bool
}

func typedOf(t *testing.T, o *tag.Options) typed {
	t.Helper()
	ids, invalid := o.IDs()
	if len(invalid) != 0 {
		t.Fatalf("IDs: invalid %q", invalid)
	}
	var got typed
	got.ids = ids
	got.marks, got.marksOK = o.Marks()
	got.flags, got.flagsOK = o.Flags()
	got.readonly, got.roOK = o.ReadOnly()
	return got
}

func TestParse(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want typed
	}{
		{"single id", "{ILQ:id=5}", typed{ids: []int64{5}}},
		{"all options", "{ILQ:id=5,6,7;marks=0;flags=0;readonly=1}", typed{
			ids: []int64{5, 6, 7}, marks: tag.MarksHidden, marksOK: true,
			flags: tag.FlagsHidden, flagsOK: true, readonly: true, roOK: true,
		}},
		{"mixed case", "{ilq:ID=9}", typed{ids: []int64{9}}},
		{"upper case", "{ILQ:ID=9}", typed{ids: []int64{9}}},
		{"whitespace", "{ILQ: id = 3 , 4 ;\n marks = 2 ;}", typed{
			ids: []int64{3, 4}, marks: tag.MarksMaxOnly, marksOK: true,
		}},
		{"trailing separators", "{ILQ:id=1;;}", typed{ids: []int64{1}}},
		{"mark and max", "{ILQ:id=1;marks=3;flags=1;readonly=0}", typed{
			ids: []int64{1}, marks: tag.MarksMarkAndMax, marksOK: true,
			flags: tag.FlagsVisible, flagsOK: true, roOK: true,
		}},
		{"unrecognised values", "{ILQ:id=1;marks=1;flags=7;readonly=yes}", typed{ids: []int64{1}}},
		{"list for a scalar key", "{ILQ:id=1;marks=0,2}", typed{ids: []int64{1}}},
		{"unknown key kept", "{ILQ:id=8;colour=red}", typed{ids: []int64{8}}},
		{"trailing comma in ids", "{ILQ:id=4,}", typed{ids: []int64{4}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o, err := tag.Parse(tc.raw)
			if err != nil {
				t.Fatalf("Parse(%q): %v", tc.raw, err)
			}
			if got := typedOf(t, o); !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("Parse(%q) = %+v, want %+v", tc.raw, got, tc.want)
			}
		})
	}
}

func TestParseDefaultsAreUnset(t *testing.T) {
	o, err := tag.Parse("{ILQ:id=5}")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := o.Marks(); ok {
		t.Fatal("marks should be unset")
	}
	if _, ok := o.Flags(); ok {
		t.Fatal("flags should be unset")
	}
	if _, ok := o.ReadOnly(); ok {
		t.Fatal("readonly should be unset")
	}
}

func TestParseKeepsUnknownKeys(t *testing.T) {
	o, err := tag.Parse("{ILQ:id=8;Colour=red,blue}")
	if err != nil {
		t.Fatal(err)
	}
	v, ok := o.Get("colour")
	if !ok || !v.IsList() || !reflect.DeepEqual(v.List(), []string{"red", "blue"}) {
		t.Fatalf("colour = %+v (ok=%v)", v, ok)
	}
	if got, want := o.Keys(), []string{"id", "colour"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Keys = %v, want %v", got, want)
	}
}

func TestParseMalformed(t *testing.T) {
	for _, raw := range []string{
		"{ILQ:foo}",
		"{ILQ:id=5;foo}",
		"{ILQ:marks=2}",
		"{ILQ:}",
		"{ILQ:=5}",
		"id=5",
		"{ilq: Marks = 0 ;\n}",
	} {
		t.Run(raw, func(t *testing.T) {
			_, err := tag.Parse(raw)
			if !errors.Is(err, tag.ErrMalformedTag) {
				t.Fatalf("Parse(%q) err = %v, want malformed", raw, err)
			}
			var me *tag.MalformedTagError
			if !errors.As(err, &me) || me.Tag != raw {
				t.Fatalf("Parse(%q) err = %#v", raw, err)
			}
		})
	}
}

func TestIDsInvalidElements(t *testing.T) {
	cases := []struct {
		raw     string
		ids     []int64
		invalid []string
	}{
		{"{ILQ:id=}", []int64{}, nil},
		{"{ILQ:id=abc}", []int64{}, []string{"abc"}},
		{"{ILQ:id=5,abc}", []int64{5}, []string{"abc"}},
		{"{ILQ:id=-1,3,0}", []int64{3}, []string{"-1", "0"}},
		{"{ILQ:id=5,0,6}", []int64{5, 6}, []string{"0"}},
	}
	for _, tc := range cases {
		o, err := tag.Parse(tc.raw)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tc.raw, err)
		}
		ids, invalid := o.IDs()
		if !reflect.DeepEqual(ids, tc.ids) || !reflect.DeepEqual(invalid, tc.invalid) {
			t.Fatalf("IDs(%q) = %v, %q; want %v, %q", tc.raw, ids, invalid, tc.ids, tc.invalid)
		}
	}
}

func TestParseRoundTrip(t *testing.T) {
	for _, raw := range []string{
		"{ILQ:id=5}",
		"{ILQ:id=5,6,7;marks=0;flags=0;readonly=1}",
		"{ilq: ID = 9 ; extra = a , b ;}",
		"{ILQ:id=1;id=2,3}",
	} {
		first, err := tag.Parse(raw)
		if err != nil {
			t.Fatalf("Parse(%q): %v", raw, err)
		}
		second, err := tag.Parse(first.String())
		if err != nil {
			t.Fatalf("Parse(%q): %v", first.String(), err)
		}
		if !reflect.DeepEqual(first, second) {
			t.Fatalf("round trip of %q: %+v != %+v", raw, first, second)
		}
		if first.String() != second.String() {
			t.Fatalf("String not stable: %q vs %q", first.String(), second.String())
		}
	}
}

func TestParseDuplicateKeyLaterWins(t *testing.T) {
	o, err := tag.Parse("{ILQ:id=1;marks=0;id=2,3}")
	if err != nil {
		t.Fatal(err)
	}
	ids, _ := o.IDs()
	if !reflect.DeepEqual(ids, []int64{2, 3}) {
		t.Fatalf("ids = %v", ids)
	}
	if got := o.String(); got != "{ILQ:id=2,3;marks=0}" {
		t.Fatalf("String = %q", got)
	}
}
