package filter

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/mind-engage/mindengage-ilq/internal/engine"
	"github.com/mind-engage/mindengage-ilq/internal/tag"
)

type hiddenField struct {
	name  string
	value string
	id    string
}

// questionForm wraps a rendered question body in the response form the
// attempt service expects on postback.
func questionForm(fields []hiddenField, body string) (string, error) {
	form := &html.Node{
		Type:     html.ElementNode,
		Data:     "form",
		DataAtom: atom.Form,
		Attr: []html.Attribute{
			{Key: "method", Val: "post"},
			{Key: "action", Val: ""},
			{Key: "enctype", Val: "multipart/form-data"},
			{Key: "id", Val: "responseform"},
		},
	}
	for _, f := range fields {
		attr := []html.Attribute{
			{Key: "type", Val: "hidden"},
			{Key: "name", Val: f.name},
			{Key: "value", Val: f.value},
		}
		if f.id != "" {
			attr = append(attr, html.Attribute{Key: "id", Val: f.id})
		}
		form.AppendChild(&html.Node{Type: html.ElementNode, Data: "input", DataAtom: atom.Input, Attr: attr})
	}
	form.AppendChild(&html.Node{Type: html.RawNode, Data: body})

	var b strings.Builder
	if err := html.Render(&b, form); err != nil {
		return "", fmt.Errorf("render form: %w", err)
	}
	return b.String(), nil
}

func displayOptions(o *tag.Options) engine.DisplayOptions {
	d := engine.DefaultDisplayOptions()
	if m, ok := o.Marks(); ok {
		switch m {
		case tag.MarksHidden:
			d.Marks = engine.MarksHidden
		case tag.MarksMaxOnly:
			d.Marks = engine.MarksMaxOnly
		case tag.MarksMarkAndMax:
			d.Marks = engine.MarksMarkAndMax
		}
	}
	if fl, ok := o.Flags(); ok {
		switch fl {
		case tag.FlagsHidden:
			d.Flags = engine.Hidden
		case tag.FlagsVisible:
			d.Flags = engine.Visible
		}
	}
	if ro, ok := o.ReadOnly(); ok {
		d.ReadOnly = ro
	}
	return d
}
