package qengine

import (
	"context"
	"fmt"
	"html/template"
	"strings"

	sprig "github.com/go-task/slim-sprig/v3"

	"github.com/mind-engage/mindengage-ilq/internal/engine"
)

const questionHTML = `<div class="que {{ .Type | replace "_" "" }} {{ .Behaviour }}{{ with .StateClass }} {{ . }}{{ end }}" id="question-{{ .UsageID }}-{{ .Slot }}">
<div class="info">
<h3 class="no">Question <span class="qno">{{ .Slot }}</span></h3>
<div class="state">{{ default "Not yet answered" .StateLabel }}</div>
{{- with .MarksText }}
<div class="grade">{{ . }}</div>
{{- end }}
{{- if .ShowFlag }}
<div class="questionflag"><input type="hidden" name="{{ .Prefix }}:flagged" value="0"><label><input type="checkbox" name="{{ .Prefix }}:flagged" value="1"{{ if .Flagged }} checked{{ end }}{{ if .ReadOnly }} disabled{{ end }}> Flag question</label></div>
{{- end }}
</div>
<div class="content">
<input type="hidden" name="{{ .Prefix }}:sequencecheck" value="{{ .SeqCheck }}">
<div class="qtext">{{ .Prompt }}</div>
<div class="answer">
{{- if eq .Type "mcq_single" "true_false" }}
{{- range .Choices }}
<div class="r"><label><input type="radio" name="{{ $.Prefix }}answer" value="{{ .ID }}"{{ if eq .ID $.Answer }} checked{{ end }}{{ if $.ReadOnly }} disabled{{ end }}> {{ .Label }}</label></div>
{{- end }}
{{- else if eq .Type "mcq_multi" }}
<input type="hidden" name="{{ .Prefix }}:answered" value="1">
{{- range .Choices }}
<div class="r"><label><input type="checkbox" name="{{ $.Prefix }}choice" value="{{ .ID }}"{{ if has .ID $.Picked }} checked{{ end }}{{ if $.ReadOnly }} disabled{{ end }}> {{ .Label }}</label></div>
{{- end }}
{{- else if eq .Type "essay" }}
<textarea name="{{ .Prefix }}answer" rows="8" cols="60"{{ if .ReadOnly }} readonly{{ end }}>{{ .Answer }}</textarea>
{{- else }}
<input type="text" name="{{ .Prefix }}answer" value="{{ .Answer }}" size="30"{{ if .ReadOnly }} readonly{{ end }}>
{{- end }}
</div>
{{- if not .ReadOnly }}
<input type="submit" name="{{ .Prefix }}-submit" value="Check" class="submit btn">
{{- end }}
{{- if not (empty .Feedback) }}
<div class="outcome">
{{- range .Feedback }}
<p>{{ . }}</p>
{{- end }}
</div>
{{- end }}
</div>
</div>`

var questionTemplate = template.Must(template.New("question").Funcs(sprig.FuncMap()).Parse(questionHTML))

type choiceView struct {
	ID    string
	Label template.HTML
}

type questionView struct {
	UsageID    int64
	Slot       int
	Prefix     string
	Type       string
	Behaviour  string
	StateClass string
	StateLabel string
	MarksText  string
	ShowFlag   bool
	Flagged    bool
	ReadOnly   bool
	SeqCheck   int
	Prompt     template.HTML
	Choices    []choiceView
	Answer     string
	Picked     []string
	Feedback   []string
}

// RenderBody draws one slot as an HTML fragment. Question text and choice
// labels come from the bank and are trusted markup.
func (s *Usages) RenderBody(_ context.Context, u *engine.Usage, slot int, opts engine.DisplayOptions) (string, error) {
	sl, err := u.Slot(slot)
	if err != nil {
		return "", fmt.Errorf("usage %d: %w", u.ID, err)
	}
	q := sl.Question
	last := sl.Last()
	v := questionView{
		UsageID:   u.ID,
		Slot:      sl.Number,
		Prefix:    FieldPrefix(u.ID, sl.Number),
		Type:      q.Type,
		Behaviour: u.Behaviour,
		ShowFlag:  opts.Flags == engine.Visible,
		Flagged:   sl.Flagged,
		ReadOnly:  opts.ReadOnly || finished(last.State),
		SeqCheck:  len(sl.Steps),
		Prompt:    template.HTML(q.PromptHTML),
		Answer:    last.Response["answer"],
		Picked:    splitChoices(last.Response["choice"]),
		MarksText: marksText(sl, opts.Marks, opts.Correctness == engine.Visible),
	}
	v.StateClass, v.StateLabel = stateText(last.State, opts.Correctness == engine.Visible)
	for _, c := range q.Choices {
		v.Choices = append(v.Choices, choiceView{ID: c.ID, Label: template.HTML(c.LabelHTML)})
	}
	if opts.Feedback == engine.Visible {
		v.Feedback = last.Feedback
	}

	var b strings.Builder
	if err := s.tmpl.Execute(&b, v); err != nil {
		return "", fmt.Errorf("render question %d: %w", q.ID, err)
	}
	return b.String(), nil
}

// finished questions take no more tries.
func finished(st engine.State) bool {
	return st == engine.StateGradedRight || st == engine.StateNeedsGrading
}

func stateText(st engine.State, correctness bool) (class, label string) {
	if st.Graded() && !correctness {
		return "", "Complete"
	}
	switch st {
	case engine.StateComplete:
		return "answersaved", "Answer saved"
	case engine.StateGradedRight:
		return "correct", "Correct"
	case engine.StateGradedPartial:
		return "partiallycorrect", "Partially correct"
	case engine.StateGradedWrong:
		return "incorrect", "Incorrect"
	case engine.StateNeedsGrading:
		return "requiresgrading", "Requires grading"
	}
	return "notyetanswered", ""
}

func marksText(sl *engine.Slot, mode engine.MarksDisplay, correctness bool) string {
	switch mode {
	case engine.MarksHidden:
		return ""
	case engine.MarksMarkAndMax:
		if f, ok := sl.Fraction(); ok && correctness {
			return fmt.Sprintf("Mark %.2f out of %.2f", f*sl.MaxMark, sl.MaxMark)
		}
	}
	return fmt.Sprintf("Marked out of %.2f", sl.MaxMark)
}
