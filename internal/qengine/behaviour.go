package qengine

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mind-engage/mindengage-ilq/internal/engine"
	"github.com/mind-engage/mindengage-ilq/internal/grading"
)

const BehaviourAdaptiveNoPenalty = "adaptivenopenalty"

// action is what one postback asks of one slot.
type action struct {
	response map[string]string // nil when nothing was submitted for the slot
	submit   bool
	at       time.Time
}

type behaviour interface {
	// process returns the step to append, or nil when nothing changes.
	process(ctx context.Context, s *engine.Slot, a action) (*engine.Step, error)
}

var behaviours = map[string]func(grading.Grader) behaviour{
	BehaviourAdaptiveNoPenalty: func(g grading.Grader) behaviour { return adaptiveNoPenalty{grader: g} },
}

// adaptiveNoPenalty grades on every Check and lets the student try again
// until right. The best try counts.
type adaptiveNoPenalty struct{ grader grading.Grader }

func (b adaptiveNoPenalty) process(ctx context.Context, s *engine.Slot, a action) (*engine.Step, error) {
	last := s.Last()
	if finished(last.State) {
		return nil, nil
	}
	resp := a.response
	if resp == nil {
		if !a.submit {
			return nil, nil
		}
		resp = last.Response
	}
	step := &engine.Step{Seq: len(s.Steps), Response: resp, CreatedAt: a.at}

	if !a.submit {
		if sameResponse(resp, last.Response) {
			return nil, nil
		}
		step.State = engine.StateComplete
		if blank(resp) {
			step.State = engine.StateTodo
		}
		return step, nil
	}

	step.Submitted = true
	if blank(resp) {
		// checking an empty answer grades it wrong rather than failing
		zero := 0.0
		step.State, step.Fraction = engine.StateGradedWrong, &zero
		step.Feedback = []string{"Please enter an answer."}
		return step, nil
	}
	res, err := b.grader.Grade(ctx, grading.Q{Type: s.Question.Type, AnswerKey: s.Question.AnswerKey}, gradingInput(s.Question.Type, resp))
	if err != nil {
		return nil, fmt.Errorf("grade question %d: %w", s.Question.ID, err)
	}
	step.Feedback = res.Feedback
	if res.NeedsManual {
		step.State = engine.StateNeedsGrading
		return step, nil
	}
	f := res.Fraction
	step.Fraction = &f
	switch {
	case f >= 1:
		step.State = engine.StateGradedRight
	case f > 0:
		step.State = engine.StateGradedPartial
	default:
		step.State = engine.StateGradedWrong
	}
	return step, nil
}

// gradingInput shapes a stored response the way the grading strategy for
// qtype expects it.
func gradingInput(qtype string, resp map[string]string) any {
	if qtype == "mcq_multi" {
		return splitChoices(resp["choice"])
	}
	return resp["answer"]
}

// splitChoices reads the picked choice ids stored by joinChoices.
func splitChoices(s string) []string {
	if s == "" {
		return nil
	}
	var c []string
	if err := json.Unmarshal([]byte(s), &c); err != nil {
		return nil
	}
	return c
}

// joinChoices stores picked choice ids as a sorted JSON list, so ids may
// hold any character. No pick is stored as "".
func joinChoices(c []string) string {
	if len(c) == 0 {
		return ""
	}
	c = append([]string(nil), c...)
	sort.Strings(c)
	b, _ := json.Marshal(c)
	return string(b)
}

func blank(resp map[string]string) bool {
	for _, v := range resp {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func sameResponse(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if w, ok := b[k]; !ok || w != v {
			return false
		}
	}
	return true
}
