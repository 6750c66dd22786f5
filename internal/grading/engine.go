package grading

import (
	"context"
	"errors"
)

// Q is the view of a question needed for grading.
type Q struct {
	Type      string
	AnswerKey []string
}

// Result is the outcome of grading one response. Fraction is in [0,1].
type Result struct {
	Fraction    float64
	NeedsManual bool     // a teacher has to review it
	Feedback    []string // optional notes
}

// Strategy grades a single question type.
type Strategy interface {
	Grade(ctx context.Context, q Q, response any) (Result, error)
}

// Grader routes by question type to the correct Strategy.
type Grader interface {
	Grade(ctx context.Context, q Q, response any) (Result, error)
}

type defaultGrader struct {
	strategies map[string]Strategy
}

func (g *defaultGrader) Grade(ctx context.Context, q Q, response any) (Result, error) {
	s, ok := g.strategies[q.Type]
	if !ok {
		return Result{NeedsManual: true, Feedback: []string{"no strategy available"}}, nil
	}
	return s.Grade(ctx, q, response)
}

type Option func(*config)

type config struct {
	MaxEditDistance   int     // for short-word fuzzy
	FuzzyCredit       float64 // fraction awarded for a fuzzy short-word hit
	AllowPartialMulti bool    // partial credit for mcq_multi without false positives
}

func WithMaxEditDistance(n int) Option { return func(c *config) { c.MaxEditDistance = n } }
func WithFuzzyCredit(f float64) Option { return func(c *config) { c.FuzzyCredit = f } }
func WithPartialMulti(b bool) Option   { return func(c *config) { c.AllowPartialMulti = b } }

// NewDefaultGrader installs the built-in strategies.
func NewDefaultGrader(opts ...Option) Grader {
	cfg := &config{
		MaxEditDistance:   1,
		FuzzyCredit:       0.5,
		AllowPartialMulti: true,
	}
	for _, o := range opts {
		o(cfg)
	}
	return &defaultGrader{
		strategies: map[string]Strategy{
			"mcq_single": choiceStrategy{},
			"true_false": choiceStrategy{},
			"mcq_multi":  multiChoiceStrategy{allowPartial: cfg.AllowPartialMulti},
			"short_word": shortWordStrategy{maxEdit: cfg.MaxEditDistance, fuzzy: cfg.FuzzyCredit},
			"numeric":    numericStrategy{},
			"essay":      essayStrategy{},
		},
	}
}

type choiceStrategy struct{}

func (choiceStrategy) Grade(_ context.Context, q Q, response any) (Result, error) {
	resp, ok := response.(string)
	if !ok {
		return Result{}, errors.New("response must be string")
	}
	for _, k := range q.AnswerKey {
		if resp == k {
			return Result{Fraction: 1}, nil
		}
	}
	return Result{}, nil
}

type multiChoiceStrategy struct{ allowPartial bool }

func (s multiChoiceStrategy) Grade(_ context.Context, q Q, response any) (Result, error) {
	picked, ok := toStringSlice(response)
	if !ok {
		return Result{}, errors.New("response must be []string")
	}
	correct := toSet(q.AnswerKey)
	resp := toSet(picked)

	if setEqual(correct, resp) {
		return Result{Fraction: 1}, nil
	}
	hits := 0
	for r := range resp {
		if _, ok := correct[r]; !ok {
			// any wrong pick forfeits partial credit
			return Result{}, nil
		}
		hits++
	}
	if !s.allowPartial || len(correct) == 0 {
		return Result{}, nil
	}
	return Result{Fraction: float64(hits) / float64(len(correct))}, nil
}

type shortWordStrategy struct {
	maxEdit int
	fuzzy   float64
}

func (s shortWordStrategy) Grade(_ context.Context, q Q, response any) (Result, error) {
	resp, ok := response.(string)
	if !ok {
		return Result{}, errors.New("response must be string")
	}
	got := normalize(resp)
	if got == "" {
		return Result{}, nil
	}
	near := false
	for _, k := range q.AnswerKey {
		want := normalize(k)
		if want == got {
			return Result{Fraction: 1}, nil
		}
		if s.maxEdit > 0 && levenshtein(want, got) <= s.maxEdit {
			near = true
		}
	}
	if near {
		return Result{Fraction: s.fuzzy, Feedback: []string{"close match (fuzzy)"}}, nil
	}
	return Result{}, nil
}

type essayStrategy struct{}

func (essayStrategy) Grade(context.Context, Q, any) (Result, error) {
	return Result{NeedsManual: true, Feedback: []string{"manual grading required"}}, nil
}

func toStringSlice(v any) ([]string, bool) {
	switch t := v.(type) {
	case []string:
		return t, true
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out, true
	default:
		return nil, false
	}
}

func toSet(arr []string) map[string]struct{} {
	m := make(map[string]struct{}, len(arr))
	for _, s := range arr {
		m[s] = struct{}{}
	}
	return m
}

func setEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
