package grading_test

import (
	"context"
	"math"
	"testing"

	"github.com/mind-engage/mindengage-ilq/internal/grading"
)

func TestDefaultGrader(t *testing.T) {
	g := grading.NewDefaultGrader()
	cases := []struct {
		name     string
		q        grading.Q
		resp     any
		fraction float64
		manual   bool
	}{
		{"single right", grading.Q{Type: "mcq_single", AnswerKey: []string{"b"}}, "b", 1, false},
		{"single wrong", grading.Q{Type: "mcq_single", AnswerKey: []string{"b"}}, "a", 0, false},
		{"true false", grading.Q{Type: "true_false", AnswerKey: []string{"true"}}, "true", 1, false},
		{"multi exact", grading.Q{Type: "mcq_multi", AnswerKey: []string{"a", "c"}}, []string{"c", "a"}, 1, false},
		{"multi partial", grading.Q{Type: "mcq_multi", AnswerKey: []string{"a", "c"}}, []string{"a"}, 0.5, false},
		{"multi false positive", grading.Q{Type: "mcq_multi", AnswerKey: []string{"a", "c"}}, []string{"a", "b"}, 0, false},
		{"short exact", grading.Q{Type: "short_word", AnswerKey: []string{"Paris"}}, "  paris. ", 1, false},
		{"short fuzzy", grading.Q{Type: "short_word", AnswerKey: []string{"Paris"}}, "pariss", 0.5, false},
		{"short empty", grading.Q{Type: "short_word", AnswerKey: []string{"Paris"}}, "", 0, false},
		{"numeric exact", grading.Q{Type: "numeric", AnswerKey: []string{"42"}}, "42", 1, false},
		{"numeric unit", grading.Q{Type: "numeric", AnswerKey: []string{"42"}}, "42.0 m", 1, false},
		{"numeric abs tol", grading.Q{Type: "numeric", AnswerKey: []string{"3.14159", "tol=0.01"}}, "3.14", 1, false},
		{"numeric rel tol", grading.Q{Type: "numeric", AnswerKey: []string{"100", "reltol=0.05"}}, "104", 1, false},
		{"numeric outside", grading.Q{Type: "numeric", AnswerKey: []string{"100", "reltol=0.05"}}, "106", 0, false},
		{"essay", grading.Q{Type: "essay"}, "anything", 0, true},
		{"unknown type", grading.Q{Type: "drawing"}, "x", 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := g.Grade(context.Background(), tc.q, tc.resp)
			if err != nil {
				t.Fatalf("grade: %v", err)
			}
			if math.Abs(res.Fraction-tc.fraction) > 1e-9 {
				t.Errorf("fraction = %v, want %v", res.Fraction, tc.fraction)
			}
			if res.NeedsManual != tc.manual {
				t.Errorf("needs manual = %v, want %v", res.NeedsManual, tc.manual)
			}
		})
	}
}

func TestGraderRejectsWrongResponseShape(t *testing.T) {
	g := grading.NewDefaultGrader()
	if _, err := g.Grade(context.Background(), grading.Q{Type: "mcq_single"}, []string{"a"}); err == nil {
		t.Fatal("expected error for slice response to single choice")
	}
	if _, err := g.Grade(context.Background(), grading.Q{Type: "mcq_multi"}, 7); err == nil {
		t.Fatal("expected error for int response to multi choice")
	}
}

func TestGraderOptions(t *testing.T) {
	g := grading.NewDefaultGrader(grading.WithPartialMulti(false), grading.WithMaxEditDistance(0))
	res, _ := g.Grade(context.Background(), grading.Q{Type: "mcq_multi", AnswerKey: []string{"a", "c"}}, []string{"a"})
	if res.Fraction != 0 {
		t.Errorf("partial disabled: fraction = %v", res.Fraction)
	}
	res, _ = g.Grade(context.Background(), grading.Q{Type: "short_word", AnswerKey: []string{"Paris"}}, "pariss")
	if res.Fraction != 0 {
		t.Errorf("fuzzy disabled: fraction = %v", res.Fraction)
	}
}
