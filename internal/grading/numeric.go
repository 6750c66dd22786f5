package grading

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
)

// numericStrategy matches the first answer key exactly or within a tolerance
// given by the remaining keys:
//
//	["3.14159", "tol=0.01"]  absolute
//	["100", "reltol=0.05"]   relative, 5%
type numericStrategy struct{}

func (numericStrategy) Grade(_ context.Context, q Q, response any) (Result, error) {
	str, ok := response.(string)
	if !ok {
		return Result{}, errors.New("response must be string")
	}
	if len(q.AnswerKey) == 0 {
		return Result{}, nil
	}
	target := q.AnswerKey[0]
	if strings.TrimSpace(str) == target {
		return Result{Fraction: 1}, nil
	}

	got, gotOK := parseFloatLoose(str)
	want, wantOK := parseFloatLoose(target)
	if !gotOK || !wantOK {
		return Result{}, nil
	}
	abs, rel := parseTolerances(q.AnswerKey[1:])
	diff := math.Abs(got - want)
	if diff == 0 || (abs >= 0 && diff <= abs) || (rel >= 0 && diff <= rel*math.Abs(want)) {
		return Result{Fraction: 1}, nil
	}
	return Result{}, nil
}

// parseFloatLoose accepts a number optionally followed by a unit.
func parseFloatLoose(s string) (float64, bool) {
	f := strings.Fields(s)
	if len(f) == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(f[0], 64)
	return v, err == nil
}

// parseTolerances returns -1 for a tolerance that is not given.
func parseTolerances(keys []string) (abs, rel float64) {
	abs, rel = -1, -1
	for _, k := range keys {
		name, val, ok := strings.Cut(strings.ToLower(strings.TrimSpace(k)), "=")
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(val, 64)
		if err != nil {
			continue
		}
		switch name {
		case "tol":
			abs = v
		case "reltol":
			rel = v
		}
	}
	return abs, rel
}
