package engine

import "time"

type ContextLevel int

const (
	LevelSystem ContextLevel = 10
	LevelCourse ContextLevel = 50
	LevelModule ContextLevel = 70
)

func (l ContextLevel) String() string {
	switch l {
	case LevelSystem:
		return "system"
	case LevelCourse:
		return "course"
	case LevelModule:
		return "module"
	}
	return "unknown"
}

// Context is a node of the permission hierarchy. Path lists ancestor ids,
// root first, ending with ID.
type Context struct {
	ID         int64        `json:"id"`
	Level      ContextLevel `json:"level"`
	InstanceID int64        `json:"instance_id"`
	Path       []int64      `json:"path,omitempty"`
}

type CourseModule struct {
	ID       int64 `json:"id"`
	CourseID int64 `json:"course_id"`
}

type Category struct {
	ID        int64  `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	ContextID int64  `json:"context_id" yaml:"context_id"`
}

// Scope is what RequireSession checks: zero CourseID means any logged in
// user, zero ModuleID means course level.
type Scope struct {
	CourseID int64
	ModuleID int64
}

type Choice struct {
	ID        string `json:"id" yaml:"id"`
	LabelHTML string `json:"label_html" yaml:"label"`
}

type Question struct {
	ID         int64    `json:"id"`
	CategoryID int64    `json:"category_id"`
	Name       string   `json:"name"`
	Type       string   `json:"type"` // mcq_single, mcq_multi, true_false, short_word, numeric, essay
	PromptHTML string   `json:"prompt_html"`
	Choices    []Choice `json:"choices,omitempty"`
	AnswerKey  []string `json:"answer_key,omitempty"`
	MaxMark    float64  `json:"max_mark"`
}

type State string

const (
	StateNotStarted    State = "notstarted"
	StateTodo          State = "todo"
	StateComplete      State = "complete"
	StateGradedRight   State = "gradedright"
	StateGradedPartial State = "gradedpartial"
	StateGradedWrong   State = "gradedwrong"
	StateNeedsGrading  State = "needsgrading"
)

func (s State) Graded() bool {
	switch s {
	case StateGradedRight, StateGradedPartial, StateGradedWrong:
		return true
	}
	return false
}

type Step struct {
	ID        int64             `json:"-"`
	Seq       int               `json:"seq"`
	State     State             `json:"state"`
	Fraction  *float64          `json:"fraction,omitempty"`
	Response  map[string]string `json:"response,omitempty"`
	Submitted bool              `json:"submitted"`
	Feedback  []string          `json:"feedback,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Slot is one question inside a usage.
type Slot struct {
	ID       int64     `json:"-"`
	Number   int       `json:"slot"`
	Question *Question `json:"question"`
	MaxMark  float64   `json:"max_mark"`
	Flagged  bool      `json:"flagged"`
	Steps    []Step    `json:"steps"`
}

// Last returns the latest step, or a not-started step.
func (s *Slot) Last() Step {
	if len(s.Steps) == 0 {
		return Step{State: StateNotStarted}
	}
	return s.Steps[len(s.Steps)-1]
}

// Usage is an attempt session: the state of one or more questions. ID is
// zero until the usage is first persisted.
type Usage struct {
	ID        int64     `json:"id"`
	Owner     string    `json:"owner"`
	ContextID int64     `json:"context_id"`
	Behaviour string    `json:"behaviour"`
	Slots     []*Slot   `json:"slots"`
	CreatedAt time.Time `json:"created_at"`
}

// Fraction is the best graded fraction so far; ok is false before any
// grading. No penalty is applied between tries.
func (s *Slot) Fraction() (f float64, ok bool) {
	for _, st := range s.Steps {
		if st.Fraction != nil && (!ok || *st.Fraction > f) {
			f, ok = *st.Fraction, true
		}
	}
	return f, ok
}

func (u *Usage) Slot(n int) (*Slot, error) {
	if n < 1 || n > len(u.Slots) {
		return nil, ErrNoSuchSlot
	}
	return u.Slots[n-1], nil
}
