package engine

type Visibility int

const (
	Hidden Visibility = iota
	Visible
)

type MarksDisplay int

const (
	MarksHidden MarksDisplay = iota
	MarksMaxOnly
	MarksMarkAndMax
)

// DisplayOptions control how RenderBody draws a question.
type DisplayOptions struct {
	Marks       MarksDisplay
	Flags       Visibility
	ReadOnly    bool
	Feedback    Visibility
	Correctness Visibility
}

func DefaultDisplayOptions() DisplayOptions {
	return DisplayOptions{
		Marks:       MarksMarkAndMax,
		Flags:       Visible,
		Feedback:    Visible,
		Correctness: Visible,
	}
}
