package tag

import (
	"errors"
	"fmt"
)

// ErrMalformedTag matches every *MalformedTagError via errors.Is.
var ErrMalformedTag = errors.New("malformed ILQ tag")

type MalformedTagError struct {
	Tag    string
	Reason string
}

func (e *MalformedTagError) Error() string {
	return fmt.Sprintf("malformed ILQ tag %q: %s", e.Tag, e.Reason)
}

func (e *MalformedTagError) Is(target error) bool { return target == ErrMalformedTag }

func malformed(raw, format string, args ...any) error {
	return &MalformedTagError{Tag: raw, Reason: fmt.Sprintf(format, args...)}
}
