package webtests

import (
	"errors"
	"fmt"
)

// ErrAssertion is matched by every AssertionError.
var ErrAssertion = errors.New("assertion failed")

// AssertionError is a failed check against the page's markup.
type AssertionError struct {
	Assertion string
	Selector  string
	Expected  interface{}
	Actual    interface{}
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s %q: expected %v, got %v", e.Assertion, e.Selector, e.Expected, e.Actual)
}

func (e *AssertionError) Is(target error) bool {
	return target == ErrAssertion
}

// StepError attributes a failure to the step that caused it.
type StepError struct {
	Index int // 1-based
	Name  string
	Kind  StepKind
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s %q): %s", e.Index, e.Kind, e.Name, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
