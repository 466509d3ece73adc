package framework

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

type Results struct {
	Tests    []TestResult
	Failures []TestResult
}

type TestResult struct {
	TestID            TestID
	Errors            []error
	Skipped           bool
	SkipReason        string
	Duration          time.Duration
	Steps             int
	Assertions        int
	PlannedAssertions ldvalue.OptionalInt
}

func (r Results) OK() bool {
	return len(r.Failures) == 0
}

// Find returns the result for the test with the given path, if it ran or was skipped.
func (r Results) Find(path ...string) (TestResult, bool) {
	want := TestID{Path: path}.String()
	for _, t := range r.Tests {
		if t.TestID.String() == want {
			return t, true
		}
	}
	return TestResult{}, false
}

func (r Results) counts() (passed, failed, skipped int) {
	for _, t := range r.Tests {
		switch {
		case t.Skipped:
			skipped++
		case len(t.Errors) > 0:
			failed++
		default:
			passed++
		}
	}
	return
}

// Failed is true if the test recorded at least one error.
func (t TestResult) Failed() bool {
	return !t.Skipped && len(t.Errors) > 0
}

// AssertionSummary describes the passed assertion count, and the planned count when one was
// given and differs.
func (t TestResult) AssertionSummary() string {
	if t.PlannedAssertions.IsDefined() && t.PlannedAssertions.IntValue() != t.Assertions {
		return fmt.Sprintf("%d of %d planned assertions passed", t.Assertions, t.PlannedAssertions.IntValue())
	}
	return fmt.Sprintf("%d assertions passed", t.Assertions)
}

type TestID struct {
	Path []string
}

func (t TestID) String() string {
	return strings.Join(t.Path, "/")
}

type TestFailure struct {
	ID  TestID
	Err error
}

func (f TestFailure) Error() string {
	return fmt.Sprintf("[%s]: %s", f.ID, f.Err)
}
