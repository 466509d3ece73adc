package framework

import (
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

type environment struct {
	results    Results
	testLogger TestLogger
	filter     Filter
}

// Context is the state of one test or scenario. It plays the role of *testing.T: failures are
// recorded with Errorf or Fail, and FailNow or Skip abort the test by panicking with the Context
// itself, which is recovered by whoever started the test.
type Context struct {
	env         *environment
	id          TestID
	debugLogger CapturingLogger
	failed      bool
	skipped     bool
	skipReason  string
	errors      []error
	bestEffort  bool
	steps       int
	assertions  int
	planned     ldvalue.OptionalInt
}

func Run(
	filter func(TestID) bool,
	testLogger TestLogger,
	action func(*Context),
) Results {
	if testLogger == nil {
		testLogger = nullTestLogger{}
	}
	env := &environment{
		filter:     filter,
		testLogger: testLogger,
	}
	c := &Context{env: env}
	c.run(action)
	return env.results
}

func (c *Context) run(action func(*Context)) {
	startTime := time.Now()
	defer func() {
		if r := recover(); r != nil {
			if c.skipped {
				return
			}
			c.failed = true
			var addError error
			if _, ok := r.(*Context); ok {
				if len(c.errors) == 0 {
					addError = errors.New("test failed with no failure message")
				}
			} else {
				addError = fmt.Errorf("unexpected panic in test: %+v\n%s", r, string(debug.Stack()))
			}
			if addError != nil {
				c.errors = append(c.errors, addError)
				c.env.testLogger.TestError(c.id, addError)
			}
		}
		if len(c.id.Path) == 0 {
			return // the root context only groups its children
		}
		result := TestResult{
			TestID:            c.id,
			Errors:            c.errors,
			Duration:          time.Since(startTime),
			Steps:             c.steps,
			Assertions:        c.assertions,
			PlannedAssertions: c.planned,
		}
		c.env.results.Tests = append(c.env.results.Tests, result)
		if c.failed {
			c.env.results.Failures = append(c.env.results.Failures, result)
		}
	}()

	action(c)
}

func (c *Context) ID() TestID {
	return c.id
}

// Run starts a child test. Failures and panics inside action are confined to the child; the
// parent continues with whatever it does next.
func (c *Context) Run(name string, action func(*Context)) {
	id := TestID{Path: append(append([]string(nil), c.id.Path...), name)}

	c.env.testLogger.TestStarted(id)
	if c.env.filter != nil && !c.env.filter(id) {
		c.env.results.Tests = append(c.env.results.Tests, TestResult{TestID: id, Skipped: true})
		c.env.testLogger.TestSkipped(id, "excluded by filter parameters")
		return
	}
	c1 := &Context{
		id:  id,
		env: c.env,
	}
	c1.run(action)
	if c1.skipped {
		c.env.results.Tests = append(c.env.results.Tests,
			TestResult{TestID: id, Skipped: true, SkipReason: c1.skipReason})
		c.env.testLogger.TestSkipped(id, c1.skipReason)
	} else {
		c.env.testLogger.TestFinished(id, c1.failed, c1.debugLogger.Output())
	}
}

// Attempt runs action in a best-effort scope that shares this test's ID and debug output but
// not its outcome. Anything the action reports as a failure, including a panic, is returned
// instead of failing the test.
func (c *Context) Attempt(action func(*Context)) (errs []error) {
	c1 := &Context{
		id:         c.id,
		env:        c.env,
		bestEffort: true,
	}
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(*Context); !ok {
				c1.errors = append(c1.errors, fmt.Errorf("unexpected panic: %+v", r))
			}
		}
		c.debugLogger.appendOutput(c1.debugLogger.Output())
		errs = c1.errors
	}()
	action(c1)
	return nil
}

func (c *Context) Errorf(format string, args ...interface{}) {
	c.Fail(fmt.Errorf(format, args...))
}

// Fail records err as a failure of this test without stopping it. Unlike Errorf, the error
// value is kept as-is so that callers can inspect it with errors.As.
func (c *Context) Fail(err error) {
	if c.bestEffort {
		c.errors = append(c.errors, err)
		return
	}
	c.failed = true
	c.errors = append(c.errors, err)
	c.env.testLogger.TestError(c.id, reformatError(err))
}

func (c *Context) Failed() bool {
	return c.failed
}

func (c *Context) FailNow() {
	panic(c)
}

func (c *Context) Skip() {
	c.skipped = true
	panic(c)
}

func (c *Context) SkipWithReason(reason string) {
	c.skipReason = reason
	c.Skip()
}

func (c *Context) Debug(message string, args ...interface{}) {
	c.debugLogger.Printf(message, args...)
}

func (c *Context) DebugLogger() Logger {
	return &c.debugLogger
}

// StepStarted counts one more executed step in this test's result.
func (c *Context) StepStarted() {
	c.steps++
}

// AssertionPassed counts one more passed assertion in this test's result.
func (c *Context) AssertionPassed() {
	c.assertions++
}

// PlanAssertions records how many assertions the test is expected to make. It is reported
// alongside the actual count but does not affect the outcome.
func (c *Context) PlanAssertions(n ldvalue.OptionalInt) {
	c.planned = n
}
