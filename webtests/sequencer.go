package webtests

import (
	"fmt"
	"runtime/debug"

	"github.com/stretchr/testify/require"

	"github.com/webfixture/browser-acceptance-tests/framework"
)

type stepState struct {
	index int
	step  Step
}

func runScenario(c *framework.Context, env *Environment, s Scenario) {
	c.PlanAssertions(s.PlannedAssertions())
	t := newTestScope(c, env, s)
	defer t.close()

	require.NotNil(t, env.Sessions, "no session provider was configured")
	session, err := env.Sessions.NewSession(t.ctx, framework.LoggerWithPrefix(c.DebugLogger(), "[browser] "))
	require.NoError(t, err, "could not open a browser session")
	t.session = session
	// rules never carry over from an earlier scenario, even in a reused tab
	session.Interceptor().Reset()
	t.Debug("Fixtures are read from %s", t.fixtures.Dir())

	for i, step := range s.steps {
		if step.Kind == StepReport {
			t.runReportStep(i+1, step)
			continue
		}
		t.runStep(i+1, step)
		if c.Failed() {
			t.Debug("Step %d failed, skipping the remaining %d steps", i+1, len(s.steps)-i-1)
			return
		}
	}
}

func (t *T) runStep(index int, step Step) {
	t.step = &stepState{index: index, step: step}
	defer func() {
		r := recover()
		// calls blocked during the step are reported even when the step exited early
		t.checkMismatches()
		if r != nil {
			if _, ok := r.(*framework.Context); !ok {
				t.Fail(fmt.Errorf("unexpected panic: %+v\n%s", r, string(debug.Stack())))
			}
			t.step = nil
			t.context.FailNow()
		}
		t.step = nil
	}()

	t.context.StepStarted()
	t.Debug("Step %d: %s %q", index, step.Kind, step.Name)
	step.Action(t)
}

func (t *T) checkMismatches() {
	if t.session == nil {
		return
	}
	// only the fail policy records mismatches
	for _, m := range t.session.Interceptor().TakeMismatches() {
		t.Fail(m)
	}
}

// runReportStep runs a step whose failure is logged but does not change the outcome.
func (t *T) runReportStep(index int, step Step) {
	t.context.StepStarted()
	t.Debug("Step %d: %s %q", index, step.Kind, step.Name)
	errs := t.context.Attempt(func(c *framework.Context) {
		t1 := *t
		t1.context = c
		t1.step = &stepState{index: index, step: step}
		step.Action(&t1)
	})
	for _, err := range errs {
		t.Debug("Ignoring failure of report step %d: %s", index, err)
	}
}
