package webtests

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/webfixture/browser-acceptance-tests/browser"
	"github.com/webfixture/browser-acceptance-tests/fixtures"
	"github.com/webfixture/browser-acceptance-tests/framework"
	"github.com/webfixture/browser-acceptance-tests/interceptor"
	"github.com/webfixture/browser-acceptance-tests/waiter"
)

// T represents one running scenario.
//
// It implements the same basic functionality as Go's testing.T, but in an environment that is outside
// of the Go test runner, and with some extra features such as debug logging that are convenient for
// our use case. Those features are provided by our lower-level framework package.
//
// It also provides the operations that scenarios perform on their browser tab: installing mock
// rules for the page's backend calls, navigating, clicking, waiting for conditions and checking
// the markup. Operations that cannot proceed, such as a wait that times out or a fixture that does
// not exist, fail the step and exit it immediately; the Assert methods record a failure and let the
// step continue, like the assert package.
//
// To make other test assertions, you can use the assert and require packages, passing the *T as if
// it were a *testing.T.
type T struct {
	context  *framework.Context
	env      *Environment
	scenario Scenario
	session  PageSession
	fixtures *fixtures.Store
	step     *stepState
	ctx      context.Context
}

func newTestScope(c *framework.Context, env *Environment, s Scenario) *T {
	return &T{
		context:  c,
		env:      env,
		scenario: s,
		fixtures: fixtures.NewStore(s.FixtureDir(env.FixturesRoot)),
		ctx:      env.context(),
	}
}

func (t *T) close() {
	if t.session != nil {
		if err := t.session.Close(); err != nil {
			t.Debug("Error closing browser session: %s", err)
		}
	}
}

// Errorf is called by assertions to log a test failure. It does not cause an immediate exit.
func (t *T) Errorf(format string, args ...interface{}) {
	t.Fail(fmt.Errorf(format, args...))
}

// Fail records err as a failure of the current step without exiting it.
func (t *T) Fail(err error) {
	if t.step != nil {
		err = &StepError{Index: t.step.index, Name: t.step.step.Name, Kind: t.step.step.Kind, Err: err}
	}
	t.context.Fail(err)
}

// FailNow is called by assertions when a test should fail and immediately exit. The methods in
// the require package call FailNow.
func (t *T) FailNow() {
	t.context.FailNow()
}

func (t *T) failNow(err error) {
	t.Fail(err)
	t.FailNow()
}

// Debug logs some debug output for the test. The output will be passed to the test logger at
// the end of the test.
func (t *T) Debug(format string, args ...interface{}) {
	t.context.Debug(format, args...)
}

func (t *T) Name() string {
	return t.scenario.Name()
}

// Context is the context that browser operations of this scenario run under.
func (t *T) Context() context.Context {
	return t.ctx
}

// Session gives direct access to the browser tab, for anything the T methods don't cover.
func (t *T) Session() PageSession {
	return t.session
}

func (t *T) Fixtures() *fixtures.Store {
	return t.fixtures
}

// OpenPage loads a page from the page route with a cache-busting URL. setup, if not nil, runs
// after interception is active and before the page is requested.
func (t *T) OpenPage(page string, setup func(*T)) {
	t.open(browser.PageURL(t.env.BaseURL, t.env.pagesPath(), page), setup)
}

// OpenURL loads a path relative to the application root with a cache-busting URL.
func (t *T) OpenURL(path string, setup func(*T)) {
	t.open(browser.BuildURL(t.env.BaseURL, path), setup)
}

func (t *T) open(url string, setup func(*T)) {
	err := t.session.Open(t.ctx, url, func() error {
		if setup != nil {
			setup(t)
		}
		return nil
	})
	if err != nil {
		t.failNow(err)
	}
}

// MockRequest answers the page's calls to url with body. Use interceptor.WithData to answer only
// calls whose parameters match.
func (t *T) MockRequest(url string, body string, opts ...interceptor.RuleOption) interceptor.Handle {
	return t.session.Interceptor().Install(url, []byte(body), opts...)
}

// MockRequestFromFile is like MockRequest with the body read from a fixture file of this
// scenario. A missing fixture fails the step immediately.
func (t *T) MockRequestFromFile(url string, fixturePath string, opts ...interceptor.RuleOption) interceptor.Handle {
	body, err := t.fixtures.Load(fixturePath)
	if err != nil {
		if t.scenario.fixtureDirIsGuessed(t.env.FixturesRoot) {
			err = fmt.Errorf("%w; the scenario's source path %q is not absolute, as in a -trimpath build, so set -fixtures or fixturesRoot",
				err, t.scenario.sourceFile)
		}
		t.failNow(err)
	}
	return t.session.Interceptor().Install(url, body, opts...)
}

func (t *T) ClearRequestMocks() {
	t.session.Interceptor().ClearAll()
}

func (t *T) ClearRequestMock(h interceptor.Handle) {
	if !t.session.Interceptor().ClearOne(h) {
		t.Debug("Mock rule %d was already cleared", h)
	}
}

// WaitFor polls p until it holds. If it times out, the step fails immediately.
func (t *T) WaitFor(p waiter.Predicate) {
	if err := waiter.WaitFor(t.ctx, t.session, p, t.env.Wait); err != nil {
		t.failNow(err)
	}
	t.Debug("Done waiting for %s", p.Describe())
}

func (t *T) WaitForSelector(selector string) {
	t.WaitFor(waiter.SelectorExists(selector))
}

// WaitForSelectorTextChange waits until the text of selector differs from what it is now.
func (t *T) WaitForSelectorTextChange(selector string) {
	t.WaitFor(waiter.SelectorTextChanged(selector))
}

func (t *T) WaitForElementCount(selector string, count int) {
	t.WaitFor(waiter.ElementCount(selector, count))
}

func (t *T) Click(selector string) {
	if err := t.session.Click(t.ctx, selector); err != nil {
		t.failNow(err)
	}
}

// Evaluate runs a JavaScript expression in the page and decodes its result into res, which may be
// nil. An exception in the page fails the step immediately.
func (t *T) Evaluate(expression string, res interface{}) {
	if err := t.session.Evaluate(t.ctx, expression, res); err != nil {
		t.failNow(fmt.Errorf("evaluating %q: %w", expression, err))
	}
}

// EvaluateFunc calls the JavaScript function fn in the page with args.
func (t *T) EvaluateFunc(fn string, res interface{}, args ...interface{}) {
	if err := t.session.EvaluateFunc(t.ctx, fn, res, args...); err != nil {
		t.failNow(fmt.Errorf("evaluating page function: %w", err))
	}
}

// SetDefaultViewport resizes the tab to 1200x800.
func (t *T) SetDefaultViewport() {
	if err := t.session.SetViewport(t.ctx, DefaultViewportWidth, DefaultViewportHeight); err != nil {
		t.failNow(err)
	}
}

// Capture saves a screenshot under the artifacts directory. An empty name means
// DefaultScreenshotName.
func (t *T) Capture(name string) {
	if name == "" {
		name = DefaultScreenshotName
	}
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(t.env.ArtifactsDir, name)
	}
	if err := t.session.Capture(t.ctx, path); err != nil {
		t.failNow(err)
	}
}

// SendCoverage submits the page's coverage. It never fails.
func (t *T) SendCoverage() {
	if t.env.Coverage == nil {
		t.Debug("Coverage reporting is not configured")
		return
	}
	t.env.Coverage.Report(t.ctx, t.session, t.context.DebugLogger())
}

func (t *T) text(selector string) *string {
	var s *string
	t.Evaluate(waiter.TextExpression(selector), &s)
	return s
}

func (t *T) allText(selector string) *string {
	var s *string
	t.Evaluate(waiter.AllTextExpression(selector), &s)
	return s
}

func (t *T) count(selector string) int {
	var n int
	t.Evaluate(waiter.CountExpression(selector), &n)
	return n
}

func (t *T) assertion(ok bool, err *AssertionError) bool {
	if !ok {
		t.Fail(err)
		return false
	}
	t.context.AssertionPassed()
	return true
}

// AssertExists checks that at least one element matches selector.
func (t *T) AssertExists(selector string) bool {
	n := t.count(selector)
	return t.assertion(n > 0, &AssertionError{
		Assertion: "exists", Selector: selector, Expected: "at least one element", Actual: "none",
	})
}

// AssertElementCount checks that exactly count elements match selector.
func (t *T) AssertElementCount(selector string, count int) bool {
	n := t.count(selector)
	return t.assertion(n == count, &AssertionError{
		Assertion: "element count", Selector: selector, Expected: count, Actual: n,
	})
}

// AssertSelectorContains checks that the text of the elements matching selector, taken together,
// contains text.
func (t *T) AssertSelectorContains(selector, text string) bool {
	actual := t.allText(selector)
	if actual == nil {
		return t.assertion(false, &AssertionError{
			Assertion: "contains", Selector: selector, Expected: fmt.Sprintf("text containing %q", text), Actual: "no element",
		})
	}
	return t.assertion(strings.Contains(*actual, text), &AssertionError{
		Assertion: "contains", Selector: selector, Expected: fmt.Sprintf("text containing %q", text), Actual: fmt.Sprintf("%q", *actual),
	})
}

// AssertText checks that the trimmed text of the first element matching selector is exactly text.
func (t *T) AssertText(selector, text string) bool {
	actual := t.text(selector)
	if actual == nil {
		return t.assertion(false, &AssertionError{
			Assertion: "text", Selector: selector, Expected: fmt.Sprintf("%q", text), Actual: "no element",
		})
	}
	trimmed := strings.TrimSpace(*actual)
	return t.assertion(trimmed == text, &AssertionError{
		Assertion: "text", Selector: selector, Expected: fmt.Sprintf("%q", text), Actual: fmt.Sprintf("%q", trimmed),
	})
}
