package webtests

import (
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"

	"github.com/webfixture/browser-acceptance-tests/fixtures"
)

// StepKind says what a step is for. Only StepReport changes how the sequencer treats a step.
type StepKind string

const (
	StepNavigate StepKind = "navigate"
	StepAct      StepKind = "act"
	StepWait     StepKind = "wait"
	StepAssert   StepKind = "assert"
	StepReport   StepKind = "report"
)

type Step struct {
	Kind   StepKind
	Name   string
	Action func(*T)
}

// Scenario is an immutable, named sequence of steps. Use NewScenario and the With methods,
// which return modified copies.
type Scenario struct {
	name       string
	fixtureSet string
	sourceFile string
	planned    ldvalue.OptionalInt
	steps      []Step
}

// NewScenario defines a scenario. Its fixtures are read from json/<name> next to the directory
// of the calling source file; see fixtures.ResolveScenarioDir.
func NewScenario(name string, steps ...Step) Scenario {
	_, file, _, _ := runtime.Caller(1)
	return Scenario{
		name:       name,
		fixtureSet: name,
		sourceFile: file,
		steps:      append([]Step(nil), steps...),
	}
}

// WithFixtures makes the scenario read fixtures from the named set instead of the one named
// after the scenario, so that several scenarios can share one directory.
func (s Scenario) WithFixtures(set string) Scenario {
	s.fixtureSet = set
	return s
}

// WithPlannedAssertions records how many assertions the scenario expects to make. The number is
// reported next to the actual count and never fails the scenario.
func (s Scenario) WithPlannedAssertions(n int) Scenario {
	s.planned = ldvalue.NewOptionalInt(n)
	return s
}

func (s Scenario) Name() string { return s.name }

func (s Scenario) FixtureSet() string { return s.fixtureSet }

func (s Scenario) PlannedAssertions() ldvalue.OptionalInt { return s.planned }

func (s Scenario) Steps() []Step {
	return append([]Step(nil), s.steps...)
}

// FixtureDir is where the scenario's fixtures live. A non-empty root overrides the directory
// derived from the scenario's source file.
//
// Binaries built with -trimpath record source files by import path, so the derived directory is
// relative to the working directory and usually wrong. Such builds need a root (-fixtures, or
// fixturesRoot in the configuration file).
func (s Scenario) FixtureDir(root string) string {
	if root != "" {
		return filepath.Join(root, s.fixtureSet)
	}
	return fixtures.ResolveScenarioDir(s.sourceFile, s.fixtureSet)
}

// fixtureDirIsGuessed is true when FixtureDir(root) is derived from a source path that is not
// absolute, as in a -trimpath build.
func (s Scenario) fixtureDirIsGuessed(root string) bool {
	return root == "" && !filepath.IsAbs(filepath.FromSlash(s.sourceFile))
}

// TestName joins the parts of a scenario name, as in "Source Viewer :: Base".
func TestName(parts ...string) string {
	return strings.Join(parts, " :: ")
}

// Open is a navigate step that loads a page rendered by the server's page route. setup runs
// before the page is requested and is where the page's mock rules belong.
func Open(page string, setup func(*T)) Step {
	return Step{
		Kind: StepNavigate,
		Name: "open " + page,
		Action: func(t *T) {
			t.OpenPage(page, setup)
		},
	}
}

// OpenURL is like Open for a path relative to the application root instead of the page route.
func OpenURL(path string, setup func(*T)) Step {
	return Step{
		Kind: StepNavigate,
		Name: "open " + path,
		Action: func(t *T) {
			t.OpenURL(path, setup)
		},
	}
}

func Act(name string, action func(*T)) Step {
	return Step{Kind: StepAct, Name: name, Action: action}
}

func Wait(name string, action func(*T)) Step {
	return Step{Kind: StepWait, Name: name, Action: action}
}

func Assert(name string, action func(*T)) Step {
	return Step{Kind: StepAssert, Name: name, Action: action}
}

func Report(name string, action func(*T)) Step {
	return Step{Kind: StepReport, Name: name, Action: action}
}

// SendCoverage is the usual last step of a scenario.
func SendCoverage() Step {
	return Report("send coverage", func(t *T) { t.SendCoverage() })
}
