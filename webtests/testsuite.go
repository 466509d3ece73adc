package webtests

import (
	"context"

	"github.com/webfixture/browser-acceptance-tests/coverage"
	"github.com/webfixture/browser-acceptance-tests/framework"
	"github.com/webfixture/browser-acceptance-tests/interceptor"
	"github.com/webfixture/browser-acceptance-tests/waiter"
)

// PageSession is the browser tab that a scenario runs in.
type PageSession interface {
	Open(ctx context.Context, url string, setup func() error) error
	Evaluate(ctx context.Context, expression string, res interface{}) error
	EvaluateFunc(ctx context.Context, fn string, res interface{}, args ...interface{}) error
	Click(ctx context.Context, selector string) error
	SetViewport(ctx context.Context, width, height int) error
	Capture(ctx context.Context, path string) error
	Interceptor() *interceptor.Interceptor
	Close() error
}

// SessionProvider hands out a PageSession for each scenario. Output about the session should go
// to logger, which belongs to the scenario.
type SessionProvider interface {
	NewSession(ctx context.Context, logger framework.Logger) (PageSession, error)
}

type SessionProviderFunc func(ctx context.Context, logger framework.Logger) (PageSession, error)

func (f SessionProviderFunc) NewSession(ctx context.Context, logger framework.Logger) (PageSession, error) {
	return f(ctx, logger)
}

const (
	DefaultPagesPath      = "/pages/"
	DefaultScreenshotName = "screenshot.png"
	DefaultViewportWidth  = 1200
	DefaultViewportHeight = 800
)

// Environment is everything scenarios need from the outside.
type Environment struct {
	// BaseURL is the root of the application under test, such as http://localhost:8000.
	BaseURL string
	// PagesPath is the route under which pages are rendered. Defaults to DefaultPagesPath.
	PagesPath string
	Sessions  SessionProvider
	// Coverage, if not nil, receives the coverage of pages that a SendCoverage step reports.
	Coverage *coverage.Reporter
	Wait     waiter.Options
	// FixturesRoot, if set, replaces the fixture directory derived from each scenario's source.
	FixturesRoot string
	ArtifactsDir string
	Context      context.Context
}

func (env *Environment) context() context.Context {
	if env.Context == nil {
		return context.Background()
	}
	return env.Context
}

func (env *Environment) pagesPath() string {
	if env.PagesPath == "" {
		return DefaultPagesPath
	}
	return env.PagesPath
}

// RunTestSuite runs each scenario once, in order. A failing scenario never prevents the next
// one from running.
func RunTestSuite(
	env *Environment,
	scenarios []Scenario,
	filter framework.Filter,
	testLogger framework.TestLogger,
) framework.Results {
	return framework.Run(filter, testLogger, func(c *framework.Context) {
		for _, s := range scenarios {
			s := s
			c.Run(s.Name(), func(c *framework.Context) {
				runScenario(c, env, s)
			})
		}
	})
}
