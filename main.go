package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/webfixture/browser-acceptance-tests/acceptance/scenarios"
	"github.com/webfixture/browser-acceptance-tests/assetserver"
	"github.com/webfixture/browser-acceptance-tests/browser"
	"github.com/webfixture/browser-acceptance-tests/coverage"
	"github.com/webfixture/browser-acceptance-tests/framework"
	"github.com/webfixture/browser-acceptance-tests/webtests"
)

const statusQueryTimeout = time.Second * 10

func main() {
	os.Exit(run())
}

func run() int {
	var params commandParams
	if !params.Read(os.Args) {
		return 1
	}
	cfg := params.config

	mainDebugLogger := framework.NullLogger()
	if params.debugAll {
		mainDebugLogger = log.New(os.Stdout, "", log.LstdFlags)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if cfg.Serve.Dir != "" {
		server := assetserver.New(assetserver.Config{
			Root:         cfg.Serve.Dir,
			PagesDir:     cfg.Serve.PagesDir,
			CoveragePath: cfg.CoveragePath,
			CoverageDir:  cfg.Serve.CoverageDir,
		}, framework.LoggerWithPrefix(mainDebugLogger, "[server] "))
		httpServer, err := assetserver.Start(cfg.Port, server, mainDebugLogger)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		defer httpServer.Close()
		fmt.Printf("Serving %s on port %d\n", cfg.Serve.Dir, cfg.Port)
	}

	if err := framework.AwaitService(cfg.BaseURL(), statusQueryTimeout, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Application error: %s\n", err)
		return 1
	}

	var echo framework.Logger
	if cfg.Verbose {
		echo = log.New(os.Stdout, "", 0)
	}
	execPath := cfg.Browser.Exec
	if execPath == "" && cfg.Browser.Remote == "" {
		execPath, _ = browser.FindExecPath()
	}
	b, err := browser.Launch(ctx, browser.Options{
		ExecPath:      execPath,
		RemoteURL:     cfg.Browser.Remote,
		Headful:       cfg.Browser.Headful,
		NoSandbox:     cfg.Browser.NoSandbox,
		Viewport:      cfg.Browser.Viewport,
		Mode:          cfg.SessionMode(),
		Policy:        cfg.Policy(),
		ActionTimeout: cfg.Browser.ActionTimeout,
		Echo:          echo,
	}, framework.LoggerWithPrefix(mainDebugLogger, "[browser] "))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Browser error: %s\n", err)
		return 1
	}
	defer b.Close()

	fmt.Println()
	framework.PrintFilterDescription(os.Stdout, params.filters)

	fmt.Println("Running acceptance scenarios")

	testLogger := framework.ConsoleTestLogger{
		DebugOutputOnFailure: params.debug || params.debugAll,
		DebugOutputOnSuccess: params.debugAll,
	}

	env := &webtests.Environment{
		BaseURL:      cfg.BaseURL(),
		PagesPath:    cfg.PagesPath,
		Sessions:     browserSessions{b},
		Coverage:     coverage.NewReporter(cfg.BaseURL(), cfg.CoveragePath),
		Wait:         cfg.WaitOptions(),
		FixturesRoot: cfg.FixturesRoot,
		ArtifactsDir: cfg.ArtifactsDir,
		Context:      ctx,
	}
	results := webtests.RunTestSuite(env, scenarios.All(), params.filters.AsFilter, testLogger)

	fmt.Println()
	framework.PrintResults(os.Stdout, results)
	if !results.OK() {
		fmt.Println("To run a failed scenario again:")
		for _, f := range results.Failures {
			fmt.Printf("  %s\n", params.rerunCommand(filepath.Base(os.Args[0]), f.TestID))
		}
		return 1
	}
	return 0
}

// browserSessions hands out browser tabs to scenarios.
type browserSessions struct {
	browser *browser.Browser
}

func (s browserSessions) NewSession(ctx context.Context, logger framework.Logger) (webtests.PageSession, error) {
	session, err := s.browser.NewSession(ctx, logger)
	if err != nil {
		return nil, err
	}
	return session, nil
}
