package main

import (
	"flag"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/alessio/shellescape"

	"github.com/webfixture/browser-acceptance-tests/config"
	"github.com/webfixture/browser-acceptance-tests/framework"
)

type commandParams struct {
	configFile string
	filters    framework.RegexFilters
	debug      bool
	debugAll   bool
	config     config.Config
	// args holds the parameters that were given, other than -run and -skip, for re-run commands
	args []string
}

func (c *commandParams) Read(args []string) bool {
	var (
		port         int
		host         string
		verbose      bool
		serveDir     string
		coverageDir  string
		chrome       string
		remote       string
		headful      bool
		noSandbox    bool
		unmatched    string
		session      string
		artifacts    string
		fixtures     string
		waitTimeout  time.Duration
		waitInterval time.Duration
	)
	defaults := config.Defaults()

	fs := flag.NewFlagSet("", flag.ExitOnError)
	fs.StringVar(&c.configFile, "config", "", "YAML configuration file; parameters given here override it")
	fs.IntVar(&port, "port", defaults.Port, "port of the application under test (or $"+config.PortEnvVar+")")
	fs.StringVar(&host, "host", defaults.Host, "hostname of the application under test")
	fs.Var(&c.filters.MustMatch, "run", "regex pattern(s) to select scenarios to run")
	fs.Var(&c.filters.MustNotMatch, "skip", "regex pattern(s) to select scenarios not to run")
	fs.BoolVar(&verbose, "verbose", false, "echo page console messages and errors")
	fs.BoolVar(&c.debug, "debug", false, "enable debug logging for failed scenarios")
	fs.BoolVar(&c.debugAll, "debug-all", false, "enable debug logging for all scenarios")
	fs.StringVar(&serveDir, "serve", "", "serve the application from this directory instead of using a running server")
	fs.StringVar(&coverageDir, "coverage-dir", "", "with -serve, save submitted coverage here")
	fs.StringVar(&chrome, "chrome", "", "Chrome or Chromium binary (default: $CHROME_BIN or the first one on the PATH)")
	fs.StringVar(&remote, "remote", "", "DevTools websocket URL of an already running browser")
	fs.BoolVar(&headful, "headful", false, "show the browser window")
	fs.BoolVar(&noSandbox, "no-sandbox", false, "run Chrome without its sandbox, as needed in most containers")
	fs.StringVar(&unmatched, "unmatched", defaults.Unmatched, "what to do with backend calls no mock answers: fail or passthrough")
	fs.StringVar(&session, "session", defaults.Session, "fresh (a new tab per scenario) or shared")
	fs.StringVar(&artifacts, "artifacts", defaults.ArtifactsDir, "directory for screenshots")
	fs.StringVar(&fixtures, "fixtures", "", "directory holding one fixture directory per scenario")
	fs.DurationVar(&waitTimeout, "wait-timeout", defaults.Wait.Timeout, "how long a wait step may take")
	fs.DurationVar(&waitInterval, "wait-interval", defaults.Wait.Interval, "how often wait steps check the page")

	if err := fs.Parse(args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		fs.Usage()
		return false
	}
	if fs.NArg() != 0 {
		fmt.Fprintf(os.Stderr, "unexpected arguments: %s\n", strings.Join(fs.Args(), " "))
		fs.Usage()
		return false
	}

	cfg := defaults
	if c.configFile != "" {
		var err error
		if cfg, err = config.Load(c.configFile); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return false
		}
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return false
	}

	// only parameters that were actually given override the file and the environment
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Port = port
		case "host":
			cfg.Host = host
		case "verbose":
			cfg.Verbose = verbose
		case "serve":
			cfg.Serve.Dir = serveDir
		case "coverage-dir":
			cfg.Serve.CoverageDir = coverageDir
		case "chrome":
			cfg.Browser.Exec = chrome
		case "remote":
			cfg.Browser.Remote = remote
		case "headful":
			cfg.Browser.Headful = headful
		case "no-sandbox":
			cfg.Browser.NoSandbox = noSandbox
		case "unmatched":
			cfg.Unmatched = unmatched
		case "session":
			cfg.Session = session
		case "artifacts":
			cfg.ArtifactsDir = artifacts
		case "fixtures":
			cfg.FixturesRoot = fixtures
		case "wait-timeout":
			cfg.Wait.Timeout = waitTimeout
		case "wait-interval":
			cfg.Wait.Interval = waitInterval
		}
		if f.Name != "run" && f.Name != "skip" {
			c.args = append(c.args, "-"+f.Name+"="+f.Value.String())
		}
	})

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return false
	}
	c.config = cfg
	return true
}

type commandBuilder []string

func (b *commandBuilder) add(args ...string) {
	for _, a := range args {
		*b = append(*b, shellescape.Quote(a))
	}
}

func (b commandBuilder) String() string {
	return strings.Join(b, " ")
}

// rerunCommand is a command line that runs only the named scenario, with the same parameters.
func (c *commandParams) rerunCommand(program string, id framework.TestID) string {
	var b commandBuilder
	b.add(program)
	b.add(c.args...)
	b.add("-run", "^"+regexp.QuoteMeta(id.String())+"$")
	return b.String()
}
