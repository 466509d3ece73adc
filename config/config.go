// Package config reads the settings of a test run from a YAML file, the environment and the
// command line, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/webfixture/browser-acceptance-tests/assetserver"
	"github.com/webfixture/browser-acceptance-tests/browser"
	"github.com/webfixture/browser-acceptance-tests/coverage"
	"github.com/webfixture/browser-acceptance-tests/interceptor"
	"github.com/webfixture/browser-acceptance-tests/waiter"
	"github.com/webfixture/browser-acceptance-tests/webtests"
)

// PortEnvVar overrides the configured port, as it does for the application server.
const PortEnvVar = "PORT"

type Config struct {
	Port         int    `yaml:"port" validate:"min=1,max=65535"`
	Host         string `yaml:"host" validate:"required,hostname|ip"`
	PagesPath    string `yaml:"pagesPath" validate:"required,startswith=/"`
	CoveragePath string `yaml:"coveragePath" validate:"required,startswith=/"`
	Verbose      bool   `yaml:"verbose"`
	// FixturesRoot, if set, replaces the fixture directory derived from each scenario's source.
	FixturesRoot string  `yaml:"fixturesRoot"`
	ArtifactsDir string  `yaml:"artifactsDir" validate:"required"`
	Serve        Serve   `yaml:"serve"`
	Browser      Browser `yaml:"browser"`
	Wait         Wait    `yaml:"wait"`
	// Unmatched is what happens to a page's backend call that no mock rule answers.
	Unmatched string `yaml:"unmatched" validate:"oneof=fail passthrough"`
	Session   string `yaml:"session" validate:"oneof=fresh shared"`
}

// Serve configures the built-in application server. When Dir is empty the application is
// expected to be served by something else at Host:Port.
type Serve struct {
	Dir         string `yaml:"dir"`
	PagesDir    string `yaml:"pagesDir"`
	CoverageDir string `yaml:"coverageDir"`
}

type Browser struct {
	Exec          string           `yaml:"exec"`
	Remote        string           `yaml:"remote" validate:"omitempty,url"`
	Headful       bool             `yaml:"headful"`
	NoSandbox     bool             `yaml:"noSandbox"`
	Viewport      browser.Viewport `yaml:"viewport"`
	ActionTimeout time.Duration    `yaml:"actionTimeout" validate:"gte=0"`
}

type Wait struct {
	Interval time.Duration `yaml:"interval" validate:"gt=0"`
	Timeout  time.Duration `yaml:"timeout" validate:"gtefield=Interval"`
}

func Defaults() Config {
	return Config{
		Port:         assetserver.DefaultPort,
		Host:         "localhost",
		PagesPath:    webtests.DefaultPagesPath,
		CoveragePath: coverage.DefaultPath,
		ArtifactsDir: "target",
		Browser: Browser{
			Viewport:      browser.DefaultViewport,
			ActionTimeout: time.Minute,
		},
		Wait: Wait{
			Interval: waiter.DefaultInterval,
			Timeout:  waiter.DefaultTimeout,
		},
		Unmatched: string(interceptor.PolicyFail),
		Session:   string(browser.SessionFresh),
	}
}

// Load reads a YAML file over the defaults. Fields missing from the file keep their default
// values. Durations are written the way time.ParseDuration reads them, as in "50ms".
func Load(path string) (Config, error) {
	c := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("invalid configuration file %s: %w", path, err)
	}
	return c, nil
}

// ApplyEnv applies overrides from the environment, such as PORT.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if s := getenv(PortEnvVar); s != "" {
		port, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("invalid %s %q", PortEnvVar, s)
		}
		c.Port = port
	}
	return nil
}

func (c Config) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", c.Host, c.Port)
}

// Policy is the unmatched-call policy named by Unmatched. A name Validate would reject gives
// interceptor.PolicyFail.
func (c Config) Policy() interceptor.UnmatchedPolicy {
	p, err := interceptor.ParsePolicy(c.Unmatched)
	if err != nil {
		return interceptor.PolicyFail
	}
	return p
}

func (c Config) SessionMode() browser.SessionMode {
	return browser.SessionMode(c.Session)
}

func (c Config) WaitOptions() waiter.Options {
	return waiter.Options{Interval: c.Wait.Interval, Timeout: c.Wait.Timeout}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report fields by the names used in the file
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks every field and reports all the problems it finds at once.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, fieldMessage(e))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

func fieldMessage(e validator.FieldError) string {
	field := strings.TrimPrefix(e.Namespace(), "Config.")
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "gtefield":
		return fmt.Sprintf("%s must not be less than %s", field, e.Param())
	default:
		return fmt.Sprintf("%s is invalid (%v)", field, e.Value())
	}
}
