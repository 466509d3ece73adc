package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webfixture/browser-acceptance-tests/browser"
	"github.com/webfixture/browser-acceptance-tests/interceptor"
)

func writeFile(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaultsAreValid(t *testing.T) {
	c := Defaults()
	require.NoError(t, c.Validate())
	assert.Equal(t, "http://localhost:8000", c.BaseURL())
	assert.Equal(t, interceptor.PolicyFail, c.Policy())
	assert.Equal(t, browser.SessionFresh, c.SessionMode())
	assert.Equal(t, 50*time.Millisecond, c.WaitOptions().Interval)
	assert.Equal(t, 30*time.Second, c.WaitOptions().Timeout)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
port: 9000
unmatched: passthrough
session: shared
wait:
  timeout: 5s
browser:
  headful: true
  viewport:
    width: 800
serve:
  dir: acceptance/webapp
`)
	c, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, 9000, c.Port)
	assert.Equal(t, "localhost", c.Host)
	assert.Equal(t, interceptor.PolicyPassthrough, c.Policy())
	assert.Equal(t, browser.SessionShared, c.SessionMode())
	assert.Equal(t, 5*time.Second, c.Wait.Timeout)
	assert.Equal(t, 50*time.Millisecond, c.Wait.Interval)
	assert.True(t, c.Browser.Headful)
	assert.Equal(t, browser.Viewport{Width: 800, Height: 800}, c.Browser.Viewport)
	assert.Equal(t, "acceptance/webapp", c.Serve.Dir)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.True(t, os.IsNotExist(err))
}

func TestLoadMalformedFile(t *testing.T) {
	_, err := Load(writeFile(t, "port: [1, 2"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	c := Defaults()
	require.NoError(t, c.ApplyEnv(func(name string) string {
		if name == PortEnvVar {
			return "8123"
		}
		return ""
	}))
	assert.Equal(t, 8123, c.Port)

	assert.Error(t, c.ApplyEnv(func(string) string { return "eighty" }))
}

func TestValidateReportsEveryProblemByFileName(t *testing.T) {
	c := Defaults()
	c.Port = 0
	c.Unmatched = "ignore"
	c.Wait.Interval = 0

	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port must be at least 1")
	assert.Contains(t, err.Error(), "unmatched must be one of: fail passthrough")
	assert.Contains(t, err.Error(), "wait.interval must be greater than 0")
}

func TestValidateRejectsTimeoutShorterThanInterval(t *testing.T) {
	c := Defaults()
	c.Wait.Interval = time.Second
	c.Wait.Timeout = time.Millisecond

	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wait.timeout")
}

func TestPolicyIsParsedFromName(t *testing.T) {
	c := Defaults()
	c.Unmatched = "Passthrough"
	assert.Equal(t, interceptor.PolicyPassthrough, c.Policy())

	c.Unmatched = ""
	assert.Equal(t, interceptor.PolicyFail, c.Policy())

	c.Unmatched = "ignore"
	assert.Equal(t, interceptor.PolicyFail, c.Policy())
}
