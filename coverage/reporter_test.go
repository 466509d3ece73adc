package coverage

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/launchdarkly/go-test-helpers/v2/httphelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webfixture/browser-acceptance-tests/framework"
)

type fakePage struct {
	coverage interface{}
	err      error
	lastExpr string
}

func (f *fakePage) Evaluate(ctx context.Context, expression string, res interface{}) error {
	f.lastExpr = expression
	if f.err != nil {
		return f.err
	}
	var value interface{}
	if f.coverage != nil {
		data, _ := json.Marshal(f.coverage)
		value = string(data)
	}
	data, _ := json.Marshal(value)
	return json.Unmarshal(data, res)
}

var sampleCoverage = map[string]interface{}{
	"coding-rules.js": map[string]interface{}{"s": map[string]int{"1": 3}},
}

func TestReportPostsCoverageJSON(t *testing.T) {
	handler, requestsCh := httphelpers.RecordingHandler(httphelpers.HandlerWithStatus(200))
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		r := NewReporter(server.URL, "")
		page := &fakePage{coverage: sampleCoverage}

		assert.True(t, r.Report(context.Background(), page, nil))

		require.Len(t, requestsCh, 1)
		req := <-requestsCh
		assert.Equal(t, "POST", req.Request.Method)
		assert.Equal(t, DefaultPath, req.Request.URL.Path)
		assert.Equal(t, "application/json", req.Request.Header.Get("Content-Type"))
		assert.JSONEq(t, `{"coding-rules.js":{"s":{"1":3}}}`, string(req.Body))
	})
}

func TestReportUsesConfiguredPath(t *testing.T) {
	r := NewReporter("http://localhost:8000/", "/cov")
	assert.Equal(t, "http://localhost:8000/cov", r.Endpoint())
}

func TestReportWithoutCoverageSendsNothing(t *testing.T) {
	handler, requestsCh := httphelpers.RecordingHandler(httphelpers.HandlerWithStatus(200))
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		r := NewReporter(server.URL, "")
		var logger framework.CapturingLogger

		assert.False(t, r.Report(context.Background(), &fakePage{}, &logger))
		assert.Len(t, requestsCh, 0)
		require.Len(t, logger.Output(), 1)
		assert.Contains(t, logger.Output()[0].Message, ErrNoCoverage.Error())
	})
}

func TestExtractWithoutCoverage(t *testing.T) {
	_, err := NewReporter("http://localhost", "").Extract(context.Background(), &fakePage{})
	assert.True(t, errors.Is(err, ErrNoCoverage))
}

func TestReportSwallowsCollectorErrors(t *testing.T) {
	httphelpers.WithServer(httphelpers.HandlerWithStatus(500), func(server *httptest.Server) {
		r := NewReporter(server.URL, "")
		var logger framework.CapturingLogger

		assert.False(t, r.Report(context.Background(), &fakePage{coverage: sampleCoverage}, &logger))
		require.Len(t, logger.Output(), 1)
		assert.Contains(t, logger.Output()[0].Message, "HTTP status 500")
	})
}

func TestReportSwallowsUnreachableCollector(t *testing.T) {
	var url string
	httphelpers.WithServer(httphelpers.HandlerWithStatus(200), func(server *httptest.Server) {
		url = server.URL
	})
	r := NewReporter(url, "")
	assert.False(t, r.Report(context.Background(), &fakePage{coverage: sampleCoverage}, nil))
}

func TestReportSwallowsEvaluationErrors(t *testing.T) {
	r := NewReporter("http://localhost", "")
	page := &fakePage{err: errors.New("tab closed")}
	assert.False(t, r.Report(context.Background(), page, nil))
	assert.Equal(t, extractExpression, page.lastExpr)
}
