// Package coverage sends the code coverage collected by an instrumented page to the coverage
// collector, so that acceptance runs contribute to the application's coverage report.
package coverage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/webfixture/browser-acceptance-tests/framework"
)

const (
	DefaultPath    = "/coverage/client"
	defaultTimeout = 5 * time.Second

	extractExpression = "(function(){return window.__coverage__ ? JSON.stringify(window.__coverage__) : null;})()"
)

// ErrNoCoverage means the page was not instrumented.
var ErrNoCoverage = errors.New("page has no coverage data")

// Evaluator runs a JavaScript expression in the page.
type Evaluator interface {
	Evaluate(ctx context.Context, expression string, res interface{}) error
}

type Reporter struct {
	endpoint string
	client   *http.Client
}

// NewReporter returns a Reporter that posts to path on the server at baseURL. An empty path
// means DefaultPath.
func NewReporter(baseURL, path string) *Reporter {
	if path == "" {
		path = DefaultPath
	}
	return &Reporter{
		endpoint: strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(path, "/"),
		client:   &http.Client{Timeout: defaultTimeout},
	}
}

func (r *Reporter) Endpoint() string {
	return r.endpoint
}

// Extract reads the page's coverage object as JSON.
func (r *Reporter) Extract(ctx context.Context, ev Evaluator) ([]byte, error) {
	var data *string
	if err := ev.Evaluate(ctx, extractExpression, &data); err != nil {
		return nil, fmt.Errorf("could not read coverage from page: %w", err)
	}
	if data == nil {
		return nil, ErrNoCoverage
	}
	return []byte(*data), nil
}

// Submit posts coverage JSON to the collector.
func (r *Reporter) Submit(ctx context.Context, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("could not send coverage: %w", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("coverage collector returned HTTP status %d", resp.StatusCode)
	}
	return nil
}

// Report extracts and submits the page's coverage. Nothing it does can fail a scenario: every
// problem is only logged, and the return value says whether coverage was delivered.
func (r *Reporter) Report(ctx context.Context, ev Evaluator, logger framework.Logger) bool {
	if logger == nil {
		logger = framework.NullLogger()
	}
	data, err := r.Extract(ctx, ev)
	if err != nil {
		logger.Printf("Not sending coverage: %s", err)
		return false
	}
	if err := r.Submit(ctx, data); err != nil {
		logger.Printf("Coverage was not delivered to %s: %s", r.endpoint, err)
		return false
	}
	logger.Printf("Sent %d bytes of coverage to %s", len(data), r.endpoint)
	return true
}
