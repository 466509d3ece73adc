package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/webfixture/browser-acceptance-tests/framework"
	"github.com/webfixture/browser-acceptance-tests/interceptor"
)

// Session is one browser tab together with the interceptor that answers its backend calls.
type Session struct {
	ctx           context.Context
	cancel        context.CancelFunc
	interceptor   *interceptor.Interceptor
	logger        *switchableLogger
	echo          framework.Logger
	viewport      Viewport
	actionTimeout time.Duration
	attached      bool
	shared        bool
}

func newSession(tabCtx context.Context, cancel context.CancelFunc, opts Options, logger framework.Logger) (*Session, error) {
	sl := &switchableLogger{}
	sl.setTarget(logger)
	s := &Session{
		ctx:           tabCtx,
		cancel:        cancel,
		interceptor:   interceptor.New(opts.Policy, framework.LoggerWithPrefix(sl, "[interceptor] ")),
		logger:        sl,
		echo:          opts.Echo,
		viewport:      opts.Viewport,
		actionTimeout: opts.ActionTimeout,
	}
	if s.echo == nil {
		s.echo = framework.NullLogger()
	}
	// an empty Run allocates the tab
	if err := chromedp.Run(tabCtx); err != nil {
		return nil, fmt.Errorf("could not open browser tab: %w", err)
	}
	chromedp.ListenTarget(tabCtx, s.onPageEvent)
	if err := chromedp.Run(tabCtx, chromedp.EmulateViewport(int64(s.viewport.Width), int64(s.viewport.Height))); err != nil {
		return nil, fmt.Errorf("could not set viewport: %w", err)
	}
	return s, nil
}

func (s *Session) onPageEvent(ev interface{}) {
	switch ev := ev.(type) {
	case *runtime.EventConsoleAPICalled:
		msg := consoleText(ev.Args)
		s.logger.Printf("[page] Log: %s", msg)
		s.echo.Printf("Log: %s", msg)
	case *runtime.EventExceptionThrown:
		msg := exceptionText(ev.ExceptionDetails)
		s.logger.Printf("[page] Error: %s", msg)
		s.echo.Printf("Error: %s", msg)
	}
}

// Interceptor returns the rules for this tab.
func (s *Session) Interceptor() *interceptor.Interceptor {
	return s.interceptor
}

// runContext gives a context that belongs to the tab but also ends when ctx does.
func (s *Session) runContext(ctx context.Context) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithTimeout(s.ctx, s.actionTimeout)
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

// Open navigates the tab to url. Interception is active, and setup has run, before the request
// for the page is made, so rules installed by setup apply to the page's first calls.
func (s *Session) Open(ctx context.Context, url string, setup func() error) error {
	if !s.attached {
		if err := interceptor.Attach(s.ctx, s.interceptor); err != nil {
			return err
		}
		s.attached = true
	}
	if setup != nil {
		if err := setup(); err != nil {
			return err
		}
	}
	s.logger.Printf("Opening %s", url)
	runCtx, done := s.runContext(ctx)
	defer done()
	if err := chromedp.Run(runCtx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("could not open %s: %w", url, err)
	}
	return nil
}

func awaitPromise(p *runtime.EvaluateParams) *runtime.EvaluateParams {
	return p.WithAwaitPromise(true)
}

// Evaluate runs a JavaScript expression in the page. If res is not nil, the result is decoded
// into it as JSON.
func (s *Session) Evaluate(ctx context.Context, expression string, res interface{}) error {
	runCtx, done := s.runContext(ctx)
	defer done()
	return chromedp.Run(runCtx, chromedp.Evaluate(expression, res, awaitPromise))
}

// EvaluateFunc calls a JavaScript function, given as source text, with args encoded as JSON.
func (s *Session) EvaluateFunc(ctx context.Context, fn string, res interface{}, args ...interface{}) error {
	encoded := make([]string, 0, len(args))
	for _, a := range args {
		data, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("could not encode argument for page function: %w", err)
		}
		encoded = append(encoded, string(data))
	}
	return s.Evaluate(ctx, "("+fn+")("+strings.Join(encoded, ",")+")", res)
}

// Click clicks the first element matching the CSS selector, once it is visible.
func (s *Session) Click(ctx context.Context, selector string) error {
	runCtx, done := s.runContext(ctx)
	defer done()
	if err := chromedp.Run(runCtx, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("could not click %q: %w", selector, err)
	}
	return nil
}

func (s *Session) SetViewport(ctx context.Context, width, height int) error {
	runCtx, done := s.runContext(ctx)
	defer done()
	if err := chromedp.Run(runCtx, chromedp.EmulateViewport(int64(width), int64(height))); err != nil {
		return err
	}
	s.viewport = Viewport{Width: width, Height: height}
	return nil
}

// Capture writes a PNG of the top-left viewport-sized region of the page to path.
func (s *Session) Capture(ctx context.Context, path string) error {
	var buf []byte
	runCtx, done := s.runContext(ctx)
	defer done()
	err := chromedp.Run(runCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		buf, err = page.CaptureScreenshot().
			WithFormat(page.CaptureScreenshotFormatPng).
			WithClip(&page.Viewport{
				X:      0,
				Y:      0,
				Width:  float64(s.viewport.Width),
				Height: float64(s.viewport.Height),
				Scale:  1,
			}).
			Do(ctx)
		return err
	}))
	if err != nil {
		return fmt.Errorf("could not capture screenshot: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	s.logger.Printf("Saved screenshot %s", path)
	return os.WriteFile(path, buf, 0o644)
}

// Close closes the tab. A shared tab stays open until the browser closes.
func (s *Session) Close() error {
	if s.shared {
		return nil
	}
	s.cancel()
	return nil
}

func consoleText(args []*runtime.RemoteObject) string {
	parts := make([]string, 0, len(args))
	for _, arg := range args {
		switch {
		case len(arg.Value) > 0:
			var str string
			if err := json.Unmarshal([]byte(arg.Value), &str); err == nil {
				parts = append(parts, str)
			} else {
				parts = append(parts, string(arg.Value))
			}
		case arg.Description != "":
			parts = append(parts, arg.Description)
		default:
			parts = append(parts, string(arg.Type))
		}
	}
	return strings.Join(parts, " ")
}

func exceptionText(details *runtime.ExceptionDetails) string {
	if details == nil {
		return "unknown error"
	}
	if details.Exception != nil && details.Exception.Description != "" {
		return details.Exception.Description
	}
	return details.Text
}

type switchableLogger struct {
	target framework.Logger
	lock   sync.Mutex
}

func (l *switchableLogger) setTarget(target framework.Logger) {
	if target == nil {
		target = framework.NullLogger()
	}
	l.lock.Lock()
	l.target = target
	l.lock.Unlock()
}

func (l *switchableLogger) Printf(message string, args ...interface{}) {
	l.lock.Lock()
	target := l.target
	l.lock.Unlock()
	target.Printf(message, args...)
}
