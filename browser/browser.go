// Package browser drives a Chrome tab through the DevTools protocol. A Browser is started once
// per run; every scenario gets a Session, which is the tab it navigates, clicks and inspects.
package browser

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/webfixture/browser-acceptance-tests/framework"
	"github.com/webfixture/browser-acceptance-tests/interceptor"
)

// SessionMode says whether scenarios share one tab.
type SessionMode string

const (
	// SessionFresh opens a new tab, in its own browser context, for every scenario.
	SessionFresh SessionMode = "fresh"
	// SessionShared reuses one tab, clearing cookies and rules between scenarios.
	SessionShared SessionMode = "shared"
)

type Viewport struct {
	Width  int `yaml:"width" validate:"gte=0"`
	Height int `yaml:"height" validate:"gte=0"`
}

var DefaultViewport = Viewport{Width: 1200, Height: 800}

type Options struct {
	ExecPath      string
	RemoteURL     string
	Headful       bool
	NoSandbox     bool
	Viewport      Viewport
	Mode          SessionMode
	Policy        interceptor.UnmatchedPolicy
	ActionTimeout time.Duration
	// Echo, if set, also receives the page's console messages and uncaught errors.
	Echo framework.Logger
}

type Browser struct {
	opts          Options
	allocCtx      context.Context
	cancelAlloc   context.CancelFunc
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	shared        *Session
	logger        framework.Logger
	lock          sync.Mutex
}

// Launch starts Chrome, or connects to a running one if opts.RemoteURL is set.
func Launch(ctx context.Context, opts Options, logger framework.Logger) (*Browser, error) {
	if logger == nil {
		logger = framework.NullLogger()
	}
	if opts.Viewport.Width <= 0 || opts.Viewport.Height <= 0 {
		opts.Viewport = DefaultViewport
	}
	if opts.Mode == "" {
		opts.Mode = SessionFresh
	}
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = 30 * time.Second
	}

	var allocCtx context.Context
	var cancelAlloc context.CancelFunc
	if opts.RemoteURL != "" {
		logger.Printf("Connecting to browser at %s", opts.RemoteURL)
		allocCtx, cancelAlloc = chromedp.NewRemoteAllocator(ctx, opts.RemoteURL)
	} else {
		allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.NoFirstRun,
			chromedp.NoDefaultBrowserCheck,
			chromedp.DisableGPU,
			chromedp.WindowSize(opts.Viewport.Width, opts.Viewport.Height),
		)
		if opts.Headful {
			allocOpts = append(allocOpts, chromedp.Flag("headless", false))
		}
		if opts.NoSandbox {
			allocOpts = append(allocOpts, chromedp.NoSandbox)
		}
		if opts.ExecPath != "" {
			allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
		}
		allocCtx, cancelAlloc = chromedp.NewExecAllocator(ctx, allocOpts...)
	}

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(logger.Printf))
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("could not start browser: %w", err)
	}
	return &Browser{
		opts:          opts,
		allocCtx:      allocCtx,
		cancelAlloc:   cancelAlloc,
		browserCtx:    browserCtx,
		cancelBrowser: cancelBrowser,
		logger:        logger,
	}, nil
}

// NewSession returns the tab for the next scenario. Its rules are always empty. Page output and
// interceptor activity are written to logger.
func (b *Browser) NewSession(ctx context.Context, logger framework.Logger) (*Session, error) {
	if b.opts.Mode == SessionShared {
		return b.sharedSession(ctx, logger)
	}
	tabCtx, cancel := chromedp.NewContext(b.browserCtx, chromedp.WithNewBrowserContext())
	s, err := newSession(tabCtx, cancel, b.opts, logger)
	if err != nil {
		cancel()
		return nil, err
	}
	return s, nil
}

func (b *Browser) sharedSession(ctx context.Context, logger framework.Logger) (*Session, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.shared == nil {
		tabCtx, cancel := chromedp.NewContext(b.browserCtx)
		s, err := newSession(tabCtx, cancel, b.opts, logger)
		if err != nil {
			cancel()
			return nil, err
		}
		s.shared = true
		b.shared = s
		return s, nil
	}
	s := b.shared
	s.logger.setTarget(logger)
	s.interceptor.Reset()
	runCtx, done := s.runContext(ctx)
	defer done()
	err := chromedp.Run(runCtx,
		network.ClearBrowserCookies(),
		chromedp.Navigate("about:blank"),
		chromedp.EmulateViewport(int64(b.opts.Viewport.Width), int64(b.opts.Viewport.Height)),
	)
	if err != nil {
		return nil, fmt.Errorf("could not reset shared tab: %w", err)
	}
	return s, nil
}

// Close shuts down the browser and every tab it opened.
func (b *Browser) Close() {
	b.lock.Lock()
	if b.shared != nil {
		b.shared.cancel()
		b.shared = nil
	}
	b.lock.Unlock()
	b.cancelBrowser()
	b.cancelAlloc()
}

// FindExecPath locates a Chrome or Chromium binary, honoring CHROME_BIN first.
func FindExecPath() (string, bool) {
	if p := strings.TrimSpace(os.Getenv("CHROME_BIN")); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	for _, name := range []string{
		"headless-shell",
		"chromium",
		"chromium-browser",
		"google-chrome",
		"google-chrome-stable",
		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	} {
		if p, err := exec.LookPath(name); err == nil {
			return p, true
		}
	}
	return "", false
}
