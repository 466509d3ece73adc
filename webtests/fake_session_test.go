package webtests

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"sync"

	"github.com/webfixture/browser-acceptance-tests/framework"
	"github.com/webfixture/browser-acceptance-tests/interceptor"
	"github.com/webfixture/browser-acceptance-tests/waiter"
)

// fakePage stands in for a browser tab. Its "DOM" is a table of element texts and counts, and
// hooks simulate what the page's scripts do on load, on clicks and on evaluated functions.
type fakePage struct {
	ic          *interceptor.Interceptor
	texts       map[string]string
	counts      map[string]int
	onOpen      func(p *fakePage)
	onClick     map[string]func(p *fakePage)
	onFunc      func(p *fakePage, args []interface{})
	openedURL   string
	opens       int
	rulesAtOpen int
	captured    []string
	closed      bool
	lock        sync.Mutex
}

func newFakePage(policy interceptor.UnmatchedPolicy) *fakePage {
	return &fakePage{
		ic:      interceptor.New(policy, nil),
		texts:   make(map[string]string),
		counts:  make(map[string]int),
		onClick: make(map[string]func(p *fakePage)),
	}
}

func (p *fakePage) setText(selector, text string) {
	p.lock.Lock()
	p.texts[selector] = text
	p.lock.Unlock()
}

func (p *fakePage) setCount(selector string, n int) {
	p.lock.Lock()
	p.counts[selector] = n
	p.lock.Unlock()
}

// request simulates an XHR made by the page and returns the body it got back.
func (p *fakePage) openCount() int {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.opens
}

func (p *fakePage) request(rawURL string) (string, bool) {
	u, _ := url.Parse(rawURL)
	d := p.ic.Resolve(interceptor.Request{Method: "GET", URL: u})
	if d.Outcome != interceptor.Fulfill {
		return "", false
	}
	return string(d.Rule.Body), true
}

func (p *fakePage) Open(ctx context.Context, url string, setup func() error) error {
	if err := setup(); err != nil {
		return err
	}
	p.lock.Lock()
	p.openedURL = url
	p.opens++
	p.rulesAtOpen = len(p.ic.Rules())
	p.lock.Unlock()
	if p.onOpen != nil {
		p.onOpen(p)
	}
	return nil
}

func encodeInto(v interface{}, res interface{}) error {
	if res == nil {
		return nil
	}
	data, _ := json.Marshal(v)
	return json.Unmarshal(data, res)
}

func (p *fakePage) Evaluate(ctx context.Context, expression string, res interface{}) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	for sel, text := range p.texts {
		if expression == waiter.TextExpression(sel) || expression == waiter.AllTextExpression(sel) {
			return encodeInto(text, res)
		}
	}
	for sel, n := range p.counts {
		switch expression {
		case waiter.CountExpression(sel):
			return encodeInto(n, res)
		case waiter.ExistsExpression(sel):
			return encodeInto(n > 0, res)
		}
	}
	// selectors that match nothing
	switch {
	case strings.HasPrefix(expression, "(function(){var e=document.querySelector("),
		strings.HasPrefix(expression, "(function(){var es=document.querySelectorAll("):
		return encodeInto(nil, res)
	case strings.HasSuffix(expression, ".length > 0"):
		return encodeInto(false, res)
	}
	return encodeInto(0, res)
}

func (p *fakePage) EvaluateFunc(ctx context.Context, fn string, res interface{}, args ...interface{}) error {
	if p.onFunc != nil {
		p.onFunc(p, args)
	}
	return encodeInto(nil, res)
}

func (p *fakePage) Click(ctx context.Context, selector string) error {
	p.lock.Lock()
	hook := p.onClick[selector]
	p.lock.Unlock()
	if hook == nil {
		return errors.New("no element matches " + selector)
	}
	hook(p)
	return nil
}

func (p *fakePage) SetViewport(ctx context.Context, width, height int) error { return nil }

func (p *fakePage) Capture(ctx context.Context, path string) error {
	p.lock.Lock()
	p.captured = append(p.captured, path)
	p.lock.Unlock()
	return nil
}

func (p *fakePage) Interceptor() *interceptor.Interceptor { return p.ic }

func (p *fakePage) Close() error {
	p.lock.Lock()
	p.closed = true
	p.lock.Unlock()
	return nil
}

func providerFor(pages ...*fakePage) (SessionProvider, *int) {
	next := 0
	return SessionProviderFunc(func(ctx context.Context, logger framework.Logger) (PageSession, error) {
		if next >= len(pages) {
			return pages[len(pages)-1], nil
		}
		p := pages[next]
		next++
		return p, nil
	}), &next
}
