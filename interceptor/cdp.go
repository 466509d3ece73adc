package interceptor

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// Only calls made by page scripts are paused. Documents, scripts and stylesheets always go
// straight to the server that hosts the application.
var interceptPatterns = []*fetch.RequestPattern{
	{URLPattern: "*", ResourceType: network.ResourceTypeXHR, RequestStage: fetch.RequestStageRequest},
	{URLPattern: "*", ResourceType: network.ResourceTypeFetch, RequestStage: fetch.RequestStageRequest},
}

// Attach enables request interception in the browser tab that ctx belongs to. From then on every
// XHR or fetch call the page makes is answered according to i.
func Attach(ctx context.Context, i *Interceptor) error {
	chromedp.ListenTarget(ctx, func(ev interface{}) {
		if e, ok := ev.(*fetch.EventRequestPaused); ok {
			// Answering needs a round trip to the browser, which must not happen on the event
			// dispatch goroutine.
			go i.answer(ctx, e)
		}
	})
	if err := chromedp.Run(ctx, fetch.Enable().WithPatterns(interceptPatterns)); err != nil {
		return fmt.Errorf("could not enable request interception: %w", err)
	}
	return nil
}

func (i *Interceptor) answer(ctx context.Context, e *fetch.EventRequestPaused) {
	c := chromedp.FromContext(ctx)
	if c == nil || c.Target == nil {
		return
	}
	execCtx := cdp.WithExecutor(ctx, c.Target)

	req, err := requestFromEvent(e)
	if err != nil {
		i.logger.Printf("Could not read paused request %s: %s", e.Request.URL, err)
		_ = fetch.FailRequest(e.RequestID, network.ErrorReasonFailed).Do(execCtx)
		return
	}

	decision := i.Resolve(req)
	switch decision.Outcome {
	case Fulfill:
		headers := []*fetch.HeaderEntry{
			{Name: "Content-Type", Value: decision.Rule.ContentType},
			{Name: "Content-Length", Value: strconv.Itoa(len(decision.Rule.Body))},
			{Name: "Access-Control-Allow-Origin", Value: "*"},
			{Name: "Cache-Control", Value: "no-store"},
		}
		err = fetch.FulfillRequest(e.RequestID, int64(decision.Rule.Status)).
			WithResponseHeaders(headers).
			WithBody(base64.StdEncoding.EncodeToString(decision.Rule.Body)).
			Do(execCtx)
	case Continue:
		err = fetch.ContinueRequest(e.RequestID).Do(execCtx)
	default:
		err = fetch.FailRequest(e.RequestID, network.ErrorReasonBlockedByClient).Do(execCtx)
	}
	if err != nil && ctx.Err() == nil {
		i.logger.Printf("Could not answer %s: %s", req, err)
	}
}

func requestFromEvent(e *fetch.EventRequestPaused) (Request, error) {
	u, err := url.Parse(e.Request.URL)
	if err != nil {
		return Request{}, err
	}
	req := Request{Method: e.Request.Method, URL: u}
	for name, value := range e.Request.Headers {
		if strings.EqualFold(name, "Content-Type") {
			req.ContentType = fmt.Sprint(value)
		}
	}
	for _, entry := range e.Request.PostDataEntries {
		data, err := base64.StdEncoding.DecodeString(entry.Bytes)
		if err != nil {
			return Request{}, fmt.Errorf("malformed request body: %w", err)
		}
		req.Body = append(req.Body, data...)
	}
	return req, nil
}
