// Package interceptor decides how to answer the HTTP calls that a page under test makes to its
// backend. Scenarios install mock rules; every outgoing call is then fulfilled from the first
// matching rule, or handled according to the unmatched-call policy.
package interceptor

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/webfixture/browser-acceptance-tests/framework"
)

const DefaultContentType = "application/json; charset=utf-8"

// UnmatchedPolicy says what happens to a call that no rule matches.
type UnmatchedPolicy string

const (
	// PolicyFail blocks the call and records a mismatch, which fails the scenario.
	PolicyFail UnmatchedPolicy = "fail"
	// PolicyPassthrough lets the call go to the real network.
	PolicyPassthrough UnmatchedPolicy = "passthrough"
)

// ParsePolicy accepts the names used in configuration files and on the command line.
func ParsePolicy(s string) (UnmatchedPolicy, error) {
	switch UnmatchedPolicy(strings.ToLower(s)) {
	case "", PolicyFail:
		return PolicyFail, nil
	case PolicyPassthrough:
		return PolicyPassthrough, nil
	}
	return "", fmt.Errorf("unknown unmatched-call policy %q", s)
}

// Matcher is a set of fields that must all be present, with equal values, in a request's
// payload for a rule to apply.
type Matcher map[string]string

func (m Matcher) String() string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+m[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (m Matcher) matches(payload map[string]string) bool {
	for k, v := range m {
		if actual, ok := payload[k]; !ok || actual != v {
			return false
		}
	}
	return true
}

// Handle identifies one installed rule so that it can be removed on its own.
type Handle int

// Rule is one canned response.
type Rule struct {
	Handle      Handle
	URL         string
	Matcher     Matcher
	Body        []byte
	ContentType string
	Status      int

	pattern *url.URL
}

func (r Rule) String() string {
	if len(r.Matcher) == 0 {
		return r.URL
	}
	return r.URL + " " + r.Matcher.String()
}

func (r Rule) matches(req Request, payload map[string]string) bool {
	if !urlMatches(r.pattern, req.URL) {
		return false
	}
	return r.Matcher.matches(payload)
}

// RuleOption customizes a rule at installation time.
type RuleOption func(*Rule)

// WithData restricts a rule to requests whose payload contains every field of m.
func WithData(m Matcher) RuleOption {
	return func(r *Rule) {
		if r.Matcher == nil {
			r.Matcher = make(Matcher, len(m))
		}
		for k, v := range m {
			r.Matcher[k] = v
		}
	}
}

func WithContentType(contentType string) RuleOption {
	return func(r *Rule) { r.ContentType = contentType }
}

func WithStatus(status int) RuleOption {
	return func(r *Rule) { r.Status = status }
}

// Request is the part of an outgoing call that rules are evaluated against.
type Request struct {
	Method      string
	URL         *url.URL
	ContentType string
	Body        []byte
}

func (r Request) String() string {
	return r.Method + " " + r.URL.String()
}

// Outcome is what the browser binding should do with a call.
type Outcome int

const (
	Fulfill Outcome = iota
	Continue
	Block
)

// Decision is the result of evaluating a call against the installed rules.
type Decision struct {
	Outcome Outcome
	Rule    Rule
}

// Interceptor holds the rules of one page session. Browser events arrive on their own
// goroutines, so all methods are safe for concurrent use.
type Interceptor struct {
	policy     UnmatchedPolicy
	rules      []Rule
	lastHandle Handle
	mismatches []*MismatchError
	logger     framework.Logger
	lock       sync.Mutex
}

func New(policy UnmatchedPolicy, logger framework.Logger) *Interceptor {
	if logger == nil {
		logger = framework.NullLogger()
	}
	if policy == "" {
		policy = PolicyFail
	}
	return &Interceptor{policy: policy, logger: logger}
}

func (i *Interceptor) Policy() UnmatchedPolicy {
	return i.policy
}

// Install adds a rule answering calls to urlPattern with body. A pattern starting with "/" is
// compared against the request path only; an absolute pattern is compared against scheme, host
// and path. Any query string in the pattern becomes part of the rule's matcher.
func (i *Interceptor) Install(urlPattern string, body []byte, opts ...RuleOption) Handle {
	rule := Rule{
		URL:         urlPattern,
		Body:        body,
		ContentType: DefaultContentType,
		Status:      200,
	}
	pattern, err := url.Parse(urlPattern)
	if err != nil {
		pattern = &url.URL{Path: urlPattern}
	}
	if pattern.Host == "" && !strings.HasPrefix(pattern.Path, "/") {
		pattern.Path = "/" + pattern.Path
	}
	if pattern.RawQuery != "" {
		queryMatcher := Matcher{}
		for k, vs := range pattern.Query() {
			queryMatcher[k] = vs[0]
		}
		WithData(queryMatcher)(&rule)
		pattern.RawQuery = ""
	}
	rule.pattern = pattern
	for _, o := range opts {
		o(&rule)
	}

	i.lock.Lock()
	defer i.lock.Unlock()
	i.lastHandle++
	rule.Handle = i.lastHandle
	i.rules = append(i.rules, rule)
	i.logger.Printf("Installed mock rule %d: %s (%d bytes)", rule.Handle, rule, len(body))
	return rule.Handle
}

// ClearAll removes every rule.
func (i *Interceptor) ClearAll() {
	i.lock.Lock()
	i.rules = nil
	i.lock.Unlock()
	i.logger.Printf("Cleared all mock rules")
}

// ClearOne removes the rule with handle h, and reports whether there was one.
func (i *Interceptor) ClearOne(h Handle) bool {
	i.lock.Lock()
	defer i.lock.Unlock()
	for n, r := range i.rules {
		if r.Handle == h {
			i.rules = append(i.rules[:n:n], i.rules[n+1:]...)
			i.logger.Printf("Cleared mock rule %d", h)
			return true
		}
	}
	return false
}

// Reset returns the interceptor to its initial state, with no rules and no recorded mismatches.
func (i *Interceptor) Reset() {
	i.lock.Lock()
	i.rules = nil
	i.mismatches = nil
	i.lock.Unlock()
}

// Rules returns the installed rules in registration order.
func (i *Interceptor) Rules() []Rule {
	i.lock.Lock()
	defer i.lock.Unlock()
	return append([]Rule(nil), i.rules...)
}

// Resolve evaluates req against the rules in registration order. The first rule that matches
// decides the response. If none does, the outcome depends on the policy, and under PolicyFail
// the call is recorded as a mismatch.
func (i *Interceptor) Resolve(req Request) Decision {
	payload := RequestPayload(req)

	i.lock.Lock()
	defer i.lock.Unlock()
	for _, r := range i.rules {
		if r.matches(req, payload) {
			i.logger.Printf("%s answered by rule %d", req, r.Handle)
			return Decision{Outcome: Fulfill, Rule: r}
		}
	}
	if i.policy == PolicyPassthrough {
		i.logger.Printf("%s matched no rule, passing through", req)
		return Decision{Outcome: Continue}
	}
	mismatch := &MismatchError{Request: req.String(), Payload: payload}
	for _, r := range i.rules {
		if urlMatches(r.pattern, req.URL) {
			mismatch.Candidates = append(mismatch.Candidates, r.String())
		}
	}
	i.mismatches = append(i.mismatches, mismatch)
	i.logger.Printf("%s matched no rule, blocking it", req)
	return Decision{Outcome: Block}
}

// TakeMismatches returns the mismatches recorded since the last call, and forgets them.
func (i *Interceptor) TakeMismatches() []*MismatchError {
	i.lock.Lock()
	defer i.lock.Unlock()
	ret := i.mismatches
	i.mismatches = nil
	return ret
}

func urlMatches(pattern, actual *url.URL) bool {
	if pattern == nil || actual == nil {
		return false
	}
	if pattern.Host != "" {
		if !strings.EqualFold(pattern.Scheme, actual.Scheme) || !strings.EqualFold(pattern.Host, actual.Host) {
			return false
		}
	}
	return pattern.Path == actual.Path
}
