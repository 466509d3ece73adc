package waiter

import (
	"context"
	"encoding/json"
	"fmt"
)

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

type selectorExists struct {
	selector string
}

// SelectorExists holds once at least one element matches the CSS selector.
func SelectorExists(selector string) Predicate {
	return selectorExists{selector: selector}
}

func (p selectorExists) Describe() string {
	return fmt.Sprintf("selector %q to exist", p.selector)
}

func (p selectorExists) Check(ctx context.Context, ev Evaluator) (bool, error) {
	var found bool
	err := ev.Evaluate(ctx, ExistsExpression(p.selector), &found)
	return found, err
}

type elementCount struct {
	selector string
	count    int
	last     int
}

// ElementCount holds once exactly count elements match the CSS selector.
func ElementCount(selector string, count int) Predicate {
	return &elementCount{selector: selector, count: count, last: -1}
}

func (p *elementCount) Describe() string {
	if p.last >= 0 {
		return fmt.Sprintf("%d elements matching %q (last saw %d)", p.count, p.selector, p.last)
	}
	return fmt.Sprintf("%d elements matching %q", p.count, p.selector)
}

func (p *elementCount) Check(ctx context.Context, ev Evaluator) (bool, error) {
	var n int
	if err := ev.Evaluate(ctx, CountExpression(p.selector), &n); err != nil {
		return false, err
	}
	p.last = n
	return n == p.count, nil
}

// ExistsExpression is the JavaScript expression for whether any element matches selector.
func ExistsExpression(selector string) string {
	return fmt.Sprintf("document.querySelectorAll(%s).length > 0", jsString(selector))
}

// CountExpression is the JavaScript expression for the number of elements matching selector.
func CountExpression(selector string) string {
	return fmt.Sprintf("document.querySelectorAll(%s).length", jsString(selector))
}

// TextExpression is the JavaScript expression for the text content of the first element
// matching selector, or null if there is none.
func TextExpression(selector string) string {
	return fmt.Sprintf("(function(){var e=document.querySelector(%s);return e?e.textContent:null;})()",
		jsString(selector))
}

// AllTextExpression is the JavaScript expression for the text content of every element matching
// selector joined together, or null if there is none.
func AllTextExpression(selector string) string {
	return fmt.Sprintf("(function(){var es=document.querySelectorAll(%s);if(!es.length)return null;"+
		"return Array.prototype.map.call(es,function(e){return e.textContent;}).join('');})()",
		jsString(selector))
}

type textChanged struct {
	selector string
	snapshot *string
	started  bool
}

// SelectorTextChanged holds once the text of the first element matching the selector differs
// from what it was when the wait began. It is meant for one wait only.
func SelectorTextChanged(selector string) Predicate {
	return &textChanged{selector: selector}
}

func (p *textChanged) Describe() string {
	if p.snapshot != nil {
		return fmt.Sprintf("text of %q to change from %q", p.selector, *p.snapshot)
	}
	return fmt.Sprintf("text of %q to change", p.selector)
}

func (p *textChanged) Begin(ctx context.Context, ev Evaluator) error {
	var text *string
	if err := ev.Evaluate(ctx, TextExpression(p.selector), &text); err != nil {
		return err
	}
	p.snapshot = text
	p.started = true
	return nil
}

func (p *textChanged) Check(ctx context.Context, ev Evaluator) (bool, error) {
	var text *string
	if err := ev.Evaluate(ctx, TextExpression(p.selector), &text); err != nil {
		return false, err
	}
	if !p.started {
		// the snapshot could not be taken at the start; the first successful read becomes it
		p.snapshot = text
		p.started = true
		return false, nil
	}
	switch {
	case p.snapshot == nil && text == nil:
		return false, nil
	case p.snapshot == nil || text == nil:
		return true, nil
	default:
		return *p.snapshot != *text, nil
	}
}

type expression struct {
	description string
	js          string
}

// Expression holds once the JavaScript expression evaluates to true.
func Expression(description, js string) Predicate {
	return expression{description: description, js: js}
}

func (p expression) Describe() string {
	return p.description
}

func (p expression) Check(ctx context.Context, ev Evaluator) (bool, error) {
	var ok bool
	err := ev.Evaluate(ctx, p.js, &ok)
	return ok, err
}

type funcPredicate struct {
	description string
	fn          func(context.Context, Evaluator) (bool, error)
}

// Func adapts an arbitrary check into a Predicate.
func Func(description string, fn func(context.Context, Evaluator) (bool, error)) Predicate {
	return funcPredicate{description: description, fn: fn}
}

func (p funcPredicate) Describe() string {
	return p.description
}

func (p funcPredicate) Check(ctx context.Context, ev Evaluator) (bool, error) {
	return p.fn(ctx, ev)
}
