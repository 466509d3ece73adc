package waiter

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePage answers expressions from a table of functions, encoding results through JSON the way
// the browser does.
type fakePage struct {
	answers map[string]func() (interface{}, error)
	calls   int
	lock    sync.Mutex
}

func newFakePage() *fakePage {
	return &fakePage{answers: make(map[string]func() (interface{}, error))}
}

func (f *fakePage) on(expression string, answer func() (interface{}, error)) {
	f.lock.Lock()
	f.answers[expression] = answer
	f.lock.Unlock()
}

func (f *fakePage) Evaluate(ctx context.Context, expression string, res interface{}) error {
	f.lock.Lock()
	answer := f.answers[expression]
	f.calls++
	f.lock.Unlock()
	if answer == nil {
		return errors.New("unexpected expression: " + expression)
	}
	v, err := answer()
	if err != nil {
		return err
	}
	data, _ := json.Marshal(v)
	return json.Unmarshal(data, res)
}

func (f *fakePage) callCount() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.calls
}

type pageText struct {
	value *string
	lock  sync.Mutex
}

func (p *pageText) set(s string) {
	p.lock.Lock()
	p.value = &s
	p.lock.Unlock()
}

func (p *pageText) get() (interface{}, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.value == nil {
		return nil, nil
	}
	return *p.value, nil
}

func TestSelectorExistsReturnsAsSoonAsElementAppears(t *testing.T) {
	page := newFakePage()
	appearAt := time.Now().Add(100 * time.Millisecond)
	page.on(`document.querySelectorAll(".coding-rule").length > 0`, func() (interface{}, error) {
		return time.Now().After(appearAt), nil
	})

	start := time.Now()
	err := WaitFor(context.Background(), page, SelectorExists(".coding-rule"),
		Options{Interval: 10 * time.Millisecond, Timeout: time.Second})
	require.NoError(t, err)
	assert.Less(t, int64(time.Since(start)), int64(500*time.Millisecond))
}

func TestPredicateAlreadyTrueReturnsImmediately(t *testing.T) {
	page := newFakePage()
	page.on(`document.querySelectorAll("#x").length > 0`, func() (interface{}, error) { return true, nil })

	require.NoError(t, WaitFor(context.Background(), page, SelectorExists("#x"), Options{}))
	assert.Equal(t, 1, page.callCount())
}

func TestTimeoutIsBoundedByTimeoutPlusInterval(t *testing.T) {
	page := newFakePage()
	page.on(`document.querySelectorAll(".never").length > 0`, func() (interface{}, error) { return false, nil })

	timeout := 150 * time.Millisecond
	interval := 40 * time.Millisecond
	start := time.Now()
	err := WaitFor(context.Background(), page, SelectorExists(".never"), Options{Interval: interval, Timeout: timeout})
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrWaitTimeout))
	var te *TimeoutError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, `selector ".never" to exist`, te.Predicate)
	assert.GreaterOrEqual(t, int64(te.Elapsed), int64(timeout))
	assert.GreaterOrEqual(t, int64(elapsed), int64(timeout))
	// generous allowance for a busy machine, on top of one interval
	assert.Less(t, int64(elapsed), int64(timeout+interval+200*time.Millisecond))
	assert.Contains(t, err.Error(), `waiting for selector ".never" to exist`)
}

func TestSlowPageDoesNotExtendTimeout(t *testing.T) {
	stuck := Func("page to answer", func(ctx context.Context, _ Evaluator) (bool, error) {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(2 * time.Second):
			return true, nil
		}
	})

	timeout := 100 * time.Millisecond
	interval := 20 * time.Millisecond
	start := time.Now()
	err := WaitFor(context.Background(), newFakePage(), stuck, Options{Interval: interval, Timeout: timeout})
	elapsed := time.Since(start)

	var te *TimeoutError
	require.True(t, errors.As(err, &te), "expected a timeout, got %v", err)
	assert.Nil(t, te.LastErr)
	assert.GreaterOrEqual(t, int64(elapsed), int64(timeout))
	assert.Less(t, int64(elapsed), int64(timeout+interval+200*time.Millisecond))
}

func TestTextChangedDoesNotFireBeforeMutation(t *testing.T) {
	page := newFakePage()
	text := &pageText{}
	text.set("609")
	page.on(TextExpression("#coding-rules-total"), text.get)

	err := WaitFor(context.Background(), page, SelectorTextChanged("#coding-rules-total"),
		Options{Interval: 10 * time.Millisecond, Timeout: 100 * time.Millisecond})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrWaitTimeout))
	assert.Contains(t, err.Error(), `change from "609"`)
}

func TestTextChangedFiresAfterMutation(t *testing.T) {
	page := newFakePage()
	text := &pageText{}
	text.set("609")
	page.on(TextExpression("#coding-rules-total"), text.get)

	go func() {
		time.Sleep(50 * time.Millisecond)
		text.set("101")
	}()

	err := WaitFor(context.Background(), page, SelectorTextChanged("#coding-rules-total"),
		Options{Interval: 10 * time.Millisecond, Timeout: 2 * time.Second})
	require.NoError(t, err)
}

func TestTextChangedWhenElementAppears(t *testing.T) {
	page := newFakePage()
	text := &pageText{}
	page.on(TextExpression("#total"), text.get)

	p := SelectorTextChanged("#total")
	require.NoError(t, p.(Beginner).Begin(context.Background(), page))
	ok, err := p.Check(context.Background(), page)
	require.NoError(t, err)
	assert.False(t, ok)

	text.set("1")
	ok, err = p.Check(context.Background(), page)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestElementCount(t *testing.T) {
	page := newFakePage()
	var lock sync.Mutex
	n := 0
	page.on(CountExpression(".has-issues"), func() (interface{}, error) {
		lock.Lock()
		defer lock.Unlock()
		n++
		return n, nil
	})

	err := WaitFor(context.Background(), page, ElementCount(".has-issues", 6),
		Options{Interval: time.Millisecond, Timeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, 6, page.callCount())
}

func TestElementCountTimeoutReportsLastCount(t *testing.T) {
	page := newFakePage()
	page.on(CountExpression("li"), func() (interface{}, error) { return 2, nil })

	err := WaitFor(context.Background(), page, ElementCount("li", 3),
		Options{Interval: 5 * time.Millisecond, Timeout: 20 * time.Millisecond})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `3 elements matching "li" (last saw 2)`)
}

func TestEvaluationErrorsDoNotEndTheWait(t *testing.T) {
	page := newFakePage()
	var lock sync.Mutex
	calls := 0
	page.on("ready()", func() (interface{}, error) {
		lock.Lock()
		defer lock.Unlock()
		calls++
		if calls < 3 {
			return nil, errors.New("execution context was destroyed")
		}
		return true, nil
	})

	err := WaitFor(context.Background(), page, Expression("page ready", "ready()"),
		Options{Interval: time.Millisecond, Timeout: time.Second})
	require.NoError(t, err)
}

func TestTimeoutCarriesLastEvaluationError(t *testing.T) {
	page := newFakePage()
	page.on("ready()", func() (interface{}, error) { return nil, errors.New("no page") })

	err := WaitFor(context.Background(), page, Expression("page ready", "ready()"),
		Options{Interval: 5 * time.Millisecond, Timeout: 20 * time.Millisecond})
	var te *TimeoutError
	require.True(t, errors.As(err, &te))
	require.Error(t, te.LastErr)
	assert.Equal(t, "no page", te.LastErr.Error())
}

func TestCancelledContextEndsWait(t *testing.T) {
	page := newFakePage()
	page.on("false", func() (interface{}, error) { return false, nil })

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	err := WaitFor(ctx, page, Expression("never", "false"), Options{Interval: 5 * time.Millisecond, Timeout: 10 * time.Second})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestFuncPredicate(t *testing.T) {
	p := Func("always", func(context.Context, Evaluator) (bool, error) { return true, nil })
	assert.Equal(t, "always", p.Describe())
	require.NoError(t, WaitFor(context.Background(), newFakePage(), p, Options{}))
}
