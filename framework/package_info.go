// Package framework contains the low-level implementation of test harness infrastructure
// that can be reused for different kinds of browser tests.
//
// The general model is:
//
// 1. The application under test is served over HTTP, either by an external server or by the
// harness's own asset server, and is reachable at some base URL.
//
// 2. A browser driven by the harness loads pages from that base URL, while the harness answers
// the page's backend calls itself.
//
// 3. There is a general notion of a test context which is similar to Go's *testing.T,
// allowing pieces of test logic to be associated with a test identifier and to accumulate
// success/failure results.
//
// The domain-specific code that knows what is being tested is responsible for driving the
// browser, providing canned responses, and a domain-specific test API on top of the test
// context.
package framework
