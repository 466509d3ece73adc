// Package webtests runs browser acceptance scenarios.
//
// A Scenario is an ordered list of Steps. The sequencer runs the steps of one scenario strictly
// one after another in a single browser tab (a PageSession), and stops at the first step that
// fails. The first step normally opens a page, installing mock rules for the page's backend
// calls before the page is requested; later steps act on the page, wait for conditions with
// the waiter package, and make assertions. A report step at the end can send coverage; it is
// allowed to fail without failing the scenario.
//
// Steps are written against *T, which plays the role of *testing.T and also carries the browser
// and fixture operations a scenario needs. The assert and require packages from testify can be
// used with a *T directly.
package webtests
