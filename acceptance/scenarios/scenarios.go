// Package scenarios holds the acceptance scenarios for the sample web application. Fixtures for a
// scenario live in acceptance/json/<fixture set>.
package scenarios

import "github.com/webfixture/browser-acceptance-tests/webtests"

// All returns every scenario in the order they run.
func All() []webtests.Scenario {
	var all []webtests.Scenario
	all = append(all, CodingRules()...)
	all = append(all, SourceViewer()...)
	return all
}

func mockMessages(t *webtests.T) {
	t.MockRequest("/api/l10n/index", "{}")
}
