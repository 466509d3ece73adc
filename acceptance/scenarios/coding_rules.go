package scenarios

import (
	"github.com/webfixture/browser-acceptance-tests/interceptor"
	"github.com/webfixture/browser-acceptance-tests/webtests"
)

const (
	rulesTotal         = "#coding-rules-total"
	selectedRule       = ".coding-rule.selected"
	availableSinceBox  = `[data-property="available_since"]`
	customRulesSection = "#coding-rules-detail-custom-rules"
	customRuleNames    = customRulesSection + " .coding-rules-detail-list-name"
	// set on window before filtering, and lost if the page reloads
	inPlaceMarker = "filteredInPlace"
)

func CodingRules() []webtests.Scenario {
	return []webtests.Scenario{
		availableSince(),
		customRules(),
		deprecatedLabel(),
	}
}

func availableSince() webtests.Scenario {
	return webtests.NewScenario("coding-rules-page-available-since",
		webtests.Open("coding-rules", func(t *webtests.T) {
			t.SetDefaultViewport()
			mockMessages(t)
			t.MockRequestFromFile("/api/rules/app", "app.json")
			t.MockRequestFromFile("/api/rules/search", "search-limited.json",
				interceptor.WithData(interceptor.Matcher{"available_since": "2014-12-01"}))
			t.MockRequestFromFile("/api/rules/search", "search.json")
		}),
		webtests.Wait("rules are listed", func(t *webtests.T) {
			t.WaitForSelector(".coding-rule")
		}),
		webtests.Act("filter by availability date", func(t *webtests.T) {
			t.AssertSelectorContains(rulesTotal, "609")
			var marked bool
			t.Evaluate(`window.`+inPlaceMarker+` = true`, &marked)
			t.Click(availableSinceBox + " .js-facet-toggle")
			t.EvaluateFunc(`function (selector, value) {
				var input = document.querySelector(selector);
				input.value = value;
				input.dispatchEvent(new Event('change'));
			}`, nil, availableSinceBox+" input", "2014-12-01")
		}),
		webtests.Wait("total is updated", func(t *webtests.T) {
			t.WaitForSelectorTextChange(rulesTotal)
		}),
		webtests.Assert("only newer rules are counted", func(t *webtests.T) {
			t.AssertSelectorContains(rulesTotal, "101")
			var kept bool
			t.Evaluate(`window.`+inPlaceMarker+` === true`, &kept)
			if !kept {
				t.Errorf("the page was reloaded when the filter changed")
			}
		}),
		webtests.SendCoverage(),
	).WithPlannedAssertions(2)
}

func customRules() webtests.Scenario {
	return webtests.NewScenario("coding-rules-page-should-show-custom-rules",
		webtests.Open("coding-rules", func(t *webtests.T) {
			t.SetDefaultViewport()
			mockMessages(t)
			t.MockRequestFromFile("/api/rules/app", "app.json")
			t.MockRequestFromFile("/api/rules/search", "search-custom-rules.json",
				interceptor.WithData(interceptor.Matcher{"template_key": "squid:ArchitecturalConstraint"}))
			t.MockRequestFromFile("/api/rules/search", "search.json")
			t.MockRequestFromFile("/api/rules/show", "show.json")
			t.MockRequest("/api/issues/search", "{}")
		}),
		webtests.Act("open the selected rule", func(t *webtests.T) {
			t.WaitForSelector(selectedRule)
			t.Click(selectedRule + " .js-rule")
		}),
		webtests.Wait("custom rules are listed", func(t *webtests.T) {
			t.WaitForSelector(customRuleNames)
		}),
		webtests.Assert("custom rules", func(t *webtests.T) {
			t.AssertExists(customRulesSection)
			t.AssertElementCount(customRuleNames, 2)
			t.AssertSelectorContains(customRuleNames, "Do not use org.h2.util.StringUtils")
		}),
		webtests.SendCoverage(),
	).WithPlannedAssertions(3)
}

func deprecatedLabel() webtests.Scenario {
	return webtests.NewScenario("coding-rules-page-should-show-deprecated-label",
		webtests.Open("coding-rules", func(t *webtests.T) {
			t.SetDefaultViewport()
			mockMessages(t)
			t.MockRequestFromFile("/api/rules/app", "app.json")
			t.MockRequestFromFile("/api/rules/search", "search.json")
		}),
		webtests.Wait("a rule is selected", func(t *webtests.T) {
			t.WaitForSelector(selectedRule)
		}),
		webtests.Assert("deprecated label", func(t *webtests.T) {
			t.AssertSelectorContains(selectedRule, "DEPRECATED")
		}),
		webtests.SendCoverage(),
	).WithPlannedAssertions(1)
}
