package scenarios

import "github.com/webfixture/browser-acceptance-tests/webtests"

const (
	sourceViewerFixtures = "source-viewer"
	header               = ".source-viewer-header"
	headerMeasure        = ".source-viewer-header-measure"
	sourceLine           = ".source-line"
)

func SourceViewer() []webtests.Scenario {
	return []webtests.Scenario{
		sourceViewerBase(),
		sourceViewerDecoration(),
		sourceViewerTestFile(),
	}
}

func sourceViewerName(name string) string {
	return webtests.TestName("Source Viewer", name)
}

// openSourceViewer loads the viewer with the given component and lines fixtures.
func openSourceViewer(appFixture, linesFixture string) webtests.Step {
	return webtests.Open("source-viewer", func(t *webtests.T) {
		t.SetDefaultViewport()
		mockMessages(t)
		t.MockRequestFromFile("/api/components/app", appFixture)
		t.MockRequestFromFile("/api/sources/lines", linesFixture)
		t.MockRequestFromFile("/api/issues/search", "issues.json")
	})
}

func waitForSource() webtests.Step {
	return webtests.Wait("source is shown", func(t *webtests.T) {
		t.WaitForSelector(sourceLine)
	})
}

func sourceViewerBase() webtests.Scenario {
	return webtests.NewScenario(sourceViewerName("Base"),
		openSourceViewer("app.json", "lines.json"),
		waitForSource(),
		webtests.Assert("header", func(t *webtests.T) {
			t.AssertExists(header)
			t.AssertSelectorContains(header, "SonarQube")
			t.AssertSelectorContains(header, "SonarQube :: Batch")
			t.AssertSelectorContains(header, "src/main/java/org/sonar/batch/index/Cache.java")
			t.AssertExists(header + " .js-favorite")
			t.AssertExists(".source-viewer-header-actions")
		}),
		webtests.Assert("main measures", func(t *webtests.T) {
			t.AssertSelectorContains(headerMeasure, "A")
			t.AssertSelectorContains(headerMeasure, "2h 10min")
			t.AssertSelectorContains(headerMeasure, "6")
			t.AssertSelectorContains(headerMeasure, "74.3%")
			t.AssertSelectorContains(headerMeasure, "5.8%")
		}),
		webtests.Assert("source", func(t *webtests.T) {
			t.AssertSelectorContains(".source-viewer", "public class Cache")
		}),
		webtests.SendCoverage(),
	).WithFixtures(sourceViewerFixtures)
}

func sourceViewerDecoration() webtests.Scenario {
	return webtests.NewScenario(sourceViewerName("Decoration"),
		openSourceViewer("app.json", "lines.json"),
		waitForSource(),
		webtests.Assert("issues", func(t *webtests.T) {
			t.AssertElementCount(".has-issues", 6)
		}),
		webtests.Assert("coverage", func(t *webtests.T) {
			t.AssertElementCount(".source-line-covered", 142)
			t.AssertElementCount(".source-line-uncovered", 50)
			t.AssertElementCount(".source-line-partially-covered", 2)
		}),
		webtests.Assert("duplications", func(t *webtests.T) {
			t.AssertElementCount(".source-line-duplicated", 30)
		}),
		webtests.Assert("scm", func(t *webtests.T) {
			t.AssertElementCount(".source-line-scm-inner", 186)
			t.AssertExists(`.source-line-scm-inner[data-author="simon.brandhof@gmail.com"]`)
			t.AssertExists(`.source-line-scm-inner[data-author="julien.henry@sonarsource.com"]`)
		}),
		webtests.SendCoverage(),
	).WithFixtures(sourceViewerFixtures)
}

func sourceViewerTestFile() webtests.Scenario {
	return webtests.NewScenario(sourceViewerName("Test File"),
		openSourceViewer("tests/app.json", "tests/lines.json"),
		waitForSource(),
		webtests.Assert("test count", func(t *webtests.T) {
			t.AssertSelectorContains(headerMeasure, "6")
		}),
		webtests.SendCoverage(),
	).WithFixtures(sourceViewerFixtures)
}
