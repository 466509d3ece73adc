package scenarios

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webfixture/browser-acceptance-tests/fixtures"
	"github.com/webfixture/browser-acceptance-tests/webtests"
)

type sourceLineFixture struct {
	Line              int    `json:"line"`
	LineHits          *int   `json:"lineHits"`
	Conditions        int    `json:"conditions"`
	CoveredConditions int    `json:"coveredConditions"`
	Duplicated        bool   `json:"duplicated"`
	SCMAuthor         string `json:"scmAuthor"`
}

// lineDecorations counts the rows the source viewer decorates with each class, classifying lines
// the way acceptance/webapp/js/source-viewer.js does.
func lineDecorations(t *testing.T, store *fixtures.Store) map[string]int {
	var lines struct {
		Sources []sourceLineFixture `json:"sources"`
	}
	var issues struct {
		Issues []struct {
			Line int `json:"line"`
		} `json:"issues"`
	}
	for path, target := range map[string]interface{}{"lines.json": &lines, "issues.json": &issues} {
		data, err := store.Load(path)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(data, target), path)
	}

	issueLines := make(map[int]bool)
	for _, issue := range issues.Issues {
		if issue.Line > 0 {
			issueLines[issue.Line] = true
		}
	}

	counts := make(map[string]int)
	for _, line := range lines.Sources {
		switch {
		case line.LineHits == nil:
		case *line.LineHits == 0:
			counts[".source-line-uncovered"]++
		case line.Conditions > 0 && line.CoveredConditions < line.Conditions:
			counts[".source-line-partially-covered"]++
		default:
			counts[".source-line-covered"]++
		}
		if line.Duplicated {
			counts[".source-line-duplicated"]++
		}
		if issueLines[line.Line] {
			counts[".has-issues"]++
		}
		if line.SCMAuthor != "" {
			counts[".source-line-scm-inner"]++
		}
	}
	return counts
}

func TestSourceViewerFixturesMatchDecorationCounts(t *testing.T) {
	var base webtests.Scenario
	found := false
	for _, s := range SourceViewer() {
		if s.Name() == webtests.TestName("Source Viewer", "Base") {
			base, found = s, true
		}
	}
	require.True(t, found)

	counts := lineDecorations(t, fixtures.NewStore(base.FixtureDir("")))

	assert.Equal(t, map[string]int{
		".has-issues":                    6,
		".source-line-covered":           142,
		".source-line-uncovered":         50,
		".source-line-partially-covered": 2,
		".source-line-duplicated":        30,
		".source-line-scm-inner":         186,
	}, counts)
}
