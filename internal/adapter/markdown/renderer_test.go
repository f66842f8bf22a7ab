package markdown_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/getpanelist/panelist/internal/adapter/markdown"
	"github.com/getpanelist/panelist/internal/domain"
)

func sampleReview() domain.SynthesizedReview {
	return domain.SynthesizedReview{
		Overview:           "One real problem, one nit.",
		TotalReviewers:     2,
		SucceededReviewers: 2,
		CriticalCount:      1,
		WarningCount:       0,
		InfoCount:          1,
		Passed:             false,
		Findings: []domain.Finding{
			{File: "auth.go", Line: 42, Side: domain.SideNew, Severity: domain.SeverityCritical,
				Body: "token compared with ==", Reviewers: []string{"security"}},
			{File: "auth.go", Line: 10, Side: domain.SideNew, Severity: domain.SeverityInfo,
				Body: "consider a doc comment", Reviewers: []string{"style", "security"}},
		},
	}
}

func TestRender_SectionsAndOrder(t *testing.T) {
	renderer := markdown.NewRenderer()

	got := renderer.Render(sampleReview(), nil)

	assert.Contains(t, got, "- Verdict: CHANGES REQUESTED")
	assert.Contains(t, got, "- Reviewers: 2/2 succeeded")
	assert.Contains(t, got, "- Findings: 1 critical, 0 warning, 1 info")
	assert.Contains(t, got, "One real problem, one nit.")
	assert.Contains(t, got, "## Critical")
	assert.Contains(t, got, "## Info")
	assert.Contains(t, got, "`auth.go:42`")
	assert.Contains(t, got, "_Raised by: style, security_")

	// Critical section before info section.
	assert.Less(t, strings.Index(got, "## Critical"), strings.Index(got, "## Info"))
}

func TestRender_PassedWithNoFindings(t *testing.T) {
	renderer := markdown.NewRenderer()
	review := domain.SynthesizedReview{
		Overview:           "Clean change.",
		TotalReviewers:     1,
		SucceededReviewers: 1,
		Passed:             true,
	}

	got := renderer.Render(review, nil)

	assert.Contains(t, got, "- Verdict: PASSED")
	assert.Contains(t, got, "No findings reported.")
	assert.NotContains(t, got, "## Critical")
}

func TestRender_RangeFindingShowsSpan(t *testing.T) {
	renderer := markdown.NewRenderer()
	review := sampleReview()
	review.Findings[0].StartLine = 40

	got := renderer.Render(review, nil)

	assert.Contains(t, got, "`auth.go:40-42`")
}

func TestRender_ReviewerTable(t *testing.T) {
	renderer := markdown.NewRenderer()
	outputs := []domain.ReviewerOutput{
		{Reviewer: "security", Success: true, Elapsed: 1500 * time.Millisecond},
		{Reviewer: "style", Success: false, Err: "model timeout", Elapsed: 2 * time.Second},
	}

	got := renderer.Render(sampleReview(), outputs)

	assert.Contains(t, got, "| security | ok | 1.5s |")
	assert.Contains(t, got, "| style | failed: model timeout | 2s |")
}
