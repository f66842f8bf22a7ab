package synth_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getpanelist/panelist/internal/domain"
	"github.com/getpanelist/panelist/internal/usecase/synth"
)

func output(name string, findings ...domain.Finding) domain.ReviewerOutput {
	return domain.ReviewerOutput{
		Reviewer: name,
		Success:  true,
		Review:   &domain.ReviewerReview{Overview: name + " overview", Findings: findings},
	}
}

func finding(reviewer, file string, line int, severity domain.Severity, body string) domain.Finding {
	return domain.Finding{
		File:      file,
		Line:      line,
		Side:      domain.SideNew,
		Severity:  severity,
		Body:      body,
		Reviewers: []string{reviewer},
	}
}

func TestSynthesize_TwoReviewersDistinctLocations(t *testing.T) {
	// Given: one warning on auth.ts:42, one critical on auth.ts:99
	s := synth.NewSynthesizer(nil, nil)
	outputs := []domain.ReviewerOutput{
		output("style", finding("style", "auth.ts", 42, domain.SeverityWarning, "naming")),
		output("security", finding("security", "auth.ts", 99, domain.SeverityCritical, "injection")),
	}

	// When
	result := s.Synthesize(context.Background(), outputs, domain.SeverityInfo)

	// Then
	require.Len(t, result.Findings, 2)
	assert.Equal(t, 1, result.CriticalCount)
	assert.Equal(t, 1, result.WarningCount)
	assert.Equal(t, 0, result.InfoCount)
	assert.False(t, result.Passed)
	assert.Equal(t, 2, result.TotalReviewers)
	assert.Equal(t, 2, result.SucceededReviewers)
}

func TestSynthesize_HighestSeverityWinsAtSameLocation(t *testing.T) {
	s := synth.NewSynthesizer(nil, nil)
	outputs := []domain.ReviewerOutput{
		output("style", finding("style", "auth.ts", 42, domain.SeverityInfo, "nit")),
		output("security", finding("security", "auth.ts", 42, domain.SeverityCritical, "injection")),
	}

	result := s.Synthesize(context.Background(), outputs, domain.SeverityInfo)

	require.Len(t, result.Findings, 1)
	f := result.Findings[0]
	assert.Equal(t, domain.SeverityCritical, f.Severity)
	assert.Equal(t, "injection", f.Body)
	assert.ElementsMatch(t, []string{"style", "security"}, f.Reviewers)
}

func TestSynthesize_SameSeverityTieConcatenatesBodies(t *testing.T) {
	s := synth.NewSynthesizer(nil, nil)
	outputs := []domain.ReviewerOutput{
		output("a", finding("a", "auth.ts", 42, domain.SeverityWarning, "first opinion")),
		output("b", finding("b", "auth.ts", 42, domain.SeverityWarning, "second opinion")),
	}

	result := s.Synthesize(context.Background(), outputs, domain.SeverityInfo)

	require.Len(t, result.Findings, 1)
	f := result.Findings[0]
	assert.Contains(t, f.Body, "first opinion")
	assert.Contains(t, f.Body, "second opinion")
	assert.Contains(t, f.Body, "---")
	assert.ElementsMatch(t, []string{"a", "b"}, f.Reviewers)
}

func TestSynthesize_SideIsPartOfDedupKey(t *testing.T) {
	s := synth.NewSynthesizer(nil, nil)
	left := finding("a", "auth.ts", 42, domain.SeverityWarning, "old side")
	left.Side = domain.SideOld
	right := finding("b", "auth.ts", 42, domain.SeverityWarning, "new side")

	result := s.Synthesize(context.Background(), []domain.ReviewerOutput{
		output("a", left),
		output("b", right),
	}, domain.SeverityInfo)

	assert.Len(t, result.Findings, 2, "LEFT and RIGHT findings at the same line must not merge")
}

func TestSynthesize_MinSeverityFilter(t *testing.T) {
	s := synth.NewSynthesizer(nil, nil)
	outputs := []domain.ReviewerOutput{
		output("r",
			finding("r", "a.go", 1, domain.SeverityInfo, "note"),
			finding("r", "a.go", 2, domain.SeverityWarning, "warn"),
			finding("r", "a.go", 3, domain.SeverityCritical, "crit"),
		),
	}

	result := s.Synthesize(context.Background(), outputs, domain.SeverityWarning)

	require.Len(t, result.Findings, 2)
	for _, f := range result.Findings {
		assert.GreaterOrEqual(t, f.Severity.Rank(), domain.SeverityWarning.Rank())
	}
	assert.Equal(t, len(result.Findings), result.CriticalCount+result.WarningCount+result.InfoCount)
}

func TestSynthesize_FailedOutputsContributeNothing(t *testing.T) {
	s := synth.NewSynthesizer(nil, nil)
	outputs := []domain.ReviewerOutput{
		{Reviewer: "down", Success: false, Err: "timeout"},
		output("up", finding("up", "a.go", 1, domain.SeverityInfo, "note")),
	}

	result := s.Synthesize(context.Background(), outputs, domain.SeverityInfo)

	assert.Len(t, result.Findings, 1)
	assert.Equal(t, 2, result.TotalReviewers)
	assert.Equal(t, 1, result.SucceededReviewers)
	assert.NotContains(t, result.Overview, "down")
}

func TestSynthesize_PassedTrueWithoutCriticals(t *testing.T) {
	s := synth.NewSynthesizer(nil, nil)
	outputs := []domain.ReviewerOutput{
		output("r", finding("r", "a.go", 1, domain.SeverityWarning, "warn")),
	}

	result := s.Synthesize(context.Background(), outputs, domain.SeverityInfo)

	assert.True(t, result.Passed)
}

func TestMergeFindings_Idempotent(t *testing.T) {
	outputs := []domain.ReviewerOutput{
		output("a", finding("a", "auth.ts", 42, domain.SeverityWarning, "first")),
		output("b", finding("b", "auth.ts", 42, domain.SeverityWarning, "second")),
		output("c", finding("c", "auth.ts", 99, domain.SeverityCritical, "crit")),
	}

	once := synth.MergeFindings(outputs)
	twice := synth.MergeFindings([]domain.ReviewerOutput{
		{Reviewer: "merged", Success: true, Review: &domain.ReviewerReview{Findings: once}},
	})

	assert.Equal(t, once, twice)
}

func TestSynthesize_DeterministicOverview(t *testing.T) {
	s := synth.NewSynthesizer(nil, nil)
	outputs := []domain.ReviewerOutput{
		output("security"),
		output("style"),
	}

	result := s.Synthesize(context.Background(), outputs, domain.SeverityInfo)

	assert.Contains(t, result.Overview, "### security")
	assert.Contains(t, result.Overview, "security overview")
	assert.Contains(t, result.Overview, "### style")
}

type fakeProvider struct {
	overview string
	passed   *bool
	err      error

	gotOverviews []synth.ReviewerOverview
}

func (f *fakeProvider) SynthesizeOverview(ctx context.Context, overviews []synth.ReviewerOverview) (string, *bool, error) {
	f.gotOverviews = overviews
	return f.overview, f.passed, f.err
}

func TestSynthesize_ProviderOverviewUsed(t *testing.T) {
	provider := &fakeProvider{overview: "combined"}
	s := synth.NewSynthesizer(provider, nil)

	result := s.Synthesize(context.Background(), []domain.ReviewerOutput{output("r")}, domain.SeverityInfo)

	assert.Equal(t, "combined", result.Overview)
	require.Len(t, provider.gotOverviews, 1)
	assert.Equal(t, "r", provider.gotOverviews[0].Reviewer)
}

func TestSynthesize_ProviderPassedOverride(t *testing.T) {
	fail := false
	provider := &fakeProvider{overview: "combined", passed: &fail}
	s := synth.NewSynthesizer(provider, nil)

	// No critical findings, so the local verdict would be passed=true.
	result := s.Synthesize(context.Background(), []domain.ReviewerOutput{output("r")}, domain.SeverityInfo)

	assert.False(t, result.Passed, "explicit provider override wins")
}

func TestSynthesize_ProviderFailureFallsBack(t *testing.T) {
	provider := &fakeProvider{err: errors.New("model down")}
	s := synth.NewSynthesizer(provider, nil)

	result := s.Synthesize(context.Background(), []domain.ReviewerOutput{output("r")}, domain.SeverityInfo)

	assert.Contains(t, result.Overview, "### r")
}
