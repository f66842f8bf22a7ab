// Package synth merges the findings of all reviewers into one review.
// The merge is always performed locally, never delegated to a model, so
// line references survive synthesis untouched.
package synth

import (
	"context"
	"fmt"
	"strings"

	"github.com/getpanelist/panelist/internal/domain"
)

// ReviewerOverview pairs a reviewer's name with its free-text overview.
type ReviewerOverview struct {
	Reviewer string
	Overview string
}

// OverviewProvider optionally produces a synthesized overview from the
// reviewers' free-text overviews. It never sees structured findings. A
// non-nil passed pointer overrides the local verdict.
type OverviewProvider interface {
	SynthesizeOverview(ctx context.Context, overviews []ReviewerOverview) (overview string, passed *bool, err error)
}

// Logger mirrors the review use case's structured logging port.
type Logger interface {
	LogWarning(ctx context.Context, message string, fields map[string]interface{})
	LogInfo(ctx context.Context, message string, fields map[string]interface{})
}

// mergeSeparator splits the concatenated bodies of same-severity findings
// from different reviewers.
const mergeSeparator = "\n\n---\n\n"

// Synthesizer deduplicates findings across reviewers and settles the
// pass/fail verdict.
type Synthesizer struct {
	provider OverviewProvider
	logger   Logger
}

// NewSynthesizer constructs a Synthesizer. provider may be nil, in which
// case the overview is always the deterministic concatenation.
func NewSynthesizer(provider OverviewProvider, logger Logger) *Synthesizer {
	return &Synthesizer{provider: provider, logger: logger}
}

type mergeKey struct {
	file string
	line int
	side domain.Side
}

// Synthesize merges every successful output's findings by (file, line,
// side), keeps the highest severity per location, filters below
// minSeverity, and computes the verdict.
func (s *Synthesizer) Synthesize(ctx context.Context, outputs []domain.ReviewerOutput, minSeverity domain.Severity) domain.SynthesizedReview {
	merged := MergeFindings(outputs)

	filtered := make([]domain.Finding, 0, len(merged))
	for _, f := range merged {
		if f.Severity.Rank() >= minSeverity.Rank() {
			filtered = append(filtered, f)
		}
	}

	result := domain.SynthesizedReview{
		Findings:       filtered,
		TotalReviewers: len(outputs),
	}
	for _, out := range outputs {
		if out.Success {
			result.SucceededReviewers++
		}
	}
	for _, f := range filtered {
		switch f.Severity {
		case domain.SeverityCritical:
			result.CriticalCount++
		case domain.SeverityWarning:
			result.WarningCount++
		default:
			result.InfoCount++
		}
	}
	result.Passed = result.CriticalCount == 0

	overviews := collectOverviews(outputs)
	result.Overview = deterministicOverview(overviews)

	if s.provider != nil && len(overviews) > 0 {
		overview, passed, err := s.provider.SynthesizeOverview(ctx, overviews)
		if err != nil {
			if s.logger != nil {
				s.logger.LogWarning(ctx, "overview synthesis failed, using deterministic overview", map[string]interface{}{
					"error": err.Error(),
				})
			}
		} else {
			if overview != "" {
				result.Overview = overview
			}
			if passed != nil {
				result.Passed = *passed
			}
		}
	}

	return result
}

// MergeFindings collects every finding from every successful output and
// groups by (file, line, side). The highest severity wins; same-severity
// findings from different reviewers concatenate bodies and union their
// reviewer lists. Output order follows first appearance. The merge is
// idempotent: merging its own output changes nothing.
func MergeFindings(outputs []domain.ReviewerOutput) []domain.Finding {
	byKey := make(map[mergeKey]int)
	var merged []domain.Finding

	for _, out := range outputs {
		if !out.Success || out.Review == nil {
			continue
		}
		for _, f := range out.Review.Findings {
			key := mergeKey{file: f.File, line: f.Line, side: f.Side}
			idx, seen := byKey[key]
			if !seen {
				byKey[key] = len(merged)
				merged = append(merged, f)
				continue
			}

			existing := &merged[idx]
			switch {
			case f.Severity.Rank() > existing.Severity.Rank():
				reviewers := existing.Reviewers
				*existing = f
				existing.Reviewers = unionReviewers(reviewers, f.Reviewers)
			case f.Severity.Rank() == existing.Severity.Rank():
				if !sameBody(existing.Body, f.Body) {
					existing.Body = existing.Body + mergeSeparator + f.Body
				}
				existing.Reviewers = unionReviewers(existing.Reviewers, f.Reviewers)
			default:
				existing.Reviewers = unionReviewers(existing.Reviewers, f.Reviewers)
			}
		}
	}

	return merged
}

// sameBody reports whether a body is already part of the merged text, so
// re-merging merged output stays idempotent.
func sameBody(merged, candidate string) bool {
	for _, part := range strings.Split(merged, mergeSeparator) {
		if part == candidate {
			return true
		}
	}
	return false
}

func unionReviewers(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, name := range append(append([]string{}, a...), b...) {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

func collectOverviews(outputs []domain.ReviewerOutput) []ReviewerOverview {
	var overviews []ReviewerOverview
	for _, out := range outputs {
		if !out.Success || out.Review == nil || strings.TrimSpace(out.Review.Overview) == "" {
			continue
		}
		overviews = append(overviews, ReviewerOverview{
			Reviewer: out.Reviewer,
			Overview: strings.TrimSpace(out.Review.Overview),
		})
	}
	return overviews
}

// deterministicOverview concatenates each reviewer's overview under its
// own heading. Used when no provider is configured or the provider fails.
func deterministicOverview(overviews []ReviewerOverview) string {
	if len(overviews) == 0 {
		return ""
	}
	parts := make([]string, 0, len(overviews))
	for _, o := range overviews {
		parts = append(parts, fmt.Sprintf("### %s\n\n%s", o.Reviewer, o.Overview))
	}
	return strings.Join(parts, "\n\n")
}
