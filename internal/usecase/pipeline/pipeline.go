// Package pipeline wires the review stages into the two top-level flows:
// reviewing a change and re-checking previously posted findings.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/getpanelist/panelist/internal/diff"
	"github.com/getpanelist/panelist/internal/domain"
	"github.com/getpanelist/panelist/internal/usecase/publish"
	"github.com/getpanelist/panelist/internal/usecase/track"
)

// ChangeSource fetches a change snapshot and its raw diff from the hosting
// platform.
type ChangeSource interface {
	FetchChangeContext(ctx context.Context, owner, repo string, number int) (domain.ChangeContext, error)
	FetchRawDiff(ctx context.Context, changeCtx domain.ChangeContext) (string, error)
}

// LocalSource builds a change snapshot from a repository on disk.
type LocalSource interface {
	Snapshot(ctx context.Context, baseRef, headRef string) (domain.ChangeContext, string, error)
}

// ReviewerOrchestrator fans a change out to the configured reviewers.
type ReviewerOrchestrator interface {
	RunAll(ctx context.Context, changeCtx domain.ChangeContext, rawDiff string, specs []domain.ReviewerSpec) []domain.ReviewerOutput
}

// ReviewSynthesizer merges reviewer outputs into one verdict.
type ReviewSynthesizer interface {
	Synthesize(ctx context.Context, outputs []domain.ReviewerOutput, minSeverity domain.Severity) domain.SynthesizedReview
}

// ReviewPublisher posts or updates the review on the platform.
type ReviewPublisher interface {
	Publish(ctx context.Context, changeCtx domain.ChangeContext, review domain.SynthesizedReview, parsed diff.ParsedDiff) (publish.Result, error)
}

// ReportRenderer formats a synthesized review for local output.
type ReportRenderer interface {
	Render(review domain.SynthesizedReview, outputs []domain.ReviewerOutput) string
}

// ResolutionChecker re-checks previously posted findings.
type ResolutionChecker interface {
	Check(ctx context.Context, changeCtx domain.ChangeContext) (track.Report, error)
}

// Logger receives structured pipeline events. Optional.
type Logger interface {
	LogInfo(ctx context.Context, message string, fields map[string]interface{})
}

// Deps wires the pipeline. Local, Renderer and Logger are optional; the
// rest are required.
type Deps struct {
	Source       ChangeSource
	Local        LocalSource
	Orchestrator ReviewerOrchestrator
	Synthesizer  ReviewSynthesizer
	Publisher    ReviewPublisher
	Renderer     ReportRenderer
	Tracker      ResolutionChecker
}

// ReviewRequest describes one review run. Either the platform coordinates
// (Owner, Repo, Number) or the local refs (BaseRef, HeadRef) must be set;
// local runs are always dry runs.
type ReviewRequest struct {
	Owner   string
	Repo    string
	Number  int
	BaseRef string
	HeadRef string
	DryRun  bool

	Specs       []domain.ReviewerSpec
	MinSeverity domain.Severity
}

// ReviewResult is the outcome of one review run.
type ReviewResult struct {
	Review    domain.SynthesizedReview
	Outputs   []domain.ReviewerOutput
	Published *publish.Result
	Report    string // Rendered Markdown, set on dry runs.
}

// Pipeline executes the review and resolution flows.
type Pipeline struct {
	deps   Deps
	logger Logger
}

// NewPipeline validates and wires the pipeline dependencies.
func NewPipeline(deps Deps, logger Logger) (*Pipeline, error) {
	if err := validateDependencies(deps); err != nil {
		return nil, err
	}
	return &Pipeline{deps: deps, logger: logger}, nil
}

func validateDependencies(deps Deps) error {
	if deps.Orchestrator == nil {
		return errors.New("orchestrator is required")
	}
	if deps.Synthesizer == nil {
		return errors.New("synthesizer is required")
	}
	if deps.Publisher == nil {
		return errors.New("publisher is required")
	}
	if deps.Tracker == nil {
		return errors.New("tracker is required")
	}
	// Source is checked per-request: local-only runs do not need it.
	// Local, Renderer and Logger are optional.
	return nil
}

// ReviewChange runs the full review flow: snapshot, reviewer fan-out,
// synthesis, then publication (or a rendered report on dry runs).
func (p *Pipeline) ReviewChange(ctx context.Context, req ReviewRequest) (ReviewResult, error) {
	if len(req.Specs) == 0 {
		return ReviewResult{}, errors.New("no reviewers configured")
	}

	changeCtx, rawDiff, err := p.snapshot(ctx, req)
	if err != nil {
		return ReviewResult{}, err
	}
	if len(changeCtx.Files) == 0 {
		return ReviewResult{}, errors.New("change contains no files")
	}

	outputs := p.deps.Orchestrator.RunAll(ctx, changeCtx, rawDiff, req.Specs)
	review := p.deps.Synthesizer.Synthesize(ctx, outputs, req.MinSeverity)

	result := ReviewResult{Review: review, Outputs: outputs}
	if review.SucceededReviewers == 0 {
		return result, errors.New("all reviewers failed")
	}

	// Local ref-based runs have no change to publish against.
	if req.DryRun || req.Number == 0 {
		if p.deps.Renderer != nil {
			result.Report = p.deps.Renderer.Render(review, outputs)
		}
		return result, nil
	}

	parsed, err := diff.Parse(rawDiff)
	if err != nil {
		return result, fmt.Errorf("parse diff for publication: %w", err)
	}
	published, err := p.deps.Publisher.Publish(ctx, changeCtx, review, parsed)
	if err != nil {
		return result, fmt.Errorf("publish review: %w", err)
	}
	result.Published = &published

	p.logInfo(ctx, "review published", map[string]interface{}{
		"reviewID": published.ReviewID,
		"isUpdate": published.IsUpdate,
		"passed":   review.Passed,
	})
	return result, nil
}

// CheckRequest identifies the change whose findings should be re-checked.
type CheckRequest struct {
	Owner  string
	Repo   string
	Number int
}

// CheckResolutions re-examines previously posted findings against the
// change's current head.
func (p *Pipeline) CheckResolutions(ctx context.Context, req CheckRequest) (track.Report, error) {
	if p.deps.Source == nil {
		return track.Report{}, errors.New("platform source is required")
	}
	changeCtx, err := p.deps.Source.FetchChangeContext(ctx, req.Owner, req.Repo, req.Number)
	if err != nil {
		return track.Report{}, fmt.Errorf("fetch change context: %w", err)
	}
	return p.deps.Tracker.Check(ctx, changeCtx)
}

// snapshot picks the platform or local source based on the request shape.
func (p *Pipeline) snapshot(ctx context.Context, req ReviewRequest) (domain.ChangeContext, string, error) {
	if req.Number > 0 {
		if p.deps.Source == nil {
			return domain.ChangeContext{}, "", errors.New("platform source is required")
		}
		changeCtx, err := p.deps.Source.FetchChangeContext(ctx, req.Owner, req.Repo, req.Number)
		if err != nil {
			return domain.ChangeContext{}, "", fmt.Errorf("fetch change context: %w", err)
		}
		rawDiff, err := p.deps.Source.FetchRawDiff(ctx, changeCtx)
		if err != nil {
			return domain.ChangeContext{}, "", fmt.Errorf("fetch raw diff: %w", err)
		}
		return changeCtx, rawDiff, nil
	}

	if p.deps.Local == nil {
		return domain.ChangeContext{}, "", errors.New("local source is required for ref-based reviews")
	}
	if req.BaseRef == "" || req.HeadRef == "" {
		return domain.ChangeContext{}, "", errors.New("base and head refs are required")
	}
	changeCtx, rawDiff, err := p.deps.Local.Snapshot(ctx, req.BaseRef, req.HeadRef)
	if err != nil {
		return domain.ChangeContext{}, "", fmt.Errorf("local snapshot: %w", err)
	}
	return changeCtx, rawDiff, nil
}

func (p *Pipeline) logInfo(ctx context.Context, message string, fields map[string]interface{}) {
	if p.logger != nil {
		p.logger.LogInfo(ctx, message, fields)
	}
}
