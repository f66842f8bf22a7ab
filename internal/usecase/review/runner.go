package review

import (
	"context"
	"log"
	"time"

	"github.com/getpanelist/panelist/internal/domain"
)

// ModelCaller is the outbound port to an opaque model capability. The
// modelHint selects which model answers; an empty hint means "use your
// default".
type ModelCaller interface {
	Invoke(ctx context.Context, prompt, modelHint string) (string, error)
}

// ContextFetcher optionally supplies full-file context blocks to enrich
// the prompt beyond the hunk boundaries.
type ContextFetcher interface {
	FetchContext(ctx context.Context, changeCtx domain.ChangeContext) ([]ContextBlock, error)
}

// Redactor strips secrets from prompt text before it leaves the process.
type Redactor interface {
	Redact(input string) (string, error)
}

const defaultReviewerTimeout = 120 * time.Second

// Runner executes one reviewer persona against a change set.
type Runner struct {
	caller  ModelCaller
	fetcher ContextFetcher
	redact  Redactor
	timeout time.Duration
	logger  Logger
}

// RunnerOption customizes a Runner.
type RunnerOption func(*Runner)

// WithContextFetcher supplies full-file context blocks for prompts.
func WithContextFetcher(f ContextFetcher) RunnerOption {
	return func(r *Runner) { r.fetcher = f }
}

// WithRedactor applies secret redaction to outgoing prompts.
func WithRedactor(red Redactor) RunnerOption {
	return func(r *Runner) { r.redact = red }
}

// WithTimeout sets the per-reviewer model call ceiling.
func WithTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger Logger) RunnerOption {
	return func(r *Runner) { r.logger = logger }
}

// NewRunner constructs a Runner around the given model capability.
func NewRunner(caller ModelCaller, opts ...RunnerOption) *Runner {
	r := &Runner{
		caller:  caller,
		timeout: defaultReviewerTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes one reviewer spec and settles into a ReviewerOutput. Model
// and timeout errors fail the output; a malformed response degrades into
// an overview-only success.
func (r *Runner) Run(ctx context.Context, changeCtx domain.ChangeContext, rawDiff string, spec domain.ReviewerSpec) domain.ReviewerOutput {
	start := time.Now()

	var blocks []ContextBlock
	if r.fetcher != nil {
		fetched, err := r.fetcher.FetchContext(ctx, changeCtx)
		if err != nil {
			r.logWarning(ctx, "context fetch failed, continuing without full-file context", map[string]interface{}{
				"reviewer": spec.Name,
				"error":    err.Error(),
			})
		} else {
			blocks = fetched
		}
	}

	prompt := BuildPrompt(changeCtx, rawDiff, spec, blocks)

	if r.redact != nil {
		redacted, err := r.redact.Redact(prompt)
		if err != nil {
			return domain.ReviewerOutput{
				Reviewer: spec.Name,
				Success:  false,
				Err:      "redaction failed: " + err.Error(),
				Elapsed:  time.Since(start),
			}
		}
		prompt = redacted
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	text, err := r.caller.Invoke(callCtx, prompt, spec.Model)
	if err != nil {
		return domain.ReviewerOutput{
			Reviewer: spec.Name,
			Success:  false,
			Err:      err.Error(),
			Elapsed:  time.Since(start),
		}
	}

	parsed := ParseResponse(text, spec.Name)
	return domain.ReviewerOutput{
		Reviewer: spec.Name,
		Success:  true,
		Review:   &parsed,
		Elapsed:  time.Since(start),
	}
}

func (r *Runner) logWarning(ctx context.Context, message string, fields map[string]interface{}) {
	if r.logger != nil {
		r.logger.LogWarning(ctx, message, fields)
		return
	}
	log.Printf("warning: %s: %v", message, fields)
}
