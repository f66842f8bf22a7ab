package review

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/getpanelist/panelist/internal/domain"
)

// ReviewerRunner executes one reviewer spec. Satisfied by *Runner;
// narrowed to an interface so the orchestrator can be tested with fakes.
type ReviewerRunner interface {
	Run(ctx context.Context, changeCtx domain.ChangeContext, rawDiff string, spec domain.ReviewerSpec) domain.ReviewerOutput
}

// Orchestrator fans reviewer runs out concurrently and collects every
// settled outcome.
type Orchestrator struct {
	runner ReviewerRunner
	logger Logger
}

// NewOrchestrator wires the orchestrator around a runner.
func NewOrchestrator(runner ReviewerRunner, logger Logger) *Orchestrator {
	return &Orchestrator{runner: runner, logger: logger}
}

// RunAll launches every enabled spec concurrently and waits for all of
// them to settle. One reviewer's failure never cancels the others. Output
// order matches input order regardless of completion order. Zero enabled
// specs returns an empty slice without invoking anything.
func (o *Orchestrator) RunAll(ctx context.Context, changeCtx domain.ChangeContext, rawDiff string, specs []domain.ReviewerSpec) []domain.ReviewerOutput {
	enabled := make([]domain.ReviewerSpec, 0, len(specs))
	for _, spec := range specs {
		if spec.Enabled {
			enabled = append(enabled, spec)
		}
	}
	if len(enabled) == 0 {
		return []domain.ReviewerOutput{}
	}

	outputs := make([]domain.ReviewerOutput, len(enabled))

	var wg sync.WaitGroup
	for i, spec := range enabled {
		wg.Add(1)
		go func(i int, spec domain.ReviewerSpec) {
			start := time.Now()
			defer func() {
				if r := recover(); r != nil {
					outputs[i] = domain.ReviewerOutput{
						Reviewer: spec.Name,
						Success:  false,
						Err:      fmt.Sprintf("reviewer %s panicked: %v", spec.Name, r),
						Elapsed:  time.Since(start),
					}
				}
				wg.Done()
			}()

			outputs[i] = o.runner.Run(ctx, changeCtx, rawDiff, spec)
		}(i, spec)
	}
	wg.Wait()

	if o.logger != nil {
		succeeded := 0
		for _, out := range outputs {
			if out.Success {
				succeeded++
			}
		}
		o.logger.LogInfo(ctx, "reviewers settled", map[string]interface{}{
			"total":     len(outputs),
			"succeeded": succeeded,
		})
	}

	return outputs
}
