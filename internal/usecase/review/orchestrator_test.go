package review_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getpanelist/panelist/internal/domain"
	"github.com/getpanelist/panelist/internal/usecase/review"
)

type scriptedRunner struct {
	mu      sync.Mutex
	calls   []string
	outputs map[string]domain.ReviewerOutput
	delays  map[string]time.Duration
	panics  map[string]bool
}

func (s *scriptedRunner) Run(ctx context.Context, changeCtx domain.ChangeContext, rawDiff string, spec domain.ReviewerSpec) domain.ReviewerOutput {
	s.mu.Lock()
	s.calls = append(s.calls, spec.Name)
	s.mu.Unlock()

	if s.panics[spec.Name] {
		panic("scripted panic")
	}
	if d := s.delays[spec.Name]; d > 0 {
		time.Sleep(d)
	}
	if out, ok := s.outputs[spec.Name]; ok {
		return out
	}
	return domain.ReviewerOutput{Reviewer: spec.Name, Success: true, Review: &domain.ReviewerReview{}}
}

func spec(name string, enabled bool) domain.ReviewerSpec {
	return domain.ReviewerSpec{Name: name, Persona: "p", Enabled: enabled}
}

func TestRunAll_OutputOrderMatchesInputOrder(t *testing.T) {
	// Given: the first reviewer finishes last
	runner := &scriptedRunner{
		delays: map[string]time.Duration{"alpha": 50 * time.Millisecond},
	}
	orch := review.NewOrchestrator(runner, nil)

	// When
	outputs := orch.RunAll(context.Background(), domain.ChangeContext{}, "", []domain.ReviewerSpec{
		spec("alpha", true),
		spec("beta", true),
		spec("gamma", true),
	})

	// Then
	require.Len(t, outputs, 3)
	assert.Equal(t, "alpha", outputs[0].Reviewer)
	assert.Equal(t, "beta", outputs[1].Reviewer)
	assert.Equal(t, "gamma", outputs[2].Reviewer)
}

func TestRunAll_DisabledSpecsSkipped(t *testing.T) {
	runner := &scriptedRunner{}
	orch := review.NewOrchestrator(runner, nil)

	outputs := orch.RunAll(context.Background(), domain.ChangeContext{}, "", []domain.ReviewerSpec{
		spec("enabled", true),
		spec("disabled", false),
	})

	require.Len(t, outputs, 1)
	assert.Equal(t, "enabled", outputs[0].Reviewer)
	assert.NotContains(t, runner.calls, "disabled")
}

func TestRunAll_ZeroEnabledReturnsEmptyWithoutCalls(t *testing.T) {
	runner := &scriptedRunner{}
	orch := review.NewOrchestrator(runner, nil)

	outputs := orch.RunAll(context.Background(), domain.ChangeContext{}, "", []domain.ReviewerSpec{
		spec("off", false),
	})

	assert.NotNil(t, outputs)
	assert.Empty(t, outputs)
	assert.Empty(t, runner.calls)
}

func TestRunAll_OneFailureDoesNotBlockOthers(t *testing.T) {
	runner := &scriptedRunner{
		outputs: map[string]domain.ReviewerOutput{
			"broken": {Reviewer: "broken", Success: false, Err: "boom"},
		},
	}
	orch := review.NewOrchestrator(runner, nil)

	outputs := orch.RunAll(context.Background(), domain.ChangeContext{}, "", []domain.ReviewerSpec{
		spec("broken", true),
		spec("fine", true),
	})

	require.Len(t, outputs, 2)
	assert.False(t, outputs[0].Success)
	assert.True(t, outputs[1].Success)
}

func TestRunAll_PanicBecomesFailedOutput(t *testing.T) {
	runner := &scriptedRunner{panics: map[string]bool{"crashy": true}}
	orch := review.NewOrchestrator(runner, nil)

	outputs := orch.RunAll(context.Background(), domain.ChangeContext{}, "", []domain.ReviewerSpec{
		spec("crashy", true),
		spec("fine", true),
	})

	require.Len(t, outputs, 2)
	assert.False(t, outputs[0].Success)
	assert.Contains(t, outputs[0].Err, "panicked")
	assert.True(t, outputs[1].Success)
}
