package review_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getpanelist/panelist/internal/domain"
	"github.com/getpanelist/panelist/internal/usecase/review"
)

const testRawDiff = "diff --git a/src/auth.ts b/src/auth.ts\n" +
	"--- a/src/auth.ts\n" +
	"+++ b/src/auth.ts\n" +
	"@@ -1,2 +1,3 @@\n" +
	" import x\n" +
	"+login()\n" +
	" export\n"

func testChangeContext() domain.ChangeContext {
	return domain.ChangeContext{
		Owner:      "getpanelist",
		Repo:       "panelist",
		Number:     7,
		Title:      "Add login",
		Author:     "dev",
		BaseBranch: "main",
		HeadBranch: "feature/login",
		Additions:  1,
		Files: []domain.FileChange{
			{Path: "src/auth.ts", Status: domain.FileStatusModified, Additions: 1},
		},
	}
}

type fakeCaller struct {
	response   string
	err        error
	delay      time.Duration
	lastPrompt string
	lastHint   string
}

func (f *fakeCaller) Invoke(ctx context.Context, prompt, modelHint string) (string, error) {
	f.lastPrompt = prompt
	f.lastHint = modelHint
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.response, f.err
}

func TestRunner_Success(t *testing.T) {
	// Given
	caller := &fakeCaller{response: "```json\n" +
		`{"overview": "ok", "comments": [{"file": "src/auth.ts", "line": 2, "body": "check errors"}]}` +
		"\n```"}
	runner := review.NewRunner(caller)
	spec := domain.ReviewerSpec{Name: "security", Persona: "You hunt bugs.", Model: "claude-sonnet-4-20250514", Enabled: true}

	// When
	out := runner.Run(context.Background(), testChangeContext(), testRawDiff, spec)

	// Then
	assert.True(t, out.Success)
	assert.Equal(t, "security", out.Reviewer)
	require.NotNil(t, out.Review)
	assert.Equal(t, "ok", out.Review.Overview)
	require.Len(t, out.Review.Findings, 1)
	assert.Positive(t, out.Elapsed)
	assert.Equal(t, "claude-sonnet-4-20250514", caller.lastHint)
}

func TestRunner_PromptContents(t *testing.T) {
	caller := &fakeCaller{response: "{}"}
	runner := review.NewRunner(caller)
	spec := domain.ReviewerSpec{Name: "security", Persona: "You hunt bugs.", Enabled: true}

	runner.Run(context.Background(), testChangeContext(), testRawDiff, spec)

	prompt := caller.lastPrompt
	assert.Contains(t, prompt, "You hunt bugs.")
	assert.Contains(t, prompt, "Title: Add login")
	assert.Contains(t, prompt, "feature/login -> main")
	assert.Contains(t, prompt, "| src/auth.ts | modified | +1/-0 |")
	assert.Contains(t, prompt, "R2|+login()", "diff must be annotated with line prefixes")
	assert.Contains(t, prompt, `"overview"`)
}

func TestRunner_ModelErrorFailsOutput(t *testing.T) {
	caller := &fakeCaller{err: errors.New("connection refused")}
	runner := review.NewRunner(caller)

	out := runner.Run(context.Background(), testChangeContext(), testRawDiff,
		domain.ReviewerSpec{Name: "security", Persona: "p", Enabled: true})

	assert.False(t, out.Success)
	assert.Nil(t, out.Review)
	assert.Contains(t, out.Err, "connection refused")
	assert.Positive(t, out.Elapsed)
}

func TestRunner_TimeoutFailsOutput(t *testing.T) {
	caller := &fakeCaller{response: "late", delay: 200 * time.Millisecond}
	runner := review.NewRunner(caller, review.WithTimeout(10*time.Millisecond))

	out := runner.Run(context.Background(), testChangeContext(), testRawDiff,
		domain.ReviewerSpec{Name: "slow", Persona: "p", Enabled: true})

	assert.False(t, out.Success)
	assert.Contains(t, out.Err, "deadline")
}

func TestRunner_MalformedResponseIsDegradedSuccess(t *testing.T) {
	caller := &fakeCaller{response: "not json at all"}
	runner := review.NewRunner(caller)

	out := runner.Run(context.Background(), testChangeContext(), testRawDiff,
		domain.ReviewerSpec{Name: "security", Persona: "p", Enabled: true})

	assert.True(t, out.Success)
	require.NotNil(t, out.Review)
	assert.Equal(t, "not json at all", out.Review.Overview)
	assert.Empty(t, out.Review.Findings)
}

type fakeFetcher struct {
	blocks []review.ContextBlock
	err    error
}

func (f *fakeFetcher) FetchContext(ctx context.Context, changeCtx domain.ChangeContext) ([]review.ContextBlock, error) {
	return f.blocks, f.err
}

func TestRunner_ContextBlocksAppended(t *testing.T) {
	caller := &fakeCaller{response: "{}"}
	fetcher := &fakeFetcher{blocks: []review.ContextBlock{{Path: "src/auth.ts", Content: "full file body"}}}
	runner := review.NewRunner(caller, review.WithContextFetcher(fetcher))

	runner.Run(context.Background(), testChangeContext(), testRawDiff,
		domain.ReviewerSpec{Name: "security", Persona: "p", Enabled: true})

	assert.Contains(t, caller.lastPrompt, "Full file: src/auth.ts")
	assert.Contains(t, caller.lastPrompt, "full file body")
}

func TestRunner_ContextFetchErrorIsNonFatal(t *testing.T) {
	caller := &fakeCaller{response: "{}"}
	fetcher := &fakeFetcher{err: errors.New("rate limited")}
	runner := review.NewRunner(caller, review.WithContextFetcher(fetcher))

	out := runner.Run(context.Background(), testChangeContext(), testRawDiff,
		domain.ReviewerSpec{Name: "security", Persona: "p", Enabled: true})

	assert.True(t, out.Success)
	assert.NotContains(t, caller.lastPrompt, "Full file:")
}

type fakeRedactor struct {
	err error
}

func (f *fakeRedactor) Redact(input string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return strings.ReplaceAll(input, "hunt", "[REDACTED]"), nil
}

func TestRunner_RedactsPrompt(t *testing.T) {
	caller := &fakeCaller{response: "{}"}
	runner := review.NewRunner(caller, review.WithRedactor(&fakeRedactor{}))

	runner.Run(context.Background(), testChangeContext(), testRawDiff,
		domain.ReviewerSpec{Name: "security", Persona: "You hunt bugs.", Enabled: true})

	assert.Contains(t, caller.lastPrompt, "[REDACTED]")
	assert.NotContains(t, caller.lastPrompt, "hunt")
}

func TestRunner_RedactionFailureFailsOutput(t *testing.T) {
	caller := &fakeCaller{response: "{}"}
	runner := review.NewRunner(caller, review.WithRedactor(&fakeRedactor{err: errors.New("bad pattern")}))

	out := runner.Run(context.Background(), testChangeContext(), testRawDiff,
		domain.ReviewerSpec{Name: "security", Persona: "p", Enabled: true})

	assert.False(t, out.Success)
	assert.Contains(t, out.Err, "redaction failed")
	assert.Empty(t, caller.lastPrompt, "prompt must not leave the process unredacted")
}
