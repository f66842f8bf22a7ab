package track_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getpanelist/panelist/internal/domain"
	"github.com/getpanelist/panelist/internal/usecase/track"
)

type fakeCaller struct {
	response   string
	err        error
	lastPrompt string
	lastHint   string
}

func (f *fakeCaller) Invoke(ctx context.Context, prompt, modelHint string) (string, error) {
	f.lastPrompt = prompt
	f.lastHint = modelHint
	return f.response, f.err
}

func judgeItems() []track.JudgeItem {
	return []track.JudgeItem{
		{
			Comment: domain.TrackedComment{ID: 1, Path: "a.go", Line: 5, Body: "check the error"},
			Snippet: "4: x\n5: y\n6: z\n",
		},
		{
			Comment: domain.TrackedComment{ID: 2, Path: "b.go", Line: 9, Body: "rename this"},
			Snippet: "9: name\n",
		},
	}
}

func TestModelJudge_ParsesVerdicts(t *testing.T) {
	caller := &fakeCaller{response: "```json\n" +
		`[{"comment_id": 1, "status": "FIXED", "reasoning": "error is handled now"},
		  {"comment_id": 2, "status": "partially_fixed", "reasoning": "renamed in one place"}]` +
		"\n```"}
	judge := track.NewModelJudge(caller, "claude-sonnet-4-20250514")

	verdicts, err := judge.Judge(context.Background(), domain.ChangeContext{}, judgeItems())

	require.NoError(t, err)
	require.Len(t, verdicts, 2)
	assert.Equal(t, domain.ResolutionFixed, verdicts[0].Status)
	assert.Equal(t, domain.ResolutionPartiallyFixed, verdicts[1].Status)
	assert.Equal(t, "claude-sonnet-4-20250514", caller.lastHint)
}

func TestModelJudge_PromptContents(t *testing.T) {
	caller := &fakeCaller{response: "[]"}
	judge := track.NewModelJudge(caller, "")
	changeCtx := domain.ChangeContext{
		Commits: []domain.Commit{{SHA: "abcdef0123456789", Message: "fix error handling\n\ndetails"}},
	}

	_, err := judge.Judge(context.Background(), changeCtx, judgeItems())

	require.NoError(t, err)
	assert.Contains(t, caller.lastPrompt, "abcdef01 fix error handling")
	assert.Contains(t, caller.lastPrompt, "Comment 1 (a.go:5)")
	assert.Contains(t, caller.lastPrompt, "check the error")
	assert.Contains(t, caller.lastPrompt, "5: y")
}

func TestModelJudge_MissingVerdictDefaultsToNotFixed(t *testing.T) {
	caller := &fakeCaller{response: `[{"comment_id": 1, "status": "FIXED"}]`}
	judge := track.NewModelJudge(caller, "")

	verdicts, err := judge.Judge(context.Background(), domain.ChangeContext{}, judgeItems())

	require.NoError(t, err)
	require.Len(t, verdicts, 2)
	assert.Equal(t, domain.ResolutionNotFixed, verdicts[1].Status)
}

func TestModelJudge_WrappedArrayAccepted(t *testing.T) {
	caller := &fakeCaller{response: `{"verdicts": [{"id": 1, "status": "FIXED"}]}`}
	judge := track.NewModelJudge(caller, "")

	verdicts, err := judge.Judge(context.Background(), domain.ChangeContext{}, judgeItems()[:1])

	require.NoError(t, err)
	require.Len(t, verdicts, 1)
	assert.Equal(t, domain.ResolutionFixed, verdicts[0].Status)
}

func TestModelJudge_UnknownStatusDegradesToNotFixed(t *testing.T) {
	caller := &fakeCaller{response: `[{"comment_id": 1, "status": "MAYBE"}]`}
	judge := track.NewModelJudge(caller, "")

	verdicts, err := judge.Judge(context.Background(), domain.ChangeContext{}, judgeItems()[:1])

	require.NoError(t, err)
	assert.Equal(t, domain.ResolutionNotFixed, verdicts[0].Status)
}

func TestModelJudge_CallErrorPropagates(t *testing.T) {
	caller := &fakeCaller{err: errors.New("down")}
	judge := track.NewModelJudge(caller, "")

	_, err := judge.Judge(context.Background(), domain.ChangeContext{}, judgeItems())

	assert.Error(t, err)
}

func TestModelJudge_MalformedResponseErrors(t *testing.T) {
	caller := &fakeCaller{response: "I cannot answer in JSON."}
	judge := track.NewModelJudge(caller, "")

	_, err := judge.Judge(context.Background(), domain.ChangeContext{}, judgeItems())

	assert.Error(t, err)
}
