package track

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/getpanelist/panelist/internal/domain"
)

// ModelCaller is the same opaque model capability the reviewers use.
type ModelCaller interface {
	Invoke(ctx context.Context, prompt, modelHint string) (string, error)
}

// A json-tagged fence is preferred so a leading fence in another language
// cannot shadow the payload.
var (
	jsonFencePattern = regexp.MustCompile("```json\\s*([\\s\\S]*?)```")
	anyFencePattern  = regexp.MustCompile("```[a-zA-Z]*\\s*([\\s\\S]*?)```")
)

// ModelJudge asks a model whether each tracked comment was addressed. The
// verdict status always comes from the model, never from local diffing.
type ModelJudge struct {
	caller ModelCaller
	model  string
}

// NewModelJudge constructs a judge using the given model.
func NewModelJudge(caller ModelCaller, model string) *ModelJudge {
	return &ModelJudge{caller: caller, model: model}
}

// Judge issues one model call covering every item and returns one verdict
// per comment id. Items missing from the response default to NOT_FIXED.
func (j *ModelJudge) Judge(ctx context.Context, changeCtx domain.ChangeContext, items []JudgeItem) ([]domain.ResolutionVerdict, error) {
	prompt := buildJudgePrompt(changeCtx, items)

	text, err := j.caller.Invoke(ctx, prompt, j.model)
	if err != nil {
		return nil, fmt.Errorf("judge model call: %w", err)
	}

	parsed, err := parseVerdicts(text)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]domain.ResolutionVerdict, len(parsed))
	for _, v := range parsed {
		byID[v.CommentID] = v
	}

	verdicts := make([]domain.ResolutionVerdict, 0, len(items))
	for _, item := range items {
		if v, ok := byID[item.Comment.ID]; ok {
			verdicts = append(verdicts, v)
			continue
		}
		verdicts = append(verdicts, domain.ResolutionVerdict{
			CommentID: item.Comment.ID,
			Status:    domain.ResolutionNotFixed,
			Reasoning: "no verdict returned for this comment",
		})
	}
	return verdicts, nil
}

func buildJudgePrompt(changeCtx domain.ChangeContext, items []JudgeItem) string {
	var b strings.Builder
	b.WriteString("Review comments were previously posted on this change. Decide for each whether the current code addresses it.\n\n")

	if len(changeCtx.Commits) > 0 {
		b.WriteString("## Commits\n\n")
		for _, c := range changeCtx.Commits {
			fmt.Fprintf(&b, "- %s %s\n", shortSHA(c.SHA), firstLine(c.Message))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Comments\n\n")
	for _, item := range items {
		fmt.Fprintf(&b, "### Comment %d (%s:%d)\n\n%s\n\nCurrent code:\n\n```\n%s```\n\n",
			item.Comment.ID, item.Comment.Path, item.Comment.Line,
			strings.TrimSpace(item.Comment.Body), item.Snippet)
	}

	b.WriteString("Respond with a JSON array inside a fenced code block, one entry per comment:\n\n")
	b.WriteString("```json\n[{\"comment_id\": 123, \"status\": \"FIXED|PARTIALLY_FIXED|NOT_FIXED\", \"reasoning\": \"why\"}]\n```\n")
	return b.String()
}

type wireVerdict struct {
	CommentID int64  `json:"comment_id"`
	ID        int64  `json:"id"`
	Status    string `json:"status"`
	Reasoning string `json:"reasoning"`
}

// parseVerdicts normalizes the loose wire shape into strict verdicts.
// Unknown status strings degrade to NOT_FIXED rather than failing.
func parseVerdicts(text string) ([]domain.ResolutionVerdict, error) {
	jsonText := strings.TrimSpace(text)
	if matches := jsonFencePattern.FindStringSubmatch(text); len(matches) > 1 {
		jsonText = strings.TrimSpace(matches[1])
	} else if matches := anyFencePattern.FindStringSubmatch(text); len(matches) > 1 {
		jsonText = strings.TrimSpace(matches[1])
	}

	var wire []wireVerdict
	if err := json.Unmarshal([]byte(jsonText), &wire); err != nil {
		// Some models wrap the array in an object.
		var wrapped struct {
			Verdicts []wireVerdict `json:"verdicts"`
		}
		if err2 := json.Unmarshal([]byte(jsonText), &wrapped); err2 != nil || wrapped.Verdicts == nil {
			return nil, fmt.Errorf("parse judge response: %w", err)
		}
		wire = wrapped.Verdicts
	}

	verdicts := make([]domain.ResolutionVerdict, 0, len(wire))
	for _, w := range wire {
		id := w.CommentID
		if id == 0 {
			id = w.ID
		}
		if id == 0 {
			continue
		}
		verdicts = append(verdicts, domain.ResolutionVerdict{
			CommentID: id,
			Status:    normalizeStatus(w.Status),
			Reasoning: w.Reasoning,
		})
	}
	return verdicts, nil
}

func normalizeStatus(s string) domain.ResolutionStatus {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(domain.ResolutionFixed):
		return domain.ResolutionFixed
	case string(domain.ResolutionPartiallyFixed), "PARTIAL", "PARTIALLY FIXED":
		return domain.ResolutionPartiallyFixed
	default:
		return domain.ResolutionNotFixed
	}
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
