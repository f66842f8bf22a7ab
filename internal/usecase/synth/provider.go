package synth

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
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

// ModelOverviewProvider asks a model to condense the reviewers' overviews
// into one. It receives only free text, never structured findings.
type ModelOverviewProvider struct {
	caller ModelCaller
	model  string
}

// NewModelOverviewProvider constructs a provider using the given model.
func NewModelOverviewProvider(caller ModelCaller, model string) *ModelOverviewProvider {
	return &ModelOverviewProvider{caller: caller, model: model}
}

// SynthesizeOverview builds a prompt from the reviewer overviews and parses
// the response. Any failure is returned to the caller, which falls back to
// the deterministic overview.
func (p *ModelOverviewProvider) SynthesizeOverview(ctx context.Context, overviews []ReviewerOverview) (string, *bool, error) {
	var b strings.Builder
	b.WriteString("Several reviewers examined the same change. Combine their overviews into one short assessment.\n\n")
	for _, o := range overviews {
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", o.Reviewer, o.Overview)
	}
	b.WriteString("Respond with a single JSON object inside a fenced code block:\n\n")
	b.WriteString("```json\n{\"overview\": \"combined assessment\", \"passed\": true}\n```\n\n")
	b.WriteString("Omit \"passed\" unless you are confident the change should be blocked or approved.")

	text, err := p.caller.Invoke(ctx, b.String(), p.model)
	if err != nil {
		return "", nil, fmt.Errorf("overview model call: %w", err)
	}

	jsonText := text
	if matches := jsonFencePattern.FindStringSubmatch(text); len(matches) > 1 {
		jsonText = matches[1]
	} else if matches := anyFencePattern.FindStringSubmatch(text); len(matches) > 1 {
		jsonText = matches[1]
	}

	var wire struct {
		Overview string `json:"overview"`
		Passed   *bool  `json:"passed"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(jsonText)), &wire); err != nil {
		return "", nil, fmt.Errorf("parse overview response: %w", err)
	}
	if strings.TrimSpace(wire.Overview) == "" {
		return "", nil, fmt.Errorf("overview response missing overview text")
	}

	return wire.Overview, wire.Passed, nil
}
