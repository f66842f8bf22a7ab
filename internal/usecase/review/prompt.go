package review

import (
	"fmt"
	"strings"

	"github.com/getpanelist/panelist/internal/diff"
	"github.com/getpanelist/panelist/internal/domain"
)

// ContextBlock is a full-file excerpt appended to the prompt so reviewers
// can see beyond the hunk boundaries.
type ContextBlock struct {
	Path    string
	Content string
}

const responseInstructions = `Respond with a single JSON object inside a fenced code block:

` + "```json" + `
{
  "overview": "One paragraph summarizing your review.",
  "comments": [
    {
      "file": "path/to/file.go",
      "line": 42,
      "side": "RIGHT",
      "severity": "critical|warning|info",
      "body": "What is wrong and how to fix it."
    }
  ]
}
` + "```" + `

Rules:
- "line" is the file line number shown in the R<n>|/L<n>| prefix of the diff.
- Use "side": "LEFT" with the L<n> number only when commenting on a deleted line.
- "line" may be a range "start-end" when the issue spans several lines.
- Only comment on lines that appear in the diff.
- An empty "comments" array is a valid review.`

// BuildPrompt composes the reviewer prompt: persona instructions, a change
// summary, the file-change table, the annotated diff, and optional
// full-file context blocks.
func BuildPrompt(changeCtx domain.ChangeContext, rawDiff string, spec domain.ReviewerSpec, blocks []ContextBlock) string {
	var b strings.Builder

	b.WriteString(strings.TrimSpace(spec.Persona))
	b.WriteString("\n\n")

	b.WriteString("## Change summary\n\n")
	fmt.Fprintf(&b, "Title: %s\n", changeCtx.Title)
	fmt.Fprintf(&b, "Author: %s\n", changeCtx.Author)
	fmt.Fprintf(&b, "Branches: %s -> %s\n", changeCtx.HeadBranch, changeCtx.BaseBranch)
	fmt.Fprintf(&b, "Stats: +%d/-%d across %d files\n", changeCtx.Additions, changeCtx.Deletions, len(changeCtx.Files))
	if changeCtx.Body != "" {
		fmt.Fprintf(&b, "\nDescription:\n%s\n", strings.TrimSpace(changeCtx.Body))
	}
	b.WriteString("\n")

	if len(changeCtx.Files) > 0 {
		b.WriteString("## Changed files\n\n")
		b.WriteString("| File | Status | +/- |\n")
		b.WriteString("|---|---|---|\n")
		for _, f := range changeCtx.Files {
			fmt.Fprintf(&b, "| %s | %s | +%d/-%d |\n", f.Path, f.Status, f.Additions, f.Deletions)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Diff\n\n")
	b.WriteString("Each changed line is prefixed with its file line number: R<n>| for the new file, L<n>| for deleted lines.\n\n")
	b.WriteString("```diff\n")
	b.WriteString(diff.Annotate(rawDiff))
	if !strings.HasSuffix(rawDiff, "\n") {
		b.WriteString("\n")
	}
	b.WriteString("```\n\n")

	for _, block := range blocks {
		fmt.Fprintf(&b, "## Full file: %s\n\n```\n%s\n```\n\n", block.Path, strings.TrimRight(block.Content, "\n"))
	}

	b.WriteString("## Response format\n\n")
	b.WriteString(responseInstructions)
	b.WriteString("\n")

	return b.String()
}
