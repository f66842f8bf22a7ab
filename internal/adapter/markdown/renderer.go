// Package markdown renders a synthesized review as a Markdown report for
// dry runs, where nothing is posted to the hosting platform.
package markdown

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/getpanelist/panelist/internal/domain"
)

// Renderer formats synthesized reviews as Markdown.
type Renderer struct {
	caser cases.Caser
}

// NewRenderer constructs a Renderer.
func NewRenderer() *Renderer {
	return &Renderer{caser: cases.Title(language.English)}
}

// Render produces the full report: header, overview, per-severity finding
// sections ordered critical first, then the per-reviewer outcome table.
func (r *Renderer) Render(review domain.SynthesizedReview, outputs []domain.ReviewerOutput) string {
	var b strings.Builder

	b.WriteString("# Review Report\n\n")
	verdict := "PASSED"
	if !review.Passed {
		verdict = "CHANGES REQUESTED"
	}
	fmt.Fprintf(&b, "- Verdict: %s\n", verdict)
	fmt.Fprintf(&b, "- Reviewers: %d/%d succeeded\n", review.SucceededReviewers, review.TotalReviewers)
	fmt.Fprintf(&b, "- Findings: %d critical, %d warning, %d info\n\n",
		review.CriticalCount, review.WarningCount, review.InfoCount)

	b.WriteString("## Overview\n\n")
	b.WriteString(strings.TrimSpace(review.Overview))
	b.WriteString("\n\n")

	if len(review.Findings) == 0 {
		b.WriteString("No findings reported.\n\n")
	} else {
		r.writeFindings(&b, review.Findings)
	}

	writeReviewerTable(&b, outputs)
	return b.String()
}

func (r *Renderer) writeFindings(b *strings.Builder, findings []domain.Finding) {
	grouped := map[domain.Severity][]domain.Finding{}
	for _, f := range findings {
		grouped[f.Severity] = append(grouped[f.Severity], f)
	}

	for _, severity := range []domain.Severity{domain.SeverityCritical, domain.SeverityWarning, domain.SeverityInfo} {
		group := grouped[severity]
		if len(group) == 0 {
			continue
		}
		sort.SliceStable(group, func(i, j int) bool {
			if group[i].File != group[j].File {
				return group[i].File < group[j].File
			}
			return group[i].Line < group[j].Line
		})

		fmt.Fprintf(b, "## %s\n\n", r.caser.String(string(severity)))
		for _, f := range group {
			location := fmt.Sprintf("%s:%d", f.File, f.Line)
			if f.StartLine > 0 {
				location = fmt.Sprintf("%s:%d-%d", f.File, f.StartLine, f.Line)
			}
			fmt.Fprintf(b, "### `%s`\n\n", location)
			fmt.Fprintf(b, "%s\n\n", strings.TrimSpace(f.Body))
			if len(f.Reviewers) > 0 {
				fmt.Fprintf(b, "_Raised by: %s_\n\n", strings.Join(f.Reviewers, ", "))
			}
		}
	}
}

func writeReviewerTable(b *strings.Builder, outputs []domain.ReviewerOutput) {
	if len(outputs) == 0 {
		return
	}
	b.WriteString("## Reviewers\n\n")
	b.WriteString("| Reviewer | Outcome | Elapsed |\n")
	b.WriteString("| --- | --- | --- |\n")
	for _, out := range outputs {
		outcome := "ok"
		if !out.Success {
			outcome = "failed: " + out.Err
		}
		fmt.Fprintf(b, "| %s | %s | %s |\n", out.Reviewer, outcome, out.Elapsed.Round(time.Millisecond))
	}
	b.WriteString("\n")
}
