package review

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/getpanelist/panelist/internal/domain"
)

// The wire shape of a reviewer response is loose: models vary field names,
// wrap JSON in markdown fences, and emit line numbers as integers, strings
// or "start-end" ranges. Everything lenient lives here; the rest of the
// system only sees strict domain.Finding values.

var (
	jsonFencePattern = regexp.MustCompile("```json\\s*([\\s\\S]*?)```")
	anyFencePattern  = regexp.MustCompile("```[a-zA-Z]*\\s*([\\s\\S]*?)```")
)

type wireReview struct {
	Overview string        `json:"overview"`
	Summary  string        `json:"summary"`
	Comments []wireFinding `json:"comments"`
	Findings []wireFinding `json:"findings"`
}

type wireFinding struct {
	File     string   `json:"file"`
	Path     string   `json:"path"`
	Line     lineSpan `json:"line"`
	Side     string   `json:"side"`
	Severity string   `json:"severity"`
	Body     string   `json:"body"`
	Message  string   `json:"message"`
}

// lineSpan accepts an integer, a numeric string, or a "start-end" range.
type lineSpan struct {
	Start int
	End   int
	Valid bool
}

func (l *lineSpan) UnmarshalJSON(data []byte) error {
	var asInt int
	if err := json.Unmarshal(data, &asInt); err == nil {
		*l = lineSpan{Start: asInt, End: asInt, Valid: asInt > 0}
		return nil
	}

	var asString string
	if err := json.Unmarshal(data, &asString); err != nil {
		// Unknown shape. Mark invalid rather than failing the whole review.
		*l = lineSpan{}
		return nil
	}

	*l = parseLineString(asString)
	return nil
}

func parseLineString(s string) lineSpan {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return lineSpan{Start: n, End: n, Valid: n > 0}
	}

	start, end, ok := strings.Cut(s, "-")
	if !ok {
		return lineSpan{}
	}
	startN, err1 := strconv.Atoi(strings.TrimSpace(start))
	endN, err2 := strconv.Atoi(strings.TrimSpace(end))
	if err1 != nil || err2 != nil || startN <= 0 || endN <= 0 {
		return lineSpan{}
	}
	if endN < startN {
		startN, endN = endN, startN
	}
	return lineSpan{Start: startN, End: endN, Valid: true}
}

// ParseResponse normalizes a model response into a ReviewerReview. It never
// fails: a response that is not valid JSON becomes an overview-only review
// with zero findings. Findings with unparseable line values are dropped
// individually; the rest survive.
func ParseResponse(text, reviewerName string) domain.ReviewerReview {
	jsonText := extractJSON(text)

	var wire wireReview
	if err := json.Unmarshal([]byte(jsonText), &wire); err != nil {
		return domain.ReviewerReview{Overview: strings.TrimSpace(text)}
	}

	overview := wire.Overview
	if overview == "" {
		overview = wire.Summary
	}

	rawFindings := wire.Comments
	if len(rawFindings) == 0 {
		rawFindings = wire.Findings
	}

	findings := make([]domain.Finding, 0, len(rawFindings))
	for _, f := range rawFindings {
		path := f.File
		if path == "" {
			path = f.Path
		}
		body := f.Body
		if body == "" {
			body = f.Message
		}
		if path == "" || body == "" || !f.Line.Valid {
			continue
		}

		side := domain.SideNew
		if strings.EqualFold(f.Side, string(domain.SideOld)) || strings.EqualFold(f.Side, "old") {
			side = domain.SideOld
		}

		finding := domain.Finding{
			File:      path,
			Line:      f.Line.End,
			Side:      side,
			Severity:  domain.ParseSeverity(f.Severity),
			Body:      body,
			Reviewers: []string{reviewerName},
		}
		if f.Line.Start != f.Line.End {
			finding.StartLine = f.Line.Start
		}
		findings = append(findings, finding)
	}

	return domain.ReviewerReview{Overview: overview, Findings: findings}
}

// extractJSON returns the first fence explicitly tagged json, else the
// first fenced block of any language, else the whole trimmed text. The
// json tag wins so a leading block in another language (a diff quote,
// say) cannot shadow the payload.
func extractJSON(text string) string {
	if matches := jsonFencePattern.FindStringSubmatch(text); len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}
	if matches := anyFencePattern.FindStringSubmatch(text); len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}
	return strings.TrimSpace(text)
}
