package domain

import "strings"

// Severity ranks how serious a finding is.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// severityRanks orders severities for comparison; higher is more severe.
var severityRanks = map[Severity]int{
	SeverityInfo:     1,
	SeverityWarning:  2,
	SeverityCritical: 3,
}

// Rank returns the numeric rank of the severity. Unknown severities rank
// as warning, matching the default applied at the parse boundary.
func (s Severity) Rank() int {
	if rank, ok := severityRanks[s]; ok {
		return rank
	}
	return severityRanks[SeverityWarning]
}

// ParseSeverity normalizes a free-form severity string. Unrecognized or
// empty values default to warning.
func ParseSeverity(raw string) Severity {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "critical", "blocker", "high":
		return SeverityCritical
	case "warning", "warn", "medium":
		return SeverityWarning
	case "info", "low", "note", "nit":
		return SeverityInfo
	default:
		return SeverityWarning
	}
}
