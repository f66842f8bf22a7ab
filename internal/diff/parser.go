package diff

import (
	"strconv"
	"strings"
)

// LineType represents the type of a line in a diff.
type LineType int

const (
	// LineContext represents an unchanged context line (starts with ' ').
	LineContext LineType = iota
	// LineAddition represents an added line (starts with '+').
	LineAddition
	// LineDeletion represents a deleted line (starts with '-').
	LineDeletion
)

// Side selects which file's line numbering a position query refers to.
type Side string

const (
	// SideNew matches additions and context lines on new-file numbering.
	SideNew Side = "RIGHT"
	// SideOld matches deletions and context lines on old-file numbering.
	SideOld Side = "LEFT"
)

// Line represents a single line record in a diff hunk.
type Line struct {
	Type     LineType
	Content  string // Line content without the +/-/space prefix
	OldLine  *int   // Line number in the old file (nil for additions)
	NewLine  *int   // Line number in the new file (nil for deletions)
	Position int    // Running counter over all hunk lines of the file, 1-based
}

// Hunk represents a single @@ hunk in a unified diff.
type Hunk struct {
	OldStart int
	OldLines int
	NewStart int
	NewLines int
	Lines    []Line
}

// FilePatch holds the parsed hunks for one file of a multi-file diff.
// Paths are stored with the conventional a/ and b/ prefixes stripped;
// OldPath is empty for added files, NewPath is empty for removed files.
type FilePatch struct {
	OldPath string
	NewPath string
	Hunks   []Hunk
}

// ParsedDiff is a random-access index over a multi-file unified diff.
// Positions are stable for the lifetime of one raw diff string; parsing
// the same text again yields identical positions.
type ParsedDiff struct {
	Files []FilePatch
}

// LineQuery names one location to resolve to a diff position.
type LineQuery struct {
	Path string
	Line int
	Side Side
}

// MappedQuery pairs a query with its resolved diff position.
type MappedQuery struct {
	LineQuery
	Position int
}

// Parse builds a ParsedDiff from standard `diff --git` unified diff text.
// Malformed sections are skipped rather than failing the whole parse.
func Parse(raw string) (ParsedDiff, error) {
	result := ParsedDiff{}
	if raw == "" {
		return result, nil
	}

	var current *FilePatch
	var hunk *Hunk
	var position int
	var oldLine, newLine int
	var remainingOld, remainingNew int

	flushHunk := func() {
		if current != nil && hunk != nil {
			current.Hunks = append(current.Hunks, *hunk)
		}
		hunk = nil
	}
	flushFile := func() {
		flushHunk()
		if current != nil {
			result.Files = append(result.Files, *current)
		}
		current = nil
	}

	for _, line := range strings.Split(raw, "\n") {
		inHunk := hunk != nil && (remainingOld > 0 || remainingNew > 0)

		switch {
		case strings.HasPrefix(line, "diff --git "):
			flushFile()
			current = &FilePatch{}
			position = 0
			oldP, newP := parseGitHeaderPaths(line)
			current.OldPath = oldP
			current.NewPath = newP

		case !inHunk && strings.HasPrefix(line, "--- "):
			if current != nil {
				current.OldPath = stripPathPrefix(strings.TrimPrefix(line, "--- "))
			}

		case !inHunk && strings.HasPrefix(line, "+++ "):
			if current != nil {
				current.NewPath = stripPathPrefix(strings.TrimPrefix(line, "+++ "))
			}

		case strings.HasPrefix(line, "@@"):
			flushHunk()
			parsed, ok := parseHunkHeader(line)
			if !ok {
				continue
			}
			if current == nil {
				// Hunk without a file header; index it under an anonymous file.
				current = &FilePatch{}
				position = 0
			}
			hunk = &parsed
			oldLine = parsed.OldStart
			newLine = parsed.NewStart
			remainingOld = parsed.OldLines
			remainingNew = parsed.NewLines

		case inHunk:
			if strings.HasPrefix(line, "\\") {
				// "\ No newline at end of file" carries no line record.
				continue
			}
			position++
			record := Line{Position: position}
			marker := byte(' ')
			if len(line) > 0 {
				marker = line[0]
			}
			switch marker {
			case '+':
				record.Type = LineAddition
				record.Content = trimMarker(line)
				record.NewLine = intPtr(newLine)
				newLine++
				remainingNew--
			case '-':
				record.Type = LineDeletion
				record.Content = trimMarker(line)
				record.OldLine = intPtr(oldLine)
				oldLine++
				remainingOld--
			default:
				record.Type = LineContext
				record.Content = trimMarker(line)
				record.OldLine = intPtr(oldLine)
				record.NewLine = intPtr(newLine)
				oldLine++
				newLine++
				remainingOld--
				remainingNew--
			}
			hunk.Lines = append(hunk.Lines, record)

		default:
			// File header noise: index, mode changes, rename markers,
			// binary notices. No line records emitted.
		}
	}

	flushFile()
	return result, nil
}

// PositionOf resolves (path, line, side) to the platform's diff position:
// the 1-based running counter over all hunk line records of that file.
// The second return is false when the location is not part of the diff;
// callers must treat that as "not in diff", not as an error.
func (pd ParsedDiff) PositionOf(path string, line int, side Side) (int, bool) {
	if line <= 0 {
		return 0, false
	}

	file, ok := pd.file(path)
	if !ok {
		return 0, false
	}

	for _, hunk := range file.Hunks {
		for _, record := range hunk.Lines {
			if matchesSide(record, line, side) {
				return record.Position, true
			}
		}
	}
	return 0, false
}

// MapAll partitions queries into those that resolve to a diff position and
// those that do not. Both output slices preserve input order.
func (pd ParsedDiff) MapAll(queries []LineQuery) (mapped []MappedQuery, unmapped []LineQuery) {
	mapped = make([]MappedQuery, 0, len(queries))
	unmapped = make([]LineQuery, 0)

	for _, q := range queries {
		if pos, ok := pd.PositionOf(q.Path, q.Line, q.Side); ok {
			mapped = append(mapped, MappedQuery{LineQuery: q, Position: pos})
		} else {
			unmapped = append(unmapped, q)
		}
	}
	return mapped, unmapped
}

// file locates a FilePatch by comparing the cleaned query path against
// both the from and to paths.
func (pd ParsedDiff) file(path string) (FilePatch, bool) {
	clean := stripPathPrefix(path)
	for _, f := range pd.Files {
		if (f.NewPath != "" && f.NewPath == clean) || (f.OldPath != "" && f.OldPath == clean) {
			return f, true
		}
	}
	return FilePatch{}, false
}

func matchesSide(record Line, line int, side Side) bool {
	switch side {
	case SideOld:
		return record.Type != LineAddition && record.OldLine != nil && *record.OldLine == line
	default:
		return record.Type != LineDeletion && record.NewLine != nil && *record.NewLine == line
	}
}

// parseGitHeaderPaths extracts the a/ and b/ paths from a
// "diff --git a/old b/new" header line.
func parseGitHeaderPaths(line string) (oldPath, newPath string) {
	rest := strings.TrimPrefix(line, "diff --git ")
	fields := strings.Fields(rest)
	if len(fields) >= 2 {
		oldPath = stripPathPrefix(fields[0])
		newPath = stripPathPrefix(fields[len(fields)-1])
	}
	return oldPath, newPath
}

// stripPathPrefix removes the conventional a/ or b/ prefix and maps
// /dev/null to the empty path.
func stripPathPrefix(path string) string {
	path = strings.TrimSpace(path)
	if path == "/dev/null" {
		return ""
	}
	if strings.HasPrefix(path, "a/") || strings.HasPrefix(path, "b/") {
		return path[2:]
	}
	return path
}

// parseHunkHeader parses "@@ -10,7 +10,8 @@ optional context".
func parseHunkHeader(line string) (Hunk, bool) {
	parts := strings.SplitN(line, "@@", 3)
	if len(parts) < 2 {
		return Hunk{}, false
	}

	hunk := Hunk{}
	seenOld, seenNew := false, false
	for _, field := range strings.Fields(strings.TrimSpace(parts[1])) {
		switch {
		case strings.HasPrefix(field, "-"):
			hunk.OldStart, hunk.OldLines = parseRange(strings.TrimPrefix(field, "-"))
			seenOld = true
		case strings.HasPrefix(field, "+"):
			hunk.NewStart, hunk.NewLines = parseRange(strings.TrimPrefix(field, "+"))
			seenNew = true
		}
	}
	if !seenOld || !seenNew {
		return Hunk{}, false
	}
	return hunk, true
}

// parseRange parses "start,count" or "start" (count defaults to 1).
func parseRange(s string) (start, count int) {
	if idx := strings.Index(s, ","); idx >= 0 {
		start, _ = strconv.Atoi(s[:idx])
		count, _ = strconv.Atoi(s[idx+1:])
	} else {
		start, _ = strconv.Atoi(s)
		count = 1
	}
	return start, count
}

func trimMarker(line string) string {
	if len(line) == 0 {
		return line
	}
	return line[1:]
}

func intPtr(n int) *int {
	return &n
}
