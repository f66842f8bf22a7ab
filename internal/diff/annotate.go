package diff

import (
	"fmt"
	"strings"
)

// Annotate rewrites a unified diff so every hunk body line carries a line
// number prefix: `R<new>|` for right-side lines (additions and context) or
// `L<old>|` for left-side lines (deletions). Counters derive from each @@
// header and pause outside hunk bodies, so file headers and hunk headers
// pass through untouched.
//
// The annotation lets a reviewer cite exact line numbers in free text
// without doing diff-position arithmetic. Stripping the prefixes yields
// the original diff content line-for-line.
func Annotate(raw string) string {
	if raw == "" {
		return raw
	}

	var b strings.Builder
	b.Grow(len(raw) + len(raw)/8)

	var oldLine, newLine int
	var remainingOld, remainingNew int

	lines := strings.Split(raw, "\n")
	for i, line := range lines {
		inHunk := remainingOld > 0 || remainingNew > 0

		switch {
		case strings.HasPrefix(line, "diff --git "):
			remainingOld, remainingNew = 0, 0
			b.WriteString(line)

		case !inHunk && strings.HasPrefix(line, "@@"):
			if hunk, ok := parseHunkHeader(line); ok {
				oldLine = hunk.OldStart
				newLine = hunk.NewStart
				remainingOld = hunk.OldLines
				remainingNew = hunk.NewLines
			}
			b.WriteString(line)

		case inHunk && strings.HasPrefix(line, "\\"):
			// "\ No newline at end of file" is neither side.
			b.WriteString(line)

		case inHunk:
			marker := byte(' ')
			if len(line) > 0 {
				marker = line[0]
			}
			switch marker {
			case '+':
				fmt.Fprintf(&b, "R%d|%s", newLine, line)
				newLine++
				remainingNew--
			case '-':
				fmt.Fprintf(&b, "L%d|%s", oldLine, line)
				oldLine++
				remainingOld--
			default:
				fmt.Fprintf(&b, "R%d|%s", newLine, line)
				oldLine++
				newLine++
				remainingOld--
				remainingNew--
			}

		default:
			b.WriteString(line)
		}

		if i < len(lines)-1 {
			b.WriteByte('\n')
		}
	}

	return b.String()
}

// StripAnnotations removes the R<n>|/L<n>| prefixes added by Annotate,
// reproducing the original diff text.
func StripAnnotations(annotated string) string {
	lines := strings.Split(annotated, "\n")
	for i, line := range lines {
		lines[i] = stripAnnotationPrefix(line)
	}
	return strings.Join(lines, "\n")
}

func stripAnnotationPrefix(line string) string {
	if len(line) < 3 || (line[0] != 'R' && line[0] != 'L') {
		return line
	}
	for i := 1; i < len(line); i++ {
		c := line[i]
		if c == '|' {
			if i == 1 {
				return line // No digits between marker and pipe.
			}
			return line[i+1:]
		}
		if c < '0' || c > '9' {
			return line
		}
	}
	return line
}
