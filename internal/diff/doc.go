// Package diff parses unified diffs and maps file/line references to the
// hosting platform's diff positions.
//
// A "position" is a 1-based running counter over all hunk line records of
// one file, in diff order. It is the numbering GitHub's review-comment
// API uses instead of raw file line numbers. The counter increments once
// per hunk body line and is not reset between hunks of the same file.
//
// The package also annotates diffs with R<n>|/L<n>| line-number prefixes
// so reviewer personas can cite exact lines without doing position
// arithmetic themselves.
package diff
