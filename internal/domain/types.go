package domain

import "time"

const (
	FileStatusAdded    = "added"
	FileStatusModified = "modified"
	FileStatusRemoved  = "removed"
	FileStatusRenamed  = "renamed"
)

// Side identifies which side of a diff a line number refers to.
type Side string

const (
	// SideNew refers to new-file line numbering (additions and context).
	SideNew Side = "RIGHT"
	// SideOld refers to old-file line numbering (deletions and context).
	SideOld Side = "LEFT"
)

// ChangeContext is an immutable snapshot of one reviewable change set,
// fetched once per run. Revision ids are content hashes and are never
// reused for different content.
type ChangeContext struct {
	Owner      string
	Repo       string
	Number     int
	BaseSHA    string
	HeadSHA    string
	BaseBranch string
	HeadBranch string
	Title      string
	Body       string
	Author     string
	Additions  int
	Deletions  int
	Files      []FileChange
	Commits    []Commit
	Comments   []PriorComment
	Reviews    []PriorReview
}

// FileChange captures one file touched by the change set.
// Path is unique within a ChangeContext.
type FileChange struct {
	Path      string
	Status    string
	Additions int
	Deletions int
	Patch     string
}

// Commit is one entry of the change set's commit history.
type Commit struct {
	SHA     string
	Message string
	Author  string
}

// PriorComment is a PR-level conversation comment already on the change.
type PriorComment struct {
	ID     int64
	Author string
	Body   string
}

// PriorReview is a review already posted on the change.
type PriorReview struct {
	ID     int64
	Author string
	Body   string
	State  string
	URL    string
}

// ReviewerSpec describes one reviewer persona to run against a change.
type ReviewerSpec struct {
	Name    string
	Persona string
	Model   string
	Enabled bool
}

// Finding is one reviewer's comment on a location. Line uses new-file
// numbering unless Side is SideOld. StartLine is zero for single-line
// findings.
type Finding struct {
	File      string
	Line      int
	StartLine int
	Side      Side
	Severity  Severity
	Body      string
	Reviewers []string
}

// ReviewerReview is the structured result of one successful reviewer run.
type ReviewerReview struct {
	Overview string
	Findings []Finding
}

// ReviewerOutput is the settled outcome of one reviewer run. Exactly one
// of Review or Err is meaningful when Success is false; Elapsed is always
// set.
type ReviewerOutput struct {
	Reviewer string
	Success  bool
	Review   *ReviewerReview
	Err      string
	Elapsed  time.Duration
}

// SynthesizedReview is the final merged verdict across all reviewers.
type SynthesizedReview struct {
	Overview           string
	Findings           []Finding
	TotalReviewers     int
	SucceededReviewers int
	CriticalCount      int
	WarningCount       int
	InfoCount          int
	Passed             bool
}

// InlineComment is a review comment as it exists on the hosting platform.
type InlineComment struct {
	ID       int64
	ReviewID int64
	Path     string
	Line     int
	Body     string
}

// TrackedComment is a previously posted finding fetched back from the
// platform. Only comments carrying the system marker become tracked.
type TrackedComment struct {
	ID       int64
	Path     string
	Line     int
	Body     string
	ThreadID string
}

// ReviewThread is one conversation thread on the change.
type ReviewThread struct {
	ID             string
	IsResolved     bool
	FirstCommentID int64
}

// ResolutionStatus classifies whether a previously raised finding was
// addressed.
type ResolutionStatus string

const (
	ResolutionFixed          ResolutionStatus = "FIXED"
	ResolutionPartiallyFixed ResolutionStatus = "PARTIALLY_FIXED"
	ResolutionNotFixed       ResolutionStatus = "NOT_FIXED"
)

// ResolutionVerdict is the outcome of re-checking one tracked comment.
// Status comes from an external judgment call, never from local text
// diffing.
type ResolutionVerdict struct {
	CommentID int64
	Status    ResolutionStatus
	Reasoning string
}
