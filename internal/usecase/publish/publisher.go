// Package publish posts a synthesized review onto the hosting platform,
// updating a prior marker-tagged review in place when one exists.
package publish

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/getpanelist/panelist/internal/diff"
	"github.com/getpanelist/panelist/internal/domain"
)

// Marker identifies reviews and comments owned by this system. It is the
// key to idempotent update-in-place behavior and to resolution tracking.
const Marker = "<!-- panelist:review -->"

// Review event actions understood by the hosting platform.
const (
	EventComment        = "COMMENT"
	EventRequestChanges = "REQUEST_CHANGES"
)

// CommentDraft is one inline comment to attach to a review.
type CommentDraft struct {
	Path     string
	Position int
	Body     string
}

// CreateReviewRequest creates a review with body and inline comments
// atomically.
type CreateReviewRequest struct {
	Body     string
	Event    string
	Comments []CommentDraft
}

// CreatedReview identifies a freshly created review.
type CreatedReview struct {
	ID  int64
	URL string
}

// ReviewClient is the outbound port to the platform's review API.
type ReviewClient interface {
	ListReviews(ctx context.Context, changeCtx domain.ChangeContext) ([]domain.PriorReview, error)
	CreateReview(ctx context.Context, changeCtx domain.ChangeContext, req CreateReviewRequest) (CreatedReview, error)
	UpdateReviewBody(ctx context.Context, changeCtx domain.ChangeContext, reviewID int64, body string) error
	ListReviewComments(ctx context.Context, changeCtx domain.ChangeContext) ([]domain.InlineComment, error)
	DeleteReviewComment(ctx context.Context, changeCtx domain.ChangeContext, commentID int64) error
	CreateReviewComment(ctx context.Context, changeCtx domain.ChangeContext, draft CommentDraft) error
}

// Logger mirrors the review use case's structured logging port.
type Logger interface {
	LogWarning(ctx context.Context, message string, fields map[string]interface{})
	LogInfo(ctx context.Context, message string, fields map[string]interface{})
}

// Result reports where the review landed.
type Result struct {
	ReviewID  int64
	ReviewURL string
	IsUpdate  bool
}

// Publisher maps findings onto diff positions and creates or updates the
// platform review.
type Publisher struct {
	client ReviewClient
	logger Logger
}

// NewPublisher constructs a Publisher.
func NewPublisher(client ReviewClient, logger Logger) *Publisher {
	return &Publisher{client: client, logger: logger}
}

// Publish posts the synthesized review. Findings that map to a diff
// position become inline comments; the rest are appended to the body as
// additional notes, never dropped. Per-comment mutation failures are
// logged and skipped.
func (p *Publisher) Publish(ctx context.Context, changeCtx domain.ChangeContext, review domain.SynthesizedReview, parsed diff.ParsedDiff) (Result, error) {
	drafts, notes := p.mapFindings(review.Findings, parsed)
	body := composeBody(review, notes)

	existing, err := p.findMarkedReview(ctx, changeCtx)
	if err != nil {
		return Result{}, err
	}

	if existing != nil {
		return p.updateExisting(ctx, changeCtx, *existing, body, drafts)
	}

	event := EventComment
	if !review.Passed {
		event = EventRequestChanges
	}

	created, err := p.client.CreateReview(ctx, changeCtx, CreateReviewRequest{
		Body:     body,
		Event:    event,
		Comments: drafts,
	})
	if err != nil {
		return Result{}, fmt.Errorf("create review: %w", err)
	}

	return Result{ReviewID: created.ID, ReviewURL: created.URL, IsUpdate: false}, nil
}

// mapFindings partitions findings into inline comment drafts and
// additional-notes entries for locations outside the diff.
func (p *Publisher) mapFindings(findings []domain.Finding, parsed diff.ParsedDiff) ([]CommentDraft, []string) {
	queries := make([]diff.LineQuery, 0, len(findings))
	byQuery := make(map[diff.LineQuery]domain.Finding, len(findings))
	for _, f := range findings {
		q := diff.LineQuery{Path: f.File, Line: f.Line, Side: diff.Side(f.Side)}
		queries = append(queries, q)
		byQuery[q] = f
	}

	mapped, unmapped := parsed.MapAll(queries)

	drafts := make([]CommentDraft, 0, len(mapped))
	for _, m := range mapped {
		f := byQuery[m.LineQuery]
		drafts = append(drafts, CommentDraft{
			Path:     f.File,
			Position: m.Position,
			Body:     commentBody(f),
		})
	}

	notes := make([]string, 0, len(unmapped))
	for _, q := range unmapped {
		f := byQuery[q]
		notes = append(notes, fmt.Sprintf("- `%s:%d` (%s): %s", f.File, f.Line, f.Severity, f.Body))
	}

	return drafts, notes
}

// commentBody renders one inline comment: severity, attribution, body,
// and the ownership marker so the tracker can find it later.
func commentBody(f domain.Finding) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s**", f.Severity)
	if len(f.Reviewers) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(f.Reviewers, ", "))
	}
	b.WriteString("\n\n")
	b.WriteString(f.Body)
	b.WriteString("\n\n")
	b.WriteString(Marker)
	return b.String()
}

func composeBody(review domain.SynthesizedReview, notes []string) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(review.Overview))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Reviewers: %d/%d succeeded. Findings: %d critical, %d warning, %d info.\n",
		review.SucceededReviewers, review.TotalReviewers,
		review.CriticalCount, review.WarningCount, review.InfoCount)

	if len(notes) > 0 {
		b.WriteString("\n## Additional notes\n\n")
		b.WriteString("These findings reference lines outside the diff and could not be attached inline:\n\n")
		b.WriteString(strings.Join(notes, "\n"))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(Marker)
	return b.String()
}

// findMarkedReview returns the existing review carrying the marker, or nil.
func (p *Publisher) findMarkedReview(ctx context.Context, changeCtx domain.ChangeContext) (*domain.PriorReview, error) {
	reviews, err := p.client.ListReviews(ctx, changeCtx)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	for i := range reviews {
		if strings.Contains(reviews[i].Body, Marker) {
			return &reviews[i], nil
		}
	}
	return nil, nil
}

// updateExisting refreshes a prior review in place: stale inline comments
// are deleted, the body is rewritten, and new comments are posted as
// follow-ups (the platform cannot append to a closed review's comment
// set).
func (p *Publisher) updateExisting(ctx context.Context, changeCtx domain.ChangeContext, existing domain.PriorReview, body string, drafts []CommentDraft) (Result, error) {
	comments, err := p.client.ListReviewComments(ctx, changeCtx)
	if err != nil {
		return Result{}, fmt.Errorf("list review comments: %w", err)
	}
	// Ownership is determined by the marker, not the review id: follow-up
	// comments from a prior update are attached by the platform to a fresh
	// auto-created review, so their review id never matches the marked one.
	for _, c := range comments {
		if !strings.Contains(c.Body, Marker) {
			continue
		}
		if err := p.client.DeleteReviewComment(ctx, changeCtx, c.ID); err != nil {
			p.logWarning(ctx, "failed to delete stale review comment", map[string]interface{}{
				"commentID": c.ID,
				"error":     err.Error(),
			})
		}
	}

	if err := p.client.UpdateReviewBody(ctx, changeCtx, existing.ID, body); err != nil {
		return Result{}, fmt.Errorf("update review body: %w", err)
	}

	for _, draft := range drafts {
		if err := p.client.CreateReviewComment(ctx, changeCtx, draft); err != nil {
			p.logWarning(ctx, "failed to post follow-up comment", map[string]interface{}{
				"path":     draft.Path,
				"position": draft.Position,
				"error":    err.Error(),
			})
		}
	}

	return Result{ReviewID: existing.ID, ReviewURL: existing.URL, IsUpdate: true}, nil
}

func (p *Publisher) logWarning(ctx context.Context, message string, fields map[string]interface{}) {
	if p.logger != nil {
		p.logger.LogWarning(ctx, message, fields)
		return
	}
	log.Printf("warning: %s: %v", message, fields)
}
