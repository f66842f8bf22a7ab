// Package track re-examines previously posted findings against the
// current code and applies follow-up actions on the hosting platform.
package track

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/getpanelist/panelist/internal/domain"
	"github.com/getpanelist/panelist/internal/usecase/publish"
)

// snippetRadius is the number of lines shown on each side of a commented
// line when building judge context.
const snippetRadius = 10

// mutationSlots caps concurrently in-flight platform mutation calls.
const mutationSlots = 5

// CommentLister lists review comments on the change; the adapter handles
// REST pagination and returns the full set.
type CommentLister interface {
	ListReviewComments(ctx context.Context, changeCtx domain.ChangeContext) ([]domain.InlineComment, error)
}

// ThreadFetcher fetches one page of conversation threads. The tracker
// loops until hasNext is false.
type ThreadFetcher interface {
	FetchReviewThreadPage(ctx context.Context, changeCtx domain.ChangeContext, cursor string) (threads []domain.ReviewThread, nextCursor string, hasNext bool, err error)
}

// Mutator applies follow-up actions to conversation threads.
type Mutator interface {
	ReplyToThread(ctx context.Context, changeCtx domain.ChangeContext, threadID, body string) error
	ResolveThread(ctx context.Context, changeCtx domain.ChangeContext, threadID string) error
}

// ContentFetcher fetches file content at a revision.
type ContentFetcher interface {
	FetchFileContent(ctx context.Context, changeCtx domain.ChangeContext, path, ref string) (string, error)
}

// JudgeItem is one tracked comment plus its current-code snippet.
type JudgeItem struct {
	Comment domain.TrackedComment
	Snippet string
}

// Judge is the injected judgment capability: given prior comments, their
// snippets, and the change metadata, it returns one verdict per comment.
type Judge interface {
	Judge(ctx context.Context, changeCtx domain.ChangeContext, items []JudgeItem) ([]domain.ResolutionVerdict, error)
}

// Logger mirrors the review use case's structured logging port.
type Logger interface {
	LogWarning(ctx context.Context, message string, fields map[string]interface{})
	LogInfo(ctx context.Context, message string, fields map[string]interface{})
}

// Report summarizes one resolution check.
type Report struct {
	Checked        int
	Fixed          int
	PartiallyFixed int
	NotFixed       int
	DeletedFiles   int
}

// Tracker checks whether previously posted findings were addressed.
type Tracker struct {
	lister  CommentLister
	threads ThreadFetcher
	mutator Mutator
	content ContentFetcher
	judge   Judge
	logger  Logger
	gate    *Semaphore
}

// Deps wires the tracker's collaborators. Logger is optional.
type Deps struct {
	Lister  CommentLister
	Threads ThreadFetcher
	Mutator Mutator
	Content ContentFetcher
	Judge   Judge
	Logger  Logger
}

// NewTracker constructs a Tracker. It returns an error when a required
// dependency is missing.
func NewTracker(deps Deps) (*Tracker, error) {
	if deps.Lister == nil {
		return nil, fmt.Errorf("comment lister is required")
	}
	if deps.Threads == nil {
		return nil, fmt.Errorf("thread fetcher is required")
	}
	if deps.Mutator == nil {
		return nil, fmt.Errorf("mutator is required")
	}
	if deps.Content == nil {
		return nil, fmt.Errorf("content fetcher is required")
	}
	if deps.Judge == nil {
		return nil, fmt.Errorf("judge is required")
	}
	return &Tracker{
		lister:  deps.Lister,
		threads: deps.Threads,
		mutator: deps.Mutator,
		content: deps.Content,
		judge:   deps.Judge,
		logger:  deps.Logger,
		gate:    NewSemaphore(mutationSlots),
	}, nil
}

// Check runs the full resolution pass. Only comments carrying the system
// marker are examined; everything else is foreign and ignored.
func (t *Tracker) Check(ctx context.Context, changeCtx domain.ChangeContext) (Report, error) {
	tracked, err := t.listTrackedComments(ctx, changeCtx)
	if err != nil {
		return Report{}, err
	}
	if len(tracked) == 0 {
		return Report{}, nil
	}

	threadByComment, err := t.fetchAllThreads(ctx, changeCtx)
	if err != nil {
		return Report{}, err
	}

	// Threads resolved on a prior run are settled; re-checking them would
	// post the same follow-up again.
	open := make([]domain.TrackedComment, 0, len(tracked))
	for _, comment := range tracked {
		thread, ok := threadByComment[comment.ID]
		if ok && thread.IsResolved {
			continue
		}
		comment.ThreadID = thread.ID
		open = append(open, comment)
	}
	tracked = open
	if len(tracked) == 0 {
		return Report{}, nil
	}

	report := Report{Checked: len(tracked)}

	deleted, remaining := partitionByDeletedFile(changeCtx, tracked)
	report.DeletedFiles = len(deleted)
	t.autoResolveDeleted(ctx, changeCtx, deleted)

	// The judge is never consulted when nothing is left to evaluate.
	if len(remaining) == 0 {
		return report, nil
	}

	items := t.buildJudgeItems(ctx, changeCtx, remaining)
	if len(items) == 0 {
		return report, nil
	}

	verdicts, err := t.judge.Judge(ctx, changeCtx, items)
	if err != nil {
		return report, fmt.Errorf("judge call: %w", err)
	}

	byID := make(map[int64]domain.TrackedComment, len(items))
	for _, item := range items {
		byID[item.Comment.ID] = item.Comment
	}
	t.applyVerdicts(ctx, changeCtx, byID, verdicts, &report)

	return report, nil
}

// listTrackedComments filters the change's review comments down to the
// ones this system posted.
func (t *Tracker) listTrackedComments(ctx context.Context, changeCtx domain.ChangeContext) ([]domain.TrackedComment, error) {
	comments, err := t.lister.ListReviewComments(ctx, changeCtx)
	if err != nil {
		return nil, fmt.Errorf("list review comments: %w", err)
	}

	var tracked []domain.TrackedComment
	for _, c := range comments {
		if !strings.Contains(c.Body, publish.Marker) {
			continue
		}
		tracked = append(tracked, domain.TrackedComment{
			ID:   c.ID,
			Path: c.Path,
			Line: c.Line,
			Body: c.Body,
		})
	}
	return tracked, nil
}

// fetchAllThreads follows cursor pagination until the page info reports
// no further pages, and maps first-comment ids to their threads.
func (t *Tracker) fetchAllThreads(ctx context.Context, changeCtx domain.ChangeContext) (map[int64]domain.ReviewThread, error) {
	byComment := make(map[int64]domain.ReviewThread)
	cursor := ""
	for {
		threads, nextCursor, hasNext, err := t.threads.FetchReviewThreadPage(ctx, changeCtx, cursor)
		if err != nil {
			return nil, fmt.Errorf("fetch review threads: %w", err)
		}
		for _, thread := range threads {
			byComment[thread.FirstCommentID] = thread
		}
		if !hasNext {
			return byComment, nil
		}
		cursor = nextCursor
	}
}

func partitionByDeletedFile(changeCtx domain.ChangeContext, tracked []domain.TrackedComment) (deleted, remaining []domain.TrackedComment) {
	removed := make(map[string]bool)
	for _, f := range changeCtx.Files {
		if f.Status == domain.FileStatusRemoved {
			removed[f.Path] = true
		}
	}
	for _, c := range tracked {
		if removed[c.Path] {
			deleted = append(deleted, c)
		} else {
			remaining = append(remaining, c)
		}
	}
	return deleted, remaining
}

// autoResolveDeleted resolves comments on deleted files without a model
// call, gated by the mutation semaphore.
func (t *Tracker) autoResolveDeleted(ctx context.Context, changeCtx domain.ChangeContext, deleted []domain.TrackedComment) {
	var wg sync.WaitGroup
	for _, comment := range deleted {
		wg.Add(1)
		go func(comment domain.TrackedComment) {
			defer wg.Done()
			message := fmt.Sprintf("`%s` was deleted in this change, so this comment no longer applies. Resolving.", comment.Path)
			t.replyAndResolve(ctx, changeCtx, comment, message, true)
		}(comment)
	}
	wg.Wait()
}

// buildJudgeItems fetches a head-revision snippet around each comment.
// Comments whose file content cannot be fetched are skipped.
func (t *Tracker) buildJudgeItems(ctx context.Context, changeCtx domain.ChangeContext, remaining []domain.TrackedComment) []JudgeItem {
	items := make([]JudgeItem, 0, len(remaining))
	for _, comment := range remaining {
		content, err := t.content.FetchFileContent(ctx, changeCtx, comment.Path, changeCtx.HeadSHA)
		if err != nil {
			t.logWarning(ctx, "skipping comment, file content unavailable", map[string]interface{}{
				"commentID": comment.ID,
				"path":      comment.Path,
				"error":     err.Error(),
			})
			continue
		}
		items = append(items, JudgeItem{
			Comment: comment,
			Snippet: snippetAround(content, comment.Line, snippetRadius),
		})
	}
	return items
}

// snippetAround extracts radius lines on each side of the 1-based target
// line, prefixing each with its line number.
func snippetAround(content string, line, radius int) string {
	lines := strings.Split(content, "\n")
	start := line - radius
	if start < 1 {
		start = 1
	}
	end := line + radius
	if end > len(lines) {
		end = len(lines)
	}
	if start > len(lines) {
		start = len(lines)
	}

	var b strings.Builder
	for n := start; n <= end; n++ {
		fmt.Fprintf(&b, "%d: %s\n", n, lines[n-1])
	}
	return b.String()
}

// applyVerdicts applies each verdict, gating mutations through the
// semaphore. Mutation errors are logged and skipped.
func (t *Tracker) applyVerdicts(ctx context.Context, changeCtx domain.ChangeContext, byID map[int64]domain.TrackedComment, verdicts []domain.ResolutionVerdict, report *Report) {
	var wg sync.WaitGroup

	for _, verdict := range verdicts {
		comment, ok := byID[verdict.CommentID]
		if !ok {
			t.logWarning(ctx, "verdict references unknown comment", map[string]interface{}{
				"commentID": verdict.CommentID,
			})
			continue
		}

		switch verdict.Status {
		case domain.ResolutionFixed:
			report.Fixed++
		case domain.ResolutionPartiallyFixed:
			report.PartiallyFixed++
		default:
			report.NotFixed++
		}

		if verdict.Status == domain.ResolutionNotFixed {
			continue
		}

		wg.Add(1)
		go func(comment domain.TrackedComment, verdict domain.ResolutionVerdict) {
			defer wg.Done()
			switch verdict.Status {
			case domain.ResolutionFixed:
				t.replyAndResolve(ctx, changeCtx, comment,
					"This appears to be addressed in the latest changes. Resolving.", true)
			case domain.ResolutionPartiallyFixed:
				message := "Partially addressed; leaving open."
				if verdict.Reasoning != "" {
					message = fmt.Sprintf("Partially addressed: %s Leaving open.", strings.TrimSpace(verdict.Reasoning))
				}
				t.replyAndResolve(ctx, changeCtx, comment, message, false)
			}
		}(comment, verdict)
	}
	wg.Wait()
}

// replyAndResolve posts a thread reply and optionally resolves the
// thread, with every mutation passing through the gate.
func (t *Tracker) replyAndResolve(ctx context.Context, changeCtx domain.ChangeContext, comment domain.TrackedComment, message string, resolve bool) {
	if comment.ThreadID == "" {
		t.logWarning(ctx, "comment has no conversation thread, skipping follow-up", map[string]interface{}{
			"commentID": comment.ID,
		})
		return
	}

	if err := t.gate.Acquire(ctx); err != nil {
		return
	}
	err := t.mutator.ReplyToThread(ctx, changeCtx, comment.ThreadID, message)
	t.gate.Release()
	if err != nil {
		t.logWarning(ctx, "failed to reply to thread", map[string]interface{}{
			"commentID": comment.ID,
			"threadID":  comment.ThreadID,
			"error":     err.Error(),
		})
	}

	if !resolve {
		return
	}

	if err := t.gate.Acquire(ctx); err != nil {
		return
	}
	err = t.mutator.ResolveThread(ctx, changeCtx, comment.ThreadID)
	t.gate.Release()
	if err != nil {
		t.logWarning(ctx, "failed to resolve thread", map[string]interface{}{
			"threadID": comment.ThreadID,
			"error":    err.Error(),
		})
	}
}

func (t *Tracker) logWarning(ctx context.Context, message string, fields map[string]interface{}) {
	if t.logger != nil {
		t.logger.LogWarning(ctx, message, fields)
		return
	}
	log.Printf("warning: %s: %v", message, fields)
}
