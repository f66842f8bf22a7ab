// Package github implements the platform ports using the go-github
// library for REST and raw queries against the GraphQL endpoint.
package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"
	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/getpanelist/panelist/internal/domain"
	"github.com/getpanelist/panelist/internal/usecase/publish"
	"github.com/getpanelist/panelist/internal/usecase/track"
)

// Compile-time port satisfaction checks.
var (
	_ publish.ReviewClient = (*Client)(nil)
	_ track.CommentLister  = (*Client)(nil)
	_ track.ThreadFetcher  = (*Client)(nil)
	_ track.Mutator        = (*Client)(nil)
	_ track.ContentFetcher = (*Client)(nil)
)

const listPageSize = 100

// Client talks to the hosting platform's REST and GraphQL APIs.
type Client struct {
	gh         *gh.Client
	token      string // Stored for the GraphQL Authorization header.
	graphqlURL string
	httpClient *http.Client
}

// NewClient creates a client with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (REST client with PAT auth)
func NewClient(token string) *Client {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	client := gh.NewClient(rateLimitClient).WithAuthToken(token)

	return &Client{
		gh:         client,
		token:      token,
		graphqlURL: "https://api.github.com/graphql",
		httpClient: rateLimitClient,
	}
}

// NewClientWithHTTPClient creates a Client against a custom base URL.
// Intended for tests with httptest servers and for GitHub Enterprise.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL, token string) (*Client, error) {
	client := gh.NewClient(httpClient)

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	client.BaseURL = u

	// Derive the GraphQL URL from baseURL so httptest servers can
	// intercept GraphQL requests too.
	graphqlU := *u
	graphqlU.Path = "/graphql"

	return &Client{
		gh:         client,
		token:      token,
		graphqlURL: graphqlU.String(),
		httpClient: httpClient,
	}, nil
}

// FetchRawDiff returns the change's unified diff exactly as the platform
// renders it, which is the text the position mapping must agree with.
func (c *Client) FetchRawDiff(ctx context.Context, changeCtx domain.ChangeContext) (string, error) {
	raw, _, err := c.gh.PullRequests.GetRaw(ctx, changeCtx.Owner, changeCtx.Repo, changeCtx.Number, gh.RawOptions{Type: gh.Diff})
	if err != nil {
		return "", fmt.Errorf("fetch raw diff: %w", err)
	}
	return raw, nil
}

// listFiles pages through the change's files with per-file stats and
// patch text.
func (c *Client) listFiles(ctx context.Context, owner, repo string, number int) ([]domain.FileChange, error) {
	var files []domain.FileChange
	opts := &gh.ListOptions{PerPage: listPageSize}
	for {
		page, resp, err := c.gh.PullRequests.ListFiles(ctx, owner, repo, number, opts)
		if err != nil {
			return nil, fmt.Errorf("list files: %w", err)
		}
		for _, f := range page {
			files = append(files, domain.FileChange{
				Path:      f.GetFilename(),
				Status:    f.GetStatus(),
				Additions: f.GetAdditions(),
				Deletions: f.GetDeletions(),
				Patch:     f.GetPatch(),
			})
		}
		if resp.NextPage == 0 {
			return files, nil
		}
		opts.Page = resp.NextPage
	}
}

// ListReviews returns every review on the change.
func (c *Client) ListReviews(ctx context.Context, changeCtx domain.ChangeContext) ([]domain.PriorReview, error) {
	var reviews []domain.PriorReview
	opts := &gh.ListOptions{PerPage: listPageSize}
	for {
		page, resp, err := c.gh.PullRequests.ListReviews(ctx, changeCtx.Owner, changeCtx.Repo, changeCtx.Number, opts)
		if err != nil {
			return nil, fmt.Errorf("list reviews: %w", err)
		}
		for _, r := range page {
			reviews = append(reviews, domain.PriorReview{
				ID:     r.GetID(),
				Author: r.GetUser().GetLogin(),
				Body:   r.GetBody(),
				State:  r.GetState(),
				URL:    r.GetHTMLURL(),
			})
		}
		if resp.NextPage == 0 {
			return reviews, nil
		}
		opts.Page = resp.NextPage
	}
}

// CreateReview creates a review with body and inline comments atomically.
func (c *Client) CreateReview(ctx context.Context, changeCtx domain.ChangeContext, req publish.CreateReviewRequest) (publish.CreatedReview, error) {
	comments := make([]*gh.DraftReviewComment, 0, len(req.Comments))
	for _, draft := range req.Comments {
		comments = append(comments, &gh.DraftReviewComment{
			Path:     gh.Ptr(draft.Path),
			Position: gh.Ptr(draft.Position),
			Body:     gh.Ptr(draft.Body),
		})
	}

	review, _, err := c.gh.PullRequests.CreateReview(ctx, changeCtx.Owner, changeCtx.Repo, changeCtx.Number, &gh.PullRequestReviewRequest{
		CommitID: gh.Ptr(changeCtx.HeadSHA),
		Body:     gh.Ptr(req.Body),
		Event:    gh.Ptr(req.Event),
		Comments: comments,
	})
	if err != nil {
		return publish.CreatedReview{}, fmt.Errorf("create review: %w", err)
	}
	return publish.CreatedReview{ID: review.GetID(), URL: review.GetHTMLURL()}, nil
}

// UpdateReviewBody rewrites an existing review's body text in place.
func (c *Client) UpdateReviewBody(ctx context.Context, changeCtx domain.ChangeContext, reviewID int64, body string) error {
	_, _, err := c.gh.PullRequests.UpdateReview(ctx, changeCtx.Owner, changeCtx.Repo, changeCtx.Number, reviewID, body)
	if err != nil {
		return fmt.Errorf("update review %d: %w", reviewID, err)
	}
	return nil
}

// ListReviewComments pages through every inline review comment on the
// change.
func (c *Client) ListReviewComments(ctx context.Context, changeCtx domain.ChangeContext) ([]domain.InlineComment, error) {
	var comments []domain.InlineComment
	opts := &gh.PullRequestListCommentsOptions{ListOptions: gh.ListOptions{PerPage: listPageSize}}
	for {
		page, resp, err := c.gh.PullRequests.ListComments(ctx, changeCtx.Owner, changeCtx.Repo, changeCtx.Number, opts)
		if err != nil {
			return nil, fmt.Errorf("list review comments: %w", err)
		}
		for _, comment := range page {
			line := comment.GetLine()
			if line == 0 {
				line = comment.GetOriginalLine()
			}
			comments = append(comments, domain.InlineComment{
				ID:       comment.GetID(),
				ReviewID: comment.GetPullRequestReviewID(),
				Path:     comment.GetPath(),
				Line:     line,
				Body:     comment.GetBody(),
			})
		}
		if resp.NextPage == 0 {
			return comments, nil
		}
		opts.Page = resp.NextPage
	}
}

// DeleteReviewComment deletes one inline comment by id.
func (c *Client) DeleteReviewComment(ctx context.Context, changeCtx domain.ChangeContext, commentID int64) error {
	_, err := c.gh.PullRequests.DeleteComment(ctx, changeCtx.Owner, changeCtx.Repo, commentID)
	if err != nil {
		return fmt.Errorf("delete comment %d: %w", commentID, err)
	}
	return nil
}

// CreateReviewComment posts one standalone inline comment against the
// head commit. Used for follow-up comments after a review-body update.
func (c *Client) CreateReviewComment(ctx context.Context, changeCtx domain.ChangeContext, draft publish.CommentDraft) error {
	_, _, err := c.gh.PullRequests.CreateComment(ctx, changeCtx.Owner, changeCtx.Repo, changeCtx.Number, &gh.PullRequestComment{
		CommitID: gh.Ptr(changeCtx.HeadSHA),
		Path:     gh.Ptr(draft.Path),
		Position: gh.Ptr(draft.Position),
		Body:     gh.Ptr(draft.Body),
	})
	if err != nil {
		return fmt.Errorf("create comment on %s: %w", draft.Path, err)
	}
	return nil
}

// FetchFileContent returns the decoded content of a file at a revision.
func (c *Client) FetchFileContent(ctx context.Context, changeCtx domain.ChangeContext, path, ref string) (string, error) {
	fileContent, _, _, err := c.gh.Repositories.GetContents(ctx, changeCtx.Owner, changeCtx.Repo, path, &gh.RepositoryContentGetOptions{Ref: ref})
	if err != nil {
		return "", fmt.Errorf("get contents %s@%s: %w", path, ref, err)
	}
	if fileContent == nil {
		return "", fmt.Errorf("%s is not a file", path)
	}
	content, err := fileContent.GetContent()
	if err != nil {
		return "", fmt.Errorf("decode contents %s: %w", path, err)
	}
	return content, nil
}
