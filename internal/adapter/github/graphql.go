package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/getpanelist/panelist/internal/domain"
)

// Review thread state lives behind the GraphQL API only. The REST API can
// list and create comments but cannot resolve the thread they belong to,
// so thread listing and resolution go through raw GraphQL queries here.

const threadPageSize = 100

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlError struct {
	Message string `json:"message"`
}

// doGraphQL posts one query and decodes the data payload into out.
func (c *Client) doGraphQL(ctx context.Context, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("marshal graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphqlURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build graphql request: %w", err)
	}
	req.Header.Set("Authorization", "bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("graphql request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("graphql request failed: %s: %s", resp.Status, payload)
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []graphqlError  `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode graphql response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("graphql error: %s", envelope.Errors[0].Message)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("decode graphql data: %w", err)
		}
	}
	return nil
}

const reviewThreadsQuery = `
query($owner: String!, $repo: String!, $number: Int!, $first: Int!, $after: String) {
  repository(owner: $owner, name: $repo) {
    pullRequest(number: $number) {
      reviewThreads(first: $first, after: $after) {
        pageInfo {
          hasNextPage
          endCursor
        }
        nodes {
          id
          isResolved
          comments(first: 1) {
            nodes {
              databaseId
            }
          }
        }
      }
    }
  }
}`

// FetchReviewThreadPage returns one page of review threads. Pass an empty
// cursor for the first page; the returned cursor feeds the next call while
// hasNext is true.
func (c *Client) FetchReviewThreadPage(ctx context.Context, changeCtx domain.ChangeContext, cursor string) ([]domain.ReviewThread, string, bool, error) {
	variables := map[string]any{
		"owner":  changeCtx.Owner,
		"repo":   changeCtx.Repo,
		"number": changeCtx.Number,
		"first":  threadPageSize,
	}
	if cursor != "" {
		variables["after"] = cursor
	}

	var data struct {
		Repository struct {
			PullRequest struct {
				ReviewThreads struct {
					PageInfo struct {
						HasNextPage bool   `json:"hasNextPage"`
						EndCursor   string `json:"endCursor"`
					} `json:"pageInfo"`
					Nodes []struct {
						ID         string `json:"id"`
						IsResolved bool   `json:"isResolved"`
						Comments   struct {
							Nodes []struct {
								DatabaseID int64 `json:"databaseId"`
							} `json:"nodes"`
						} `json:"comments"`
					} `json:"nodes"`
				} `json:"reviewThreads"`
			} `json:"pullRequest"`
		} `json:"repository"`
	}
	if err := c.doGraphQL(ctx, reviewThreadsQuery, variables, &data); err != nil {
		return nil, "", false, fmt.Errorf("fetch review threads: %w", err)
	}

	threadsConn := data.Repository.PullRequest.ReviewThreads
	threads := make([]domain.ReviewThread, 0, len(threadsConn.Nodes))
	for _, node := range threadsConn.Nodes {
		thread := domain.ReviewThread{ID: node.ID, IsResolved: node.IsResolved}
		if len(node.Comments.Nodes) > 0 {
			thread.FirstCommentID = node.Comments.Nodes[0].DatabaseID
		}
		threads = append(threads, thread)
	}
	return threads, threadsConn.PageInfo.EndCursor, threadsConn.PageInfo.HasNextPage, nil
}

const replyToThreadMutation = `
mutation($threadId: ID!, $body: String!) {
  addPullRequestReviewThreadReply(input: {pullRequestReviewThreadId: $threadId, body: $body}) {
    comment {
      id
    }
  }
}`

// ReplyToThread adds a reply comment to one review thread.
func (c *Client) ReplyToThread(ctx context.Context, changeCtx domain.ChangeContext, threadID, body string) error {
	variables := map[string]any{
		"threadId": threadID,
		"body":     body,
	}
	if err := c.doGraphQL(ctx, replyToThreadMutation, variables, nil); err != nil {
		return fmt.Errorf("reply to thread %s: %w", threadID, err)
	}
	return nil
}

const resolveThreadMutation = `
mutation($threadId: ID!) {
  resolveReviewThread(input: {threadId: $threadId}) {
    thread {
      isResolved
    }
  }
}`

// ResolveThread marks one review thread resolved.
func (c *Client) ResolveThread(ctx context.Context, changeCtx domain.ChangeContext, threadID string) error {
	var data struct {
		ResolveReviewThread struct {
			Thread struct {
				IsResolved bool `json:"isResolved"`
			} `json:"thread"`
		} `json:"resolveReviewThread"`
	}
	if err := c.doGraphQL(ctx, resolveThreadMutation, map[string]any{"threadId": threadID}, &data); err != nil {
		return fmt.Errorf("resolve thread %s: %w", threadID, err)
	}
	if !data.ResolveReviewThread.Thread.IsResolved {
		return fmt.Errorf("thread %s did not resolve", threadID)
	}
	return nil
}
