package github

import (
	"context"
	"fmt"

	"github.com/getpanelist/panelist/internal/domain"
)

// changeContextQuery pulls the full change snapshot in one round trip.
// Changed files are the exception: their patch text is only available
// through the REST files listing.
const changeContextQuery = `
query($owner: String!, $repo: String!, $number: Int!) {
  repository(owner: $owner, name: $repo) {
    pullRequest(number: $number) {
      title
      body
      author {
        login
      }
      baseRefName
      headRefName
      baseRefOid
      headRefOid
      additions
      deletions
      commits(first: 100) {
        nodes {
          commit {
            oid
            message
            author {
              name
            }
          }
        }
      }
      comments(first: 100) {
        nodes {
          databaseId
          author {
            login
          }
          body
        }
      }
      reviews(first: 100) {
        nodes {
          databaseId
          author {
            login
          }
          body
          state
          url
        }
      }
    }
  }
}`

type changeContextData struct {
	Repository struct {
		PullRequest struct {
			Title  string `json:"title"`
			Body   string `json:"body"`
			Author struct {
				Login string `json:"login"`
			} `json:"author"`
			BaseRefName string `json:"baseRefName"`
			HeadRefName string `json:"headRefName"`
			BaseRefOid  string `json:"baseRefOid"`
			HeadRefOid  string `json:"headRefOid"`
			Additions   int    `json:"additions"`
			Deletions   int    `json:"deletions"`
			Commits     struct {
				Nodes []struct {
					Commit struct {
						Oid     string `json:"oid"`
						Message string `json:"message"`
						Author  struct {
							Name string `json:"name"`
						} `json:"author"`
					} `json:"commit"`
				} `json:"nodes"`
			} `json:"commits"`
			Comments struct {
				Nodes []struct {
					DatabaseID int64 `json:"databaseId"`
					Author     struct {
						Login string `json:"login"`
					} `json:"author"`
					Body string `json:"body"`
				} `json:"nodes"`
			} `json:"comments"`
			Reviews struct {
				Nodes []struct {
					DatabaseID int64 `json:"databaseId"`
					Author     struct {
						Login string `json:"login"`
					} `json:"author"`
					Body  string `json:"body"`
					State string `json:"state"`
					URL   string `json:"url"`
				} `json:"nodes"`
			} `json:"reviews"`
		} `json:"pullRequest"`
	} `json:"repository"`
}

// FetchChangeContext assembles the immutable snapshot of one change:
// metadata, commit history, conversation comments and prior reviews come
// from a single GraphQL query; the changed files with their patches come
// from the REST files listing. Fetched once per run so every downstream
// stage sees the same revision pair.
func (c *Client) FetchChangeContext(ctx context.Context, owner, repo string, number int) (domain.ChangeContext, error) {
	variables := map[string]any{
		"owner":  owner,
		"repo":   repo,
		"number": number,
	}
	var data changeContextData
	if err := c.doGraphQL(ctx, changeContextQuery, variables, &data); err != nil {
		return domain.ChangeContext{}, fmt.Errorf("fetch change %s/%s#%d: %w", owner, repo, number, err)
	}

	pr := data.Repository.PullRequest
	changeCtx := domain.ChangeContext{
		Owner:      owner,
		Repo:       repo,
		Number:     number,
		BaseSHA:    pr.BaseRefOid,
		HeadSHA:    pr.HeadRefOid,
		BaseBranch: pr.BaseRefName,
		HeadBranch: pr.HeadRefName,
		Title:      pr.Title,
		Body:       pr.Body,
		Author:     pr.Author.Login,
		Additions:  pr.Additions,
		Deletions:  pr.Deletions,
	}

	for _, node := range pr.Commits.Nodes {
		changeCtx.Commits = append(changeCtx.Commits, domain.Commit{
			SHA:     node.Commit.Oid,
			Message: node.Commit.Message,
			Author:  node.Commit.Author.Name,
		})
	}
	for _, node := range pr.Comments.Nodes {
		changeCtx.Comments = append(changeCtx.Comments, domain.PriorComment{
			ID:     node.DatabaseID,
			Author: node.Author.Login,
			Body:   node.Body,
		})
	}
	for _, node := range pr.Reviews.Nodes {
		changeCtx.Reviews = append(changeCtx.Reviews, domain.PriorReview{
			ID:     node.DatabaseID,
			Author: node.Author.Login,
			Body:   node.Body,
			State:  node.State,
			URL:    node.URL,
		})
	}

	files, err := c.listFiles(ctx, owner, repo, number)
	if err != nil {
		return domain.ChangeContext{}, err
	}
	changeCtx.Files = files

	return changeCtx, nil
}
