package github

import (
	"context"

	"github.com/getpanelist/panelist/internal/domain"
	"github.com/getpanelist/panelist/internal/usecase/review"
)

var _ review.ContextFetcher = (*FileContextFetcher)(nil)

// Caps the prompt size on sprawling changes.
const maxContextFiles = 20

// FileContextFetcher supplies the full head-revision content of changed
// files as prompt context blocks.
type FileContextFetcher struct {
	client *Client
}

// NewFileContextFetcher constructs a fetcher over the given client.
func NewFileContextFetcher(client *Client) *FileContextFetcher {
	return &FileContextFetcher{client: client}
}

// FetchContext returns one block per changed file, fetched at the head
// revision. Removed files have no head content and are skipped; fetch
// failures skip the file rather than failing the review.
func (f *FileContextFetcher) FetchContext(ctx context.Context, changeCtx domain.ChangeContext) ([]review.ContextBlock, error) {
	blocks := make([]review.ContextBlock, 0, len(changeCtx.Files))
	for _, file := range changeCtx.Files {
		if len(blocks) == maxContextFiles {
			break
		}
		if file.Status == domain.FileStatusRemoved {
			continue
		}
		content, err := f.client.FetchFileContent(ctx, changeCtx, file.Path, changeCtx.HeadSHA)
		if err != nil {
			continue
		}
		blocks = append(blocks, review.ContextBlock{Path: file.Path, Content: content})
	}
	return blocks, nil
}
