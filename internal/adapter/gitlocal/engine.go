// Package gitlocal builds a change snapshot from a local repository so a
// review can run against two refs without any hosting platform.
package gitlocal

import (
	"context"
	"fmt"
	"strings"

	goGit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	formatdiff "github.com/go-git/go-git/v5/plumbing/format/diff"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/getpanelist/panelist/internal/domain"
)

// maxLocalCommits caps the history walk for large branches.
const maxLocalCommits = 100

// Engine reads change context and diffs from a repository on disk.
type Engine struct {
	repoDir string
}

// NewEngine constructs an engine for the provided repository directory.
func NewEngine(repoDir string) *Engine {
	return &Engine{repoDir: repoDir}
}

// Snapshot resolves baseRef and headRef and returns the change context plus
// the raw unified diff between them. The context has no platform fields
// (owner, repo, number stay zero) and is only suitable for dry runs.
func (e *Engine) Snapshot(ctx context.Context, baseRef, headRef string) (domain.ChangeContext, string, error) {
	repo, err := goGit.PlainOpenWithOptions(e.repoDir, &goGit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return domain.ChangeContext{}, "", fmt.Errorf("open repo: %w", err)
	}

	baseCommit, err := resolveCommit(repo, baseRef)
	if err != nil {
		return domain.ChangeContext{}, "", fmt.Errorf("resolve base ref: %w", err)
	}
	headCommit, err := resolveCommit(repo, headRef)
	if err != nil {
		return domain.ChangeContext{}, "", fmt.Errorf("resolve head ref: %w", err)
	}

	patch, err := baseCommit.Patch(headCommit)
	if err != nil {
		return domain.ChangeContext{}, "", fmt.Errorf("compute patch: %w", err)
	}

	changeCtx := domain.ChangeContext{
		BaseSHA:    baseCommit.Hash.String(),
		HeadSHA:    headCommit.Hash.String(),
		BaseBranch: baseRef,
		HeadBranch: headRef,
		Title:      firstLine(headCommit.Message),
		Author:     headCommit.Author.Name,
	}

	for _, fp := range patch.FilePatches() {
		path, status := pathAndStatus(fp)
		patchText, err := encodeFilePatch(fp)
		if err != nil {
			return domain.ChangeContext{}, "", fmt.Errorf("encode patch for %s: %w", path, err)
		}
		additions, deletions := countStats(patchText)
		changeCtx.Files = append(changeCtx.Files, domain.FileChange{
			Path:      path,
			Status:    status,
			Additions: additions,
			Deletions: deletions,
			Patch:     patchText,
		})
		changeCtx.Additions += additions
		changeCtx.Deletions += deletions
	}

	if changeCtx.Commits, err = commitsBetween(repo, baseCommit, headCommit); err != nil {
		return domain.ChangeContext{}, "", err
	}

	return changeCtx, patch.String(), nil
}

func resolveCommit(repo *goGit.Repository, ref string) (*object.Commit, error) {
	candidates := []string{
		ref,
		fmt.Sprintf("refs/heads/%s", ref),
		fmt.Sprintf("refs/remotes/origin/%s", ref),
	}

	var lastErr error
	for _, candidate := range candidates {
		hash, err := repo.ResolveRevision(plumbing.Revision(candidate))
		if err != nil {
			lastErr = err
			continue
		}
		return repo.CommitObject(*hash)
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, fmt.Errorf("unable to resolve ref %s", ref)
}

// commitsBetween walks head's first-parent history until it reaches base,
// newest first.
func commitsBetween(repo *goGit.Repository, base, head *object.Commit) ([]domain.Commit, error) {
	iter, err := repo.Log(&goGit.LogOptions{From: head.Hash})
	if err != nil {
		return nil, fmt.Errorf("walk history: %w", err)
	}
	defer iter.Close()

	var commits []domain.Commit
	for len(commits) < maxLocalCommits {
		commit, err := iter.Next()
		if err != nil {
			break
		}
		if commit.Hash == base.Hash {
			break
		}
		commits = append(commits, domain.Commit{
			SHA:     commit.Hash.String(),
			Message: commit.Message,
			Author:  commit.Author.Name,
		})
	}
	return commits, nil
}

func pathAndStatus(fp formatdiff.FilePatch) (string, string) {
	from, to := fp.Files()
	switch {
	case from == nil && to != nil:
		return to.Path(), domain.FileStatusAdded
	case from != nil && to == nil:
		return from.Path(), domain.FileStatusRemoved
	case from != nil && to != nil && from.Path() != to.Path():
		return to.Path(), domain.FileStatusRenamed
	case to != nil:
		return to.Path(), domain.FileStatusModified
	default:
		return "", domain.FileStatusModified
	}
}

func countStats(patchText string) (additions, deletions int) {
	for _, line := range strings.Split(patchText, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		case strings.HasPrefix(line, "+"):
			additions++
		case strings.HasPrefix(line, "-"):
			deletions++
		}
	}
	return additions, deletions
}

func encodeFilePatch(fp formatdiff.FilePatch) (string, error) {
	var buf strings.Builder
	encoder := formatdiff.NewUnifiedEncoder(&buf, formatdiff.DefaultContextLines)
	if err := encoder.Encode(singlePatch{fp: fp}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

type singlePatch struct {
	fp formatdiff.FilePatch
}

func (s singlePatch) FilePatches() []formatdiff.FilePatch {
	return []formatdiff.FilePatch{s.fp}
}

func (s singlePatch) Message() string {
	return ""
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
