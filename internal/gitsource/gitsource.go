// Package gitsource mirrors remote git repositories of markdown notes
// into a local directory so they can be walked like any local source.
package gitsource

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
)

// IsGitURL reports whether a source path looks like a git remote
// rather than a local directory.
func IsGitURL(path string) bool {
	return strings.HasSuffix(path, ".git") ||
		strings.HasPrefix(path, "git@") ||
		strings.HasPrefix(path, "https://") ||
		strings.HasPrefix(path, "http://")
}

// LocalPath maps a repository URL to a stable checkout location under
// baseDir: baseDir/<host>/<owner>/<repo>. SSH-style addresses
// (git@host:owner/repo.git) are handled alongside http(s) URLs.
func LocalPath(baseDir, repoURL string) (string, error) {
	parsed, err := url.Parse(repoURL)
	if err == nil && (parsed.Scheme == "https" || parsed.Scheme == "http") {
		repoPath := strings.TrimSuffix(parsed.Path, ".git")
		return filepath.Join(baseDir, parsed.Host, repoPath), nil
	}

	if at := strings.Index(repoURL, "@"); at >= 0 {
		rest := repoURL[at+1:]
		host, repoPath, ok := strings.Cut(rest, ":")
		if ok {
			repoPath = strings.TrimSuffix(repoPath, ".git")
			return filepath.Join(baseDir, host, repoPath), nil
		}
	}

	return "", fmt.Errorf("cannot derive local path for git URL %q", repoURL)
}

// Sync clones the repository to localPath if absent, otherwise pulls
// the latest changes. An already-up-to-date pull is not an error.
func Sync(ctx context.Context, repoURL, localPath string) error {
	_, err := os.Stat(localPath)
	switch {
	case os.IsNotExist(err):
		slog.Info("cloning source repository", "url", repoURL, "path", localPath)
		_, err := git.PlainCloneContext(ctx, localPath, false, &git.CloneOptions{
			URL: repoURL,
		})
		if err != nil {
			return fmt.Errorf("clone %s: %w", repoURL, err)
		}
		return nil

	case err != nil:
		return fmt.Errorf("stat %s: %w", localPath, err)
	}

	repo, err := git.PlainOpen(localPath)
	if err != nil {
		return fmt.Errorf("open repository at %s: %w", localPath, err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("worktree for %s: %w", localPath, err)
	}

	slog.Info("pulling source repository", "url", repoURL, "path", localPath)
	err = worktree.PullContext(ctx, &git.PullOptions{RemoteName: "origin"})
	if err != nil && err != git.NoErrAlreadyUpToDate {
		return fmt.Errorf("pull %s: %w", localPath, err)
	}
	return nil
}
