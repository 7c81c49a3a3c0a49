package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	gogit "github.com/go-git/go-git/v6"
)

// Executor performs git work against on-disk checkouts using go-git. It
// implements domain.GitExecutor.
type Executor struct {
	// Depth limits clone history; 0 means a full clone.
	Depth int
}

func NewExecutor() *Executor { return &Executor{} }

func (e *Executor) Clone(ctx context.Context, url, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create destination: %w", err)
	}

	_, err := gogit.PlainCloneContext(ctx, dest, &gogit.CloneOptions{
		URL:   url,
		Depth: e.Depth,
	})
	if err != nil {
		// A failed clone must not leave a partial checkout behind.
		_ = os.RemoveAll(dest)
		return fmt.Errorf("clone: %w", err)
	}
	return nil
}

func (e *Executor) Pull(ctx context.Context, dest string) error {
	repo, err := gogit.PlainOpen(dest)
	if err != nil {
		return fmt.Errorf("open %s: %w", dest, err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("worktree: %w", err)
	}

	err = worktree.PullContext(ctx, &gogit.PullOptions{RemoteName: "origin"})
	if errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("pull: %w", err)
	}
	return nil
}

func (e *Executor) Status(ctx context.Context, dest string, fetchRemote bool) (string, error) {
	repo, err := gogit.PlainOpen(dest)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", dest, err)
	}

	if fetchRemote {
		err := repo.FetchContext(ctx, &gogit.FetchOptions{RemoteName: "origin"})
		if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
			return "", fmt.Errorf("fetch: %w", err)
		}
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("worktree: %w", err)
	}
	status, err := worktree.Status()
	if err != nil {
		return "", fmt.Errorf("status: %w", err)
	}

	if status.IsClean() {
		return "clean", nil
	}
	return fmt.Sprintf("dirty (%d changed files)", len(status)), nil
}

func (e *Executor) IsValidCheckout(dest string) bool {
	_, err := gogit.PlainOpen(dest)
	return err == nil
}
