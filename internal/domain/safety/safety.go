// Package safety guards destructive runs: nothing is deleted while any
// repository about to be replaced has uncommitted work.
package safety

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// TreeState is what an Inspector reports for one working copy. Summary is a
// short human readable description such as "2 modified, 1 untracked".
type TreeState struct {
	Dirty   bool
	Summary string
}

type Inspector interface {
	Inspect(ctx context.Context, dir string) (TreeState, error)
}

// Target is a repository directory a destructive run would replace.
// Local targets are the operator's own working copies and are never checked
// or touched.
type Target struct {
	Repo  string
	Dir   string
	Local bool
}

type DirtyRepo struct {
	Repo    string
	Dir     string
	Summary string
}

// DirtyWorkingTreeError lists every repository with uncommitted changes.
type DirtyWorkingTreeError struct {
	Repos []DirtyRepo
}

func (e *DirtyWorkingTreeError) Error() string {
	names := make([]string, 0, len(e.Repos))
	for _, r := range e.Repos {
		names = append(names, r.Repo)
	}
	return fmt.Sprintf("uncommitted changes in %s", strings.Join(names, ", "))
}

// Check inspects every existing, non-local target before returning, so that
// a single error names all dirty repositories. Inspector errors abort the
// check and are returned unchanged.
func Check(ctx context.Context, targets []Target, inspector Inspector) error {
	if inspector == nil {
		return fmt.Errorf("working tree inspector is required")
	}
	var dirty []DirtyRepo
	for _, target := range targets {
		if target.Local {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		info, err := os.Stat(target.Dir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
		if !info.IsDir() {
			continue
		}
		state, err := inspector.Inspect(ctx, target.Dir)
		if err != nil {
			return err
		}
		if state.Dirty {
			dirty = append(dirty, DirtyRepo{Repo: target.Repo, Dir: target.Dir, Summary: state.Summary})
		}
	}
	if len(dirty) > 0 {
		return &DirtyWorkingTreeError{Repos: dirty}
	}
	return nil
}
