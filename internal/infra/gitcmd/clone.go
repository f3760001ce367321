package gitcmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Clone clones url into dest with submodules, checking out branch when set.
func Clone(ctx context.Context, url, branch, dest string) error {
	if strings.TrimSpace(url) == "" {
		return fmt.Errorf("clone url is required")
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create clone parent dir: %w", err)
	}
	args := []string{"clone", "--recurse-submodules"}
	if strings.TrimSpace(branch) != "" {
		args = append(args, "--branch", branch)
	}
	args = append(args, url, dest)
	_, err := Run(ctx, args, Options{})
	return err
}

// Checkout switches an existing working copy to branch and brings its
// submodules along.
func Checkout(ctx context.Context, dir, branch string) error {
	if strings.TrimSpace(branch) == "" {
		return nil
	}
	if _, err := Run(ctx, []string{"checkout", branch}, Options{Dir: dir}); err != nil {
		return err
	}
	_, err := Run(ctx, []string{"submodule", "update", "--init", "--recursive"}, Options{Dir: dir})
	return err
}

// RevParse runs git rev-parse and returns trimmed stdout.
func RevParse(ctx context.Context, dir string, args ...string) (string, error) {
	res, err := Run(ctx, append([]string{"rev-parse"}, args...), Options{Dir: dir})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Stdout), nil
}

// Cloner adapts the package functions to the materialize collaborators.
type Cloner struct{}

func (Cloner) Clone(ctx context.Context, url, branch, dest string) error {
	return Clone(ctx, url, branch, dest)
}

func (Cloner) Checkout(ctx context.Context, dir, branch string) error {
	return Checkout(ctx, dir, branch)
}

// Head returns the abbreviated commit checked out in dir.
func (Cloner) Head(ctx context.Context, dir string) (string, error) {
	sha, err := RevParse(ctx, dir, "HEAD")
	if err != nil {
		return "", err
	}
	return shortSHA(sha), nil
}
