package cli

import (
	"errors"
	"fmt"

	"github.com/ManiVaultStudio/DevBundle/internal/app/materialize"
	"github.com/ManiVaultStudio/DevBundle/internal/domain/buildorder"
	"github.com/ManiVaultStudio/DevBundle/internal/domain/catalog"
	"github.com/ManiVaultStudio/DevBundle/internal/domain/safety"
	"github.com/ManiVaultStudio/DevBundle/internal/ui"
)

// explainError prints the lists carried by typed errors. The one-line error
// itself is reported by the caller.
func explainError(r *ui.Renderer, err error) {
	var cfgErr *catalog.ConfigError
	var dirty *safety.DirtyWorkingTreeError
	var cycle *buildorder.CyclicDependencyError
	var missing *materialize.MissingRepoError
	switch {
	case errors.As(err, &cfgErr):
		r.Section("Config issues")
		renderIssues(r, cfgErr.Result.Issues)
	case errors.As(err, &dirty):
		r.Section("Uncommitted changes")
		for _, repo := range dirty.Repos {
			r.BulletError(repo.Repo)
			r.TreeLine(fmt.Sprintf("%s (%s)", repo.Dir, repo.Summary))
		}
		r.Warn("commit or stash these changes first, or use --mode develop")
	case errors.As(err, &cycle):
		r.Section("Dependency cycle")
		for _, node := range cycle.Nodes {
			r.BulletError(node)
		}
	case errors.As(err, &missing):
		r.Section("Missing repository")
		r.BulletError(missing.Repo)
		r.TreeLine(missing.Dir)
	default:
		return
	}
	r.Blank()
}

func renderIssues(r *ui.Renderer, issues []catalog.ValidationIssue) {
	for _, issue := range issues {
		r.BulletError(issue.Ref)
		r.TreeLine(issue.Message)
	}
}
