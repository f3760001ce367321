// Package bundleplan turns a bundle name into everything needed to
// materialize it: build order, repository sources and binaries. Building a
// plan touches nothing on disk.
package bundleplan

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/ManiVaultStudio/DevBundle/internal/domain/binaryplan"
	"github.com/ManiVaultStudio/DevBundle/internal/domain/buildorder"
	"github.com/ManiVaultStudio/DevBundle/internal/domain/catalog"
	"github.com/ManiVaultStudio/DevBundle/internal/domain/safety"
	"github.com/ManiVaultStudio/DevBundle/internal/domain/source"
)

type Options struct {
	Bundle    string
	Skip      []string
	Overrides []binaryplan.Override
	// BinariesDir defaults to "binaries" next to the config file.
	BinariesDir string
	// Platform defaults to the running platform.
	Platform string
	Remote   source.Remote
}

type Step struct {
	buildorder.Step
	SourceDir string
	Local     bool
}

// Repo is a repository in build order: the position of its first subproject.
type Repo struct {
	Name   string
	Source source.RepoSource
	// Dir is the absolute working copy directory.
	Dir   string
	Local bool
}

type Plan struct {
	Bundle catalog.Bundle
	Layout source.Layout
	Steps  []Step
	Repos  []Repo
	// Sources keeps bundle declaration order.
	Sources  []source.RepoSource
	Binaries binaryplan.Plan
}

func Build(ctx context.Context, cat *catalog.Catalog, opts Options) (Plan, error) {
	if cat == nil {
		return Plan{}, fmt.Errorf("catalog is required")
	}
	if err := ctx.Err(); err != nil {
		return Plan{}, err
	}
	bundle, err := cat.Bundle(opts.Bundle)
	if err != nil {
		return Plan{}, err
	}

	order, err := buildorder.Resolve(bundle, cat)
	if err != nil {
		return Plan{}, err
	}

	layout := source.Layout{Root: cat.ResolvePath(bundle.BuildDir)}
	sources, err := source.Resolve(bundle, cat, layout, opts.Remote)
	if err != nil {
		return Plan{}, err
	}

	binariesDir := opts.BinariesDir
	if binariesDir == "" {
		binariesDir = cat.ResolvePath("binaries")
	} else if !filepath.IsAbs(binariesDir) {
		if binariesDir, err = filepath.Abs(binariesDir); err != nil {
			return Plan{}, fmt.Errorf("resolve binaries dir: %w", err)
		}
	}
	binaries, err := binaryplan.Build(binaryplan.Input{
		Bundle:      bundle,
		Catalog:     cat,
		Skip:        opts.Skip,
		Overrides:   opts.Overrides,
		BinariesDir: binariesDir,
		Platform:    opts.Platform,
	})
	if err != nil {
		return Plan{}, err
	}

	bySource := make(map[string]source.RepoSource, len(sources))
	for _, s := range sources {
		bySource[s.Repo] = s
	}
	repoDir := func(s source.RepoSource) string {
		if s.IsLocal() {
			return cat.ResolvePath(s.Location.Dir())
		}
		return s.Location.Dir()
	}

	plan := Plan{
		Bundle:   bundle,
		Layout:   layout,
		Sources:  sources,
		Binaries: binaries,
	}
	for _, s := range order {
		src := bySource[s.Repo]
		plan.Steps = append(plan.Steps, Step{Step: s, SourceDir: repoDir(src), Local: src.IsLocal()})
	}
	for _, name := range buildorder.RepoOrder(order) {
		src := bySource[name]
		plan.Repos = append(plan.Repos, Repo{Name: name, Source: src, Dir: repoDir(src), Local: src.IsLocal()})
	}
	return plan, nil
}

// CloneInstructions lists the repositories to clone in build order.
func (p Plan) CloneInstructions() []source.CloneInstruction {
	ordered := make([]source.RepoSource, 0, len(p.Repos))
	for _, r := range p.Repos {
		ordered = append(ordered, r.Source)
	}
	return source.CloneInstructions(ordered)
}

// SafetyTargets lists the repository directories a clean run would replace.
func (p Plan) SafetyTargets() []safety.Target {
	targets := make([]safety.Target, 0, len(p.Repos))
	for _, r := range p.Repos {
		targets = append(targets, safety.Target{Repo: r.Name, Dir: r.Dir, Local: r.Local})
	}
	return targets
}

// Subprojects returns the subproject names in build order.
func (p Plan) Subprojects() []string {
	names := make([]string, 0, len(p.Steps))
	for _, s := range p.Steps {
		names = append(names, s.Subproject)
	}
	return names
}

// RepoNames returns the repository names in build order.
func (p Plan) RepoNames() []string {
	names := make([]string, 0, len(p.Repos))
	for _, r := range p.Repos {
		names = append(names, r.Name)
	}
	return names
}
