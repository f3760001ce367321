package buildorder

import (
	"fmt"
	"slices"

	"github.com/ManiVaultStudio/DevBundle/internal/domain/catalog"
)

// Step is one subproject in build order. Dependencies lists the in-bundle
// subprojects it depends on; External lists dependencies whose repository is
// not part of the bundle. Both keep declaration order.
type Step struct {
	Repo         string
	Subproject   string
	Dependencies []string
	External     []string
}

// Resolve orders the subprojects of every repository in bundle. Only the
// subprojects of the bundle's repositories take part; a dependency on any
// other subproject is reported in Step.External and does not affect ordering.
func Resolve(bundle catalog.Bundle, cat *catalog.Catalog) ([]Step, error) {
	if cat == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	g := NewGraph()
	declared := make(map[string]catalog.Subproject)
	for repoIndex, ref := range bundle.Repos {
		info, err := cat.Repo(ref.Repo)
		if err != nil {
			return nil, err
		}
		for i, sp := range info.Subprojects {
			if err := g.AddNode(Node{Repo: info.Name, RepoIndex: repoIndex, Name: sp.Name, Index: i}); err != nil {
				return nil, fmt.Errorf("bundle %s: %w", bundle.Name, err)
			}
			declared[sp.Name] = sp
		}
	}

	external := make(map[string][]string)
	internal := make(map[string][]string)
	for _, n := range g.nodes {
		name := n.Name
		for _, dep := range declared[name].Dependencies {
			if !g.Has(dep) {
				if !slices.Contains(external[name], dep) {
					external[name] = append(external[name], dep)
				}
				continue
			}
			if !slices.Contains(internal[name], dep) {
				internal[name] = append(internal[name], dep)
			}
			if err := g.AddEdge(dep, name); err != nil {
				return nil, err
			}
		}
	}

	nodes, err := g.Sort()
	if err != nil {
		return nil, err
	}
	steps := make([]Step, 0, len(nodes))
	for _, n := range nodes {
		steps = append(steps, Step{
			Repo:         n.Repo,
			Subproject:   n.Name,
			Dependencies: internal[n.Name],
			External:     external[n.Name],
		})
	}
	return steps, nil
}

// RepoOrder lists each repository once, at the position of its first
// subproject in steps.
func RepoOrder(steps []Step) []string {
	var repos []string
	for _, s := range steps {
		if !slices.Contains(repos, s.Repo) {
			repos = append(repos, s.Repo)
		}
	}
	return repos
}
