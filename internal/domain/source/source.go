// Package source decides where each repository of a bundle comes from:
// a fresh clone inside the build directory, or a working copy the operator
// already has on disk.
package source

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ManiVaultStudio/DevBundle/internal/domain/catalog"
)

const (
	SourceDirName  = "source"
	BuildDirName   = "build"
	InstallDirName = "install"
)

// Layout is the directory layout under a bundle's build directory.
type Layout struct {
	Root string
}

func (l Layout) SourceDir() string {
	return filepath.Join(l.Root, SourceDirName)
}

func (l Layout) BuildTreeDir() string {
	return filepath.Join(l.Root, BuildDirName)
}

func (l Layout) InstallDir() string {
	return filepath.Join(l.Root, InstallDirName)
}

// RepoDir is where a cloned repository lives.
func (l Layout) RepoDir(repo string) string {
	return filepath.Join(l.SourceDir(), repo)
}

// Remote derives clone URLs for repositories without an explicit url.
type Remote struct {
	Host string
	Org  string
	SSH  bool
}

func (r Remote) URL(repo string) string {
	host := strings.TrimSpace(r.Host)
	if host == "" {
		host = "github.com"
	}
	if r.SSH {
		return fmt.Sprintf("git@%s:%s/%s.git", host, r.Org, repo)
	}
	return fmt.Sprintf("https://%s/%s/%s", host, r.Org, repo)
}

// Location is either Cloned or LocalPath.
type Location interface {
	location()
	// Dir is the directory holding the working copy.
	Dir() string
	BranchName() string
}

// Cloned is a repository cloned into the build directory.
type Cloned struct {
	URL    string
	Branch string
	Dest   string
}

// LocalPath is an existing working copy. Path is kept as written in the
// configuration; it is never cloned into and never deleted.
type LocalPath struct {
	Path   string
	Branch string
}

func (Cloned) location()    {}
func (LocalPath) location() {}

func (c Cloned) Dir() string           { return c.Dest }
func (c Cloned) BranchName() string    { return c.Branch }
func (l LocalPath) Dir() string        { return l.Path }
func (l LocalPath) BranchName() string { return l.Branch }

type RepoSource struct {
	Repo     string
	Location Location
}

func (s RepoSource) IsLocal() bool {
	_, ok := s.Location.(LocalPath)
	return ok
}

// Resolve assigns a location to every repository of bundle, in bundle order.
func Resolve(bundle catalog.Bundle, cat *catalog.Catalog, layout Layout, remote Remote) ([]RepoSource, error) {
	sources := make([]RepoSource, 0, len(bundle.Repos))
	for _, ref := range bundle.Repos {
		if ref.IsLocal() {
			sources = append(sources, RepoSource{
				Repo:     ref.Repo,
				Location: LocalPath{Path: ref.Local, Branch: ref.Branch},
			})
			continue
		}
		info, err := cat.Repo(ref.Repo)
		if err != nil {
			return nil, err
		}
		url := info.URL
		if url == "" {
			url = remote.URL(ref.Repo)
		}
		sources = append(sources, RepoSource{
			Repo:     ref.Repo,
			Location: Cloned{URL: url, Branch: ref.Branch, Dest: layout.RepoDir(ref.Repo)},
		})
	}
	return sources, nil
}

// CloneInstruction asks the clone executor for one repository.
type CloneInstruction struct {
	Repo   string
	URL    string
	Branch string
	Dest   string
}

// CloneInstructions returns one instruction per cloned repository, keeping
// the order of sources. Local working copies produce none.
func CloneInstructions(sources []RepoSource) []CloneInstruction {
	var out []CloneInstruction
	for _, s := range sources {
		switch loc := s.Location.(type) {
		case Cloned:
			out = append(out, CloneInstruction{Repo: s.Repo, URL: loc.URL, Branch: loc.Branch, Dest: loc.Dest})
		case LocalPath:
		}
	}
	return out
}
