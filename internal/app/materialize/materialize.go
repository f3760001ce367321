// Package materialize applies a bundle plan to disk: it replaces or updates
// working copies, fetches prebuilt binaries, writes the top-level build file
// and records what it did.
package materialize

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ManiVaultStudio/DevBundle/internal/app/bundleplan"
	"github.com/ManiVaultStudio/DevBundle/internal/domain/binaryplan"
	"github.com/ManiVaultStudio/DevBundle/internal/domain/safety"
	"github.com/ManiVaultStudio/DevBundle/internal/domain/source"
	"github.com/ManiVaultStudio/DevBundle/internal/infra/archive"
	"github.com/ManiVaultStudio/DevBundle/internal/infra/cmakefile"
	"github.com/ManiVaultStudio/DevBundle/internal/infra/debuglog"
	"github.com/ManiVaultStudio/DevBundle/internal/infra/output"
	"github.com/ManiVaultStudio/DevBundle/internal/infra/paths"
	"github.com/ManiVaultStudio/DevBundle/internal/infra/prefetcher"
	"github.com/ManiVaultStudio/DevBundle/internal/infra/staterecord"
)

type Git interface {
	Clone(ctx context.Context, url, branch, dest string) error
	Checkout(ctx context.Context, dir, branch string) error
	Head(ctx context.Context, dir string) (string, error)
}

type Fetcher interface {
	Fetch(ctx context.Context, url, archivePath, installDir string) (archive.Outcome, error)
}

type CMake struct {
	MinimumVersion string
	InstallDirEnv  string
}

type Options struct {
	Mode       Mode
	ConfigPath string
	Platform   string
	Git        Git
	Inspector  safety.Inspector
	Fetcher    Fetcher
	// Confirm is asked before a clean run removes anything. nil proceeds.
	Confirm  func(paths []string) (bool, error)
	Parallel int
	Timeout  time.Duration
	CMake    CMake
	Now      func() time.Time
}

// ErrDeclined is returned when Confirm answers no.
var ErrDeclined = errors.New("removal declined")

// MissingRepoError is returned by cmake_only runs when a repository to be
// referenced from the build file has never been cloned.
type MissingRepoError struct {
	Repo string
	Dir  string
}

func (e *MissingRepoError) Error() string {
	return fmt.Sprintf("repository %s is missing at %s; run with --mode develop or clean first", e.Repo, e.Dir)
}

type BinaryOutcome struct {
	Name string
	archive.Outcome
}

type Result struct {
	Removed    []string
	Cloned     []string
	CheckedOut []string
	Binaries   []BinaryOutcome
	CMakeFile  string
	// Backup is the name the previous build file was saved under, if any.
	Backup string
	Record staterecord.Record
}

func Apply(ctx context.Context, plan bundleplan.Plan, opts Options) (Result, error) {
	var res Result
	mode, err := ParseMode(string(opts.Mode))
	if err != nil {
		return res, err
	}
	if opts.Git == nil || opts.Fetcher == nil {
		return res, fmt.Errorf("git and fetcher collaborators are required")
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if mode.Destructive() {
		debuglog.SetPhase("safety")
		output.Step("check working trees")
		if err := safety.Check(ctx, plan.SafetyTargets(), opts.Inspector); err != nil {
			return res, err
		}
		removed, err := removeTargets(plan, opts.Confirm)
		if err != nil {
			return res, err
		}
		res.Removed = removed
	}

	layout := plan.Layout
	for _, dir := range []string{layout.SourceDir(), layout.BuildTreeDir(), layout.InstallDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return res, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	binaries := plan.Binaries.Binaries
	outcomes := make(map[string]archive.Outcome, len(binaries))
	var outcomesMu sync.Mutex
	pf := prefetcher.New(opts.Parallel, opts.Timeout)
	for _, b := range binaries {
		pf.Start(ctx, b.Name, func(ctx context.Context) error {
			out, err := opts.Fetcher.Fetch(ctx, b.Locator, b.Archive, b.InstallDir)
			outcomesMu.Lock()
			outcomes[b.Name] = out
			outcomesMu.Unlock()
			if err != nil {
				return fmt.Errorf("fetch binary %s: %w", b.Name, err)
			}
			return nil
		})
	}

	debuglog.SetPhase("clone")
	if err := syncRepos(ctx, plan, mode, opts.Git, &res); err != nil {
		return res, err
	}

	debuglog.SetPhase("binaries")
	for _, b := range binaries {
		output.Stepf("binary %s", b.Name)
		if err := pf.Wait(ctx, b.Name); err != nil {
			return res, err
		}
		outcomesMu.Lock()
		out := outcomes[b.Name]
		outcomesMu.Unlock()
		output.Log(describeFetch(b, out))
		res.Binaries = append(res.Binaries, BinaryOutcome{Name: b.Name, Outcome: out})
	}
	for _, name := range plan.Binaries.Skipped {
		output.Stepf("binary %s", name)
		output.Log("skipped")
	}

	debuglog.SetPhase("cmake")
	output.Stepf("write %s", cmakefile.FileName)
	backup, err := cmakefile.Write(layout.SourceDir(), cmakefile.Render(CMakeInput(plan, opts.CMake)))
	if err != nil {
		return res, err
	}
	res.CMakeFile = filepath.Join(layout.SourceDir(), cmakefile.FileName)
	res.Backup = backup
	if backup != "" {
		output.Logf("previous file kept as %s", backup)
	}

	rec := buildRecord(ctx, plan, mode, opts, res)
	if err := staterecord.Save(layout.Root, rec); err != nil {
		return res, err
	}
	res.Record = rec
	return res, nil
}

// removeTargets deletes the existing non-local repository directories and
// the build and install trees. The source directory itself is kept so that
// earlier build files survive as backups.
func removeTargets(plan bundleplan.Plan, confirm func([]string) (bool, error)) ([]string, error) {
	candidates := make([]string, 0, len(plan.Repos)+2)
	for _, r := range plan.Repos {
		if !r.Local {
			candidates = append(candidates, r.Dir)
		}
	}
	candidates = append(candidates, plan.Layout.BuildTreeDir(), plan.Layout.InstallDir())

	var existing []string
	for _, dir := range candidates {
		ok, err := paths.DirExists(dir)
		if err != nil {
			return nil, err
		}
		if ok {
			existing = append(existing, dir)
		}
	}
	if len(existing) == 0 {
		return nil, nil
	}
	if confirm != nil {
		ok, err := confirm(existing)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrDeclined
		}
	}
	for _, dir := range existing {
		output.Stepf("remove %s", dir)
		debuglog.LogEvent("", "remove", "dir", dir)
		if err := os.RemoveAll(dir); err != nil {
			return nil, fmt.Errorf("remove %s: %w", dir, err)
		}
	}
	return existing, nil
}

func syncRepos(ctx context.Context, plan bundleplan.Plan, mode Mode, git Git, res *Result) error {
	for _, r := range plan.Repos {
		if !r.Local {
			continue
		}
		output.Stepf("use local %s", r.Name)
		ok, err := paths.DirExists(r.Dir)
		if err != nil {
			return err
		}
		if ok {
			output.Log(r.Dir)
		} else {
			output.Logf("%s does not exist", r.Dir)
		}
	}

	for _, inst := range plan.CloneInstructions() {
		exists, err := paths.DirExists(inst.Dest)
		if err != nil {
			return err
		}
		switch {
		case mode == ModeCMakeOnly:
			if !exists {
				return &MissingRepoError{Repo: inst.Repo, Dir: inst.Dest}
			}
		case mode == ModeDevelop && exists:
			output.Stepf("checkout %s (%s)", inst.Repo, inst.Branch)
			if err := git.Checkout(ctx, inst.Dest, inst.Branch); err != nil {
				return fmt.Errorf("checkout %s: %w", inst.Repo, err)
			}
			res.CheckedOut = append(res.CheckedOut, inst.Repo)
		default:
			output.Stepf("clone %s (%s)", inst.Repo, inst.Branch)
			output.Log(inst.URL)
			if err := git.Clone(ctx, inst.URL, inst.Branch, inst.Dest); err != nil {
				return fmt.Errorf("clone %s: %w", inst.Repo, err)
			}
			res.Cloned = append(res.Cloned, inst.Repo)
		}
	}
	return nil
}

func describeFetch(b binaryplan.Binary, out archive.Outcome) string {
	switch {
	case out.Downloaded && out.Unpacked:
		return "downloaded and unpacked to " + b.InstallDir
	case out.Unpacked:
		return "unpacked cached archive to " + b.InstallDir
	case out.Downloaded:
		return "downloaded; " + b.InstallDir + " already present"
	default:
		return "already present at " + b.InstallDir
	}
}

// CMakeInput maps a plan onto the generated build file.
func CMakeInput(plan bundleplan.Plan, cmake CMake) cmakefile.Input {
	in := cmakefile.Input{
		Project:        plan.Bundle.Name,
		MinimumVersion: cmake.MinimumVersion,
		SourceDir:      plan.Layout.SourceDir(),
		InstallDir:     plan.Layout.InstallDir(),
		InstallDirEnv:  cmake.InstallDirEnv,
		DebugPaths:     plan.Binaries.DebugPaths,
	}
	for _, v := range plan.Binaries.Variables {
		in.Variables = append(in.Variables, cmakefile.Variable{
			Name:     v.Name,
			Values:   v.Values,
			Append:   v.Append,
			Override: v.Origin == binaryplan.OriginOverride,
		})
	}
	for _, r := range plan.Repos {
		in.Subdirectories = append(in.Subdirectories, cmakefile.Subdirectory{Name: r.Name, Dir: r.Dir})
	}
	for _, s := range plan.Steps {
		in.Targets = append(in.Targets, cmakefile.Target{
			Name:         s.Subproject,
			Dependencies: s.Dependencies,
			External:     s.External,
		})
	}
	return in
}

func buildRecord(ctx context.Context, plan bundleplan.Plan, mode Mode, opts Options, res Result) staterecord.Record {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	rec := staterecord.Record{
		Bundle:     plan.Bundle.Name,
		Mode:       string(mode),
		Config:     opts.ConfigPath,
		AppliedAt:  now().UTC(),
		Platform:   opts.Platform,
		CMakeFile:  res.CMakeFile,
		Skipped:    plan.Binaries.Skipped,
		BuildOrder: plan.Subprojects(),
	}
	for _, r := range plan.Repos {
		entry := staterecord.Repo{
			Name:   r.Name,
			Branch: r.Source.Location.BranchName(),
			Dir:    r.Dir,
			Local:  r.Local,
		}
		if c, ok := r.Source.Location.(source.Cloned); ok {
			entry.URL = c.URL
		}
		head, err := opts.Git.Head(ctx, r.Dir)
		if err != nil {
			debuglog.LogEvent("", "head_error", "repo", r.Name, "err", err.Error())
		}
		entry.Head = head
		rec.Repos = append(rec.Repos, entry)
	}
	for _, b := range plan.Binaries.Binaries {
		rec.Binaries = append(rec.Binaries, staterecord.Binary{Name: b.Name, Locator: b.Locator, InstallDir: b.InstallDir})
	}
	return rec
}
