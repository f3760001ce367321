package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ManiVaultStudio/DevBundle/internal/infra/paths"
	"github.com/ManiVaultStudio/DevBundle/internal/infra/staterecord"
)

func (a *app) statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status BUNDLE",
		Short: "Show the last materialization of a bundle and the state of its working copies",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			plan, err := a.buildPlan(ctx, args[0], planFlags{})
			if err != nil {
				return err
			}
			rec, ok, err := staterecord.Load(plan.Layout.Root)
			if err != nil {
				return err
			}

			r := a.renderer()
			r.Section("Last run")
			if !ok {
				r.Bullet("never materialized in " + plan.Layout.Root)
			} else {
				r.KeyValue("applied", rec.AppliedAt.Local().Format("2006-01-02 15:04:05"))
				r.KeyValue("mode", rec.Mode)
				r.KeyValue("build file", rec.CMakeFile)
				if len(rec.Skipped) > 0 {
					r.KeyValue("skipped binaries", strings.Join(rec.Skipped, ", "))
				}
			}
			recorded := make(map[string]staterecord.Repo, len(rec.Repos))
			for _, repo := range rec.Repos {
				recorded[repo.Name] = repo
			}

			r.Blank()
			r.Section("Repos")
			for _, repo := range plan.Repos {
				exists, err := paths.DirExists(repo.Dir)
				if err != nil {
					return err
				}
				if !exists {
					r.BulletWarn(repo.Name + " missing")
					r.TreeLine(repo.Dir)
					continue
				}
				st, err := a.deps.Status(ctx, repo.Dir)
				if err != nil {
					r.BulletError(repo.Name)
					r.TreeLine(err.Error())
					continue
				}
				branch := st.Branch
				if branch == "" {
					branch = "detached"
				}
				detail := fmt.Sprintf("%s@%s, %s", branch, st.Head, st.Summary())
				if repo.Local {
					detail = "local, " + detail
				}
				r.Item(repo.Name, detail)
				want := repo.Source.Location.BranchName()
				if want != "" && st.Branch != want {
					r.TreeLine("expected branch " + want)
				}
				if prev, ok := recorded[repo.Name]; ok && prev.Head != "" && prev.Head != st.Head {
					r.TreeLine("recorded head " + prev.Head)
				}
			}

			if len(plan.Binaries.Binaries) > 0 {
				r.Blank()
				r.Section("Binaries")
				for _, b := range plan.Binaries.Binaries {
					present, err := paths.DirExists(b.InstallDir)
					if err != nil {
						return err
					}
					if present {
						r.Item(b.Name, b.InstallDir)
					} else {
						r.BulletWarn(b.Name + " not unpacked")
					}
				}
			}
			return nil
		}),
	}
}
