package cli

import (
	"fmt"
	"runtime"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/ManiVaultStudio/DevBundle/internal/app/materialize"
	"github.com/ManiVaultStudio/DevBundle/internal/domain/binaryplan"
	"github.com/ManiVaultStudio/DevBundle/internal/ui"
)

func (a *app) useCommand() *cobra.Command {
	var flags planFlags
	var modeFlag string
	var yes bool
	cmd := &cobra.Command{
		Use:   "use BUNDLE",
		Short: "Materialize a bundle into its build directory",
		Long: `use clones the bundle's repositories, fetches its prebuilt binaries and writes
source/CMakeLists.txt under the bundle's build directory.

Modes:
  clean       remove the repositories and the build and install trees, then
              clone everything again (default; refuses when a repository has
              uncommitted changes)
  cmake_only  leave the repositories as they are and rewrite the build file
  develop     clone missing repositories and check out the configured branch
              in existing ones`,
		Args: cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			mode, err := materialize.ParseMode(modeFlag)
			if err != nil {
				return err
			}
			plan, err := a.buildPlan(ctx, args[0], flags)
			if err != nil {
				return err
			}

			r := a.renderer()
			r.Section("Inputs")
			r.KeyValue("bundle", plan.Bundle.Name)
			r.KeyValue("mode", string(mode))
			r.KeyValue("build dir", plan.Layout.Root)
			r.Blank()
			r.Section("Steps")

			res, err := materialize.Apply(ctx, plan, materialize.Options{
				Mode:       mode,
				ConfigPath: a.settings.ConfigPath,
				Platform:   binaryplan.Platform(runtime.GOOS),
				Git:        a.deps.Git,
				Inspector:  a.deps.Inspector,
				Fetcher:    a.deps.Fetcher,
				Confirm:    a.confirmRemoval(yes),
				Parallel:   a.settings.Download.Parallel,
				Timeout:    a.settings.Download.Timeout,
				CMake:      a.cmakeSettings(),
			})
			if err != nil {
				return err
			}
			log.FromContext(ctx).Debug("bundle materialized", "bundle", plan.Bundle.Name, "cloned", len(res.Cloned), "binaries", len(res.Binaries))

			r.Blank()
			r.Section("Result")
			r.BulletSuccess(fmt.Sprintf("bundle %s ready in %s", plan.Bundle.Name, plan.Layout.Root))
			r.KeyValue("build file", res.CMakeFile)
			if res.Backup != "" {
				r.KeyValue("previous build file", res.Backup)
			}
			r.KeyValue("configure with", fmt.Sprintf("cmake -S %s -B %s", plan.Layout.SourceDir(), plan.Layout.BuildTreeDir()))
			return nil
		}),
	}
	flags.register(cmd.Flags())
	cmd.Flags().StringVar(&modeFlag, "mode", string(materialize.ModeClean), "clean, cmake_only or develop")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "remove directories in clean mode without asking")
	return cmd
}

// confirmRemoval asks before a clean run deletes directories. Without a
// terminal the run needs --yes.
func (a *app) confirmRemoval(yes bool) func([]string) (bool, error) {
	if yes {
		return nil
	}
	return func(dirs []string) (bool, error) {
		if !a.deps.Interactive {
			return false, fmt.Errorf("clean mode would remove %d directories; rerun with --yes to confirm", len(dirs))
		}
		r := a.renderer()
		r.Warn("these directories will be removed:")
		for _, dir := range dirs {
			r.TreeLine(dir)
		}
		return ui.PromptConfirm("remove them and clone again?", a.theme, a.useColor, a.deps.In, a.deps.Out)
	}
}
