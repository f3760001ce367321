package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ManiVaultStudio/DevBundle/internal/app/bundleplan"
	"github.com/ManiVaultStudio/DevBundle/internal/app/materialize"
	"github.com/ManiVaultStudio/DevBundle/internal/domain/binaryplan"
	"github.com/ManiVaultStudio/DevBundle/internal/domain/source"
	"github.com/ManiVaultStudio/DevBundle/internal/infra/cmakefile"
	"github.com/ManiVaultStudio/DevBundle/internal/ui"
)

// planFlags are shared by plan and use.
type planFlags struct {
	skip []string
	vars []string
}

func (f *planFlags) register(flags *pflag.FlagSet) {
	flags.StringSliceVar(&f.skip, "skip-binary", nil, "leave out a prebuilt binary (repeatable)")
	flags.StringArrayVar(&f.vars, "var", nil, "override a build variable as NAME=VALUE (repeatable)")
	flags.Bool("ssh", false, "clone over ssh instead of https")
}

func (a *app) buildPlan(ctx context.Context, bundle string, f planFlags) (bundleplan.Plan, error) {
	cat, err := a.loadCatalog(ctx)
	if err != nil {
		return bundleplan.Plan{}, err
	}
	overrides := make([]binaryplan.Override, 0, len(f.vars))
	for _, raw := range f.vars {
		o, err := binaryplan.ParseOverride(raw)
		if err != nil {
			return bundleplan.Plan{}, err
		}
		overrides = append(overrides, o)
	}
	plan, err := bundleplan.Build(ctx, cat, bundleplan.Options{
		Bundle:      bundle,
		Skip:        f.skip,
		Overrides:   overrides,
		BinariesDir: a.settings.BinariesDir,
		Remote:      a.remote(),
	})
	if err != nil {
		return bundleplan.Plan{}, err
	}
	log.FromContext(ctx).Debug("plan built",
		"bundle", plan.Bundle.Name,
		"subprojects", len(plan.Steps),
		"binaries", len(plan.Binaries.Binaries),
		"skipped", len(plan.Binaries.Skipped))
	return plan, nil
}

func (a *app) remote() source.Remote {
	return source.Remote{Host: a.settings.GitHost, Org: a.settings.GitOrg, SSH: a.settings.SSH}
}

func (a *app) cmakeSettings() materialize.CMake {
	return materialize.CMake{
		MinimumVersion: a.settings.CMake.MinimumVersion,
		InstallDirEnv:  a.settings.CMake.InstallDirEnv,
	}
}

func (a *app) planCommand() *cobra.Command {
	var flags planFlags
	var showCMake bool
	cmd := &cobra.Command{
		Use:   "plan BUNDLE",
		Short: "Show the build order, clones, binaries and variables of a bundle",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			plan, err := a.buildPlan(cmd.Context(), args[0], flags)
			if err != nil {
				return err
			}
			r := a.renderer()
			renderPlan(r, plan)
			if showCMake {
				r.Blank()
				r.Section(cmakefile.FileName)
				r.Block(cmakefile.Render(materialize.CMakeInput(plan, a.cmakeSettings())))
			}
			return nil
		}),
	}
	flags.register(cmd.Flags())
	cmd.Flags().BoolVar(&showCMake, "cmake", false, "also print the CMakeLists.txt that use would write")
	return cmd
}

func renderPlan(r *ui.Renderer, plan bundleplan.Plan) {
	r.Section("Plan")
	r.KeyValue("bundle", plan.Bundle.Name)
	r.KeyValue("build dir", plan.Layout.Root)
	r.Blank()

	r.Section("Build order")
	for i, step := range plan.Steps {
		r.Item(fmt.Sprintf("%d. %s", i+1, step.Subproject), step.Repo)
		if len(step.Dependencies) > 0 {
			r.TreeLine("after " + strings.Join(step.Dependencies, ", "))
		}
		if len(step.External) > 0 {
			r.TreeLine("outside bundle: " + strings.Join(step.External, ", "))
		}
	}
	r.Blank()

	r.Section("Repos")
	for _, repo := range plan.Repos {
		if repo.Local {
			r.Item(repo.Name, "local")
			r.TreeLine(repo.Dir)
			continue
		}
		r.Item(repo.Name, "branch "+repo.Source.Location.BranchName())
		if c, ok := repo.Source.Location.(source.Cloned); ok {
			r.TreeLine(c.URL)
		}
	}

	if len(plan.Binaries.Binaries) > 0 || len(plan.Binaries.Skipped) > 0 {
		r.Blank()
		r.Section("Binaries")
		for _, b := range plan.Binaries.Binaries {
			r.Item(b.Name, b.InstallDir)
			r.TreeLine(b.Locator)
		}
		for _, name := range plan.Binaries.Skipped {
			r.Item(name, "skipped")
		}
	}

	if len(plan.Binaries.Variables) > 0 {
		r.Blank()
		r.Section("Variables")
		for _, v := range plan.Binaries.Variables {
			detail := ""
			if v.Origin == binaryplan.OriginOverride {
				detail = "override"
			} else if v.Append {
				detail = "append"
			}
			r.Item(v.Name, detail)
			for _, value := range v.Values {
				r.TreeLine(value)
			}
		}
	}
}
