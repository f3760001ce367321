package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ManiVaultStudio/DevBundle/internal/domain/catalog"
)

func (a *app) listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list [BUNDLE]",
		Short: "List bundles, or describe one bundle",
		Args:  cobra.MaximumNArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			cat, err := a.loadCatalog(cmd.Context())
			if err != nil {
				return err
			}
			if len(args) == 0 {
				a.listBundles(cat)
				return nil
			}
			return a.describeBundle(cat, args[0])
		}),
	}
}

func (a *app) listBundles(cat *catalog.Catalog) {
	r := a.renderer()
	r.Section("Bundles")
	bundles := cat.Bundles()
	if len(bundles) == 0 {
		r.Bullet("no bundles in " + cat.Path())
		return
	}
	for _, b := range bundles {
		r.Item(b.Name, fmt.Sprintf("%d repos, build dir %s", len(b.Repos), b.BuildDir))
	}
}

func (a *app) describeBundle(cat *catalog.Catalog, name string) error {
	bundle, err := cat.Bundle(name)
	if err != nil {
		return err
	}
	r := a.renderer()
	r.Header(bundle.Name)
	r.KeyValue("build dir", cat.ResolvePath(bundle.BuildDir))
	if bundle.Branch != "" {
		r.KeyValue("branch", bundle.Branch)
	}
	r.Blank()

	r.Section("Repos")
	var binaries []string
	seen := make(map[string]struct{})
	for _, ref := range bundle.Repos {
		detail := "branch " + ref.Branch
		if ref.IsLocal() {
			detail = "local " + ref.Local
		}
		r.Item(ref.Repo, detail)
		info, err := cat.Repo(ref.Repo)
		if err != nil {
			return err
		}
		for _, sp := range info.Subprojects {
			line := "subproject " + sp.Name
			if len(sp.Dependencies) > 0 {
				line += " needs " + strings.Join(sp.Dependencies, ", ")
			}
			r.TreeLine(line)
		}
		for _, b := range info.Binaries {
			if _, ok := seen[b]; ok {
				continue
			}
			seen[b] = struct{}{}
			binaries = append(binaries, b)
		}
	}

	if len(binaries) > 0 {
		r.Blank()
		r.Section("Binaries")
		for _, b := range binaries {
			r.Bullet(b)
		}
	}
	return nil
}
