package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ManiVaultStudio/DevBundle/internal/domain/catalog"
)

func (a *app) validateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration file and report every issue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			result, err := catalog.Validate(a.settings.ConfigPath)
			if err != nil {
				return err
			}
			r := a.renderer()
			r.Section("Validate")
			r.KeyValue("config", a.settings.ConfigPath)
			if len(result.Issues) == 0 {
				r.BulletSuccess("no issues found")
				return nil
			}
			r.Blank()
			r.Section("Issues")
			renderIssues(r, result.Issues)
			return fmt.Errorf("%d issue(s) in %s", len(result.Issues), a.settings.ConfigPath)
		},
	}
}
