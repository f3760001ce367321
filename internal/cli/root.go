// Package cli wires the devbundle commands onto cobra.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ManiVaultStudio/DevBundle/internal/app/materialize"
	"github.com/ManiVaultStudio/DevBundle/internal/domain/catalog"
	"github.com/ManiVaultStudio/DevBundle/internal/domain/safety"
	"github.com/ManiVaultStudio/DevBundle/internal/infra/archive"
	"github.com/ManiVaultStudio/DevBundle/internal/infra/debuglog"
	"github.com/ManiVaultStudio/DevBundle/internal/infra/gitcmd"
	"github.com/ManiVaultStudio/DevBundle/internal/infra/output"
	"github.com/ManiVaultStudio/DevBundle/internal/infra/settings"
	"github.com/ManiVaultStudio/DevBundle/internal/ui"
)

// Deps are the collaborators and terminal streams the commands use. Tests
// replace them with fakes.
type Deps struct {
	Git       materialize.Git
	Inspector safety.Inspector
	Fetcher   materialize.Fetcher
	Status    func(ctx context.Context, dir string) (gitcmd.Status, error)

	In  io.Reader
	Out io.Writer
	Err io.Writer
	// Color enables styling on Out.
	Color bool
	// Interactive allows prompting on In.
	Interactive bool
}

func DefaultDeps() Deps {
	stdoutTTY := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	stdinTTY := isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
	return Deps{
		Git:         gitcmd.Cloner{},
		Inspector:   gitcmd.Inspector{},
		Fetcher:     archive.Fetcher{},
		Status:      gitcmd.StatusPorcelainV2,
		In:          os.Stdin,
		Out:         os.Stdout,
		Err:         os.Stderr,
		Color:       stdoutTTY,
		Interactive: stdinTTY && stdoutTTY,
	}
}

type app struct {
	deps     Deps
	settings settings.Settings
	theme    ui.Theme
	useColor bool
}

func NewRootCommand(deps Deps) *cobra.Command {
	a := &app{deps: deps, theme: ui.DefaultTheme()}
	root := &cobra.Command{
		Use:   "devbundle",
		Short: "Materialize ManiVault development bundles",
		Long: `devbundle turns a named bundle from the configuration file into a development
directory: it clones the bundle's repositories, downloads the prebuilt
binaries they need and writes a top-level CMakeLists.txt that builds every
subproject in dependency order.

Examples:
  devbundle list                      List the configured bundles
  devbundle plan smalltest            Show what "use" would do
  devbundle use smalltest --yes       Recreate the smalltest bundle
  devbundle use smalltest --mode develop
  devbundle status smalltest          Compare the bundle with its working copies`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	flags := root.PersistentFlags()
	flags.String("config", "", "bundle configuration file (default ./config.json)")
	flags.BoolP("verbose", "v", false, "enable verbose logging")
	flags.Bool("debug", false, "write a debug log next to the configuration file")
	flags.Bool("no-color", false, "disable colored output")
	flags.String("binaries-dir", "", "directory for downloaded binaries (default <config dir>/binaries)")
	root.SetGlobalNormalizationFunc(normalizeFlagName)

	root.SetIn(deps.In)
	root.SetOut(deps.Out)
	root.SetErr(deps.Err)
	root.AddCommand(
		a.listCommand(),
		a.validateCommand(),
		a.planCommand(),
		a.useCommand(),
		a.statusCommand(),
	)
	return root
}

// normalizeFlagName accepts underscores in flag names, so --skip_binary and
// --skip-binary are the same flag.
func normalizeFlagName(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	s, err := settings.Load(cmd.Flags())
	if err != nil {
		return err
	}
	a.settings = s
	a.useColor = a.deps.Color && !s.NoColor

	level := log.WarnLevel
	if s.Verbose {
		level = log.DebugLevel
	}
	logger := log.NewWithOptions(a.deps.Err, log.Options{Prefix: "devbundle", Level: level})
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(log.WithContext(ctx, logger))

	if s.Debug {
		if err := debuglog.Enable(filepath.Dir(s.ConfigPath)); err != nil {
			return fmt.Errorf("enable debug log: %w", err)
		}
	}
	output.SetStepLogger(a.renderer())
	logger.Debug("settings loaded", "config", s.ConfigPath, "file", s.File, "remote", s.GitHost+"/"+s.GitOrg)
	return nil
}

func (a *app) renderer() *ui.Renderer {
	return ui.NewRenderer(a.deps.Out, a.theme, a.useColor)
}

func (a *app) errRenderer() *ui.Renderer {
	return ui.NewRenderer(a.deps.Err, a.theme, a.useColor)
}

// loadCatalog reads the configuration selected by --config.
func (a *app) loadCatalog(ctx context.Context) (*catalog.Catalog, error) {
	logger := log.FromContext(ctx)
	cat, err := catalog.Load(a.settings.ConfigPath)
	if err != nil {
		return nil, err
	}
	logger.Debug("catalog loaded", "path", cat.Path(), "bundles", len(cat.BundleNames()))
	return cat, nil
}

// run renders the details of typed errors before cobra reports them.
func (a *app) run(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := fn(cmd, args)
		if err != nil {
			explainError(a.errRenderer(), err)
		}
		return err
	}
}
