package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"

	"github.com/ManiVaultStudio/DevBundle/internal/cli"
	"github.com/ManiVaultStudio/DevBundle/internal/infra/debuglog"
	"github.com/ManiVaultStudio/DevBundle/internal/ui"
)

func main() {
	os.Exit(run())
}

func run() int {
	defer debuglog.Close()
	ui.DetectWrapWidth(os.Stdout.Fd())
	root := cli.NewRootCommand(cli.DefaultDeps())
	if err := fang.Execute(
		context.Background(),
		root,
		fang.WithVersion(cli.VersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		return 1
	}
	return 0
}
