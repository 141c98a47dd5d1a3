package command

import (
	"context"
	"os"

	"github.com/logrusorgru/aurora"
	isatty "github.com/mattn/go-isatty"
	"github.com/pkgdev/pkgdev/diagnostic"
	"github.com/pkgdev/pkgdev/pkg/filebuffer"
	cli "github.com/urfave/cli/v2"
)

func Context(c *cli.Context) context.Context {
	ctx := context.Background()
	if c.Bool("color") || isatty.IsTerminal(os.Stderr.Fd()) {
		ctx = diagnostic.WithColor(ctx, aurora.NewAurora(true))
	}
	return filebuffer.WithBuffers(ctx, filebuffer.NewBuffers())
}
