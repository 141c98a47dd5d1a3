package command

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkgdev/pkgdev/diagnostic"
	"github.com/pkgdev/pkgdev/linter"
	"github.com/pkgdev/pkgdev/settings"
	cli "github.com/urfave/cli/v2"
)

var lintCommand = &cli.Command{
	Name:      "lint",
	Usage:     "lints settings files against their package defaults",
	ArgsUsage: "<*.sublime-settings>",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "settings",
			Usage: "settings file name to check against, defaults to the base name of each linted file",
		},
		&cli.BoolFlag{
			Name:  "allow-unknown",
			Usage: "do not report keys missing from the package defaults",
		},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() == 0 {
			return errors.New("lint expects at least one settings file")
		}

		ctx := Context(c)
		roots := Roots(c)

		total := 0
		for _, arg := range c.Args().Slice() {
			src, err := os.ReadFile(arg)
			if err != nil {
				return err
			}

			name := c.String("settings")
			if name == "" {
				name = filepath.Base(arg)
			}

			loaded := make(chan struct{}, 1)
			ks := settings.New(name, roots,
				settings.WithOnLoaded(func() { loaded <- struct{}{} }))
			<-loaded

			opts := []linter.LintOption{linter.WithKnownSettings(ks)}
			if c.Bool("allow-unknown") {
				opts = append(opts, linter.WithoutUnknownKeys())
			}

			err = linter.Lint(ctx, arg, src, opts...)
			if err != nil {
				derr := &diagnostic.Error{Err: err}
				for _, span := range linter.SpanErrors(err) {
					derr.Diagnostics = append(derr.Diagnostics, span)
				}
				diagnostic.DisplayError(ctx, os.Stderr, derr)
				total += len(derr.Diagnostics)
				if len(derr.Diagnostics) == 0 {
					total++
				}
			}
		}

		if total > 0 {
			return fmt.Errorf("found %d problems", total)
		}
		return nil
	},
}
