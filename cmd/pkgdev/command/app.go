package command

import (
	"github.com/pkgdev/pkgdev/resource"
	cli "github.com/urfave/cli/v2"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func App() *cli.App {
	app := cli.NewApp()
	app.Name = "pkgdev"
	app.Usage = "development tools for editor packages"
	app.Description = "completions, hovers and lint for settings and syntax definition files"
	app.Version = Version
	app.Commands = []*cli.Command{
		langserverCommand,
		lintCommand,
		scopesCommand,
		settingsCommand,
	}
	app.Flags = []cli.Flag{
		&cli.StringSliceFlag{
			Name:    "packages",
			Aliases: []string{"p"},
			Usage:   "package root directories holding default settings and syntaxes",
			EnvVars: []string{"PKGDEV_PACKAGES"},
		},
		&cli.BoolFlag{
			Name:  "color",
			Usage: "force colored output even when stderr is not a terminal",
		},
	}
	return app
}

// Roots builds the resource roots from the global --packages flags,
// falling back to the working directory.
func Roots(c *cli.Context) *resource.Roots {
	dirs := c.StringSlice("packages")
	if len(dirs) == 0 {
		dirs = []string{"."}
	}
	return resource.NewRoots(dirs)
}
