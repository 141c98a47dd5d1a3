package command

import (
	"fmt"

	"github.com/pkgdev/pkgdev/scope"
	cli "github.com/urfave/cli/v2"
)

var scopesCommand = &cli.Command{
	Name:      "scopes",
	Usage:     "explore the scope naming conventions",
	ArgsUsage: "[prefix]",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "tree",
			Usage: "print the full conventions tree",
		},
	},
	Action: func(c *cli.Context) error {
		if c.Bool("tree") {
			fmt.Print(scope.Heads.Tree())
			return nil
		}

		nodes, err := scope.Complete(c.Args().First())
		if err != nil {
			return err
		}
		for _, name := range nodes.Names() {
			fmt.Println(name)
		}
		return nil
	},
}
