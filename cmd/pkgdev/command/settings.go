package command

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pkgdev/pkgdev/settings"
	"github.com/tidwall/pretty"
	cli "github.com/urfave/cli/v2"
)

var settingsCommand = &cli.Command{
	Name:      "settings",
	Usage:     "show the settings known for a settings file name",
	ArgsUsage: "<name.sublime-settings>",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "key",
			Usage: "show a single key with its documentation",
		},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return errors.New("settings expects a settings file name")
		}

		loaded := make(chan struct{}, 1)
		ks := settings.New(c.Args().First(), Roots(c),
			settings.WithOnLoaded(func() { loaded <- struct{}{} }))
		<-loaded

		if key := c.String("key"); key != "" {
			fmt.Println(ks.Tooltip(key))
			return nil
		}

		for _, key := range ks.Keys() {
			value, _ := ks.Default(key)
			line := fmt.Sprintf("%s: %s", key, pretty.Ugly([]byte(value.Raw)))
			if comment := ks.Comment(key); comment != "" {
				first, _, _ := strings.Cut(comment, "\n")
				line = fmt.Sprintf("%s  // %s", line, first)
			}
			fmt.Println(line)
		}
		return nil
	},
}
