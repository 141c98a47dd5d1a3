package command

import (
	"log"
	"os"

	"github.com/pkgdev/pkgdev/langserver"
	cli "github.com/urfave/cli/v2"
)

var langserverCommand = &cli.Command{
	Name:  "langserver",
	Usage: "run the pkgdev language server over stdio",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "logfile",
			Usage: "file to log output",
			Value: "/tmp/pkgdev-langserver.log",
		},
	},
	Action: func(c *cli.Context) error {
		f, err := os.Create(c.String("logfile"))
		if err != nil {
			return err
		}
		defer f.Close()
		log.SetOutput(f)

		s := langserver.NewServer(Roots(c))
		return s.Listen(Context(c), os.Stdin, os.Stdout)
	},
}
