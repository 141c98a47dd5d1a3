package main

import (
	"fmt"
	"os"

	"github.com/pkgdev/pkgdev/cmd/pkgdev/command"
)

func main() {
	app := command.App()
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}
