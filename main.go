// Command gicits is the command-line interface to the GICv3 ITS emulation core.
package main

import (
	"context"
	"os"

	"github.com/smoynes/gicits/internal/cli"
	"github.com/smoynes/gicits/internal/cli/cmd"
)

var (
	commands = []cli.Command{
		cmd.Demo(),
		cmd.Monitor(),
	}
)

// Entry point.
func main() {
	result :=
		cli.New(context.Background()).
			WithLogger(os.Stderr).
			WithCommands(commands).
			WithHelp(cmd.Help(commands)).
			Execute(os.Args[1:])

	os.Exit(result)
}
