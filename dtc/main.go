// Command dtc is a terminal client for the Delta trading platform.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/etnz/delta/cmd"
	"github.com/google/subcommands"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")
	cmd.Register(commander)

	// exits when called by the shell for completion.
	cmd.Completion(commander).Complete("dtc")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
