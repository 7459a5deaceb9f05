// Command gvmc is the CLI entry point: assemble, disassemble, run,
// and interactively debug gvmc bytecode programs. Subcommands follow
// informatter-nilan's cmd_*.go convention (one small struct per
// subcommands.Command, registered in main).
package main

import (
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(&asmCmd{}, "")
	subcommands.Register(&disasmCmd{}, "")
	subcommands.Register(&runCmd{}, "")
	subcommands.Register(&debugCmd{}, "")
	subcommands.Register(&dumpCmd{}, "")

	flag.Parse()
	ctx := context.Background()
	os.Exit(int(subcommands.Execute(ctx)))
}
