package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/rs/zerolog/log"

	"gvmc/internal/isa"
)

type dumpCmd struct{}

func (*dumpCmd) Name() string     { return "dump" }
func (*dumpCmd) Synopsis() string { return "print a bytecode dump's function table and size" }
func (*dumpCmd) Usage() string {
	return `dump <program.gvbc>:
  Print the function table and instruction byte count of a bytecode dump.
`
}
func (*dumpCmd) SetFlags(*flag.FlagSet) {}

func (*dumpCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "dump: expected exactly one bytecode file")
		return subcommands.ExitUsageError
	}
	in, err := os.Open(f.Arg(0))
	if err != nil {
		log.Error().Err(err).Msg("dump: opening bytecode file")
		return subcommands.ExitFailure
	}
	defer in.Close()

	prog, err := isa.ReadProgram(in)
	if err != nil {
		log.Error().Err(err).Msg("dump: reading bytecode")
		return subcommands.ExitFailure
	}

	fmt.Printf("functions: %d\n", prog.Funcs.Len())
	for _, e := range prog.Funcs.Entries() {
		fmt.Printf("  fn%d -> @%d\n", e.ID, e.Entry)
	}
	fmt.Printf("code bytes: %d\n", len(prog.Code))
	return subcommands.ExitSuccess
}
