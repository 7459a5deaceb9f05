package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/rs/zerolog/log"

	"gvmc/internal/asm"
)

type asmCmd struct {
	out string
}

func (*asmCmd) Name() string     { return "asm" }
func (*asmCmd) Synopsis() string { return "assemble a mnemonic source file to a bytecode dump" }
func (*asmCmd) Usage() string {
	return `asm -out <file> <source.gvasm>:
  Assemble mnemonic source into the binary bytecode format.
`
}
func (c *asmCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.out, "out", "a.out.gvbc", "output bytecode file")
}

func (c *asmCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "asm: expected exactly one source file")
		return subcommands.ExitUsageError
	}
	src, err := os.ReadFile(f.Arg(0))
	if err != nil {
		log.Error().Err(err).Msg("asm: reading source")
		return subcommands.ExitFailure
	}
	prog, err := asm.Assemble(string(src))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	out, err := os.Create(c.out)
	if err != nil {
		log.Error().Err(err).Msg("asm: creating output file")
		return subcommands.ExitFailure
	}
	defer out.Close()
	if _, err := prog.WriteTo(out); err != nil {
		log.Error().Err(err).Msg("asm: writing bytecode")
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
