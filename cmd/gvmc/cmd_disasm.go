package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/rs/zerolog/log"

	"gvmc/internal/asm"
	"gvmc/internal/isa"
)

type disasmCmd struct{}

func (*disasmCmd) Name() string     { return "disasm" }
func (*disasmCmd) Synopsis() string { return "disassemble a bytecode dump back to mnemonic text" }
func (*disasmCmd) Usage() string {
	return `disasm <program.gvbc>:
  Print the mnemonic text for a compiled bytecode dump.
`
}
func (*disasmCmd) SetFlags(*flag.FlagSet) {}

func (*disasmCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "disasm: expected exactly one bytecode file")
		return subcommands.ExitUsageError
	}
	in, err := os.Open(f.Arg(0))
	if err != nil {
		log.Error().Err(err).Msg("disasm: opening bytecode file")
		return subcommands.ExitFailure
	}
	defer in.Close()

	prog, err := isa.ReadProgram(in)
	if err != nil {
		log.Error().Err(err).Msg("disasm: reading bytecode")
		return subcommands.ExitFailure
	}
	fmt.Print(asm.Disassemble(prog))
	return subcommands.ExitSuccess
}
