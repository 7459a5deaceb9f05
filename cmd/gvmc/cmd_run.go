package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/rs/zerolog/log"

	"gvmc/internal/ffi"
	"gvmc/internal/isa"
	"gvmc/internal/vm"
)

type runCmd struct {
	entry uint64
	noFFI bool
}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "execute a compiled bytecode program" }
func (*runCmd) Usage() string {
	return `run -entry <func-id> <program.gvbc>:
  Execute a bytecode dump starting at the given function id's entry point.
`
}
func (c *runCmd) SetFlags(f *flag.FlagSet) {
	f.Uint64Var(&c.entry, "entry", 0, "function id to start execution at")
	f.BoolVar(&c.noFFI, "no-ffi", false, "disable foreign-function calls (any CALLE traps instead)")
}

func (c *runCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "run: expected exactly one bytecode file")
		return subcommands.ExitUsageError
	}
	in, err := os.Open(f.Arg(0))
	if err != nil {
		log.Error().Err(err).Msg("run: opening bytecode file")
		return subcommands.ExitFailure
	}
	defer in.Close()

	prog, err := isa.ReadProgram(in)
	if err != nil {
		log.Error().Err(err).Msg("run: reading bytecode")
		return subcommands.ExitFailure
	}

	var abi ffi.ABI
	if c.noFFI {
		abi = ffi.NopABI{}
	} else {
		abi = ffi.NewPureGoABI()
	}

	machine := vm.New(prog, abi)
	reason, err := machine.CallEntry(uint32(c.entry))
	machine.Power.Shutdown()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	if reason == vm.StopError {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
