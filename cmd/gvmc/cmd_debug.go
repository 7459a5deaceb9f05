package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/rs/zerolog/log"

	"gvmc/internal/debugger"
	"gvmc/internal/ffi"
	"gvmc/internal/isa"
	"gvmc/internal/vm"
)

type debugCmd struct {
	entry uint64
	noFFI bool
}

func (*debugCmd) Name() string     { return "debug" }
func (*debugCmd) Synopsis() string { return "start an interactive debugging session" }
func (*debugCmd) Usage() string {
	return `debug -entry <func-id> <program.gvbc>:
  Launch the interactive source-level debugger against a bytecode dump.
`
}
func (c *debugCmd) SetFlags(f *flag.FlagSet) {
	f.Uint64Var(&c.entry, "entry", 0, "function id to start the session at")
	f.BoolVar(&c.noFFI, "no-ffi", false, "disable foreign-function calls (any CALLE traps instead)")
}

func (c *debugCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "debug: expected exactly one bytecode file")
		return subcommands.ExitUsageError
	}
	in, err := os.Open(f.Arg(0))
	if err != nil {
		log.Error().Err(err).Msg("debug: opening bytecode file")
		return subcommands.ExitFailure
	}
	defer in.Close()

	prog, err := isa.ReadProgram(in)
	if err != nil {
		log.Error().Err(err).Msg("debug: reading bytecode")
		return subcommands.ExitFailure
	}

	var abi ffi.ABI
	if c.noFFI {
		abi = ffi.NopABI{}
	} else {
		abi = ffi.NewPureGoABI()
	}

	machine := vm.New(prog, abi)
	sess := debugger.New(machine, os.Stdout, os.Stdin)
	err = sess.RunSession(uint32(c.entry))
	machine.Power.Shutdown()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
