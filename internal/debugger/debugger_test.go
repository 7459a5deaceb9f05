package debugger_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"gvmc/internal/asm"
	"gvmc/internal/debugger"
	"gvmc/internal/ffi"
	"gvmc/internal/isa"
	"gvmc/internal/vm"
)

const loopSrc = `
func main:
  storeconst consti64 0 relconsti64 0
  storeconst consti64 1 relconsti64 8
loop:
  slei64 reli64 8 consti64 3 16
  jumpif reli32 16 consti64 body consti64 done
body:
  addi64 reli64 0 reli64 8 0
  addi64 reli64 8 consti64 1 8
  jump consti64 loop
done:
  exit
`

// TestDebuggerStepThenContinue drives one `step` followed by
// `continue` through a real session. asm.Assemble never populates a
// source map, so the two statements are pushed by hand here to
// reproduce what internal/emit would leave behind; `step` must land
// exactly on the second statement's start (checked via `location`),
// not run straight through to the next breakpoint or exit.
func TestDebuggerStepThenContinue(t *testing.T) {
	prog, err := asm.Assemble(loopSrc)
	require.NoError(t, err)

	stmt0End := isa.InstrLen(prog.Code, 0)
	stmt1End := stmt0End + isa.InstrLen(prog.Code, stmt0End)
	prog.Source.Push(isa.Statement{StartInstr: 0, EndInstr: uint32(stmt0End), File: "loop.gv", Line: 1})
	prog.Source.Push(isa.Statement{StartInstr: uint32(stmt0End), EndInstr: uint32(stmt1End), File: "loop.gv", Line: 2})

	m := vm.New(prog, ffi.NopABI{})
	m.AddBreakpoint(0, nil)

	var out bytes.Buffer
	in := strings.NewReader("stack\nstep\nlocation\ncontinue\n")
	sess := debugger.New(m, &out, in)

	err = sess.RunSession(0)
	require.NoError(t, err)
	require.Contains(t, out.String(), "sp=")
	require.Contains(t, out.String(), "loop.gv:2")
}

// TestDebuggerUnknownCommand exercises the command loop's default case
// without stalling the session.
func TestDebuggerUnknownCommand(t *testing.T) {
	prog, err := asm.Assemble(loopSrc)
	require.NoError(t, err)

	m := vm.New(prog, ffi.NopABI{})
	m.AddBreakpoint(0, nil)

	var out bytes.Buffer
	in := strings.NewReader("bogus\ncontinue\n")
	sess := debugger.New(m, &out, in)

	err = sess.RunSession(0)
	require.NoError(t, err)
	require.Contains(t, out.String(), "unknown command")
}

// TestDebuggerQuitEndsSessionEarly covers `quit` stopping the session
// before the program finishes executing.
func TestDebuggerQuitEndsSessionEarly(t *testing.T) {
	prog, err := asm.Assemble(loopSrc)
	require.NoError(t, err)

	m := vm.New(prog, ffi.NopABI{})
	m.AddBreakpoint(0, nil)

	var out bytes.Buffer
	in := strings.NewReader("quit\n")
	sess := debugger.New(m, &out, in)

	err = sess.RunSession(0)
	require.NoError(t, err)
}
