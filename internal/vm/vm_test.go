package vm_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"gvmc/internal/asm"
	"gvmc/internal/ffi"
	"gvmc/internal/isa"
	"gvmc/internal/vm"
)

func assembleOrFail(t *testing.T, src string) *isa.Program {
	t.Helper()
	prog, err := asm.Assemble(src)
	require.NoError(t, err)
	return prog
}

// TestIntegerReturn covers the "integer return" scenario: a function
// that stores a constant at its return slot and exits.
func TestIntegerReturn(t *testing.T) {
	prog := assembleOrFail(t, `
func main:
  storeconst consti32 42 relconsti64 0
  exit
`)
	m := vm.New(prog, ffi.NopABI{})
	reason, err := m.CallEntry(0)
	require.NoError(t, err)
	require.Equal(t, vm.StopExited, reason)
	require.Equal(t, uint32(42), isa.Uint32(m.Mem[0:4]))
}

// TestAdditionWraparound covers 8-bit unsigned wraparound: 250+10 must
// wrap to 4, not trap or widen.
func TestAdditionWraparound(t *testing.T) {
	prog := assembleOrFail(t, `
func main:
  addi8 consti8 250 consti8 10 0
  exit
`)
	m := vm.New(prog, ffi.NopABI{})
	_, err := m.CallEntry(0)
	require.NoError(t, err)
	require.Equal(t, byte(4), m.Mem[0])
}

// TestConditionalBranchSumLoop covers the while-style loop shape
// internal/emit's emitWhile produces: sum 1..10 into bp+0.
func TestConditionalBranchSumLoop(t *testing.T) {
	prog := assembleOrFail(t, `
func main:
  storeconst consti64 0 relconsti64 0
  storeconst consti64 1 relconsti64 8
loop:
  slei64 reli64 8 consti64 10 16
  jumpif reli32 16 consti64 body consti64 done
body:
  addi64 reli64 0 reli64 8 0
  addi64 reli64 8 consti64 1 8
  jump consti64 loop
done:
  exit
`)
	m := vm.New(prog, ffi.NopABI{})
	reason, err := m.CallEntry(0)
	require.NoError(t, err)
	require.Equal(t, vm.StopExited, reason)
	require.Equal(t, uint64(55), isa.Uint64(m.Mem[0:8]))
}

// TestDivisionByZero covers the trapping-error path: SDIV by a zero
// divisor must surface ErrDivisionByZero, not crash or wrap.
func TestDivisionByZero(t *testing.T) {
	prog := assembleOrFail(t, `
func main:
  sdivi32 consti32 1 consti32 0 0
  exit
`)
	m := vm.New(prog, ffi.NopABI{})
	reason, err := m.CallEntry(0)
	require.ErrorIs(t, err, vm.ErrDivisionByZero)
	require.Equal(t, vm.StopError, reason)
}

// TestPanicStopsExecution covers the "union tag-check panic" scenario:
// PANIC must surface ErrPanicked and halt rather than continue.
func TestPanicStopsExecution(t *testing.T) {
	prog := assembleOrFail(t, `
func main:
  panic
`)
	m := vm.New(prog, ffi.NopABI{})
	reason, err := m.CallEntry(0)
	require.ErrorIs(t, err, vm.ErrPanicked)
	require.Equal(t, vm.StopError, reason)
}

// TestBreakpointStopsExactlyOnce covers conditional-breakpoint
// debugging: a breakpoint on the loop header whose condition holds
// only on the first pass must stop execution exactly once, and the
// later passes (where the condition is false) must not stop it.
func TestBreakpointStopsExactlyOnce(t *testing.T) {
	prog := assembleOrFail(t, `
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
`)
	m := vm.New(prog, ffi.NopABI{})
	loopHeader := int64(isa.InstrLen(prog.Code, 0)) + int64(isa.InstrLen(prog.Code, isa.InstrLen(prog.Code, 0)))

	seen := false
	m.AddBreakpoint(loopHeader, func(v *vm.VM) (bool, error) {
		if seen {
			return false, nil
		}
		seen = true
		return true, nil
	})

	m.PC = 0
	reason, err := m.Run(true)
	require.NoError(t, err)
	require.Equal(t, vm.StopBreakpoint, reason)

	// The condition only ever fires true once; resuming must run the
	// loop to completion without stopping at the header again.
	reason, err = m.Run(true)
	require.NoError(t, err)
	require.Equal(t, vm.StopExited, reason)
}

// TestStepIntoStopsAtNextStatement covers the debugger's `step`
// command: once a source map is populated, Run must stop at the next
// mapped statement boundary and return StopStep, not silently resume
// to the next breakpoint or exit.
func TestStepIntoStopsAtNextStatement(t *testing.T) {
	prog := assembleOrFail(t, `
func main:
  storeconst consti32 1 relconsti64 0
  storeconst consti32 2 relconsti64 4
  exit
`)
	stmt0End := isa.InstrLen(prog.Code, 0)
	stmt1End := stmt0End + isa.InstrLen(prog.Code, stmt0End)

	m := vm.New(prog, ffi.NopABI{})
	m.Source.Push(isa.Statement{StartInstr: 0, EndInstr: uint32(stmt0End)})
	m.Source.Push(isa.Statement{StartInstr: uint32(stmt0End), EndInstr: uint32(stmt1End)})

	// Stop at the entry with an unconditional breakpoint, mimicking
	// the debugger pausing a session before the user issues `step`.
	m.AddBreakpoint(0, nil)
	m.PC = 0
	reason, err := m.Run(true)
	require.NoError(t, err)
	require.Equal(t, vm.StopBreakpoint, reason)
	require.Equal(t, int64(0), m.PC)

	m.StepInto()
	reason, err = m.Run(true)
	require.NoError(t, err)
	require.Equal(t, vm.StopStep, reason)
	require.Equal(t, int64(stmt0End), m.PC)

	// No further statement is mapped past stmt1, so stepping again
	// must run straight to exit rather than stopping again.
	m.StepInto()
	reason, err = m.Run(true)
	require.NoError(t, err)
	require.Equal(t, vm.StopExited, reason)
}

// TestStepOverSkipsCallBody covers the debugger's `over` command: a
// call made from the statement being stepped over must not stop
// inside the callee even though the callee's own body is
// source-mapped, only once control returns to the caller.
func TestStepOverSkipsCallBody(t *testing.T) {
	prog := assembleOrFail(t, `
func main:
  storeconst consti64 21 relconsti64 0
  call double 8
  addi64 reli64 8 consti64 0 16
  exit

func double:
  muli64 reli64 -8 consti64 2 0
  ret
`)
	storeEnd := isa.InstrLen(prog.Code, 0)
	callEnd := storeEnd + isa.InstrLen(prog.Code, storeEnd)
	addEnd := callEnd + isa.InstrLen(prog.Code, callEnd)
	exitEnd := addEnd + isa.InstrLen(prog.Code, addEnd)
	mulEnd := exitEnd + isa.InstrLen(prog.Code, exitEnd)

	m := vm.New(prog, ffi.NopABI{})
	m.Source.Push(isa.Statement{StartInstr: uint32(storeEnd), EndInstr: uint32(callEnd)})  // the call statement
	m.Source.Push(isa.Statement{StartInstr: uint32(callEnd), EndInstr: uint32(addEnd)})    // after the call
	m.Source.Push(isa.Statement{StartInstr: uint32(exitEnd), EndInstr: uint32(mulEnd)})    // inside the callee

	m.AddBreakpoint(int64(storeEnd), nil)
	m.PC = 0
	reason, err := m.Run(true)
	require.NoError(t, err)
	require.Equal(t, vm.StopBreakpoint, reason)
	require.Equal(t, int64(storeEnd), m.PC)

	m.StepOver()
	reason, err = m.Run(true)
	require.NoError(t, err)
	require.Equal(t, vm.StopStep, reason)
	require.Equal(t, int64(callEnd), m.PC)
	require.Equal(t, 0, m.Depth())
}
