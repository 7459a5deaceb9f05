// Package vm is the stack-based bytecode interpreter: PC/BP/SP
// registers over a byte-addressable stack, dispatching through a
// table of opcode handlers exactly as spec.md §4.4 describes and as
// the teacher's execInstructions switch does in spirit (vm/vm.go),
// promoted here to a map of handler functions keyed by opcode (see
// dispatch.go).
package vm

import (
	"bufio"
	"io"
	"os"

	"github.com/pkg/errors"

	"gvmc/internal/ffi"
	"gvmc/internal/isa"
)

// DefaultStackBytes is the VM's default stack size (spec.md §3.3).
const DefaultStackBytes = 128 * 1024

// DefaultOverDepth is the original implementation's "no watermark set"
// sentinel: a call depth no real program reaches, so depth < overDepth
// holds unconditionally until `over`/`out` lower it (see DESIGN.md).
const DefaultOverDepth = (2 << 15) + 1

var (
	ErrSegmentationFault = errors.New("segmentation fault: address out of stack bounds")
	ErrDivisionByZero    = errors.New("division by zero")
	ErrStackOverflow     = errors.New("stack overflow")
	ErrIllegalInstr      = errors.New("illegal instruction")
	ErrUnknownFunction   = errors.New("call to undefined function")
	ErrUnknownExternal   = errors.New("call to undefined external function")
	ErrPanicked          = errors.New("program panicked")
)

// StopReason distinguishes why Run returned control to the caller.
type StopReason int

const (
	StopExited StopReason = iota
	StopTerminated
	StopBreakpoint
	StopStep
	StopError
)

// VM holds one interpreter's full mutable state. A fresh VM is created
// per-execution (see New); nothing here is package-global, matching
// the design note that pointerRecursion/node-id-style globals in the
// original implementation should become explicit state instead.
type VM struct {
	Code      []byte
	Funcs     *isa.FuncTable
	Externals *isa.ExternalFuncTable
	Source    *isa.SourceMap
	ABI       ffi.ABI

	Mem []byte // the byte-addressable stack

	PC int64
	BP int64
	SP int64

	pcHistory []int64
	bpHistory []int64
	depth     int
	callDepth int

	terminated bool
	continuing bool

	// Debug-mode fields: consulted only when Run is invoked with
	// debugging set, mirroring the teacher's optional debug fields on
	// the VM struct rather than a separate interpreter type.
	breakpoints map[int64]*Breakpoint
	stepping    bool // true while step/over/out armed; false during continue
	overDepth   int
	stmtStop    bool // current PC begins a mapped source-map statement

	Stdout *bufio.Writer
	Stdin  *bufio.Reader

	StepCount uint64 // supplemented instrumentation, see SPEC_FULL.md §7

	Power *PowerController
}

// Breakpoint is one user-set stop point, optionally gated by a Go
// condition callback evaluated against the VM each time PC reaches
// it. The debugger's `break` command sets only unconditional
// breakpoints.
type Breakpoint struct {
	InstrIndex int64
	Condition  func(*VM) (bool, error)
}

// New constructs a VM ready to execute prog, with a fresh stack and
// stdout/stdin wired to the process's own, mirroring the teacher's
// bufio.NewWriter(os.Stdout) convention in vm/vm.go.
func New(prog *isa.Program, abi ffi.ABI) *VM {
	v := &VM{
		Code:        prog.Code,
		Funcs:       prog.Funcs,
		Externals:   prog.Externals,
		Source:      prog.Source,
		ABI:         abi,
		Mem:         make([]byte, DefaultStackBytes),
		Stdout:      bufio.NewWriter(os.Stdout),
		Stdin:       bufio.NewReader(os.Stdin),
		breakpoints: map[int64]*Breakpoint{},
		overDepth:   DefaultOverDepth,
		Power:       &PowerController{},
	}
	v.Power.OnShutdown(func() {
		v.Stdout.Flush()
		_ = syncFD(uintptr(1)) // stdout; best-effort, matches the original device's fire-and-forget Close()
	})
	return v
}

// SetOutput redirects stdout (tests capture this instead of the real
// process stdout).
func (v *VM) SetOutput(w io.Writer) { v.Stdout = bufio.NewWriter(w) }

// AddBreakpoint registers a stop point at instrIndex.
func (v *VM) AddBreakpoint(instrIndex int64, cond func(*VM) (bool, error)) {
	v.breakpoints[instrIndex] = &Breakpoint{InstrIndex: instrIndex, Condition: cond}
}

func (v *VM) RemoveAllBreakpoints() { v.breakpoints = map[int64]*Breakpoint{} }

// currentIsCall reports whether the instruction at PC is one of the
// three call opcodes, used by StepOver to decide whether it needs to
// raise the watermark at all.
func (v *VM) currentIsCall() bool {
	if v.PC < 0 || int(v.PC) >= len(v.Code) {
		return false
	}
	op := isa.Opcode(v.Code[v.PC])
	return op == isa.Call || op == isa.CallI || op == isa.CallE
}

// StepInto arms the VM to stop at the very next statement boundary,
// regardless of call depth (the debugger's `step` command).
func (v *VM) StepInto() {
	v.stepping = true
	v.overDepth = DefaultOverDepth
	v.continuing = true
}

// StepOver arms the VM to stop at the next statement boundary in the
// current frame, skipping over any call the current instruction makes
// (the debugger's `over` command).
func (v *VM) StepOver() {
	v.stepping = true
	if v.currentIsCall() {
		v.overDepth = v.depth + 1
	} else {
		v.overDepth = DefaultOverDepth
	}
	v.continuing = true
}

// StepOut arms the VM to run until the current frame returns, then
// stop at the next statement boundary in the caller (the debugger's
// `out` command).
func (v *VM) StepOut() {
	v.stepping = true
	if v.depth > 0 {
		v.overDepth = v.depth
	} else {
		v.overDepth = DefaultOverDepth
	}
	v.continuing = true
}

// Continue arms the VM to ignore statement boundaries entirely and run
// until the next breakpoint, error, or exit (the debugger's `continue`
// command).
func (v *VM) Continue() {
	v.stepping = false
	v.continuing = true
}

// CallEntry sets up the initial frame for invoking funcID with no
// arguments (the `run`/`debug` subcommand entry path) and returns
// control at function exit or at the first debug stop.
func (v *VM) CallEntry(funcID uint32) (StopReason, error) {
	entry, ok := v.Funcs.Lookup(funcID)
	if !ok {
		return StopError, errors.Wrapf(ErrUnknownFunction, "id %d", funcID)
	}
	v.PC = int64(entry)
	v.BP = 0
	v.SP = 0
	return v.Run(false)
}

// Run executes instructions until EXIT, a breakpoint (if debugging is
// true), a runtime error, or termination is requested. It is the
// single entry point both the `run` subcommand and the debugger's
// `continue`/`step`/`over`/`out` commands funnel through.
func (v *VM) Run(debugging bool) (StopReason, error) {
	for {
		if v.terminated {
			return StopTerminated, nil
		}
		if v.PC < 0 || int(v.PC) >= len(v.Code) {
			return StopError, errors.Wrapf(ErrSegmentationFault, "pc=%d", v.PC)
		}

		if debugging {
			breakStop := false
			if bp, ok := v.breakpoints[v.PC]; ok {
				breakStop = true
				if bp.Condition != nil {
					var err error
					breakStop, err = bp.Condition(v)
					if err != nil {
						return StopError, err
					}
				}
			}

			_, v.stmtStop = v.Source.StatementStartingAt(uint32(v.PC))
			stepStop := v.stepping && v.stmtStop && v.depth < v.overDepth

			if !v.continuing {
				if breakStop {
					return StopBreakpoint, nil
				}
				if stepStop {
					return StopStep, nil
				}
			}
			v.continuing = false
		}

		op := isa.Opcode(v.Code[v.PC])
		handler, ok := dispatch[op]
		if !ok {
			return StopError, errors.Wrapf(ErrIllegalInstr, "opcode %d at pc=%d", op, v.PC)
		}

		v.StepCount++
		stop, reason, err := handler(v)
		if err != nil {
			return StopError, err
		}
		if stop {
			return reason, nil
		}
	}
}
