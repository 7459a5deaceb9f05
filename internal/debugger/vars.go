package debugger

import (
	"fmt"

	"gvmc/internal/isa"
)

// printVars renders the current frame's raw stack bytes around bp.
// A full named-variable dump needs a local symbol table the narrow
// AST slice in scope doesn't carry past emission (internal/emit
// discards local names once offsets are baked into the bytecode);
// this renders the byte window instead, which is enough for the
// debugger's own manual inspection workflow.
//
// seenCycles resets once per top-level `vars` invocation, not per
// frame recursed into while rendering — preserved from the original
// implementation's pointerRecursion map, which is reused across an
// entire dump rather than cleared per frame (see DESIGN.md).
func (d *Debugger) printVars() {
	d.seenCycles = map[int64]bool{}
	d.dumpWindow(d.VM.BP-32, d.VM.BP+32)
}

func (d *Debugger) dumpWindow(lo, hi int64) {
	if lo < 0 {
		lo = 0
	}
	if hi > int64(len(d.VM.Mem)) {
		hi = int64(len(d.VM.Mem))
	}
	for addr := lo; addr < hi; addr += 4 {
		if d.seenCycles[addr] {
			continue
		}
		d.seenCycles[addr] = true
		v := isa.Uint32(d.VM.Mem[addr : addr+4])
		fmt.Fprintf(d.out, "  [bp%+d] = %d (0x%x)\n", addr-d.VM.BP, v, v)
	}
	d.out.Flush()
}
