package asm

import (
	"fmt"
	"sort"
	"strings"

	"gvmc/internal/isa"
)

// Disassemble renders a Program back to mnemonic text. Jump and call
// targets are printed as the raw numeric addresses FormatInstr already
// produces rather than as synthesized label names, so the output
// reassembles to byte-identical code: Assemble tries a literal parse
// on every operand token before ever consulting the label table.
func Disassemble(prog *isa.Program) string {
	funcAtAddr := map[int]uint32{}
	for _, e := range prog.Funcs.Entries() {
		funcAtAddr[int(e.Entry)] = e.ID
	}

	var addrs []int
	for a := range funcAtAddr {
		addrs = append(addrs, a)
	}
	sort.Ints(addrs)
	nextFunc := 0

	var b strings.Builder
	code := prog.Code
	for pc := 0; pc < len(code); {
		for nextFunc < len(addrs) && addrs[nextFunc] == pc {
			fmt.Fprintf(&b, "func fn%d:\n", funcAtAddr[addrs[nextFunc]])
			nextFunc++
		}
		fmt.Fprintf(&b, "  -- @%d\n  %s\n", pc, isa.FormatInstr(code, pc))
		pc += isa.InstrLen(code, pc)
	}
	return b.String()
}
