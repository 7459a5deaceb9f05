package vm

import "gvmc/internal/isa"

// writeAt stores the low `width` bytes of raw into v.Mem at addr,
// bounds-checked exactly like every other stack access (spec.md §7:
// any out-of-bounds stack access is a segmentation fault, not a Go
// panic).
func (v *VM) writeAt(addr int64, width int, raw uint64) error {
	if addr < 0 || addr+int64(width) > int64(len(v.Mem)) {
		return ErrSegmentationFault
	}
	switch width {
	case 1:
		v.Mem[addr] = byte(raw)
	case 2:
		isa.PutUint16(v.Mem[addr:addr+2], uint16(raw))
	case 4:
		isa.PutUint32(v.Mem[addr:addr+4], uint32(raw))
	default:
		isa.PutUint64(v.Mem[addr:addr+8], raw)
	}
	return nil
}

// pushFrame records a call's return address and caller bp, and bumps
// the call-depth counters the debugger's step/over/out commands watch
// (spec.md §4.6's depth/overDepth watermark trick).
func (v *VM) pushFrame(returnPC, callerBP int64) {
	v.pcHistory = append(v.pcHistory, returnPC)
	v.bpHistory = append(v.bpHistory, callerBP)
	v.depth++
	v.callDepth++
}

func (v *VM) popFrame() (returnPC, callerBP int64) {
	n := len(v.pcHistory)
	returnPC, callerBP = v.pcHistory[n-1], v.bpHistory[n-1]
	v.pcHistory = v.pcHistory[:n-1]
	v.bpHistory = v.bpHistory[:n-1]
	v.depth--
	v.callDepth--
	return
}

// Depth returns the current call-stack depth, used by the debugger's
// `over`/`out` commands to decide when stepping should actually stop.
func (v *VM) Depth() int { return v.depth }
