package vm

import (
	"gvmc/internal/isa"
)

// handlerFunc executes one instruction at v.PC and advances v.PC past
// it (on success), reporting whether execution should stop and why.
type handlerFunc func(v *VM) (stop bool, reason StopReason, err error)

var dispatch = map[isa.Opcode]handlerFunc{}

// register order mirrors isa.Layouts: adding an opcode means adding
// one row to the isa mnemonic table, one row to isa.Layouts, and one
// registration here — the three-coordinated-places invariant spec.md
// §9 calls out. No test compares this table against isa.Layouts;
// opcode_test.go checks only the isa package's own tables.
func init() {
	dispatch[isa.Nop] = opNop

	registerIntFamily(isa.AddI8, 1)
	registerIntFamily(isa.AddI16, 2)
	registerIntFamily(isa.AddI32, 4)
	registerIntFamily(isa.AddI64, 8)
	registerFloatFamily(isa.AddF32, 4)
	registerFloatFamily(isa.AddF64, 8)

	dispatch[isa.And8] = makeBitwise(func(a, b uint64) uint64 { return a & b }, 1)
	dispatch[isa.And16] = makeBitwise(func(a, b uint64) uint64 { return a & b }, 2)
	dispatch[isa.And32] = makeBitwise(func(a, b uint64) uint64 { return a & b }, 4)
	dispatch[isa.And64] = makeBitwise(func(a, b uint64) uint64 { return a & b }, 8)
	dispatch[isa.Or8] = makeBitwise(func(a, b uint64) uint64 { return a | b }, 1)
	dispatch[isa.Or16] = makeBitwise(func(a, b uint64) uint64 { return a | b }, 2)
	dispatch[isa.Or32] = makeBitwise(func(a, b uint64) uint64 { return a | b }, 4)
	dispatch[isa.Or64] = makeBitwise(func(a, b uint64) uint64 { return a | b }, 8)
	dispatch[isa.Xor8] = makeBitwise(func(a, b uint64) uint64 { return a ^ b }, 1)
	dispatch[isa.Xor16] = makeBitwise(func(a, b uint64) uint64 { return a ^ b }, 2)
	dispatch[isa.Xor32] = makeBitwise(func(a, b uint64) uint64 { return a ^ b }, 4)
	dispatch[isa.Xor64] = makeBitwise(func(a, b uint64) uint64 { return a ^ b }, 8)
	dispatch[isa.Shl] = opShift(true)
	dispatch[isa.Shr] = opShift(false)

	dispatch[isa.Store] = opStore
	dispatch[isa.StoreConst] = opStore
	dispatch[isa.BumpSP] = opBumpSP

	dispatch[isa.Jump] = opJump
	dispatch[isa.JumpIf] = opJumpIf
	dispatch[isa.Call] = opCall
	dispatch[isa.CallI] = opCallI
	dispatch[isa.CallE] = opCallE
	dispatch[isa.Ret] = opRet
	dispatch[isa.Exit] = opExit

	dispatch[isa.Panic] = opPanic
	dispatch[isa.Puts] = opPuts
	dispatch[isa.Not] = opNot
	dispatch[isa.BitNot] = opBitNot
	dispatch[isa.Convert] = opConvert
}

func registerIntFamily(base isa.Opcode, width int) {
	for i, kind := range intBinOpcodeKinds {
		op := base + isa.Opcode(i)
		k, w := kind, width
		dispatch[op] = func(v *VM) (bool, StopReason, error) { return execIntBinOp(v, k, w) }
	}
}

func registerFloatFamily(base isa.Opcode, width int) {
	for i, kind := range floatBinOpcodeKinds {
		op := base + isa.Opcode(i)
		k, w := kind, width
		dispatch[op] = func(v *VM) (bool, StopReason, error) { return execFloatBinOp(v, k, w) }
	}
}

func isCompareKind(kind string) bool {
	switch kind {
	case "eq", "neq", "ugt", "sgt", "uge", "sge", "ult", "slt", "ule", "sle",
		"lt", "le", "gt", "ge":
		return true
	default:
		return false
	}
}

func opNop(v *VM) (bool, StopReason, error) {
	v.PC++
	return false, 0, nil
}

func execIntBinOp(v *VM, kind string, width int) (bool, StopReason, error) {
	cursor := v.PC + 1
	lhs, c1 := isa.ReadOperand(v.Code, int(cursor), v.Mem, v.BP)
	cursor += int64(c1)
	rhs, c2 := isa.ReadOperand(v.Code, int(cursor), v.Mem, v.BP)
	cursor += int64(c2)
	dest := isa.Int64(v.Code[cursor : cursor+8])
	cursor += 8

	result, err := intBinOp(kind, width, lhs.Raw, rhs.Raw)
	if err != nil {
		return true, StopError, err
	}
	destWidth := width
	if isCompareKind(kind) {
		destWidth = 4
	}
	if err := v.writeAt(v.BP+dest, destWidth, result); err != nil {
		return true, StopError, err
	}
	v.PC = cursor
	return false, 0, nil
}

func execFloatBinOp(v *VM, kind string, width int) (bool, StopReason, error) {
	cursor := v.PC + 1
	lhs, c1 := isa.ReadOperand(v.Code, int(cursor), v.Mem, v.BP)
	cursor += int64(c1)
	rhs, c2 := isa.ReadOperand(v.Code, int(cursor), v.Mem, v.BP)
	cursor += int64(c2)
	dest := isa.Int64(v.Code[cursor : cursor+8])
	cursor += 8

	result, err := floatBinOp(kind, width, lhs.Raw, rhs.Raw)
	if err != nil {
		return true, StopError, err
	}
	destWidth := width
	if isCompareKind(kind) {
		destWidth = 4
	}
	if err := v.writeAt(v.BP+dest, destWidth, result); err != nil {
		return true, StopError, err
	}
	v.PC = cursor
	return false, 0, nil
}

func makeBitwise(combine func(a, b uint64) uint64, width int) handlerFunc {
	return func(v *VM) (bool, StopReason, error) {
		cursor := v.PC + 1
		lhs, c1 := isa.ReadOperand(v.Code, int(cursor), v.Mem, v.BP)
		cursor += int64(c1)
		rhs, c2 := isa.ReadOperand(v.Code, int(cursor), v.Mem, v.BP)
		cursor += int64(c2)
		dest := isa.Int64(v.Code[cursor : cursor+8])
		cursor += 8

		result := combine(lhs.Raw&mask(width), rhs.Raw&mask(width)) & mask(width)
		if err := v.writeAt(v.BP+dest, width, result); err != nil {
			return true, StopError, err
		}
		v.PC = cursor
		return false, 0, nil
	}
}

func opShift(left bool) handlerFunc {
	return func(v *VM) (bool, StopReason, error) {
		cursor := v.PC + 1
		width := int(v.Code[cursor])
		cursor++
		lhs, c1 := isa.ReadOperand(v.Code, int(cursor), v.Mem, v.BP)
		cursor += int64(c1)
		rhs, c2 := isa.ReadOperand(v.Code, int(cursor), v.Mem, v.BP)
		cursor += int64(c2)
		dest := isa.Int64(v.Code[cursor : cursor+8])
		cursor += 8

		shiftAmt := rhs.Raw & 63
		var result uint64
		if left {
			result = (lhs.Raw << shiftAmt) & mask(width)
		} else {
			result = (lhs.Raw & mask(width)) >> shiftAmt
		}
		if err := v.writeAt(v.BP+dest, width, result); err != nil {
			return true, StopError, err
		}
		v.PC = cursor
		return false, 0, nil
	}
}

func opStore(v *VM) (bool, StopReason, error) {
	cursor := v.PC + 1
	src, c1 := isa.ReadOperand(v.Code, int(cursor), v.Mem, v.BP)
	cursor += int64(c1)
	dst, c2 := isa.ReadOperand(v.Code, int(cursor), v.Mem, v.BP)
	cursor += int64(c2)

	if err := v.writeAt(int64(dst.Raw), src.Width, src.Raw); err != nil {
		return true, StopError, err
	}
	v.PC = cursor
	return false, 0, nil
}

func opBumpSP(v *VM) (bool, StopReason, error) {
	cursor := v.PC + 1
	delta := int32(isa.Uint32(v.Code[cursor : cursor+4]))
	cursor += 4
	v.SP += int64(delta)
	v.PC = cursor
	return false, 0, nil
}

func opJump(v *VM) (bool, StopReason, error) {
	cursor := v.PC + 1
	target, consumed := isa.ReadOperand(v.Code, int(cursor), v.Mem, v.BP)
	_ = consumed
	v.PC = int64(target.Raw)
	return false, 0, nil
}

func opJumpIf(v *VM) (bool, StopReason, error) {
	cursor := v.PC + 1
	cond, c1 := isa.ReadOperand(v.Code, int(cursor), v.Mem, v.BP)
	cursor += int64(c1)
	trueTarget, c2 := isa.ReadOperand(v.Code, int(cursor), v.Mem, v.BP)
	cursor += int64(c2)
	falseTarget, c3 := isa.ReadOperand(v.Code, int(cursor), v.Mem, v.BP)
	cursor += int64(c3)

	if cond.Raw != 0 {
		v.PC = int64(trueTarget.Raw)
	} else {
		v.PC = int64(falseTarget.Raw)
	}
	return false, 0, nil
}

func opCall(v *VM) (bool, StopReason, error) {
	cursor := v.PC + 1
	funcID := isa.Uint32(v.Code[cursor : cursor+4])
	cursor += 4
	frameDelta := isa.Int64(v.Code[cursor : cursor+8])
	cursor += 8

	entry, ok := v.Funcs.Lookup(funcID)
	if !ok {
		return true, StopError, ErrUnknownFunction
	}

	v.pushFrame(cursor, v.BP)
	v.BP += frameDelta
	v.PC = int64(entry)
	return false, 0, nil
}

func opCallI(v *VM) (bool, StopReason, error) {
	cursor := v.PC + 1
	target, c1 := isa.ReadOperand(v.Code, int(cursor), v.Mem, v.BP)
	cursor += int64(c1)
	frameDelta := isa.Int64(v.Code[cursor : cursor+8])
	cursor += 8

	v.pushFrame(cursor, v.BP)
	v.BP += frameDelta
	v.PC = int64(target.Raw)
	return false, 0, nil
}

func opCallE(v *VM) (bool, StopReason, error) {
	cursor := v.PC + 1
	idx := isa.Uint32(v.Code[cursor : cursor+4])
	cursor += 4

	call, ok := v.Externals.Get(idx)
	if !ok {
		return true, StopError, ErrUnknownExternal
	}
	if v.ABI == nil {
		return true, StopError, ErrUnknownExternal
	}
	if err := v.ABI.Invoke(call, v.Mem, v.BP); err != nil {
		return true, StopError, err
	}
	v.PC = cursor
	return false, 0, nil
}

func opRet(v *VM) (bool, StopReason, error) {
	if len(v.pcHistory) == 0 {
		return true, StopExited, nil
	}
	returnPC, returnBP := v.popFrame()
	v.PC = returnPC
	v.BP = returnBP
	return false, 0, nil
}

func opExit(v *VM) (bool, StopReason, error) {
	v.terminated = true
	return true, StopExited, nil
}

func opPanic(v *VM) (bool, StopReason, error) {
	return true, StopError, ErrPanicked
}

func opPuts(v *VM) (bool, StopReason, error) {
	cursor := v.PC + 1
	ptr, c1 := isa.ReadOperand(v.Code, int(cursor), v.Mem, v.BP)
	cursor += int64(c1)
	length, c2 := isa.ReadOperand(v.Code, int(cursor), v.Mem, v.BP)
	cursor += int64(c2)

	addr, n := int64(ptr.Raw), int64(length.Raw)
	if addr < 0 || n < 0 || addr+n > int64(len(v.Mem)) {
		return true, StopError, ErrSegmentationFault
	}
	v.Stdout.Write(v.Mem[addr : addr+n])
	v.Stdout.Flush()
	v.PC = cursor
	return false, 0, nil
}

func opNot(v *VM) (bool, StopReason, error) {
	return execUnary(v, func(raw uint64) uint64 {
		if raw == 0 {
			return 1
		}
		return 0
	}, 4)
}

func opBitNot(v *VM) (bool, StopReason, error) {
	cursor := v.PC + 1
	src, c1 := isa.ReadOperand(v.Code, int(cursor), v.Mem, v.BP)
	cursor += int64(c1)
	dest := isa.Int64(v.Code[cursor : cursor+8])
	cursor += 8

	result := (^src.Raw) & mask(src.Width)
	if err := v.writeAt(v.BP+dest, src.Width, result); err != nil {
		return true, StopError, err
	}
	v.PC = cursor
	return false, 0, nil
}

func execUnary(v *VM, combine func(uint64) uint64, destWidth int) (bool, StopReason, error) {
	cursor := v.PC + 1
	src, c1 := isa.ReadOperand(v.Code, int(cursor), v.Mem, v.BP)
	cursor += int64(c1)
	dest := isa.Int64(v.Code[cursor : cursor+8])
	cursor += 8

	result := combine(src.Raw)
	if err := v.writeAt(v.BP+dest, destWidth, result); err != nil {
		return true, StopError, err
	}
	v.PC = cursor
	return false, 0, nil
}

// opConvert reinterprets a scalar between isa.Kind pairs (spec.md
// §4.4's CONVERT): int widening/narrowing and int<->float, the
// "union tag-check" style conversions the debugger's `vars` command
// also needs to render correctly.
func opConvert(v *VM) (bool, StopReason, error) {
	cursor := v.PC + 1
	srcKind := isa.Kind(v.Code[cursor])
	cursor++
	srcOp, c1 := isa.ReadOperand(v.Code, int(cursor), v.Mem, v.BP)
	cursor += int64(c1)
	dstKind := isa.Kind(v.Code[cursor])
	cursor++
	dstOp, c2 := isa.ReadOperand(v.Code, int(cursor), v.Mem, v.BP)
	cursor += int64(c2)

	converted := convertScalar(srcKind, srcOp.Raw, dstKind)
	if err := v.writeAt(int64(dstOp.Raw), dstKind.Size(), converted); err != nil {
		return true, StopError, err
	}
	v.PC = cursor
	return false, 0, nil
}
