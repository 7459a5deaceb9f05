package vm

import (
	"math"

	"gvmc/internal/isa"
)

// mask returns the low `width` bytes set to 1, used to truncate a
// uint64 accumulator back to an opcode's declared width after an
// arithmetic op — this is what gives two's-complement wraparound on
// overflow rather than a Go runtime panic.
func mask(width int) uint64 {
	if width >= 8 {
		return ^uint64(0)
	}
	return (uint64(1) << (uint(width) * 8)) - 1
}

func signExtend(v uint64, width int) int64 {
	bits := uint(width) * 8
	if bits >= 64 {
		return int64(v)
	}
	signBit := uint64(1) << (bits - 1)
	if v&signBit != 0 {
		return int64(v | (^uint64(0) << bits))
	}
	return int64(v)
}

// intBinOp computes one integer binary operation at a given width,
// returning the truncated result (or, for comparisons, 0/1 widened to
// a 4-byte boolean matching spec's "comparisons produce a uint32
// boolean").
func intBinOp(kind string, width int, a, b uint64) (uint64, error) {
	ua, ub := a&mask(width), b&mask(width)
	sa, sb := signExtend(a, width), signExtend(b, width)

	boolResult := func(cond bool) uint64 {
		if cond {
			return 1
		}
		return 0
	}

	switch kind {
	case "add":
		return (ua + ub) & mask(width), nil
	case "sub":
		return (ua - ub) & mask(width), nil
	case "mul":
		return (ua * ub) & mask(width), nil
	case "udiv":
		if ub == 0 {
			return 0, ErrDivisionByZero
		}
		return (ua / ub) & mask(width), nil
	case "sdiv":
		if sb == 0 {
			return 0, ErrDivisionByZero
		}
		return uint64(sa/sb) & mask(width), nil
	case "urem":
		if ub == 0 {
			return 0, ErrDivisionByZero
		}
		return (ua % ub) & mask(width), nil
	case "srem":
		if sb == 0 {
			return 0, ErrDivisionByZero
		}
		return uint64(sa%sb) & mask(width), nil
	case "eq":
		return boolResult(ua == ub), nil
	case "neq":
		return boolResult(ua != ub), nil
	case "ugt":
		return boolResult(ua > ub), nil
	case "sgt":
		return boolResult(sa > sb), nil
	case "uge":
		return boolResult(ua >= ub), nil
	case "sge":
		return boolResult(sa >= sb), nil
	case "ult":
		return boolResult(ua < ub), nil
	case "slt":
		return boolResult(sa < sb), nil
	case "ule":
		return boolResult(ua <= ub), nil
	case "sle":
		return boolResult(sa <= sb), nil
	default:
		return 0, ErrIllegalInstr
	}
}

func floatBinOp(kind string, width int, a, b uint64) (uint64, error) {
	var fa, fb float64
	if width == 4 {
		fa, fb = float64(math.Float32frombits(uint32(a))), float64(math.Float32frombits(uint32(b)))
	} else {
		fa, fb = math.Float64frombits(a), math.Float64frombits(b)
	}

	boolResult := func(cond bool) uint64 {
		if cond {
			return 1
		}
		return 0
	}
	packFloat := func(f float64) uint64 {
		if width == 4 {
			return uint64(math.Float32bits(float32(f)))
		}
		return math.Float64bits(f)
	}

	switch kind {
	case "add":
		return packFloat(fa + fb), nil
	case "sub":
		return packFloat(fa - fb), nil
	case "mul":
		return packFloat(fa * fb), nil
	case "div":
		return packFloat(fa / fb), nil
	case "rem":
		return packFloat(math.Mod(fa, fb)), nil
	case "eq":
		return boolResult(fa == fb), nil
	case "neq":
		return boolResult(fa != fb), nil
	case "lt":
		return boolResult(fa < fb), nil
	case "le":
		return boolResult(fa <= fb), nil
	case "gt":
		return boolResult(fa > fb), nil
	case "ge":
		return boolResult(fa >= fb), nil
	default:
		return 0, ErrIllegalInstr
	}
}

// intBinOpcodeKinds is the fixed 17-wide per-width block of integer
// binary opcodes, in the exact order they're declared in isa.Opcode —
// which is what lets dispatch registration below compute each
// opcode's (kind, width) purely from its offset instead of a
// hand-written table per width.
var intBinOpcodeKinds = []string{
	"add", "sub", "mul", "udiv", "sdiv", "urem", "srem",
	"eq", "neq", "ugt", "sgt", "uge", "sge", "ult", "slt", "ule", "sle",
}

var floatBinOpcodeKinds = []string{
	"add", "sub", "mul", "div", "rem", "eq", "neq", "lt", "le", "gt", "ge",
}
