package vm

import (
	"math"

	"gvmc/internal/isa"
)

// convertScalar reinterprets a raw bit pattern tagged as srcKind into
// the bit pattern dstKind expects — the runtime half of CONVERT, the
// compile-time half being the AST node's static type-check (out of
// this narrow emitter's scope; the VM trusts the instruction stream).
// Integer sources are sign-extended when srcKind is signed and
// zero-extended otherwise; float-to-integer truncates toward zero.
func convertScalar(srcKind isa.Kind, raw uint64, dstKind isa.Kind) uint64 {
	if srcKind.Float() {
		var f float64
		if srcKind == isa.KindF32 {
			f = float64(math.Float32frombits(uint32(raw)))
		} else {
			f = math.Float64frombits(raw)
		}
		if dstKind.Float() {
			if dstKind == isa.KindF32 {
				return uint64(math.Float32bits(float32(f)))
			}
			return math.Float64bits(f)
		}
		return truncateSigned(int64(f), dstKind.Size())
	}

	if !srcKind.Signed() {
		u := raw & mask(srcKind.Size())
		if dstKind.Float() {
			if dstKind == isa.KindF32 {
				return uint64(math.Float32bits(float32(u)))
			}
			return math.Float64bits(float64(u))
		}
		return u & mask(dstKind.Size())
	}

	signed := signExtend(raw, srcKind.Size())
	if dstKind.Float() {
		if dstKind == isa.KindF32 {
			return uint64(math.Float32bits(float32(signed)))
		}
		return math.Float64bits(float64(signed))
	}
	return truncateSigned(signed, dstKind.Size())
}

func truncateSigned(v int64, width int) uint64 {
	return uint64(v) & mask(width)
}
