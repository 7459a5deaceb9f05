package isa

import "encoding/binary"

// Operand is the decoded result of a single polymorphic operand read:
// either an immediate value, or a base-pointer-relative stack address
// (and, for REL* forms, the scalar already loaded from that address).
type Operand struct {
	Tag   Opcode
	Width int
	Float bool

	// Raw holds the immediate bits (CONST*), or the computed address
	// (RELCONST*), or the dereferenced scalar (REL*) — all left-padded
	// into a uint64 so callers can reinterpret by Width/Float.
	Raw uint64
}

// ReadOperand consumes one typed operand starting at code[pc] and
// returns it along with the number of bytes consumed (including the
// one-byte tag). mem is the stack/memory region relative operands are
// read from, bp is the current base pointer.
//
// This is the "single polymorphic read operation" spec'd for the
// instruction stream: CONST* yields the immediate, RELCONST* adds bp to
// the immediate, REL* further dereferences the resulting address. Every
// arithmetic/comparison opcode built on top of this reads two operands
// this way, irrespective of whether either side is a literal or a
// local.
func ReadOperand(code []byte, pc int, mem []byte, bp int64) (Operand, int) {
	tag := Opcode(code[pc])
	width, float, relative, deref := ConstTagWidth(tag)
	cursor := pc + 1

	imm := readLE(code[cursor:], width)
	cursor += width

	if !relative {
		return Operand{Tag: tag, Width: width, Float: float, Raw: imm}, cursor - pc
	}

	addr := bp + int64(imm)
	if !deref {
		return Operand{Tag: tag, Width: width, Float: float, Raw: uint64(addr)}, cursor - pc
	}

	val := readLE(mem[addr:], width)
	return Operand{Tag: tag, Width: width, Float: float, Raw: val}, cursor - pc
}

func readLE(b []byte, width int) uint64 {
	switch width {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(b))
	case 4:
		return uint64(binary.LittleEndian.Uint32(b))
	case 8:
		return binary.LittleEndian.Uint64(b)
	default:
		return 0
	}
}

func writeLE(b []byte, width int, v uint64) {
	switch width {
	case 1:
		b[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(b, uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(b, uint32(v))
	case 8:
		binary.LittleEndian.PutUint64(b, v)
	}
}

// PutUint64 / Uint64 etc. are exported little-endian helpers shared by
// the emitter, VM, and FFI bridge so that encoding stays centralized in
// one package.
func PutUint64(b []byte, v uint64) { writeLE(b, 8, v) }
func PutUint32(b []byte, v uint32) { writeLE(b, 4, uint64(v)) }
func PutUint16(b []byte, v uint16) { writeLE(b, 2, uint64(v)) }

func Uint64(b []byte) uint64 { return binary.LittleEndian.Uint64(b) }
func Uint32(b []byte) uint32 { return binary.LittleEndian.Uint32(b) }
func Uint16(b []byte) uint16 { return binary.LittleEndian.Uint16(b) }
func Int64(b []byte) int64   { return int64(binary.LittleEndian.Uint64(b)) }
func Int32(b []byte) int32   { return int32(binary.LittleEndian.Uint32(b)) }
