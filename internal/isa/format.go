package isa

import (
	"fmt"
	"math"
	"strings"
)

// InstrLen returns the total byte length (opcode + operands) of the
// instruction at code[pc], without needing a base pointer (addresses
// inside RELCONST*/REL* operands are not resolved, only skipped).
func InstrLen(code []byte, pc int) int {
	op := Opcode(code[pc])
	layout, ok := Layouts[op]
	if !ok {
		return 1
	}

	n := 1
	for _, slot := range layout.Slots {
		if slot == SlotOperand {
			tagWidth, _, _, _ := ConstTagWidth(Opcode(code[pc+n]))
			n += 1 + tagWidth
		} else {
			n += slot.FixedSize()
		}
	}
	return n
}

// FormatInstr renders the instruction at code[pc] the way the
// disassembler and the debugger's `asm` command print it: one
// mnemonic followed by each operand as its decimal value, with typed
// operands preceded by their width/type marker.
func FormatInstr(code []byte, pc int) string {
	op := Opcode(code[pc])
	layout, ok := Layouts[op]
	if !ok {
		return fmt.Sprintf("?unknown(%d)?", op)
	}

	var parts []string
	cursor := pc + 1
	for _, slot := range layout.Slots {
		switch slot {
		case SlotOperand:
			tag := Opcode(code[cursor])
			width, float, _, _ := ConstTagWidth(tag)
			cursor++
			raw := readLE(code[cursor:], width)
			cursor += width
			parts = append(parts, formatOperand(tag, width, float, raw))
		case SlotRawI64:
			v := int64(readLE(code[cursor:], 8))
			cursor += 8
			parts = append(parts, fmt.Sprintf("%d", v))
		case SlotRawU32:
			v := uint32(readLE(code[cursor:], 4))
			cursor += 4
			parts = append(parts, fmt.Sprintf("%d", v))
		case SlotWidthByte:
			parts = append(parts, fmt.Sprintf("%d", code[cursor]))
			cursor++
		case SlotKindByte:
			parts = append(parts, Kind(code[cursor]).String())
			cursor++
		}
	}

	if len(parts) == 0 {
		return op.String()
	}
	return op.String() + " " + strings.Join(parts, " ")
}

func formatOperand(tag Opcode, width int, float bool, raw uint64) string {
	marker := tag.String()
	if float {
		var f float64
		if width == 4 {
			f = float64(math.Float32frombits(uint32(raw)))
		} else {
			f = math.Float64frombits(raw)
		}
		return fmt.Sprintf("%s %g", marker, f)
	}

	switch width {
	case 1:
		return fmt.Sprintf("%s %d", marker, int8(raw))
	case 2:
		return fmt.Sprintf("%s %d", marker, int16(raw))
	case 4:
		return fmt.Sprintf("%s %d", marker, int32(raw))
	default:
		return fmt.Sprintf("%s %d", marker, int64(raw))
	}
}

func (k Kind) String() string {
	switch k {
	case KindVoid:
		return "void"
	case KindI8:
		return "i8"
	case KindU8:
		return "u8"
	case KindI16:
		return "i16"
	case KindU16:
		return "u16"
	case KindI32:
		return "i32"
	case KindU32:
		return "u32"
	case KindI64:
		return "i64"
	case KindU64:
		return "u64"
	case KindF32:
		return "f32"
	case KindF64:
		return "f64"
	case KindBool:
		return "bool"
	case KindPointer:
		return "pointer"
	case KindStruct:
		return "struct"
	default:
		return "?kind?"
	}
}
