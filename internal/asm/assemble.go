// Package asm implements the mnemonic text assembler and the
// disassembler for the gvmc bytecode format, grounded on the teacher's
// vm/compile.go (preprocessLine/parseInputLine/CompileSource) and
// vm/vm.go's formatInstructionStr, generalized from the teacher's fixed
// 8-byte Instruction struct to the isa.Layouts-driven variable-width
// encoding this spec's operand grammar requires.
package asm

import (
	"math"

	"gvmc/internal/isa"
)

type instrLine struct {
	offset    int // source byte offset, for diagnostics
	mnemonic  string
	operands  []string
	addr      int // resolved in pass 1
	length    int // resolved in pass 1
}

// Assemble compiles mnemonic source text into a Program. It runs two
// passes: classify + measure (labels get addresses, instructions get
// lengths without resolving operand values), then a final emission pass
// that resolves every operand token (literal, label, or function name)
// and writes the instruction stream.
func Assemble(src string) (*isa.Program, error) {
	lines := splitLines(src)

	labels := map[string]int{}
	funcIDs := map[string]uint32{}
	funcEntries := map[uint32]int{}
	var funcOrder []string
	var instrs []instrLine

	addr := 0
	for _, rl := range lines {
		if name, ok := isFuncLabelLine(rl.text); ok {
			if _, exists := labels[name]; exists {
				return nil, newError(src, rl.offset, "duplicate label %q", name)
			}
			id := uint32(len(funcOrder))
			labels[name] = addr
			funcIDs[name] = id
			funcEntries[id] = addr
			funcOrder = append(funcOrder, name)
			continue
		}
		if name, ok := isLabelLine(rl.text); ok {
			if _, exists := labels[name]; exists {
				return nil, newError(src, rl.offset, "duplicate label %q", name)
			}
			labels[name] = addr
			continue
		}

		toks := tokenize(rl.text)
		mnemonic := toks[0]
		operands := toks[1:]

		op, ok := isa.Lookup(mnemonic)
		if !ok {
			return nil, newError(src, rl.offset, "unknown mnemonic %q", mnemonic)
		}
		layout, ok := isa.Layouts[op]
		if !ok {
			return nil, newError(src, rl.offset, "%q is not a dispatchable instruction", mnemonic)
		}

		length, err := measure(src, rl.offset, layout, operands)
		if err != nil {
			return nil, err
		}

		instrs = append(instrs, instrLine{
			offset:   rl.offset,
			mnemonic: mnemonic,
			operands: operands,
			addr:     addr,
			length:   length,
		})
		addr += length
	}

	prog := isa.NewProgram()
	code := make([]byte, addr)

	for _, in := range instrs {
		op, _ := isa.Lookup(in.mnemonic)
		layout := isa.Layouts[op]
		buf, err := emit(src, in.offset, op, layout, in.operands, labels, funcIDs)
		if err != nil {
			return nil, err
		}
		copy(code[in.addr:], buf)
	}

	prog.Code = code
	for _, name := range funcOrder {
		id := funcIDs[name]
		prog.Funcs.Define(id, uint32(funcEntries[id]))
	}
	return prog, nil
}

// measure computes the byte length of an instruction without
// resolving any label references, since a typed operand's width is
// fully determined by its marker token regardless of the literal or
// label-name value that follows it.
func measure(src string, offset int, layout isa.Layout, operands []string) (int, error) {
	length := 1 // opcode byte
	i := 0
	for _, slot := range layout.Slots {
		if i >= len(operands) && slot != isa.SlotOperand {
			return 0, newError(src, offset, "missing operand")
		}
		switch slot {
		case isa.SlotOperand:
			if i >= len(operands) {
				return 0, newError(src, offset, "missing typed operand marker")
			}
			marker := operands[i]
			tag, ok := isa.Lookup(marker)
			if !ok {
				return 0, newError(src, offset, "unknown operand marker %q", marker)
			}
			width, _, _, _ := isa.ConstTagWidth(tag)
			if width == 0 {
				return 0, newError(src, offset, "%q is not a typed operand marker", marker)
			}
			length += 1 + width
			i += 2
		case isa.SlotRawI64:
			length += 8
			i++
		case isa.SlotRawU32:
			length += 4
			i++
		case isa.SlotWidthByte, isa.SlotKindByte:
			length++
			i++
		}
	}
	if i != len(operands) {
		return 0, newError(src, offset, "too many operands")
	}
	return length, nil
}

func emit(src string, offset int, op isa.Opcode, layout isa.Layout, operands []string, labels map[string]int, funcIDs map[string]uint32) ([]byte, error) {
	buf := []byte{byte(op)}
	i := 0
	for _, slot := range layout.Slots {
		switch slot {
		case isa.SlotOperand:
			marker, value := operands[i], operands[i+1]
			i += 2
			tag, _ := isa.Lookup(marker)
			width, float, _, _ := isa.ConstTagWidth(tag)
			buf = append(buf, byte(tag))
			raw, err := resolveOperandValue(src, offset, value, width, float, labels, funcIDs)
			if err != nil {
				return nil, err
			}
			buf = appendWidth(buf, raw, width)
		case isa.SlotRawI64:
			v, ok := parseIntLiteral(operands[i])
			if !ok {
				return nil, newError(src, offset, "expected integer literal, got %q", operands[i])
			}
			i++
			buf = appendWidth(buf, v, 8)
		case isa.SlotRawU32:
			tok := operands[i]
			i++
			if v, ok := parseIntLiteral(tok); ok {
				buf = appendWidth(buf, v, 4)
				continue
			}
			if id, ok := funcIDs[tok]; ok {
				buf = appendWidth(buf, uint64(id), 4)
				continue
			}
			if a, ok := labels[tok]; ok {
				buf = appendWidth(buf, uint64(uint32(a)), 4)
				continue
			}
			return nil, newError(src, offset, "undefined function or label %q", tok)
		case isa.SlotWidthByte:
			v, ok := parseIntLiteral(operands[i])
			i++
			if !ok {
				return nil, newError(src, offset, "expected width literal")
			}
			buf = append(buf, byte(v))
		case isa.SlotKindByte:
			k, ok := lookupKind(operands[i])
			i++
			if !ok {
				return nil, newError(src, offset, "unknown kind %q", operands[i-1])
			}
			buf = append(buf, byte(k))
		}
	}
	return buf, nil
}

func resolveOperandValue(src string, offset int, tok string, width int, float bool, labels map[string]int, funcIDs map[string]uint32) (uint64, error) {
	if float {
		f, ok := parseFloatLiteral(tok)
		if !ok {
			return 0, newError(src, offset, "expected float literal, got %q", tok)
		}
		return floatBits(f, width), nil
	}
	if v, ok := parseIntLiteral(tok); ok {
		return v, nil
	}
	if a, ok := labels[tok]; ok {
		return uint64(uint32(a)), nil
	}
	if id, ok := funcIDs[tok]; ok {
		return uint64(id), nil
	}
	return 0, newError(src, offset, "undefined label or literal %q", tok)
}

func floatBits(f float64, width int) uint64 {
	if width == 4 {
		return uint64(math.Float32bits(float32(f)))
	}
	return math.Float64bits(f)
}

func appendWidth(buf []byte, v uint64, width int) []byte {
	switch width {
	case 1:
		return append(buf, byte(v))
	case 2:
		b := make([]byte, 2)
		isa.PutUint16(b, uint16(v))
		return append(buf, b...)
	case 4:
		b := make([]byte, 4)
		isa.PutUint32(b, uint32(v))
		return append(buf, b...)
	default:
		b := make([]byte, 8)
		isa.PutUint64(b, v)
		return append(buf, b...)
	}
}
