package isa

// Slot describes one piece of an instruction's operand encoding, in
// stream order after the leading opcode byte.
type Slot int

const (
	// SlotOperand is a typed CONST*/RELCONST*/REL* operand: a one-byte
	// tag followed by its width-appropriate payload (see ReadOperand).
	SlotOperand Slot = iota
	// SlotRawI64 is a bare signed 64-bit value with no type prefix
	// (binary/unary op destination offsets).
	SlotRawI64
	// SlotRawU32 is a bare unsigned 32-bit value (BUMPSP delta, CALL
	// function-table index, CALLE external index).
	SlotRawU32
	// SlotWidthByte is a single byte selecting operation width
	// (1, 2, 4, or 8) for the width-polymorphic shift opcodes.
	SlotWidthByte
	// SlotKindByte is a Kind tag byte (CONVERT's source/destination
	// kind operands).
	SlotKindByte
)

func (s Slot) FixedSize() int {
	switch s {
	case SlotRawI64:
		return 8
	case SlotRawU32:
		return 4
	case SlotWidthByte, SlotKindByte:
		return 1
	default:
		return -1 // SlotOperand is variable-width; see ReadOperand
	}
}

// Layout describes an instruction's full operand slot sequence.
type Layout struct {
	Slots []Slot
}

func binop() Layout     { return Layout{[]Slot{SlotOperand, SlotOperand, SlotRawI64}} }
func unop() Layout      { return Layout{[]Slot{SlotOperand, SlotRawI64}} }
func shiftop() Layout   { return Layout{[]Slot{SlotWidthByte, SlotOperand, SlotOperand, SlotRawI64}} }
func noOperands() Layout { return Layout{} }

// Layouts maps every dispatchable (non operand-tag) opcode to its
// operand slot sequence. This is the single source of truth the
// assembler's argCount and the disassembler's instruction-length
// walker read from (internal/emit writes its bytes directly) — so that
// adding an opcode only ever requires adding one row here plus the
// mnemonic table entry plus the VM dispatch case.
var Layouts = map[Opcode]Layout{
	Nop: noOperands(),

	AddI8: binop(), SubI8: binop(), MulI8: binop(), UDivI8: binop(), SDivI8: binop(),
	URemI8: binop(), SRemI8: binop(), EqI8: binop(), NeqI8: binop(), UGtI8: binop(),
	SGtI8: binop(), UGeI8: binop(), SGeI8: binop(), ULtI8: binop(), SLtI8: binop(),
	ULeI8: binop(), SLeI8: binop(),

	AddI16: binop(), SubI16: binop(), MulI16: binop(), UDivI16: binop(), SDivI16: binop(),
	URemI16: binop(), SRemI16: binop(), EqI16: binop(), NeqI16: binop(), UGtI16: binop(),
	SGtI16: binop(), UGeI16: binop(), SGeI16: binop(), ULtI16: binop(), SLtI16: binop(),
	ULeI16: binop(), SLeI16: binop(),

	AddI32: binop(), SubI32: binop(), MulI32: binop(), UDivI32: binop(), SDivI32: binop(),
	URemI32: binop(), SRemI32: binop(), EqI32: binop(), NeqI32: binop(), UGtI32: binop(),
	SGtI32: binop(), UGeI32: binop(), SGeI32: binop(), ULtI32: binop(), SLtI32: binop(),
	ULeI32: binop(), SLeI32: binop(),

	AddI64: binop(), SubI64: binop(), MulI64: binop(), UDivI64: binop(), SDivI64: binop(),
	URemI64: binop(), SRemI64: binop(), EqI64: binop(), NeqI64: binop(), UGtI64: binop(),
	SGtI64: binop(), UGeI64: binop(), SGeI64: binop(), ULtI64: binop(), SLtI64: binop(),
	ULeI64: binop(), SLeI64: binop(),

	AddF32: binop(), SubF32: binop(), MulF32: binop(), DivF32: binop(), RemF32: binop(),
	EqF32: binop(), NeqF32: binop(), LtF32: binop(), LeF32: binop(), GtF32: binop(), GeF32: binop(),

	AddF64: binop(), SubF64: binop(), MulF64: binop(), DivF64: binop(), RemF64: binop(),
	EqF64: binop(), NeqF64: binop(), LtF64: binop(), LeF64: binop(), GtF64: binop(), GeF64: binop(),

	And8: binop(), And16: binop(), And32: binop(), And64: binop(),
	Or8: binop(), Or16: binop(), Or32: binop(), Or64: binop(),
	Xor8: binop(), Xor16: binop(), Xor32: binop(), Xor64: binop(),
	Shl: shiftop(), Shr: shiftop(),

	// STORE's byte count is not a separate slot: it is derived from the
	// width of the source operand's CONST*/REL* tag, so the assembler's
	// argCount for STORE is 2 (source, destination) even though the
	// instruction stream is still self-describing for the VM.
	Store:      {[]Slot{SlotOperand, SlotOperand}},
	StoreConst: {[]Slot{SlotOperand, SlotOperand}},
	BumpSP:     {[]Slot{SlotRawU32}},

	Jump:   {[]Slot{SlotOperand}},
	JumpIf: {[]Slot{SlotOperand, SlotOperand, SlotOperand}},
	// CALL/CALLI carry a second raw i64: the callee's new-BP offset
	// from the caller's current BP. The caller computes this at
	// compile time (it already knows how much frame space it used to
	// stage arguments before the call) so the VM never has to infer a
	// frame layout it has no other way to know.
	Call:  {[]Slot{SlotRawU32, SlotRawI64}},
	CallI: {[]Slot{SlotOperand, SlotRawI64}},
	CallE: {[]Slot{SlotRawU32}},
	Ret:   noOperands(),
	Exit:  noOperands(),

	Panic:    noOperands(),
	Puts:     {[]Slot{SlotOperand, SlotOperand}},
	Not:      unop(),
	BitNot:   unop(),
	Convert:  {[]Slot{SlotKindByte, SlotOperand, SlotKindByte, SlotOperand}},
}

// Dispatchable reports whether op is a real VM instruction (as opposed
// to a CONST*/RELCONST*/REL* operand-tag byte, which only ever appears
// nested inside another instruction's operand stream).
func Dispatchable(op Opcode) bool {
	_, ok := Layouts[op]
	return ok
}
