package emit

import (
	"math"

	"github.com/pkg/errors"

	"gvmc/internal/ast"
	"gvmc/internal/isa"
)

// binOpcodes maps (operator, operand kind) to the opcode that computes
// it, generalizing the teacher's single arithAddi/arithAddf-per-op
// model to the width/signedness matrix spec.md's catalog requires.
var binOpcodes = map[string]map[isa.Kind]isa.Opcode{
	"+": {isa.KindI32: isa.AddI32, isa.KindI64: isa.AddI64, isa.KindF32: isa.AddF32, isa.KindF64: isa.AddF64},
	"-": {isa.KindI32: isa.SubI32, isa.KindI64: isa.SubI64, isa.KindF32: isa.SubF32, isa.KindF64: isa.SubF64},
	"*": {isa.KindI32: isa.MulI32, isa.KindI64: isa.MulI64, isa.KindF32: isa.MulF32, isa.KindF64: isa.MulF64},
	"/": {isa.KindI32: isa.SDivI32, isa.KindI64: isa.SDivI64, isa.KindF32: isa.DivF32, isa.KindF64: isa.DivF64},
	"%": {isa.KindI32: isa.SRemI32, isa.KindI64: isa.SRemI64, isa.KindF32: isa.RemF32, isa.KindF64: isa.RemF64},
	"&": {isa.KindI32: isa.And32, isa.KindI64: isa.And64},
	"|": {isa.KindI32: isa.Or32, isa.KindI64: isa.Or64},
	"^": {isa.KindI32: isa.Xor32, isa.KindI64: isa.Xor64},
	"==": {isa.KindI32: isa.EqI32, isa.KindI64: isa.EqI64, isa.KindF32: isa.EqF32, isa.KindF64: isa.EqF64},
	"!=": {isa.KindI32: isa.NeqI32, isa.KindI64: isa.NeqI64, isa.KindF32: isa.NeqF32, isa.KindF64: isa.NeqF64},
	"<":  {isa.KindI32: isa.SLtI32, isa.KindI64: isa.SLtI64, isa.KindF32: isa.LtF32, isa.KindF64: isa.LtF64},
	"<=": {isa.KindI32: isa.SLeI32, isa.KindI64: isa.SLeI64, isa.KindF32: isa.LeF32, isa.KindF64: isa.LeF64},
	">":  {isa.KindI32: isa.SGtI32, isa.KindI64: isa.SGtI64, isa.KindF32: isa.GtF32, isa.KindF64: isa.GtF64},
	">=": {isa.KindI32: isa.SGeI32, isa.KindI64: isa.SGeI64, isa.KindF32: isa.GeF32, isa.KindF64: isa.GeF64},
}

// emitExprIntoDest evaluates expr and writes its result to the
// bp-relative byte offset dest, choosing STORECONST/STORE/a direct
// binop destination slot depending on what produces the value.
func (e *emitter) emitExprIntoDest(fnb *fn, h ast.Handle, dest int64) error {
	n := e.a.At(h)
	if n == nil {
		return errors.New("dangling AST handle in expression")
	}

	switch n.Kind {
	case ast.KindIntLiteral:
		return e.storeConst(fnb, intOperandTag(returnKindOf(e.a, n)), uint64(n.IntValue), returnKindOf(e.a, n), dest)

	case ast.KindFloatLiteral:
		k := returnKindOf(e.a, n)
		var raw uint64
		if k == isa.KindF32 {
			raw = uint64(math.Float32bits(float32(n.FloatValue)))
		} else {
			raw = math.Float64bits(n.FloatValue)
		}
		return e.storeConst(fnb, floatOperandTag(k), raw, k, dest)

	case ast.KindBoolLiteral:
		v := uint64(0)
		if n.BoolValue {
			v = 1
		}
		return e.storeConst(fnb, isa.ConstI32, v, isa.KindBool, dest)

	case ast.KindIdent:
		l, ok := fnb.frame.lookup(n.Name)
		if !ok {
			return errors.Errorf("undeclared identifier %q", n.Name)
		}
		return e.copyLocal(fnb, l, dest)

	case ast.KindBinOp:
		return e.emitBinOp(fnb, n, dest)

	case ast.KindUnaryOp:
		return e.emitUnaryOp(fnb, n, dest)

	case ast.KindCall, ast.KindForeignCall:
		_, err := e.emitCall(fnb, n, dest)
		return err

	default:
		return errors.Errorf("emitExprIntoDest: unsupported expression kind %d", n.Kind)
	}
}

func intOperandTag(k isa.Kind) isa.Opcode {
	switch k.Size() {
	case 1:
		return isa.ConstI8
	case 2:
		return isa.ConstI16
	case 4:
		return isa.ConstI32
	default:
		return isa.ConstI64
	}
}

func floatOperandTag(k isa.Kind) isa.Opcode {
	if k == isa.KindF32 {
		return isa.ConstF32
	}
	return isa.ConstF64
}

// storeConst appends STORECONST tag=src-immediate dest=bp-relative
// address, writing the width implied by srcTag's own ConstTagWidth.
func (e *emitter) storeConst(fnb *fn, srcTag isa.Opcode, raw uint64, destKind isa.Kind, dest int64) error {
	width, _, _, _ := isa.ConstTagWidth(srcTag)
	fnb.code = append(fnb.code, byte(isa.StoreConst), byte(srcTag))
	fnb.code = appendWidthBytes(fnb.code, raw, width)

	fnb.code = append(fnb.code, byte(isa.RelConstI64))
	destBuf := make([]byte, 8)
	isa.PutUint64(destBuf, uint64(dest))
	fnb.code = append(fnb.code, destBuf...)
	_ = destKind
	return nil
}

// copyLocal emits STORE src=REL<kind>(l.offset) (dereferenced read)
// dest=RELCONST(dest) (address only), i.e. "copy this local's value to
// that offset."
func (e *emitter) copyLocal(fnb *fn, l local, dest int64) error {
	srcTag := relOperandTag(l.kind)
	fnb.code = append(fnb.code, byte(isa.Store), byte(srcTag))
	fnb.code = appendOperandOffset(fnb.code, srcTag, l.offset)

	fnb.code = append(fnb.code, byte(isa.RelConstI64))
	fnb.code = appendOperandOffset(fnb.code, isa.RelConstI64, dest)
	return nil
}

// appendOperandOffset appends a REL*/RELCONST* operand's immediate
// bp-relative offset using the byte width that tag's ConstTagWidth
// says the VM will read back (offsets are assumed to fit; a frame
// this narrow emitter builds never exceeds a few hundred bytes).
func appendOperandOffset(buf []byte, tag isa.Opcode, offset int64) []byte {
	width, _, _, _ := isa.ConstTagWidth(tag)
	return appendWidthBytes(buf, uint64(offset), width)
}

func relOperandTag(k isa.Kind) isa.Opcode {
	if k.Float() {
		if k == isa.KindF32 {
			return isa.RelF32
		}
		return isa.RelF64
	}
	switch k.Size() {
	case 1:
		return isa.RelI8
	case 2:
		return isa.RelI16
	case 4:
		return isa.RelI32
	default:
		return isa.RelI64
	}
}

// emitBinOp evaluates both operands into scratch slots past the
// current frame, then emits the binop instruction reading both via
// REL operands and writing directly to dest — binops carry their
// destination as a raw offset, not a STORE.
func (e *emitter) emitBinOp(fnb *fn, n *ast.Node, dest int64) error {
	lhsKind := returnKindOf(e.a, n)
	opTable, ok := binOpcodes[n.Op]
	if !ok {
		return errors.Errorf("unknown binary operator %q", n.Op)
	}
	op, ok := opTable[lhsKind]
	if !ok {
		return errors.Errorf("operator %q undefined for kind %v", n.Op, lhsKind)
	}

	lhsScratch := fnb.frame.nextLocal
	fnb.frame.nextLocal += int64(lhsKind.Size())
	rhsScratch := fnb.frame.nextLocal
	fnb.frame.nextLocal += int64(lhsKind.Size())

	if err := e.emitExprIntoDest(fnb, n.Children[0], lhsScratch); err != nil {
		return err
	}
	if err := e.emitExprIntoDest(fnb, n.Children[1], rhsScratch); err != nil {
		return err
	}

	tag := relOperandTag(lhsKind)
	fnb.code = append(fnb.code, byte(op), byte(tag))
	fnb.code = appendOperandOffset(fnb.code, tag, lhsScratch)
	fnb.code = append(fnb.code, byte(tag))
	fnb.code = appendOperandOffset(fnb.code, tag, rhsScratch)
	db := make([]byte, 8)
	isa.PutUint64(db, uint64(dest))
	fnb.code = append(fnb.code, db...)
	return nil
}

func (e *emitter) emitUnaryOp(fnb *fn, n *ast.Node, dest int64) error {
	kind := returnKindOf(e.a, n)
	var op isa.Opcode
	switch n.Op {
	case "!":
		op = isa.Not
	case "~":
		op = isa.BitNot
	default:
		return errors.Errorf("unknown unary operator %q", n.Op)
	}

	scratch := fnb.frame.nextLocal
	fnb.frame.nextLocal += int64(kind.Size())
	if err := e.emitExprIntoDest(fnb, n.Children[0], scratch); err != nil {
		return err
	}

	tag := relOperandTag(kind)
	fnb.code = append(fnb.code, byte(op), byte(tag))
	fnb.code = appendOperandOffset(fnb.code, tag, scratch)
	db := make([]byte, 8)
	isa.PutUint64(db, uint64(dest))
	fnb.code = append(fnb.code, db...)
	return nil
}

// emitCall evaluates every argument into consecutive scratch slots
// just past the caller's current frame, then emits CALL/CALLE. For
// CALL, the second operand moves the callee's bp to the end of those
// slots, so the staged values become its parameters without a copy,
// and the callee's return value is copied from that bp+0 into dest
// once the call returns.
func (e *emitter) emitCall(fnb *fn, n *ast.Node, dest int64) (isa.Kind, error) {
	argBase := fnb.frame.nextLocal
	cursor := argBase
	paramKinds := make([]isa.Kind, 0, len(n.Children))
	for _, argH := range n.Children {
		argN := e.a.At(argH)
		k := returnKindOf(e.a, argN)
		if err := e.emitExprIntoDest(fnb, argH, cursor); err != nil {
			return isa.KindVoid, err
		}
		cursor += int64(k.Size())
		paramKinds = append(paramKinds, k)
	}
	fnb.frame.nextLocal = cursor

	if n.Kind == ast.KindForeignCall {
		idx := e.ctx.Externals.Add(isa.ExternalCall{
			Name:       n.Name,
			ParamKinds: paramKinds,
			ReturnKind: returnKindOf(e.a, n),
		})
		fnb.code = append(fnb.code, byte(isa.CallE))
		idxBuf := make([]byte, 4)
		isa.PutUint32(idxBuf, idx)
		fnb.code = append(fnb.code, idxBuf...)
		return returnKindOf(e.a, n), nil
	}

	id, ok := e.funcNameToID[n.Name]
	if !ok {
		return isa.KindVoid, errors.Errorf("call to undeclared function %q", n.Name)
	}
	fnb.code = append(fnb.code, byte(isa.Call))
	idBuf := make([]byte, 4)
	isa.PutUint32(idBuf, id)
	fnb.code = append(fnb.code, idBuf...)
	// newBP = currentBP + cursor: args were written at
	// [oldBP+argBase, oldBP+cursor), and the callee's parameters
	// occupy [newBP-(cursor-argBase), newBP) by construction — so
	// newBP must land at oldBP+cursor for the two ranges to coincide.
	frameDeltaBuf := make([]byte, 8)
	isa.PutUint64(frameDeltaBuf, uint64(cursor))
	fnb.code = append(fnb.code, frameDeltaBuf...)
	// The callee stored its return value at its own bp+0, which is the
	// caller's bp+cursor; copy it into the slot the caller asked for.
	retKind := returnKindOf(e.a, n)
	if retKind.Size() > 0 {
		if err := e.copyLocal(fnb, local{offset: cursor, kind: retKind}, dest); err != nil {
			return isa.KindVoid, err
		}
	}
	return retKind, nil
}

func appendWidthBytes(buf []byte, v uint64, width int) []byte {
	tmp := make([]byte, width)
	switch width {
	case 1:
		tmp[0] = byte(v)
	case 2:
		isa.PutUint16(tmp, uint16(v))
	case 4:
		isa.PutUint32(tmp, uint32(v))
	default:
		isa.PutUint64(tmp, v)
	}
	return append(buf, tmp...)
}
