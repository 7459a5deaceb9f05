package emit

import "gvmc/internal/isa"

// local is one parameter or local variable's stack-frame slot.
type local struct {
	name   string
	offset int64
	kind   isa.Kind
}

// frame tracks the slot layout for one function being emitted: params
// at negative offsets descending from bp, the return value at bp+0,
// locals following at increasing positive offsets — exactly spec.md
// §3.3/§4.4's calling convention.
type frame struct {
	locals    []local
	nextLocal int64 // next free positive offset, past the return slot
}

func newFrame(returnKind isa.Kind) *frame {
	return &frame{nextLocal: int64(returnKind.Size())}
}

// param is one not-yet-laid-out parameter declaration, in source
// declaration order.
type param struct {
	name string
	kind isa.Kind
}

// setParams lays out every parameter in one pass: the first declared
// parameter gets the most negative offset (deepest below bp), the
// last sits immediately below the return slot at bp+0.
func (f *frame) setParams(params []param) {
	var total int64
	for _, p := range params {
		total += int64(p.kind.Size())
	}
	offset := -total
	for _, p := range params {
		f.locals = append(f.locals, local{name: p.name, offset: offset, kind: p.kind})
		offset += int64(p.kind.Size())
	}
}

func (f *frame) addLocal(name string, kind isa.Kind) local {
	l := local{name: name, offset: f.nextLocal, kind: kind}
	f.locals = append(f.locals, l)
	f.nextLocal += int64(kind.Size())
	return l
}

func (f *frame) lookup(name string) (local, bool) {
	for _, l := range f.locals {
		if l.name == name {
			return l, true
		}
	}
	return local{}, false
}
