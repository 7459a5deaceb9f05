package asm

import "gvmc/internal/isa"

var kindNames = map[string]isa.Kind{
	"void": isa.KindVoid, "i8": isa.KindI8, "u8": isa.KindU8,
	"i16": isa.KindI16, "u16": isa.KindU16, "i32": isa.KindI32, "u32": isa.KindU32,
	"i64": isa.KindI64, "u64": isa.KindU64, "f32": isa.KindF32, "f64": isa.KindF64,
	"bool": isa.KindBool, "pointer": isa.KindPointer, "struct": isa.KindStruct,
}

func lookupKind(tok string) (isa.Kind, bool) {
	k, ok := kindNames[tok]
	return k, ok
}
