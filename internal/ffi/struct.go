package ffi

import "gvmc/internal/isa"

// FlattenStruct expands a struct's field kind list into the flat
// scalar sequence an ABI call actually marshals: each KindStruct field
// with an entry in nested is replaced by that entry's kinds. Only one
// level is expanded; a KindStruct inside a nested entry is kept as
// is. purego.SyscallN (like the original's
// libffi call path underneath it) only understands scalar/pointer
// arguments, so a struct parameter is passed as its fields in order.
func FlattenStruct(fields []isa.Kind, nested map[int][]isa.Kind) []isa.Kind {
	var out []isa.Kind
	for i, k := range fields {
		if k == isa.KindStruct {
			if inner, ok := nested[i]; ok {
				out = append(out, FlattenStruct(inner, nil)...)
				continue
			}
		}
		out = append(out, k)
	}
	return out
}
