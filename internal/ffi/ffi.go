// Package ffi is the libffi-style foreign function bridge for CALLE,
// grounded on original_source/src/interpreter.h|.cpp's ffiTypeFor /
// interpretCalle (real libffi ffi_prep_cif/ffi_call usage) and
// implemented without cgo atop github.com/ebitengine/purego, the only
// pure-Go dlopen/dlsym/call facility attested anywhere in the
// retrieval pack (see DESIGN.md for the honest grounding caveat: no
// full example repo in the pack actually calls purego in retrieved
// source, only go.mod manifests list it).
package ffi

import (
	"gvmc/internal/isa"
)

// ABI is the foreign-call boundary: a trait so the VM's CALLE handler
// never needs to know whether it's talking to a real dynamically-loaded
// symbol or a test double. It has a single Invoke operation; there is
// no separate prepare step returning a reusable call descriptor.
type ABI interface {
	// Invoke resolves call.Name, marshals arguments from mem at
	// bp-relative offsets per call.ParamKinds, calls the foreign
	// function, and writes the return value (per call.ReturnKind)
	// back into mem at the return slot (bp+0).
	Invoke(call isa.ExternalCall, mem []byte, bp int64) error
}

// NopABI rejects every foreign call; it is the default for contexts
// that never register CALLE instructions (pure bytecode exercises,
// tests, and the CLI's `-no-ffi` mode), so those paths never need to
// load a real shared library.
type NopABI struct{}

func (NopABI) Invoke(call isa.ExternalCall, mem []byte, bp int64) error {
	return errUnboundABI{name: call.Name}
}

type errUnboundABI struct{ name string }

func (e errUnboundABI) Error() string {
	return "no ABI bound: cannot invoke foreign function " + e.name
}
