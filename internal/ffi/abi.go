package ffi

import (
	"sync"

	"github.com/ebitengine/purego"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"gvmc/internal/isa"
)

// PureGoABI is the default ABI: it resolves symbols via purego.Dlsym
// against libraries opened with OpenLibrary, and calls them with
// purego.SyscallN, the pure-Go (no cgo) equivalent of the original's
// ffi_prep_cif/ffi_call pair. One PureGoABI instance caches opened
// library handles and resolved symbols across calls, since reopening
// a shared library per CALLE would be wasteful and the original keeps
// its own `libs` vector alive for the same reason.
type PureGoABI struct {
	mu      sync.Mutex
	libs    map[string]uintptr
	symbols map[string]uintptr

	// LibraryFor maps an external call name to the shared library it
	// lives in. The narrow AST slice in scope doesn't model per-call
	// library annotations, so callers populate this explicitly (the
	// `gvmc` CLI's `run`/`debug` subcommands leave it empty); calls
	// with no entry default to the main program binary's own exported
	// symbols.
	LibraryFor map[string]string
}

func NewPureGoABI() *PureGoABI {
	return &PureGoABI{
		libs:       map[string]uintptr{},
		symbols:    map[string]uintptr{},
		LibraryFor: map[string]string{},
	}
}

func (p *PureGoABI) resolve(call isa.ExternalCall) (uintptr, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if fn, ok := p.symbols[call.Name]; ok {
		return fn, nil
	}

	libName, hasLib := p.LibraryFor[call.Name]
	var handle uintptr
	if hasLib {
		h, ok := p.libs[libName]
		if !ok {
			var err error
			h, err = OpenLibrary(libName)
			if err != nil {
				return 0, err
			}
			p.libs[libName] = h
		}
		handle = h
	}

	fn, err := purego.Dlsym(handle, call.Name)
	if err != nil {
		return 0, errors.Wrapf(err, "ffi: symbol %q not found", call.Name)
	}
	p.symbols[call.Name] = fn
	log.Debug().Str("symbol", call.Name).Msg("ffi: symbol resolved")
	return fn, nil
}

// Invoke marshals call.ParamKinds-typed arguments out of mem at
// bp-relative offsets, calls the resolved symbol via SyscallN, and
// writes the result back to the bp+0 return slot per call.ReturnKind.
//
// Bool is passed as a 32-bit signed int per spec.md §4.4/§4.5. Each
// ParamKinds entry is marshalled as one argument word; Invoke does not
// call FlattenStruct, so a KindStruct entry is not expanded into its
// fields.
func (p *PureGoABI) Invoke(call isa.ExternalCall, mem []byte, bp int64) error {
	fn, err := p.resolve(call)
	if err != nil {
		return err
	}

	args := make([]uintptr, 0, len(call.ParamKinds))
	offset := paramAreaStart(call.ParamKinds)
	for _, k := range call.ParamKinds {
		v, err := readArg(mem, bp+offset, k)
		if err != nil {
			return err
		}
		args = append(args, v)
		offset += int64(k.Size())
	}

	ret, _, _ := purego.SyscallN(fn, args...)
	return writeReturn(mem, bp, call.ReturnKind, ret)
}

// paramAreaStart mirrors the emitter's calling convention: parameters
// occupy [-total, 0) relative to bp, so the first parameter starts at
// -total.
func paramAreaStart(kinds []isa.Kind) int64 {
	var total int64
	for _, k := range kinds {
		total += int64(k.Size())
	}
	return -total
}

func readArg(mem []byte, addr int64, k isa.Kind) (uintptr, error) {
	if addr < 0 || addr+int64(k.Size()) > int64(len(mem)) {
		return 0, errors.New("ffi: argument address out of stack bounds")
	}
	switch k {
	case isa.KindF32:
		bits := isa.Uint32(mem[addr : addr+4])
		return uintptr(bits), nil // see DESIGN.md: float args carried as raw bits, not hardware-float registers
	case isa.KindF64:
		bits := isa.Uint64(mem[addr : addr+8])
		return uintptr(bits), nil
	default:
		switch k.Size() {
		case 1:
			return uintptr(mem[addr]), nil
		case 2:
			return uintptr(isa.Uint16(mem[addr : addr+2])), nil
		case 4:
			return uintptr(isa.Uint32(mem[addr : addr+4])), nil
		default:
			return uintptr(isa.Uint64(mem[addr : addr+8])), nil
		}
	}
}

func writeReturn(mem []byte, bp int64, k isa.Kind, ret uintptr) error {
	if k == isa.KindVoid {
		return nil
	}
	if bp+int64(k.Size()) > int64(len(mem)) || bp < 0 {
		return errors.New("ffi: return slot out of stack bounds")
	}
	switch k {
	case isa.KindF32:
		isa.PutUint32(mem[bp:bp+4], uint32(ret))
	case isa.KindF64:
		isa.PutUint64(mem[bp:bp+8], uint64(ret))
	default:
		switch k.Size() {
		case 1:
			mem[bp] = byte(ret)
		case 2:
			isa.PutUint16(mem[bp:bp+2], uint16(ret))
		case 4:
			isa.PutUint32(mem[bp:bp+4], uint32(ret))
		default:
			isa.PutUint64(mem[bp:bp+8], uint64(ret))
		}
	}
	return nil
}
