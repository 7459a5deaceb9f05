package isa

import (
	"encoding/binary"
	"io"
)

// Program is the quadruple the emitter and assembler both produce:
// instruction bytes, function table, source map, and external-fn
// table. The VM consumes exactly this shape regardless of whether it
// came from the emitter or from assembling mnemonic text.
type Program struct {
	Code      []byte
	Funcs     *FuncTable
	Externals *ExternalFuncTable
	Source    *SourceMap
}

func NewProgram() *Program {
	return &Program{
		Funcs:     NewFuncTable(),
		Externals: &ExternalFuncTable{},
		Source:    &SourceMap{},
	}
}

// WriteTo serializes the binary bytecode file format: a little-endian
// stream of (1) a u32 function count, (2) that many 8-byte
// {fn-index:u32, instruction-index:u32} records in insertion order,
// (3) the raw instruction bytes through EOF. No magic, no version.
func (p *Program) WriteTo(w io.Writer) (int64, error) {
	entries := p.Funcs.Entries()

	var written int64
	if err := binary.Write(w, binary.LittleEndian, uint32(len(entries))); err != nil {
		return written, err
	}
	written += 4

	for _, e := range entries {
		if err := binary.Write(w, binary.LittleEndian, e.ID); err != nil {
			return written, err
		}
		written += 4
		if err := binary.Write(w, binary.LittleEndian, e.Entry); err != nil {
			return written, err
		}
		written += 4
	}

	n, err := w.Write(p.Code)
	written += int64(n)
	return written, err
}

// ReadProgram parses the binary bytecode file format produced by
// WriteTo. The returned Program has no source map or external-fn
// table (those only exist for in-process compiles) — a binary dump is
// for execution only, matching spec's "optional file dump" Non-goal
// carve-out.
func ReadProgram(r io.Reader) (*Program, error) {
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, err
	}

	funcs := NewFuncTable()
	for i := uint32(0); i < count; i++ {
		var id, entry uint32
		if err := binary.Read(r, binary.LittleEndian, &id); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.LittleEndian, &entry); err != nil {
			return nil, err
		}
		funcs.Define(id, entry)
	}

	rest, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	return &Program{
		Code:      rest,
		Funcs:     funcs,
		Externals: &ExternalFuncTable{},
		Source:    &SourceMap{},
	}, nil
}
