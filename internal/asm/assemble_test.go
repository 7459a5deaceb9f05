package asm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"gvmc/internal/isa"
)

func TestAssembleSimpleAdd(t *testing.T) {
	src := `
func main:
  addi32 consti32 2 consti32 3 -8
  exit
`
	prog, err := Assemble(src)
	require.NoError(t, err)
	require.NotEmpty(t, prog.Code)
	require.Equal(t, 1, prog.Funcs.Len())

	entry, ok := prog.Funcs.Lookup(0)
	require.True(t, ok)
	require.Equal(t, uint32(0), entry)
}

func TestAssembleUnknownMnemonic(t *testing.T) {
	_, err := Assemble("bogus 1 2 3\n")
	require.Error(t, err)

	var aerr *Error
	require.ErrorAs(t, err, &aerr)
}

func TestAssembleJumpToLabel(t *testing.T) {
	src := `
func main:
  jump consti64 loop
loop:
  exit
`
	prog, err := Assemble(src)
	require.NoError(t, err)

	// jump's operand is a CONSTI64 tag (1 byte) + 8-byte payload,
	// following the 1-byte opcode: loop's address should equal the
	// full instruction length of the jump.
	require.Equal(t, isa.InstrLen(prog.Code, 0), len(prog.Code)-1)
}

func TestDisassembleRoundTrip(t *testing.T) {
	src := `
func main:
  addi32 consti32 2 consti32 3 -8
  exit
`
	prog, err := Assemble(src)
	require.NoError(t, err)

	text := Disassemble(prog)
	reassembled, err := Assemble(text)
	require.NoError(t, err)
	require.Equal(t, prog.Code, reassembled.Code)
}
