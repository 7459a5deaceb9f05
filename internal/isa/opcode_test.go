package isa

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Opcode table agreement: for every opcode value k, the mnemonic at
// index k, round-tripped through Lookup, must yield k back.
func TestMnemonicTableAgreesWithOpcodeEnumeration(t *testing.T) {
	for k := 0; k < Count(); k++ {
		op := Opcode(k)
		name := op.String()
		if name == "?unknown?" {
			continue
		}

		got, ok := Lookup(name)
		require.True(t, ok, "mnemonic %q for opcode %d did not reverse-lookup", name, k)
		require.Equal(t, op, got, "mnemonic %q round-tripped to a different opcode", name)
	}
}

func TestDispatchableOpcodesHaveLayouts(t *testing.T) {
	for op := range Layouts {
		require.True(t, Dispatchable(op))
	}
}

func TestKindSizes(t *testing.T) {
	require.Equal(t, 1, KindI8.Size())
	require.Equal(t, 4, KindI32.Size())
	require.Equal(t, 8, KindPointer.Size())
	require.True(t, KindF64.Float())
	require.False(t, KindI64.Float())
}
