package ffi

import (
	"testing"

	"github.com/stretchr/testify/require"

	"gvmc/internal/isa"
)

func TestNopABIRejectsEveryCall(t *testing.T) {
	mem := make([]byte, 64)
	err := NopABI{}.Invoke(isa.ExternalCall{Name: "puts"}, mem, 0)
	require.Error(t, err)
	require.Contains(t, err.Error(), "puts")
}

func TestParamAreaStart(t *testing.T) {
	require.Equal(t, int64(0), paramAreaStart(nil))
	require.Equal(t, int64(-12), paramAreaStart([]isa.Kind{isa.KindI64, isa.KindI32}))
}

func TestReadArgMarshalsByKind(t *testing.T) {
	mem := make([]byte, 32)
	isa.PutUint32(mem[0:4], 7)
	isa.PutUint64(mem[8:16], 9000)

	v, err := readArg(mem, 0, isa.KindI32)
	require.NoError(t, err)
	require.Equal(t, uintptr(7), v)

	v, err = readArg(mem, 8, isa.KindI64)
	require.NoError(t, err)
	require.Equal(t, uintptr(9000), v)

	_, err = readArg(mem, 100, isa.KindI64)
	require.Error(t, err)
}

func TestWriteReturnMarshalsByKind(t *testing.T) {
	mem := make([]byte, 16)
	require.NoError(t, writeReturn(mem, 0, isa.KindI32, 42))
	require.Equal(t, uint32(42), isa.Uint32(mem[0:4]))

	require.NoError(t, writeReturn(mem, 0, isa.KindVoid, 99))
	require.Equal(t, uint32(42), isa.Uint32(mem[0:4])) // untouched

	err := writeReturn(mem, 100, isa.KindI64, 1)
	require.Error(t, err)
}

func TestPlatformSearchPathsOrder(t *testing.T) {
	paths := platformSearchPaths("m")
	require.Len(t, paths, 4)
	require.Contains(t, paths[0], "/usr/local/lib")
	require.Contains(t, paths[1], "/usr/lib")
	require.Equal(t, "./m"+sharedLibExt(), paths[2])
	require.Equal(t, "m"+sharedLibExt(), paths[3])
}

func TestFlattenStructRecurses(t *testing.T) {
	fields := []isa.Kind{isa.KindI32, isa.KindStruct, isa.KindBool}
	nested := map[int][]isa.Kind{1: {isa.KindI8, isa.KindI16}}

	out := FlattenStruct(fields, nested)
	require.Equal(t, []isa.Kind{isa.KindI32, isa.KindI8, isa.KindI16, isa.KindBool}, out)
}
