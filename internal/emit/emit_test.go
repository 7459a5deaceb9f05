package emit_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"gvmc/internal/ast"
	"gvmc/internal/emit"
	"gvmc/internal/ffi"
	"gvmc/internal/isa"
	"gvmc/internal/runctx"
	"gvmc/internal/vm"
)

// buildReturnSumFunc builds the AST for:
//
//	func main() -> i32 { return 2 + 3 }
func buildReturnSumFunc(a *ast.Arena) ast.Handle {
	i32 := a.New(ast.Node{Kind: ast.KindTypeDesc, ScalarKind: isa.KindI32})
	lhs := a.New(ast.Node{Kind: ast.KindIntLiteral, IntValue: 2, TypeInfo: i32})
	rhs := a.New(ast.Node{Kind: ast.KindIntLiteral, IntValue: 3, TypeInfo: i32})
	sum := a.New(ast.Node{Kind: ast.KindBinOp, Op: "+", Children: []ast.Handle{lhs, rhs}, TypeInfo: i32})
	ret := a.New(ast.Node{Kind: ast.KindReturn, Children: []ast.Handle{sum}})
	block := a.New(ast.Node{Kind: ast.KindBlock, Children: []ast.Handle{ret}})
	return a.New(ast.Node{Kind: ast.KindFuncDecl, Name: "main", Children: []ast.Handle{block}, TypeInfo: i32})
}

func TestEmitProgramReturnExpression(t *testing.T) {
	a := ast.NewArena()
	fn := buildReturnSumFunc(a)

	ctx := runctx.New()
	prog, entry, err := emit.EmitProgram(ctx, a, []ast.Handle{fn})
	require.NoError(t, err)
	require.Equal(t, uint32(0), entry)

	m := vm.New(prog, ffi.NopABI{})
	reason, err := m.CallEntry(entry)
	require.NoError(t, err)
	require.Equal(t, vm.StopExited, reason)
	require.Equal(t, int32(5), isa.Int32(m.Mem[0:4]))
}

// buildIfElseFunc builds:
//
//	func main() -> i32 {
//	    if (1) { return 7 } else { return 9 }
//	}
func buildIfElseFunc(a *ast.Arena) ast.Handle {
	i32 := a.New(ast.Node{Kind: ast.KindTypeDesc, ScalarKind: isa.KindI32})
	cond := a.New(ast.Node{Kind: ast.KindIntLiteral, IntValue: 1, TypeInfo: i32})
	thenVal := a.New(ast.Node{Kind: ast.KindIntLiteral, IntValue: 7, TypeInfo: i32})
	thenRet := a.New(ast.Node{Kind: ast.KindReturn, Children: []ast.Handle{thenVal}})
	thenBlock := a.New(ast.Node{Kind: ast.KindBlock, Children: []ast.Handle{thenRet}})
	elseVal := a.New(ast.Node{Kind: ast.KindIntLiteral, IntValue: 9, TypeInfo: i32})
	elseRet := a.New(ast.Node{Kind: ast.KindReturn, Children: []ast.Handle{elseVal}})
	elseBlock := a.New(ast.Node{Kind: ast.KindBlock, Children: []ast.Handle{elseRet}})
	ifNode := a.New(ast.Node{Kind: ast.KindIf, Children: []ast.Handle{cond, thenBlock, elseBlock}})
	body := a.New(ast.Node{Kind: ast.KindBlock, Children: []ast.Handle{ifNode}})
	return a.New(ast.Node{Kind: ast.KindFuncDecl, Name: "main", Children: []ast.Handle{body}, TypeInfo: i32})
}

func TestEmitProgramIfElseFixups(t *testing.T) {
	a := ast.NewArena()
	fn := buildIfElseFunc(a)

	ctx := runctx.New()
	prog, entry, err := emit.EmitProgram(ctx, a, []ast.Handle{fn})
	require.NoError(t, err)

	m := vm.New(prog, ffi.NopABI{})
	_, err = m.CallEntry(entry)
	require.NoError(t, err)
	require.Equal(t, int32(7), isa.Int32(m.Mem[0:4]))
}

func TestEmitProgramRequiresEntryPoint(t *testing.T) {
	a := ast.NewArena()
	ctx := runctx.New()
	_, _, err := emit.EmitProgram(ctx, a, nil)
	require.Error(t, err)
}

// buildForeignCallFunc builds:
//
//	func main() -> i32 {
//	    foreignAdd(2, 3)
//	    return 0
//	}
func buildForeignCallFunc(a *ast.Arena) ast.Handle {
	i32 := a.New(ast.Node{Kind: ast.KindTypeDesc, ScalarKind: isa.KindI32})
	arg0 := a.New(ast.Node{Kind: ast.KindIntLiteral, IntValue: 2, TypeInfo: i32})
	arg1 := a.New(ast.Node{Kind: ast.KindIntLiteral, IntValue: 3, TypeInfo: i32})
	call := a.New(ast.Node{Kind: ast.KindForeignCall, Name: "foreignAdd", Children: []ast.Handle{arg0, arg1}, TypeInfo: i32})
	zero := a.New(ast.Node{Kind: ast.KindIntLiteral, IntValue: 0, TypeInfo: i32})
	ret := a.New(ast.Node{Kind: ast.KindReturn, Children: []ast.Handle{zero}})
	block := a.New(ast.Node{Kind: ast.KindBlock, Children: []ast.Handle{call, ret}})
	return a.New(ast.Node{Kind: ast.KindFuncDecl, Name: "main", Children: []ast.Handle{block}, TypeInfo: i32})
}

// TestEmitProgramForeignCallParamKinds covers spec.md §8 scenario 4: a
// call to a host symbol taking two i32 arguments must carry both
// argument kinds on the ExternalCall descriptor the FFI bridge reads,
// not an empty slice that silently drops every argument.
func TestEmitProgramForeignCallParamKinds(t *testing.T) {
	a := ast.NewArena()
	fn := buildForeignCallFunc(a)

	ctx := runctx.New()
	prog, entry, err := emit.EmitProgram(ctx, a, []ast.Handle{fn})
	require.NoError(t, err)
	require.Equal(t, 1, prog.Externals.Len())

	call, ok := prog.Externals.Get(0)
	require.True(t, ok)
	require.Equal(t, "foreignAdd", call.Name)
	require.Equal(t, []isa.Kind{isa.KindI32, isa.KindI32}, call.ParamKinds)
	require.Equal(t, isa.KindI32, call.ReturnKind)

	// With no ABI bound the call must fail at the FFI boundary, not
	// silently succeed with zero arguments.
	m := vm.New(prog, ffi.NopABI{})
	_, err = m.CallEntry(entry)
	require.Error(t, err)
	require.Contains(t, err.Error(), "foreignAdd")
}

// TestEmitProgramSourceMapStatements covers spec.md §4.3's "source-map
// push per statement": emitting a function with several statements
// must leave a monotone, non-overlapping source map behind, one entry
// per simple statement.
func TestEmitProgramSourceMapStatements(t *testing.T) {
	a := ast.NewArena()
	fn := buildIfElseFunc(a)

	ctx := runctx.New()
	_, _, err := emit.EmitProgram(ctx, a, []ast.Handle{fn})
	require.NoError(t, err)

	require.True(t, ctx.Source.Monotone())
	// One statement per `return` (then-branch and else-branch), the
	// enclosing `if` itself pushes nothing to avoid overlapping them.
	require.Len(t, ctx.Source.Statements, 2)
	for _, s := range ctx.Source.Statements {
		require.Less(t, s.StartInstr, s.EndInstr)
	}
}
