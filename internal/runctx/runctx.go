// Package runctx carries the compilation-context value that replaces
// the mutable package-level globals the teacher and the original
// implementation both lean on (the teacher's init()-populated
// strToInstrMap/instrToStrMap are fine as globals since they are
// read-only after init; the original implementation's atom tables,
// node-id counters, and imported-module list are not, and threading a
// context value through instead is the design note's fix for that).
package runctx

import (
	"gvmc/internal/ast"
	"gvmc/internal/isa"
)

// A *Context is passed to every emitter entry point instead of being
// read off a package global, so that two independent compiles, each
// given its own Context, never share mutable state.
type Context struct {
	Arena     *ast.Arena
	Funcs     *isa.FuncTable
	Externals *isa.ExternalFuncTable
	Source    *isa.SourceMap

	// nextFuncID hands out function-table ids in declaration order,
	// the context-owned replacement for a package-level counter.
	nextFuncID uint32
}

func New() *Context {
	return &Context{
		Arena:     ast.NewArena(),
		Funcs:     isa.NewFuncTable(),
		Externals: &isa.ExternalFuncTable{},
		Source:    &isa.SourceMap{},
	}
}

// NextFuncID allocates the next function-table id.
func (c *Context) NextFuncID() uint32 {
	id := c.nextFuncID
	c.nextFuncID++
	return id
}
