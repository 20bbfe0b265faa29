// Package lowering rewrites default-valued parameters into the
// presence-mask stub convention.
//
// A declaration `fun f(a: Int, b: Int = a + 1)` becomes two callables:
// the original, stripped of default expressions, and a synthesized
// stub `f$default(a, b, $mask0)` whose body evaluates each omitted
// parameter's default left to right and dispatches to the original.
// Call sites that omit arguments are retargeted at the stub with
// zero/null placeholders in the omitted slots and the omission record
// folded into the mask constants. Call sites that supply every
// argument keep calling the original directly.
//
// Overrides share the convention: a declaration that overrides a
// defaulted one gets a header-only stub overriding the ancestor's, so
// virtual dispatch keeps working through stubs, while argument-omitting
// calls are rewritten against the declaration that owns the defaults.
//
// The pass works container by container (each class, then the file
// level) and mutates the module arena in place. One module is lowered
// by one goroutine; independent modules may run concurrently.
package lowering

import (
	"github.com/funvibe/funir/internal/config"
	"github.com/funvibe/funir/internal/ir"
	"github.com/funvibe/funir/internal/symbols"
)

// Context carries the state of one lowering run: the module under
// rewrite, the relationship queries, the options and the stub cache.
type Context struct {
	module  *ir.Module
	symbols *symbols.Service
	opts    *config.Options
	stubs   *StubCache

	// walking guards the stub-ancestor recursion against override
	// cycles in unchecked input.
	walking map[ir.FuncID]bool
}

func NewContext(m *ir.Module, opts *config.Options) *Context {
	if opts == nil {
		d := config.DefaultOptions()
		opts = &d
	}
	return &Context{
		module:  m,
		symbols: symbols.NewService(m),
		opts:    opts,
		stubs:   NewStubCache(),
		walking: make(map[ir.FuncID]bool),
	}
}

// Stubs exposes the stub cache, mainly for synthesis counts.
func (c *Context) Stubs() *StubCache { return c.stubs }

// foldReceivers reports whether stubs for f take their receivers as
// leading value parameters. Constructors never fold: their dispatch
// slot carries the outer instance of an inner class and must stay a
// receiver, passed through unshifted.
func (c *Context) foldReceivers(f *ir.Function) bool {
	return c.opts.StaticStubs && f.Kind == ir.KindFunction
}

// maskWords is the number of mask parameters covering n value
// parameters.
func maskWords(n int) int {
	return (n + config.MaskWidth - 1) / config.MaskWidth
}
