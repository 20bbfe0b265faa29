package lowering

import (
	"github.com/funvibe/funir/internal/diagnostics"
	"github.com/funvibe/funir/internal/ir"
	"github.com/funvibe/funir/internal/pipeline"
)

// Lower rewrites the whole module: every class container in arena
// order, then the file-level container.
func (c *Context) Lower() *diagnostics.DiagnosticError {
	for i := range c.module.Classes {
		if err := c.lowerContainer(ir.ClassID(i + 1)); err != nil {
			return err
		}
	}
	return c.lowerContainer(ir.InvalidClass)
}

// lowerContainer runs the two phases over one container: stub
// synthesis for every member that takes part in the convention, then
// call-site rewriting over every member body — the fresh stub bodies
// included, because a copied default may itself call something with
// omitted arguments. The first error aborts the container and
// propagates; partial results are not patched up.
func (c *Context) lowerContainer(cls ir.ClassID) *diagnostics.DiagnosticError {
	members := append([]ir.FuncID(nil), c.module.Members(cls)...)
	for _, id := range members {
		if !c.symbols.NeedsStub(id) {
			continue
		}
		if _, err := c.stubFor(id); err != nil {
			return err
		}
	}

	// Fresh snapshot: synthesis above appended the stubs.
	members = append(members[:0], c.module.Members(cls)...)
	for _, id := range members {
		if err := c.rewriteCalls(id); err != nil {
			return err
		}
	}
	return nil
}

// DefaultParameterProcessor is the pipeline stage wrapping the pass.
type DefaultParameterProcessor struct{}

func (dpp *DefaultParameterProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	if ctx.Module == nil {
		return ctx
	}
	lctx := NewContext(ctx.Module, ctx.Options)
	if err := lctx.Lower(); err != nil {
		ctx.Errors = append(ctx.Errors, err)
	}
	return ctx
}
