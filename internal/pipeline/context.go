package pipeline

import (
	"github.com/funvibe/funir/internal/config"
	"github.com/funvibe/funir/internal/diagnostics"
	"github.com/funvibe/funir/internal/ir"
)

// Processor is one pipeline stage. A processor mutates the context in
// place and returns it; diagnostics go into ctx.Errors rather than
// aborting the run.
type Processor interface {
	Process(ctx *PipelineContext) *PipelineContext
}

// PipelineContext carries a module through the stages.
type PipelineContext struct {
	Module  *ir.Module
	Options *config.Options

	Errors []*diagnostics.DiagnosticError
}

func NewPipelineContext(m *ir.Module, opts *config.Options) *PipelineContext {
	return &PipelineContext{
		Module:  m,
		Options: opts,
		Errors:  []*diagnostics.DiagnosticError{},
	}
}
