// Package lower is the embedding API of funir: bundle in, lowered
// bundle out. Tools that already hold an IR module in memory can run
// the pipeline directly on it instead.
package lower

import (
	"github.com/funvibe/funir/internal/bundle"
	"github.com/funvibe/funir/internal/config"
	"github.com/funvibe/funir/internal/diagnostics"
	"github.com/funvibe/funir/internal/ir"
	"github.com/funvibe/funir/internal/lowering"
	"github.com/funvibe/funir/internal/pipeline"
	"github.com/funvibe/funir/internal/validate"
)

// Module lowers m in place and returns every diagnostic the pipeline
// produced. A nil opts means the defaults.
func Module(m *ir.Module, opts *config.Options) []error {
	if opts == nil {
		d := config.DefaultOptions()
		opts = &d
	}
	ctx := pipeline.NewPipelineContext(m, opts)
	pipeline.New(
		&lowering.DefaultParameterProcessor{},
		&validate.ValidationProcessor{},
	).Run(ctx)
	return toErrors(ctx.Errors)
}

// Bundle lowers a serialized module bundle end to end: deserialize,
// lower, validate, reserialize. Bundles that are already lowered are
// returned verbatim. On diagnostics the bytes are nil and every
// finding is returned.
func Bundle(data []byte, opts *config.Options) ([]byte, []error) {
	in, derr := bundle.Deserialize(data)
	if derr != nil {
		return nil, []error{derr}
	}
	if in.Lowered {
		return data, nil
	}

	if errs := Module(in.Module, opts); len(errs) > 0 {
		return nil, errs
	}

	out := &bundle.Bundle{Lowered: true, Module: in.Module}
	raw, err := out.Serialize()
	if err != nil {
		return nil, []error{err}
	}
	return raw, nil
}

// Descriptor builds the calling-convention descriptor for a lowered
// bundle.
func Descriptor(data []byte) ([]byte, error) {
	b, derr := bundle.Deserialize(data)
	if derr != nil {
		return nil, derr
	}
	return bundle.EncodeDescriptor(b.Module)
}

func toErrors(in []*diagnostics.DiagnosticError) []error {
	if len(in) == 0 {
		return nil
	}
	out := make([]error, len(in))
	for i, e := range in {
		out[i] = e
	}
	return out
}
