package lowering

import (
	"fmt"

	"github.com/funvibe/funir/internal/config"
	"github.com/funvibe/funir/internal/diagnostics"
	"github.com/funvibe/funir/internal/ir"
	"github.com/funvibe/funir/internal/typesystem"
)

// synthesizeStub builds the stub declaration for original and
// registers it in the original's container. The parameter list is:
//
//	[folded receivers] [value params, defaults dropped] [masks] [tail]
//
// where the tail is the constructor marker for constructors or, when
// the convention is configured, the dispatch handler for functions.
// Mask parameters are Int; bit i%MaskWidth of mask i/MaskWidth covers
// value parameter i, counted over the original's own parameters — the
// folded receivers sit in front and are never mask-covered.
//
// The stub body is built separately; header stubs for inherited
// conventions never get one.
func (c *Context) synthesizeStub(original ir.FuncID) (ir.FuncID, *diagnostics.DiagnosticError) {
	m := c.module
	orig := *m.Func(original) // appends below may move the arena

	switch orig.Kind {
	case ir.KindFunction, ir.KindConstructor:
	default:
		return ir.InvalidFunc, diagnostics.NewError(diagnostics.ErrL001, orig.Span, orig.Kind)
	}

	stub := ir.Function{
		Kind:            orig.Kind,
		Name:            orig.Name + config.StubSuffix,
		Span:            orig.Span,
		Origin:          ir.OriginDefaultStub,
		Class:           orig.Class,
		TypeParams:      ir.CopyTypeParams(orig.TypeParams),
		ReturnType:      orig.ReturnType,
		IsOpen:          orig.IsOpen,
		IsInline:        orig.IsInline,
		IsExternal:      orig.IsExternal,
		IsSuspend:       orig.IsSuspend,
		HandlerDispatch: orig.HandlerDispatch,
		StubOf:          original,
		Annotations:     ir.CopyAnnotations(orig.Annotations),
	}

	n := len(orig.Params)
	params := make([]ir.ValueID, 0, n+maskWords(n)+3)
	index := 0

	if c.foldReceivers(&orig) {
		for _, rid := range []ir.ValueID{orig.DispatchReceiver, orig.ExtensionReceiver} {
			if !rid.IsValid() {
				continue
			}
			r := *m.Value(rid)
			params = append(params, m.NewValue(ir.Value{
				Kind:  ir.ValueParam,
				Name:  r.Name,
				Span:  r.Span,
				Type:  r.Type,
				Index: index,
			}))
			index++
		}
	} else {
		if orig.DispatchReceiver.IsValid() {
			r := *m.Value(orig.DispatchReceiver)
			stub.DispatchReceiver = m.NewValue(r)
		}
		if orig.ExtensionReceiver.IsValid() {
			r := *m.Value(orig.ExtensionReceiver)
			stub.ExtensionReceiver = m.NewValue(r)
		}
	}

	for _, pid := range orig.Params {
		p := *m.Value(pid)
		p.Default = nil
		p.Index = index
		params = append(params, m.NewValue(p))
		index++
	}

	for w := 0; w < maskWords(n); w++ {
		params = append(params, m.NewValue(ir.Value{
			Kind:  ir.ValueParam,
			Name:  fmt.Sprintf("%s%d", config.MaskParamPrefix, w),
			Type:  typesystem.IntType,
			Index: index,
		}))
		index++
	}

	switch {
	case orig.Kind == ir.KindConstructor:
		params = append(params, m.NewValue(ir.Value{
			Kind:  ir.ValueParam,
			Name:  config.MarkerParamName,
			Type:  typesystem.TCon{Name: config.MarkerTypeName},
			Index: index,
		}))
	case c.opts.HandlerDispatch:
		params = append(params, m.NewValue(ir.Value{
			Kind:  ir.ValueParam,
			Name:  config.HandlerParamName,
			Type:  typesystem.TCon{Name: config.HandlerTypeName},
			Index: index,
		}))
	}

	stub.Params = params
	id := m.NewFunc(stub)
	m.AppendOrReplaceMember(stub.Class, id)
	return id, nil
}
