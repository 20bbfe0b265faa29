package lowering

import (
	"fmt"

	"github.com/funvibe/funir/internal/config"
	"github.com/funvibe/funir/internal/diagnostics"
	"github.com/funvibe/funir/internal/ir"
	"github.com/funvibe/funir/internal/typesystem"
)

// buildStubBody fills in the stub's body. For each defaulted parameter
// a fresh local is bound to
//
//	if (mask & bit) != 0 { <default> } else { <stub param> }
//
// in declaration order, so a default referring to an earlier parameter
// sees the resolved local, not the raw stub slot. Parameters without
// defaults alias their stub slot directly. The body ends with the
// dispatch back to the original: a delegating call for constructors, a
// returned call for functions, optionally routed through the handler
// argument when the declaration is marked for handler dispatch.
//
// Default expressions are deep-copied, never moved: the caller poisons
// the originals right after, and an aliased node would take the poison
// with it.
func (c *Context) buildStubBody(original, stub ir.FuncID) *diagnostics.DiagnosticError {
	m := c.module
	orig := *m.Func(original)
	st := *m.Func(stub)

	remap := make(map[ir.ValueID]ir.ValueID)
	shift := 0
	if c.foldReceivers(&orig) {
		for _, rid := range []ir.ValueID{orig.DispatchReceiver, orig.ExtensionReceiver} {
			if !rid.IsValid() {
				continue
			}
			remap[rid] = st.Params[shift]
			shift++
		}
	} else {
		if orig.DispatchReceiver.IsValid() {
			remap[orig.DispatchReceiver] = st.DispatchReceiver
		}
		if orig.ExtensionReceiver.IsValid() {
			remap[orig.ExtensionReceiver] = st.ExtensionReceiver
		}
	}

	n := len(orig.Params)
	body := &ir.Block{}

	for i, pid := range orig.Params {
		p := *m.Value(pid)
		stubParam := st.Params[shift+i]
		if p.Default == nil {
			remap[pid] = stubParam
			continue
		}
		if _, stripped := p.Default.(*ir.ErrorExpr); stripped {
			// The default was already moved into a stub: this module
			// went through lowering once and must not go through again.
			return diagnostics.NewError(diagnostics.ErrL003, p.Span, p.Name)
		}

		maskParam := st.Params[shift+n+i/config.MaskWidth]
		dflt := ir.CopyExpr(p.Default, remap)
		local := m.NewValue(ir.Value{
			Kind:  ir.ValueLocal,
			Name:  p.Name,
			Span:  p.Span,
			Type:  p.Type,
			Index: -1,
		})
		body.Stmts = append(body.Stmts, &ir.VarDecl{
			Value: local,
			Init: &ir.If{
				Cond: ir.MaskBitSet(maskParam, i%config.MaskWidth),
				Then: dflt,
				Else: ir.Read(stubParam),
			},
		})
		remap[pid] = local
	}

	body.Stmts = append(body.Stmts, c.buildDispatch(&orig, original, &st, remap))
	m.Func(stub).Body = body
	return nil
}

// buildDispatch builds the trailing statement of a stub body.
func (c *Context) buildDispatch(orig *ir.Function, original ir.FuncID, st *ir.Function, remap map[ir.ValueID]ir.ValueID) ir.Stmt {
	call := &ir.Call{Kind: ir.CallFunction, Callee: original}
	if orig.DispatchReceiver.IsValid() {
		call.DispatchArg = ir.Read(remap[orig.DispatchReceiver])
	}
	if orig.ExtensionReceiver.IsValid() {
		call.ExtensionArg = ir.Read(remap[orig.ExtensionReceiver])
	}
	for _, tp := range orig.TypeParams {
		call.TypeArgs = append(call.TypeArgs, typesystem.TVar{Name: tp.Name})
	}
	for _, pid := range orig.Params {
		call.Args = append(call.Args, ir.Read(remap[pid]))
	}

	if orig.Kind == ir.KindConstructor {
		call.Kind = ir.CallDelegating
		return &ir.ExprStmt{X: call}
	}
	if !orig.HandlerDispatch || !c.opts.HandlerDispatch {
		return &ir.Return{Value: call}
	}

	// Marked declaration under the handler convention: consult the
	// trailing handler argument, fall back to the direct call. The two
	// branches must not share nodes, later rewrites mutate in place.
	handler := st.Params[len(st.Params)-1]
	direct := ir.CopyExpr(call, nil).(*ir.Call)
	call.Handler = ir.Read(handler)
	return &ir.Return{Value: &ir.If{
		Cond: ir.Ne(ir.Read(handler), ir.Null(typesystem.TCon{Name: config.HandlerTypeName})),
		Then: call,
		Else: direct,
	}}
}

// stripDefaults poisons the original's default expressions. The stub
// owns the only live copy from here on; anything that still evaluates
// the original slot is a bug and trips over the marker.
func (c *Context) stripDefaults(original ir.FuncID) {
	m := c.module
	name := m.Func(original).Name
	for _, pid := range m.Func(original).Params {
		p := m.Value(pid)
		if p.Default == nil {
			continue
		}
		p.Default = &ir.ErrorExpr{
			Span:        p.Span,
			Description: fmt.Sprintf("default value of '%s' was moved into '%s%s'", p.Name, name, config.StubSuffix),
		}
	}
}
