package lowering

import (
	"github.com/funvibe/funir/internal/config"
	"github.com/funvibe/funir/internal/diagnostics"
	"github.com/funvibe/funir/internal/ir"
	"github.com/funvibe/funir/internal/typesystem"
)

// rewriteCalls retargets every argument-omitting call in fn's body at
// the stub of the callee's key declaration. WalkBlock visits children
// before parents, so by the time a call is rewritten its argument
// expressions — including nested omitting calls — are already done.
func (c *Context) rewriteCalls(fn ir.FuncID) *diagnostics.DiagnosticError {
	body := c.module.Func(fn).Body
	if body == nil {
		return nil
	}
	err := ir.WalkBlock(body, func(e ir.Expr) error {
		call, ok := e.(*ir.Call)
		if !ok {
			return nil
		}
		if derr := c.rewriteCall(call); derr != nil {
			return derr
		}
		return nil
	})
	if err != nil {
		return err.(*diagnostics.DiagnosticError)
	}
	return nil
}

// rewriteCall rewrites one call in place when it omits arguments.
// Calls that supply every argument are left alone — they keep hitting
// the original directly, and a second rewrite pass over an already
// rewritten call sees a full argument list and does nothing.
func (c *Context) rewriteCall(call *ir.Call) *diagnostics.DiagnosticError {
	if !c.module.ValidFunc(call.Callee) {
		return nil // dangling handle, the validator reports it
	}
	callee := c.module.Func(call.Callee)
	arity := len(callee.Params)
	if len(call.Args) > arity {
		return diagnostics.NewError(diagnostics.ErrL004, call.Span, callee.Name, len(call.Args), arity)
	}
	if !omitsArguments(call, arity) {
		return nil
	}
	if !c.symbols.NeedsStub(call.Callee) {
		// Omission against a chain with no defaults anywhere: invalid
		// input, left for the validator to report.
		return nil
	}

	// Rewrites always target the declaration that owns the defaults.
	// Overriding declarations contribute header stubs for virtual
	// dispatch, not rewrite targets.
	key := c.symbols.KeyDeclaration(call.Callee)
	stub, err := c.stubFor(key)
	if err != nil {
		return err
	}
	if !stub.IsValid() {
		return nil
	}
	keyFn := *c.module.Func(key)

	n := len(keyFn.Params)
	words := maskWords(n)
	masks := make([]int64, words)
	newArgs := make([]ir.Expr, 0, n+words+3)

	if c.foldReceivers(&keyFn) {
		if keyFn.DispatchReceiver.IsValid() {
			newArgs = append(newArgs, call.DispatchArg)
			call.DispatchArg = nil
		}
		if keyFn.ExtensionReceiver.IsValid() {
			newArgs = append(newArgs, call.ExtensionArg)
			call.ExtensionArg = nil
		}
	}

	for i, pid := range keyFn.Params {
		var arg ir.Expr
		if i < len(call.Args) {
			arg = call.Args[i]
		}
		if arg != nil {
			newArgs = append(newArgs, arg)
			continue
		}
		masks[i/config.MaskWidth] |= int64(1) << uint(i%config.MaskWidth)
		p := c.module.Value(pid)
		if p.IsVararg {
			// No placeholder: the mask bit alone carries the absence,
			// and the stub reads the slot only when the bit is clear.
			newArgs = append(newArgs, nil)
			continue
		}
		newArgs = append(newArgs, ir.ZeroValue(p.Type))
	}

	for _, w := range masks {
		newArgs = append(newArgs, ir.Int(w))
	}
	switch {
	case keyFn.Kind == ir.KindConstructor:
		newArgs = append(newArgs, ir.Null(typesystem.TCon{Name: config.MarkerTypeName}))
	case c.opts.HandlerDispatch:
		newArgs = append(newArgs, ir.Null(typesystem.TCon{Name: config.HandlerTypeName}))
	}

	call.Callee = stub
	call.Args = newArgs
	return nil
}

// omitsArguments reports whether the call leaves any parameter slot
// unfilled, either by a nil hole or by a short argument list.
func omitsArguments(call *ir.Call, arity int) bool {
	if len(call.Args) < arity {
		return true
	}
	for _, a := range call.Args {
		if a == nil {
			return true
		}
	}
	return false
}
