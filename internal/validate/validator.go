// Package validate checks the invariants of a module's IR. Two gates
// share the machinery: Handles is the structural check bundles apply
// on load (every handle resolves), Validate is the full post-lowering
// check (no live defaults, no absent arguments outside the vararg
// convention, no poison markers in reachable bodies, no unbound type
// variables).
//
// Validation never stops at the first finding. Violations are
// collected, deduplicated and reported in source order, the way the
// frontend reports its own diagnostics.
package validate

import (
	"fmt"
	"sort"

	"github.com/funvibe/funir/internal/diagnostics"
	"github.com/funvibe/funir/internal/ir"
	"github.com/funvibe/funir/internal/pipeline"
)

// Validator walks one module and accumulates violations.
type Validator struct {
	module   *ir.Module
	errorSet map[string]*diagnostics.DiagnosticError
}

func NewValidator(m *ir.Module) *Validator {
	return &Validator{
		module:   m,
		errorSet: make(map[string]*diagnostics.DiagnosticError),
	}
}

// Validate runs every check and returns the findings sorted by
// position, then code. The module is not modified.
func (v *Validator) Validate() []*diagnostics.DiagnosticError {
	for i := range v.module.Classes {
		v.checkClass(ir.ClassID(i + 1))
	}
	for i := range v.module.Funcs {
		id := ir.FuncID(i + 1)
		resolved := v.checkHandles(id)
		v.checkConvention(id, resolved)
	}
	return v.errors()
}

// Handles runs only the handle checks: the integrity gate applied to
// freshly deserialized bundles, which are allowed to still carry live
// defaults and argument omissions.
func (v *Validator) Handles() []*diagnostics.DiagnosticError {
	for i := range v.module.Classes {
		v.checkClass(ir.ClassID(i + 1))
	}
	for i := range v.module.Funcs {
		v.checkHandles(ir.FuncID(i + 1))
	}
	return v.errors()
}

// report deduplicates by position, code and message. Synthesized nodes
// share the zero span, so the message has to take part in the key.
func (v *Validator) report(err *diagnostics.DiagnosticError) {
	key := fmt.Sprintf("%s:%d:%d:%s:%s", err.Span.File, err.Span.Line, err.Span.Column, err.Code, err.Message)
	v.errorSet[key] = err
}

func (v *Validator) errors() []*diagnostics.DiagnosticError {
	result := make([]*diagnostics.DiagnosticError, 0, len(v.errorSet))
	for _, err := range v.errorSet {
		result = append(result, err)
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.Span.File != b.Span.File {
			return a.Span.File < b.Span.File
		}
		if a.Span.Line != b.Span.Line {
			return a.Span.Line < b.Span.Line
		}
		if a.Span.Column != b.Span.Column {
			return a.Span.Column < b.Span.Column
		}
		if a.Code != b.Code {
			return a.Code < b.Code
		}
		return a.Message < b.Message
	})
	return result
}

func (v *Validator) checkClass(id ir.ClassID) {
	cls := v.module.Class(id)
	if cls.Outer.IsValid() && !v.module.ValidClass(cls.Outer) {
		v.report(diagnostics.NewError(diagnostics.ErrV002, cls.Span, "class", cls.Outer))
	}
	for _, sup := range cls.Supers {
		if !v.module.ValidClass(sup) {
			v.report(diagnostics.NewError(diagnostics.ErrV002, cls.Span, "class", sup))
		}
	}
	for _, mem := range cls.Members {
		if !v.module.ValidFunc(mem) {
			v.report(diagnostics.NewError(diagnostics.ErrV002, cls.Span, "function", mem))
		}
	}
}

// checkHandles reports every dangling handle reachable from the
// declaration and reports whether all parameters resolved (the
// precondition for forming the signature).
func (v *Validator) checkHandles(id ir.FuncID) bool {
	m := v.module
	fn := m.Func(id)

	if fn.Class.IsValid() && !m.ValidClass(fn.Class) {
		v.report(diagnostics.NewError(diagnostics.ErrV002, fn.Span, "class", fn.Class))
	}
	if fn.Origin == ir.OriginDefaultStub && !m.ValidFunc(fn.StubOf) {
		v.report(diagnostics.NewError(diagnostics.ErrV002, fn.Span, "function", fn.StubOf))
	}
	for _, ov := range fn.Overrides {
		if !m.ValidFunc(ov) {
			v.report(diagnostics.NewError(diagnostics.ErrV002, fn.Span, "function", ov))
		}
	}
	for _, rid := range []ir.ValueID{fn.DispatchReceiver, fn.ExtensionReceiver} {
		if rid.IsValid() && !m.ValidValue(rid) {
			v.report(diagnostics.NewError(diagnostics.ErrV002, fn.Span, "value", rid))
		}
	}

	resolved := true
	for _, pid := range fn.Params {
		if !m.ValidValue(pid) {
			v.report(diagnostics.NewError(diagnostics.ErrV002, fn.Span, "value", pid))
			resolved = false
			continue
		}
		if m.Value(pid).Type == nil {
			resolved = false
		}
	}

	if fn.Body == nil {
		return resolved
	}
	for _, stmt := range fn.Body.Stmts {
		if decl, ok := stmt.(*ir.VarDecl); ok && !m.ValidValue(decl.Value) {
			v.report(diagnostics.NewError(diagnostics.ErrV002, decl.Span, "value", decl.Value))
		}
	}
	_ = ir.WalkBlock(fn.Body, func(e ir.Expr) error {
		switch n := e.(type) {
		case *ir.GetValue:
			if !m.ValidValue(n.Value) {
				v.report(diagnostics.NewError(diagnostics.ErrV002, n.Span, "value", n.Value))
			}
		case *ir.Call:
			if !m.ValidFunc(n.Callee) {
				v.report(diagnostics.NewError(diagnostics.ErrV002, n.Span, "function", n.Callee))
			}
		}
		return nil
	})
	return resolved
}

// checkConvention reports everything that must not survive lowering.
func (v *Validator) checkConvention(id ir.FuncID, paramsResolve bool) {
	m := v.module
	fn := m.Func(id)
	isStub := fn.Origin == ir.OriginDefaultStub

	for _, pid := range fn.Params {
		if !m.ValidValue(pid) {
			continue
		}
		p := m.Value(pid)
		if p.Default == nil {
			continue
		}
		// Originals keep poison markers where defaults used to be;
		// anything else is a default that survived lowering. Stubs
		// must not carry defaults of any kind.
		if _, poisoned := p.Default.(*ir.ErrorExpr); poisoned && !isStub {
			continue
		}
		v.report(diagnostics.NewError(diagnostics.ErrV004, p.Span, p.Name, fn.Name))
	}

	// The signature can only be formed once every parameter resolves.
	if paramsResolve {
		v.checkTypeVariables(id, fn)
	}

	if fn.Body == nil {
		return
	}
	_ = ir.WalkBlock(fn.Body, func(e ir.Expr) error {
		switch n := e.(type) {
		case *ir.ErrorExpr:
			// A poison marker in a reachable body would be evaluated
			// at runtime. The marker's own description says which
			// default it used to be.
			v.report(&diagnostics.DiagnosticError{
				Code:    diagnostics.ErrL003,
				Span:    n.Span,
				Message: n.Description,
			})
		case *ir.Call:
			v.checkCall(n)
		}
		return nil
	})
}

// checkTypeVariables flags signature type variables not bound by the
// declaration's own type parameters or its class's.
func (v *Validator) checkTypeVariables(id ir.FuncID, fn *ir.Function) {
	bound := make(map[string]bool, len(fn.TypeParams))
	for _, tp := range fn.TypeParams {
		bound[tp.Name] = true
	}
	if fn.Class.IsValid() && v.module.ValidClass(fn.Class) {
		for _, tp := range v.module.Class(fn.Class).TypeParams {
			bound[tp.Name] = true
		}
	}

	seen := make(map[string]bool)
	for _, tv := range v.module.SignatureType(id).FreeTypeVariables() {
		if bound[tv.Name] || seen[tv.Name] {
			continue
		}
		seen[tv.Name] = true
		v.report(diagnostics.NewError(diagnostics.ErrV003, fn.Span, tv.Name, fn.Name))
	}
}

func (v *Validator) checkCall(call *ir.Call) {
	m := v.module
	if !m.ValidFunc(call.Callee) {
		return // the handle pass already reported it
	}
	callee := m.Func(call.Callee)

	if call.Handler != nil && !callee.HandlerDispatch {
		v.report(diagnostics.NewError(diagnostics.ErrL002, call.Span, callee.Name))
	}
	if len(call.Args) > len(callee.Params) {
		v.report(diagnostics.NewError(diagnostics.ErrL004, call.Span, callee.Name, len(call.Args), len(callee.Params)))
	}

	calleeIsStub := callee.Origin == ir.OriginDefaultStub
	for i, a := range call.Args {
		if a != nil {
			continue
		}
		// The one legal absence: an omitted vararg slot of a stub
		// call, carried by the mask bit alone.
		if calleeIsStub && i < len(callee.Params) && m.ValidValue(callee.Params[i]) && m.Value(callee.Params[i]).IsVararg {
			continue
		}
		v.report(diagnostics.NewError(diagnostics.ErrV001, call.Span, callee.Name, i))
	}
	// A short argument list is the same violation as a hole. Lowering
	// rewrites every omission backed by a default; whatever is left
	// short here had nothing to absorb it.
	for i := len(call.Args); i < len(callee.Params); i++ {
		if calleeIsStub && m.ValidValue(callee.Params[i]) && m.Value(callee.Params[i]).IsVararg {
			continue
		}
		v.report(diagnostics.NewError(diagnostics.ErrV001, call.Span, callee.Name, i))
	}
}

// ValidationProcessor is the pipeline stage wrapping the validator.
type ValidationProcessor struct{}

func (vp *ValidationProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	if ctx.Module == nil {
		return ctx
	}
	ctx.Errors = append(ctx.Errors, NewValidator(ctx.Module).Validate()...)
	return ctx
}
