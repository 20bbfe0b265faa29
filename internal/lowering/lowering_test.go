package lowering

import (
	"testing"

	"github.com/funvibe/funir/internal/config"
	"github.com/funvibe/funir/internal/diagnostics"
	"github.com/funvibe/funir/internal/ir"
	"github.com/funvibe/funir/internal/typesystem"
)

func intParam(m *ir.Module, name string, idx int, dflt ir.Expr) ir.ValueID {
	return m.NewValue(ir.Value{Kind: ir.ValueParam, Name: name, Type: typesystem.IntType, Index: idx, Default: dflt})
}

func param(m *ir.Module, name string, t typesystem.Type, idx int, dflt ir.Expr) ir.ValueID {
	return m.NewValue(ir.Value{Kind: ir.ValueParam, Name: name, Type: t, Index: idx, Default: dflt})
}

func receiver(m *ir.Module, name string, t typesystem.Type) ir.ValueID {
	return m.NewValue(ir.Value{Kind: ir.ValueReceiver, Name: name, Type: t, Index: -1})
}

func topLevel(m *ir.Module, f ir.Function) ir.FuncID {
	id := m.NewFunc(f)
	m.TopLevel = append(m.TopLevel, id)
	return id
}

func member(m *ir.Module, cls ir.ClassID, f ir.Function) ir.FuncID {
	f.Class = cls
	id := m.NewFunc(f)
	c := m.Class(cls)
	c.Members = append(c.Members, id)
	return id
}

func lowerAll(t *testing.T, m *ir.Module, opts *config.Options) *Context {
	t.Helper()
	ctx := NewContext(m, opts)
	if err := ctx.Lower(); err != nil {
		t.Fatalf("unexpected lowering error: %v", err)
	}
	return ctx
}

func mustStub(t *testing.T, m *ir.Module, cls ir.ClassID, name string, kind ir.FuncKind) ir.FuncID {
	t.Helper()
	id := m.MemberByName(cls, name+config.StubSuffix, kind)
	if !id.IsValid() {
		t.Fatalf("no stub for %s in container %d", name, cls)
	}
	return id
}

// returnedCall digs the call out of a body's trailing return.
func returnedCall(t *testing.T, m *ir.Module, fn ir.FuncID) *ir.Call {
	t.Helper()
	body := m.Func(fn).Body
	if body == nil || len(body.Stmts) == 0 {
		t.Fatalf("function %s has no body", m.Func(fn).Name)
	}
	last := body.Stmts[len(body.Stmts)-1]
	ret, ok := last.(*ir.Return)
	if !ok {
		t.Fatalf("last statement is not Return. got=%T (%+v)", last, last)
	}
	call, ok := ret.Value.(*ir.Call)
	if !ok {
		t.Fatalf("returned value is not Call. got=%T (%+v)", ret.Value, ret.Value)
	}
	return call
}

// buildAllDefaults declares `fun g(x: Int = 2, y: Int = x * 3) -> Int
// { return x + y }` — every parameter defaulted, the second default
// reading the first parameter.
func buildAllDefaults(m *ir.Module) ir.FuncID {
	x := intParam(m, "x", 0, ir.Int(2))
	y := intParam(m, "y", 1, &ir.Binary{Op: ir.OpMul, Left: ir.Read(x), Right: ir.Int(3)})
	return topLevel(m, ir.Function{
		Kind:       ir.KindFunction,
		Name:       "g",
		Params:     []ir.ValueID{x, y},
		ReturnType: typesystem.IntType,
		Body: &ir.Block{Stmts: []ir.Stmt{
			&ir.Return{Value: &ir.Binary{Op: ir.OpAdd, Left: ir.Read(x), Right: ir.Read(y)}},
		}},
	})
}

// buildScenario declares `fun f(a: Int, b: Int = a + 1, c: Int = b * 2)
// -> Int { return a + b + c }`.
func buildScenario(m *ir.Module) ir.FuncID {
	a := intParam(m, "a", 0, nil)
	b := intParam(m, "b", 1, &ir.Binary{Op: ir.OpAdd, Left: ir.Read(a), Right: ir.Int(1)})
	c := intParam(m, "c", 2, &ir.Binary{Op: ir.OpMul, Left: ir.Read(b), Right: ir.Int(2)})
	return topLevel(m, ir.Function{
		Kind:       ir.KindFunction,
		Name:       "f",
		Params:     []ir.ValueID{a, b, c},
		ReturnType: typesystem.IntType,
		Body: &ir.Block{Stmts: []ir.Stmt{
			&ir.Return{Value: &ir.Binary{
				Op:    ir.OpAdd,
				Left:  &ir.Binary{Op: ir.OpAdd, Left: ir.Read(a), Right: ir.Read(b)},
				Right: ir.Read(c),
			}},
		}},
	})
}

func caller(m *ir.Module, name string, callee ir.FuncID, args ...ir.Expr) ir.FuncID {
	return topLevel(m, ir.Function{
		Kind:       ir.KindFunction,
		Name:       name,
		ReturnType: typesystem.IntType,
		Body: &ir.Block{Stmts: []ir.Stmt{
			&ir.Return{Value: &ir.Call{Kind: ir.CallFunction, Callee: callee, Args: args}},
		}},
	})
}

func TestRoundTripAllDefaultsOmitted(t *testing.T) {
	m := ir.NewModule("roundtrip")
	g := buildAllDefaults(m)
	main := caller(m, "main", g)

	lowerAll(t, m, nil)

	// g() evaluated x=2, y=2*3 before lowering; the rewritten program
	// must compute the same 2+6.
	in := newInterp(t, m)
	testIntObject(t, in.callFn(main, nil, nil), 8)

	call := returnedCall(t, m, main)
	stub := mustStub(t, m, ir.InvalidClass, "g", ir.KindFunction)
	if call.Callee != stub {
		t.Errorf("call targets %d, want stub %d", call.Callee, stub)
	}
	if len(call.Args) != 3 {
		t.Fatalf("rewritten args = %d, want 3 (x, y, mask)", len(call.Args))
	}
	mask, ok := call.Args[2].(*ir.IntConst)
	if !ok {
		t.Fatalf("mask arg is not IntConst. got=%T (%+v)", call.Args[2], call.Args[2])
	}
	if mask.Value != 0b11 {
		t.Errorf("mask = %#b, want 0b11", mask.Value)
	}
}

func TestPartialSupplyKeepsCallerArguments(t *testing.T) {
	m := ir.NewModule("partial")
	g := buildAllDefaults(m)
	main := caller(m, "main", g, ir.Int(5))

	lowerAll(t, m, nil)

	// x=5 supplied, y defaults to x*3 computed from the caller's 5.
	in := newInterp(t, m)
	testIntObject(t, in.callFn(main, nil, nil), 20)

	call := returnedCall(t, m, main)
	if got := call.Args[0].(*ir.IntConst).Value; got != 5 {
		t.Errorf("supplied arg = %d, want 5", got)
	}
	if got := call.Args[2].(*ir.IntConst).Value; got != 0b10 {
		t.Errorf("mask = %#b, want 0b10 (only y omitted)", got)
	}
}

func TestScenarioThreadsEarlierParamsIntoLaterDefaults(t *testing.T) {
	m := ir.NewModule("scenario")
	f := buildScenario(m)
	main := caller(m, "main", f, ir.Int(5))

	lowerAll(t, m, nil)

	call := returnedCall(t, m, main)
	stub := mustStub(t, m, ir.InvalidClass, "f", ir.KindFunction)
	if call.Callee != stub {
		t.Fatalf("call targets %d, want stub %d", call.Callee, stub)
	}
	if len(call.Args) != 4 {
		t.Fatalf("rewritten args = %d, want 4 (a, b, c, mask)", len(call.Args))
	}
	if got := call.Args[3].(*ir.IntConst).Value; got != 0b110 {
		t.Fatalf("mask = %#b, want 0b110", got)
	}

	// Executing the stub with the rewritten arguments resolves b from
	// the caller's a and c from the fresh b, strictly left to right.
	body := m.Func(stub).Body
	declB, ok := body.Stmts[0].(*ir.VarDecl)
	if !ok {
		t.Fatalf("first stub stmt is not VarDecl. got=%T", body.Stmts[0])
	}
	declC, ok := body.Stmts[1].(*ir.VarDecl)
	if !ok {
		t.Fatalf("second stub stmt is not VarDecl. got=%T", body.Stmts[1])
	}

	in := newInterp(t, m)
	result, env := in.callCapture(stub, nil, []object{int64(5), int64(0), int64(0), int64(0b110)})
	testIntObject(t, env[declB.Value], 6)
	testIntObject(t, env[declC.Value], 12)
	testIntObject(t, result, 23)

	// End to end through the rewritten caller.
	testIntObject(t, in.callFn(main, nil, nil), 23)
}

func TestLoweringIsIdempotentWithinAContext(t *testing.T) {
	m := ir.NewModule("idempotent")
	f := buildScenario(m)
	full := caller(m, "full", f, ir.Int(1), ir.Int(2), ir.Int(3))
	omitting := caller(m, "omitting", f, ir.Int(1))

	ctx := lowerAll(t, m, nil)
	funcs := len(m.Funcs)
	stubs := ctx.Stubs().Len()
	target := returnedCall(t, m, omitting).Callee

	if err := ctx.Lower(); err != nil {
		t.Fatalf("second lowering errored: %v", err)
	}
	if len(m.Funcs) != funcs {
		t.Errorf("second lowering grew the arena: %d -> %d", funcs, len(m.Funcs))
	}
	if ctx.Stubs().Len() != stubs {
		t.Errorf("second lowering synthesized more stubs: %d -> %d", stubs, ctx.Stubs().Len())
	}
	if got := returnedCall(t, m, omitting).Callee; got != target {
		t.Errorf("rewritten call retargeted: %d -> %d", target, got)
	}

	// A call supplying every argument keeps hitting the original.
	fullCall := returnedCall(t, m, full)
	if fullCall.Callee != f {
		t.Errorf("full-supply call retargeted to %d, want original %d", fullCall.Callee, f)
	}
	if len(fullCall.Args) != 3 {
		t.Errorf("full-supply args = %d, want 3 untouched", len(fullCall.Args))
	}
}

func TestReloweringFreshContextReportsPoison(t *testing.T) {
	m := ir.NewModule("relower")
	buildScenario(m)
	lowerAll(t, m, nil)

	err := NewContext(m, nil).Lower()
	if err == nil {
		t.Fatal("re-lowering a lowered module must fail")
	}
	if err.Code != diagnostics.ErrL003 {
		t.Errorf("code = %s, want %s (%v)", err.Code, diagnostics.ErrL003, err)
	}
}

func TestOverrideCallTargetsAncestorStub(t *testing.T) {
	m := ir.NewModule("override")
	base := m.NewClass(ir.Class{Name: "Base"})
	derived := m.NewClass(ir.Class{Name: "Derived", Supers: []ir.ClassID{base}})

	bSelf := receiver(m, "self", typesystem.TCon{Name: "Base"})
	bName := param(m, "name", typesystem.StringType, 0, ir.Str("anon"))
	bGreet := member(m, base, ir.Function{
		Kind:             ir.KindFunction,
		Name:             "greet",
		IsOpen:           true,
		DispatchReceiver: bSelf,
		Params:           []ir.ValueID{bName},
		ReturnType:       typesystem.StringType,
		Body:             &ir.Block{Stmts: []ir.Stmt{&ir.Return{Value: ir.Read(bName)}}},
	})

	oSelf := receiver(m, "self", typesystem.TCon{Name: "Derived"})
	oName := param(m, "name", typesystem.StringType, 0, nil)
	oGreet := member(m, derived, ir.Function{
		Kind:             ir.KindFunction,
		Name:             "greet",
		DispatchReceiver: oSelf,
		Params:           []ir.ValueID{oName},
		Overrides:        []ir.FuncID{bGreet},
		ReturnType:       typesystem.StringType,
		Body:             &ir.Block{Stmts: []ir.Stmt{&ir.Return{Value: ir.Read(oName)}}},
	})

	obj := param(m, "obj", typesystem.TCon{Name: "Derived"}, 0, nil)
	main := topLevel(m, ir.Function{
		Kind:       ir.KindFunction,
		Name:       "main",
		Params:     []ir.ValueID{obj},
		ReturnType: typesystem.StringType,
		Body: &ir.Block{Stmts: []ir.Stmt{
			&ir.Return{Value: &ir.Call{Kind: ir.CallFunction, Callee: oGreet, DispatchArg: ir.Read(obj)}},
		}},
	})

	lowerAll(t, m, nil)

	// The omitting call lands on the stub of the declaration that owns
	// the default — the base's — not on the override's header stub.
	call := returnedCall(t, m, main)
	baseStub := mustStub(t, m, base, "greet", ir.KindFunction)
	if call.Callee != baseStub {
		t.Errorf("call targets %d, want base stub %d", call.Callee, baseStub)
	}
	if got, ok := call.DispatchArg.(*ir.GetValue); !ok || got.Value != obj {
		t.Errorf("dispatch argument was disturbed: %+v", call.DispatchArg)
	}
	if _, ok := call.Args[0].(*ir.NullConst); !ok {
		t.Errorf("placeholder for String is not null. got=%T (%+v)", call.Args[0], call.Args[0])
	}
	if got := call.Args[1].(*ir.IntConst).Value; got != 1 {
		t.Errorf("mask = %d, want 1", got)
	}

	// The override still contributes a header stub for virtual
	// dispatch: no body, an override edge to the ancestor stub.
	derivedStub := mustStub(t, m, derived, "greet", ir.KindFunction)
	ds := m.Func(derivedStub)
	if !ds.IsFakeOverride {
		t.Error("derived stub must be a fake override")
	}
	if ds.Body != nil {
		t.Error("derived stub must stay header-only")
	}
	if len(ds.Overrides) != 1 || ds.Overrides[0] != baseStub {
		t.Errorf("derived stub overrides %v, want [%d]", ds.Overrides, baseStub)
	}
}

func TestStubSharedAcrossCallSites(t *testing.T) {
	m := ir.NewModule("shared")
	g := buildAllDefaults(m)
	first := caller(m, "first", g)
	second := caller(m, "second", g, ir.Int(9))

	ctx := lowerAll(t, m, nil)

	a := returnedCall(t, m, first).Callee
	b := returnedCall(t, m, second).Callee
	if a != b {
		t.Errorf("call sites target different stubs: %d vs %d", a, b)
	}
	if got := ctx.Stubs().Len(); got != 1 {
		t.Errorf("synthesized %d stubs, want 1", got)
	}

	count := 0
	for i := range m.Funcs {
		if m.Funcs[i].Origin == ir.OriginDefaultStub {
			count++
		}
	}
	if count != 1 {
		t.Errorf("arena holds %d stubs, want 1", count)
	}
}
