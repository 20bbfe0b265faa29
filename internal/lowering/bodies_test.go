package lowering

import (
	"fmt"
	"strings"
	"testing"

	"github.com/funvibe/funir/internal/config"
	"github.com/funvibe/funir/internal/ir"
	"github.com/funvibe/funir/internal/typesystem"
)

// mustVarDecl asserts the statement binds a local and returns it.
func mustVarDecl(t *testing.T, s ir.Stmt) *ir.VarDecl {
	t.Helper()
	decl, ok := s.(*ir.VarDecl)
	if !ok {
		t.Fatalf("statement is not VarDecl. got=%T (%+v)", s, s)
	}
	return decl
}

// condParts splits a `(mask & bit) != 0` guard into its mask read and
// bit constant.
func condParts(t *testing.T, cond ir.Expr) (ir.ValueID, int64) {
	t.Helper()
	ne, ok := cond.(*ir.Binary)
	if !ok || ne.Op != ir.OpNe {
		t.Fatalf("guard is not a != comparison. got=%T (%+v)", cond, cond)
	}
	and, ok := ne.Left.(*ir.Binary)
	if !ok || and.Op != ir.OpBitAnd {
		t.Fatalf("guard left side is not a mask test. got=%T (%+v)", ne.Left, ne.Left)
	}
	mask, ok := and.Left.(*ir.GetValue)
	if !ok {
		t.Fatalf("mask operand is not a value read. got=%T (%+v)", and.Left, and.Left)
	}
	bit, ok := and.Right.(*ir.IntConst)
	if !ok {
		t.Fatalf("bit operand is not IntConst. got=%T (%+v)", and.Right, and.Right)
	}
	return mask.Value, bit.Value
}

func TestStubBodyResolvesDefaultsInOrder(t *testing.T) {
	m := ir.NewModule("order")
	g := buildAllDefaults(m)
	lowerAll(t, m, nil)

	stub := mustStub(t, m, ir.InvalidClass, "g", ir.KindFunction)
	st := m.Func(stub)
	if len(st.Body.Stmts) != 3 {
		t.Fatalf("stub body has %d statements, want 3", len(st.Body.Stmts))
	}

	declX := mustVarDecl(t, st.Body.Stmts[0])
	initX := declX.Init.(*ir.If)
	mask, bit := condParts(t, initX.Cond)
	if mask != st.Params[2] {
		t.Errorf("x guard reads %d, want mask param %d", mask, st.Params[2])
	}
	if bit != 1 {
		t.Errorf("x guard bit = %d, want 1", bit)
	}
	if got, ok := initX.Then.(*ir.IntConst); !ok || got.Value != 2 {
		t.Errorf("x default branch = %+v, want 2", initX.Then)
	}
	if got, ok := initX.Else.(*ir.GetValue); !ok || got.Value != st.Params[0] {
		t.Errorf("x supplied branch reads %+v, want stub param %d", initX.Else, st.Params[0])
	}

	// y's default was `x * 3`; the copy must read the local bound
	// above, not the raw stub slot.
	declY := mustVarDecl(t, st.Body.Stmts[1])
	initY := declY.Init.(*ir.If)
	if _, bit := condParts(t, initY.Cond); bit != 2 {
		t.Errorf("y guard bit = %d, want 2", bit)
	}
	mul, ok := initY.Then.(*ir.Binary)
	if !ok || mul.Op != ir.OpMul {
		t.Fatalf("y default branch is not a multiplication. got=%T (%+v)", initY.Then, initY.Then)
	}
	if got := mul.Left.(*ir.GetValue).Value; got != declX.Value {
		t.Errorf("y default reads %d, want the local x %d", got, declX.Value)
	}

	// Tail: return the original call with both resolved locals.
	ret, ok := st.Body.Stmts[2].(*ir.Return)
	if !ok {
		t.Fatalf("tail is not Return. got=%T", st.Body.Stmts[2])
	}
	call := ret.Value.(*ir.Call)
	if call.Kind != ir.CallFunction || call.Callee != g {
		t.Errorf("tail dispatches %d as %d, want original %d", call.Callee, call.Kind, g)
	}
	if got := call.Args[0].(*ir.GetValue).Value; got != declX.Value {
		t.Errorf("tail arg 0 reads %d, want local x %d", got, declX.Value)
	}
	if got := call.Args[1].(*ir.GetValue).Value; got != declY.Value {
		t.Errorf("tail arg 1 reads %d, want local y %d", got, declY.Value)
	}
}

func TestStubBodyAliasesUndefaultedParams(t *testing.T) {
	m := ir.NewModule("alias")
	buildScenario(m)
	lowerAll(t, m, nil)

	stub := mustStub(t, m, ir.InvalidClass, "f", ir.KindFunction)
	st := m.Func(stub)

	// a has no default: no local, the tail reads the stub slot.
	if len(st.Body.Stmts) != 3 {
		t.Fatalf("stub body has %d statements, want 2 locals + tail", len(st.Body.Stmts))
	}
	declB := mustVarDecl(t, st.Body.Stmts[0])
	if _, bit := condParts(t, declB.Init.(*ir.If).Cond); bit != 2 {
		t.Errorf("b guard bit = %d, want 2", bit)
	}
	add := declB.Init.(*ir.If).Then.(*ir.Binary)
	if got := add.Left.(*ir.GetValue).Value; got != st.Params[0] {
		t.Errorf("b default reads %d, want stub param a %d", got, st.Params[0])
	}

	declC := mustVarDecl(t, st.Body.Stmts[1])
	if _, bit := condParts(t, declC.Init.(*ir.If).Cond); bit != 4 {
		t.Errorf("c guard bit = %d, want 4", bit)
	}
	if got := declC.Init.(*ir.If).Then.(*ir.Binary).Left.(*ir.GetValue).Value; got != declB.Value {
		t.Errorf("c default reads %d, want local b %d", got, declB.Value)
	}

	ret := st.Body.Stmts[2].(*ir.Return)
	if got := ret.Value.(*ir.Call).Args[0].(*ir.GetValue).Value; got != st.Params[0] {
		t.Errorf("tail arg 0 reads %d, want stub param a %d", got, st.Params[0])
	}
}

func TestMaskWordRouting(t *testing.T) {
	m := ir.NewModule("routing")
	params := make([]ir.ValueID, 33)
	for i := range params {
		var dflt ir.Expr
		if i == 32 {
			dflt = ir.Int(7)
		}
		params[i] = intParam(m, fmt.Sprintf("p%d", i), i, dflt)
	}
	fn := topLevel(m, ir.Function{
		Kind:       ir.KindFunction,
		Name:       "wide",
		Params:     params,
		ReturnType: typesystem.IntType,
		Body:       &ir.Block{Stmts: []ir.Stmt{&ir.Return{Value: ir.Int(0)}}},
	})

	ctx := NewContext(m, nil)
	stub, err := ctx.stubFor(fn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	st := m.Func(stub)

	// Parameter 32 lives in the second mask word, bit 0.
	decl := mustVarDecl(t, st.Body.Stmts[0])
	mask, bit := condParts(t, decl.Init.(*ir.If).Cond)
	if mask != st.Params[33+1] {
		t.Errorf("guard reads %d (%s), want the second mask word", mask, m.Value(mask).Name)
	}
	if name := m.Value(mask).Name; name != config.MaskParamPrefix+"1" {
		t.Errorf("guard mask = %q, want %q", name, config.MaskParamPrefix+"1")
	}
	if bit != 1 {
		t.Errorf("guard bit = %d, want 1 (bit 0 of the second word)", bit)
	}
}

func TestConstructorStubDelegates(t *testing.T) {
	m := ir.NewModule("delegate")
	cls := m.NewClass(ir.Class{Name: "Widget"})
	size := intParam(m, "size", 0, ir.Int(16))
	ctor := member(m, cls, ir.Function{
		Kind:   ir.KindConstructor,
		Name:   "Widget",
		Params: []ir.ValueID{size},
		Body:   &ir.Block{},
	})

	lowerAll(t, m, nil)

	stub := mustStub(t, m, cls, "Widget", ir.KindConstructor)
	st := m.Func(stub)
	if len(st.Body.Stmts) != 2 {
		t.Fatalf("ctor stub body has %d statements, want 2", len(st.Body.Stmts))
	}
	decl := mustVarDecl(t, st.Body.Stmts[0])

	// The tail is a delegating constructor call, not a return, and the
	// marker is not forwarded.
	es, ok := st.Body.Stmts[1].(*ir.ExprStmt)
	if !ok {
		t.Fatalf("ctor tail is not ExprStmt. got=%T", st.Body.Stmts[1])
	}
	call := es.X.(*ir.Call)
	if call.Kind != ir.CallDelegating {
		t.Errorf("ctor tail kind = %d, want delegating", call.Kind)
	}
	if call.Callee != ctor {
		t.Errorf("ctor tail targets %d, want %d", call.Callee, ctor)
	}
	if len(call.Args) != 1 {
		t.Fatalf("ctor tail forwards %d args, want 1", len(call.Args))
	}
	if got := call.Args[0].(*ir.GetValue).Value; got != decl.Value {
		t.Errorf("ctor tail reads %d, want local size %d", got, decl.Value)
	}
}

func TestHandlerDispatchTail(t *testing.T) {
	build := func(marked bool) (*ir.Module, ir.FuncID) {
		m := ir.NewModule("handlertail")
		x := intParam(m, "x", 0, ir.Int(3))
		fn := topLevel(m, ir.Function{
			Kind:            ir.KindFunction,
			Name:            "effectful",
			HandlerDispatch: marked,
			Params:          []ir.ValueID{x},
			ReturnType:      typesystem.IntType,
			Body:            &ir.Block{Stmts: []ir.Stmt{&ir.Return{Value: ir.Read(x)}}},
		})
		return m, fn
	}

	t.Run("marked and configured", func(t *testing.T) {
		m, fn := build(true)
		opts := config.DefaultOptions()
		opts.HandlerDispatch = true
		ctx := NewContext(m, &opts)
		stub, err := ctx.stubFor(fn)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		st := m.Func(stub)
		handler := st.Params[len(st.Params)-1]

		ret := st.Body.Stmts[len(st.Body.Stmts)-1].(*ir.Return)
		cond, ok := ret.Value.(*ir.If)
		if !ok {
			t.Fatalf("tail is not a handler conditional. got=%T (%+v)", ret.Value, ret.Value)
		}
		ne := cond.Cond.(*ir.Binary)
		if ne.Op != ir.OpNe {
			t.Errorf("handler guard op = %d, want !=", ne.Op)
		}
		if got := ne.Left.(*ir.GetValue).Value; got != handler {
			t.Errorf("handler guard reads %d, want %d", got, handler)
		}
		routed := cond.Then.(*ir.Call)
		direct := cond.Else.(*ir.Call)
		if routed == direct {
			t.Fatal("handler branches share one call node")
		}
		if routed.Handler == nil {
			t.Error("routed call must carry the handler")
		}
		if got := routed.Handler.(*ir.GetValue).Value; got != handler {
			t.Errorf("routed handler reads %d, want %d", got, handler)
		}
		if direct.Handler != nil {
			t.Error("direct call must not carry a handler")
		}
		if routed.Callee != fn || direct.Callee != fn {
			t.Errorf("handler branches target %d/%d, want %d", routed.Callee, direct.Callee, fn)
		}
	})

	t.Run("unmarked under the convention", func(t *testing.T) {
		m, fn := build(false)
		opts := config.DefaultOptions()
		opts.HandlerDispatch = true
		ctx := NewContext(m, &opts)
		stub, err := ctx.stubFor(fn)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		st := m.Func(stub)
		ret := st.Body.Stmts[len(st.Body.Stmts)-1].(*ir.Return)
		call, ok := ret.Value.(*ir.Call)
		if !ok {
			t.Fatalf("tail is not a direct call. got=%T (%+v)", ret.Value, ret.Value)
		}
		if call.Handler != nil {
			t.Error("unmarked declaration must not route through a handler")
		}
		// The handler slot still exists for ABI uniformity.
		if got := m.Value(st.Params[len(st.Params)-1]).Name; got != config.HandlerParamName {
			t.Errorf("last stub param = %q, want %q", got, config.HandlerParamName)
		}
	})

	t.Run("marked without the convention", func(t *testing.T) {
		m, fn := build(true)
		ctx := NewContext(m, nil)
		stub, err := ctx.stubFor(fn)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		st := m.Func(stub)
		if _, ok := st.Body.Stmts[len(st.Body.Stmts)-1].(*ir.Return).Value.(*ir.Call); !ok {
			t.Error("without the convention the tail must be a direct call")
		}
		if got := m.Value(st.Params[len(st.Params)-1]).Name; got != config.MaskParamPrefix+"0" {
			t.Errorf("last stub param = %q, want the mask", got)
		}
	})
}

func TestReceiverRemapInDefaults(t *testing.T) {
	build := func(m *ir.Module) (ir.ClassID, ir.FuncID) {
		cls := m.NewClass(ir.Class{Name: "Counter"})
		fSelf := receiver(m, "self", typesystem.TCon{Name: "Counter"})
		factor := member(m, cls, ir.Function{
			Kind:             ir.KindFunction,
			Name:             "factor",
			DispatchReceiver: fSelf,
			ReturnType:       typesystem.IntType,
			Body:             &ir.Block{Stmts: []ir.Stmt{&ir.Return{Value: ir.Int(2)}}},
		})
		self := receiver(m, "self", typesystem.TCon{Name: "Counter"})
		k := intParam(m, "k", 0, &ir.Call{
			Kind:        ir.CallFunction,
			Callee:      factor,
			DispatchArg: ir.Read(self),
		})
		bump := member(m, cls, ir.Function{
			Kind:             ir.KindFunction,
			Name:             "bump",
			DispatchReceiver: self,
			Params:           []ir.ValueID{k},
			ReturnType:       typesystem.IntType,
			Body:             &ir.Block{Stmts: []ir.Stmt{&ir.Return{Value: ir.Read(k)}}},
		})
		return cls, bump
	}

	t.Run("dynamic", func(t *testing.T) {
		m := ir.NewModule("remap")
		cls, _ := build(m)
		lowerAll(t, m, nil)

		stub := mustStub(t, m, cls, "bump", ir.KindFunction)
		st := m.Func(stub)
		decl := mustVarDecl(t, st.Body.Stmts[0])
		dflt := decl.Init.(*ir.If).Then.(*ir.Call)
		if got := dflt.DispatchArg.(*ir.GetValue).Value; got != st.DispatchReceiver {
			t.Errorf("copied default reads %d, want the stub receiver %d", got, st.DispatchReceiver)
		}
	})

	t.Run("static", func(t *testing.T) {
		m := ir.NewModule("remap")
		cls, _ := build(m)
		opts := config.DefaultOptions()
		opts.StaticStubs = true
		lowerAll(t, m, &opts)

		stub := mustStub(t, m, cls, "bump", ir.KindFunction)
		st := m.Func(stub)
		decl := mustVarDecl(t, st.Body.Stmts[0])
		dflt := decl.Init.(*ir.If).Then.(*ir.Call)
		if got := dflt.DispatchArg.(*ir.GetValue).Value; got != st.Params[0] {
			t.Errorf("copied default reads %d, want the folded receiver %d", got, st.Params[0])
		}
	})
}

func TestOriginalDefaultsPoisoned(t *testing.T) {
	m := ir.NewModule("poison")
	g := buildAllDefaults(m)
	lowerAll(t, m, nil)

	for _, pid := range m.Func(g).Params {
		p := m.Value(pid)
		marker, ok := p.Default.(*ir.ErrorExpr)
		if !ok {
			t.Fatalf("param %q default = %T (%+v), want a poison marker", p.Name, p.Default, p.Default)
		}
		if !strings.Contains(marker.Description, config.StubSuffix) {
			t.Errorf("poison marker %q does not name the stub", marker.Description)
		}
	}
}

func TestTypeArgumentsForwarded(t *testing.T) {
	m := ir.NewModule("generics")
	x := intParam(m, "x", 0, ir.Int(1))
	topLevel(m, ir.Function{
		Kind:       ir.KindFunction,
		Name:       "pick",
		TypeParams: []ir.TypeParam{{Name: "T"}, {Name: "U"}},
		Params:     []ir.ValueID{x},
		ReturnType: typesystem.TVar{Name: "T"},
		Body:       &ir.Block{Stmts: []ir.Stmt{&ir.Return{Value: ir.Read(x)}}},
	})

	lowerAll(t, m, nil)

	stub := mustStub(t, m, ir.InvalidClass, "pick", ir.KindFunction)
	ret := m.Func(stub).Body.Stmts[len(m.Func(stub).Body.Stmts)-1].(*ir.Return)
	call := ret.Value.(*ir.Call)
	if len(call.TypeArgs) != 2 {
		t.Fatalf("tail forwards %d type args, want 2", len(call.TypeArgs))
	}
	for i, want := range []string{"T", "U"} {
		tv, ok := call.TypeArgs[i].(typesystem.TVar)
		if !ok || tv.Name != want {
			t.Errorf("type arg %d = %v, want variable %s", i, call.TypeArgs[i], want)
		}
	}
}
