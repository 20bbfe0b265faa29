package main

import (
	"github.com/funvibe/funir/internal/ir"
	"github.com/funvibe/funir/internal/typesystem"
)

// sampleModule builds the demo module behind `funir sample`: one of
// every shape the convention covers — a method with defaults, an
// override without its own, an inner-class constructor, a
// handler-marked function, a vararg tail and calls that omit
// arguments.
func sampleModule() *ir.Module {
	m := ir.NewModule("demo")

	counterType := typesystem.TCon{Name: "Counter"}
	meterType := typesystem.TCon{Name: "Meter"}

	counter := m.NewClass(ir.Class{Name: "Counter"})
	meter := m.NewClass(ir.Class{Name: "Meter", Supers: []ir.ClassID{counter}})
	window := m.NewClass(ir.Class{Name: "Window", IsInner: true, Outer: counter})

	// open fun bump(this self: Counter, by: Int = 1, label: String = "tick") -> Int
	self := m.NewValue(ir.Value{Kind: ir.ValueReceiver, Name: "self", Type: counterType, Index: -1})
	by := m.NewValue(ir.Value{Kind: ir.ValueParam, Name: "by", Type: typesystem.IntType, Index: 0, Default: ir.Int(1)})
	label := m.NewValue(ir.Value{Kind: ir.ValueParam, Name: "label", Type: typesystem.StringType, Index: 1, Default: ir.Str("tick")})
	bump := m.NewFunc(ir.Function{
		Kind:             ir.KindFunction,
		Name:             "bump",
		Class:            counter,
		IsOpen:           true,
		DispatchReceiver: self,
		Params:           []ir.ValueID{by, label},
		ReturnType:       typesystem.IntType,
		Body:             &ir.Block{Stmts: []ir.Stmt{&ir.Return{Value: ir.Read(by)}}},
	})
	m.Class(counter).Members = append(m.Class(counter).Members, bump)

	// override fun bump(this self: Meter, by: Int, label: String) -> Int
	// No defaults of its own: lowering gives it a header-only stub.
	mSelf := m.NewValue(ir.Value{Kind: ir.ValueReceiver, Name: "self", Type: meterType, Index: -1})
	mBy := m.NewValue(ir.Value{Kind: ir.ValueParam, Name: "by", Type: typesystem.IntType, Index: 0})
	mLabel := m.NewValue(ir.Value{Kind: ir.ValueParam, Name: "label", Type: typesystem.StringType, Index: 1})
	mBump := m.NewFunc(ir.Function{
		Kind:             ir.KindFunction,
		Name:             "bump",
		Class:            meter,
		DispatchReceiver: mSelf,
		Params:           []ir.ValueID{mBy, mLabel},
		ReturnType:       typesystem.IntType,
		Overrides:        []ir.FuncID{bump},
		Body: &ir.Block{Stmts: []ir.Stmt{
			&ir.Return{Value: &ir.Binary{Op: ir.OpMul, Left: ir.Read(mBy), Right: ir.Int(10)}},
		}},
	})
	m.Class(meter).Members = append(m.Class(meter).Members, mBump)

	// constructor Window(this outer: Counter, size: Int = 8)
	outer := m.NewValue(ir.Value{Kind: ir.ValueReceiver, Name: "outer", Type: counterType, Index: -1})
	size := m.NewValue(ir.Value{Kind: ir.ValueParam, Name: "size", Type: typesystem.IntType, Index: 0, Default: ir.Int(8)})
	ctor := m.NewFunc(ir.Function{
		Kind:             ir.KindConstructor,
		Name:             "Window",
		Class:            window,
		DispatchReceiver: outer,
		Params:           []ir.ValueID{size},
		Body:             &ir.Block{},
	})
	m.Class(window).Members = append(m.Class(window).Members, ctor)

	// handler fun scale(x: Int, factor: Int = x * 2) -> Int
	x := m.NewValue(ir.Value{Kind: ir.ValueParam, Name: "x", Type: typesystem.IntType, Index: 0})
	factor := m.NewValue(ir.Value{
		Kind:    ir.ValueParam,
		Name:    "factor",
		Type:    typesystem.IntType,
		Index:   1,
		Default: &ir.Binary{Op: ir.OpMul, Left: ir.Read(x), Right: ir.Int(2)},
	})
	scale := m.NewFunc(ir.Function{
		Kind:            ir.KindFunction,
		Name:            "scale",
		HandlerDispatch: true,
		Params:          []ir.ValueID{x, factor},
		ReturnType:      typesystem.IntType,
		Body: &ir.Block{Stmts: []ir.Stmt{
			&ir.Return{Value: &ir.Binary{Op: ir.OpAdd, Left: ir.Read(x), Right: ir.Read(factor)}},
		}},
	})

	// fun sum(base: Int = 0, vararg xs: Int...) -> Int
	base := m.NewValue(ir.Value{Kind: ir.ValueParam, Name: "base", Type: typesystem.IntType, Index: 0, Default: ir.Int(0)})
	xs := m.NewValue(ir.Value{
		Kind:       ir.ValueParam,
		Name:       "xs",
		Type:       typesystem.TApp{Constructor: typesystem.TCon{Name: "Array"}, Args: []typesystem.Type{typesystem.IntType}},
		Index:      1,
		IsVararg:   true,
		VarargElem: typesystem.IntType,
	})
	sum := m.NewFunc(ir.Function{
		Kind:       ir.KindFunction,
		Name:       "sum",
		Params:     []ir.ValueID{base, xs},
		ReturnType: typesystem.IntType,
		Body:       &ir.Block{Stmts: []ir.Stmt{&ir.Return{Value: ir.Read(base)}}},
	})

	// fun main() -> Int { sum(); return scale(21) }
	mainFn := m.NewFunc(ir.Function{
		Kind:       ir.KindFunction,
		Name:       "main",
		ReturnType: typesystem.IntType,
		Body: &ir.Block{Stmts: []ir.Stmt{
			&ir.ExprStmt{X: &ir.Call{Kind: ir.CallFunction, Callee: sum}},
			&ir.Return{Value: &ir.Call{Kind: ir.CallFunction, Callee: scale, Args: []ir.Expr{ir.Int(21)}}},
		}},
	})

	m.TopLevel = append(m.TopLevel, scale, sum, mainFn)
	return m
}
