// Package generators builds random, structurally valid IR modules for
// the fuzz targets: every handle resolves, defaults only read earlier
// parameters, and calls omit arguments only where a default exists.
package generators

import (
	"fmt"
	"math/rand"

	"github.com/funvibe/funir/internal/ir"
	"github.com/funvibe/funir/internal/typesystem"
)

// RandomSource abstracts the source of randomness.
type RandomSource interface {
	Intn(n int) int
	Float64() float64
}

// RandSource wraps math/rand.
type RandSource struct {
	*rand.Rand
}

// ByteSource uses a byte slice as a source of randomness, so fuzz
// inputs drive generation deterministically.
type ByteSource struct {
	data []byte
	pos  int
}

func (s *ByteSource) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	if s.pos >= len(s.data) {
		return 0
	}
	v := int(s.data[s.pos])
	s.pos++
	return v % n
}

func (s *ByteSource) Float64() float64 {
	if s.pos >= len(s.data) {
		return 0.0
	}
	v := int(s.data[s.pos])
	s.pos++
	return float64(v) / 255.0
}

// ModuleGenerator generates random IR modules.
type ModuleGenerator struct {
	src RandomSource

	// callables collects top-level functions that the generated entry
	// point may call.
	callables []ir.FuncID
}

func NewModuleGenerator(seed int64) *ModuleGenerator {
	return &ModuleGenerator{src: &RandSource{rand.New(rand.NewSource(seed))}}
}

func NewModuleFromData(data []byte) *ModuleGenerator {
	return &ModuleGenerator{src: &ByteSource{data: data}}
}

// Generate builds one module: a couple of classes with methods (bases
// sometimes overridden, sometimes inner with a constructor), a few
// top-level functions and an entry point whose calls omit random
// defaulted suffixes.
func (g *ModuleGenerator) Generate() *ir.Module {
	g.callables = nil
	m := ir.NewModule(fmt.Sprintf("fuzz_%d", g.src.Intn(1000)))

	for i := 0; i < g.src.Intn(3); i++ {
		g.class(m, i)
	}
	n := 1 + g.src.Intn(3)
	for i := 0; i < n; i++ {
		id := g.function(m, ir.InvalidClass, ir.InvalidValue, fmt.Sprintf("f%d", i))
		m.TopLevel = append(m.TopLevel, id)
		g.callables = append(g.callables, id)
	}
	g.entryPoint(m)
	return m
}

func (g *ModuleGenerator) class(m *ir.Module, i int) {
	name := fmt.Sprintf("C%d", i)
	classType := typesystem.TCon{Name: name}
	cls := m.NewClass(ir.Class{Name: name})

	recv := m.NewValue(ir.Value{Kind: ir.ValueReceiver, Name: "self", Type: classType, Index: -1})
	method := g.function(m, cls, recv, fmt.Sprintf("m%d", i))
	c := m.Class(cls)
	c.Members = append(c.Members, method)

	// Sometimes derive a subclass overriding the method without own
	// defaults, so lowering propagates a header stub.
	if g.src.Intn(3) == 0 {
		subName := fmt.Sprintf("C%dSub", i)
		sub := m.NewClass(ir.Class{Name: subName, Supers: []ir.ClassID{cls}})
		subRecv := m.NewValue(ir.Value{Kind: ir.ValueReceiver, Name: "self", Type: typesystem.TCon{Name: subName}, Index: -1})

		base := m.Func(method)
		params := make([]ir.ValueID, 0, len(base.Params))
		for idx, pid := range base.Params {
			p := m.Value(pid)
			params = append(params, m.NewValue(ir.Value{
				Kind:       ir.ValueParam,
				Name:       p.Name,
				Type:       p.Type,
				Index:      idx,
				IsVararg:   p.IsVararg,
				VarargElem: p.VarargElem,
			}))
		}
		override := m.NewFunc(ir.Function{
			Kind:             ir.KindFunction,
			Name:             m.Func(method).Name,
			Class:            sub,
			DispatchReceiver: subRecv,
			Params:           params,
			ReturnType:       typesystem.IntType,
			Overrides:        []ir.FuncID{method},
			Body:             &ir.Block{Stmts: []ir.Stmt{&ir.Return{Value: ir.Int(0)}}},
		})
		s := m.Class(sub)
		s.Members = append(s.Members, override)
	}

	// Sometimes nest an inner class whose constructor defaults a size.
	if g.src.Intn(3) == 0 {
		innerName := fmt.Sprintf("C%dInner", i)
		inner := m.NewClass(ir.Class{Name: innerName, IsInner: true, Outer: cls})
		outer := m.NewValue(ir.Value{Kind: ir.ValueReceiver, Name: "outer", Type: classType, Index: -1})
		size := m.NewValue(ir.Value{
			Kind:    ir.ValueParam,
			Name:    "size",
			Type:    typesystem.IntType,
			Index:   0,
			Default: ir.Int(int64(g.src.Intn(100))),
		})
		ctor := m.NewFunc(ir.Function{
			Kind:             ir.KindConstructor,
			Name:             innerName,
			Class:            inner,
			DispatchReceiver: outer,
			Params:           []ir.ValueID{size},
			Body:             &ir.Block{},
		})
		ic := m.Class(inner)
		ic.Members = append(ic.Members, ctor)
	}
}

// function builds one callable with 0..4 Int parameters, a random
// defaulted tail, an occasional vararg and an occasional handler mark.
func (g *ModuleGenerator) function(m *ir.Module, cls ir.ClassID, recv ir.ValueID, name string) ir.FuncID {
	arity := g.src.Intn(5)
	firstDefault := arity
	if arity > 0 {
		firstDefault = g.src.Intn(arity + 1)
	}

	params := make([]ir.ValueID, 0, arity)
	for i := 0; i < arity; i++ {
		var dflt ir.Expr
		if i >= firstDefault {
			dflt = g.intExpr(params, 0)
		}
		params = append(params, m.NewValue(ir.Value{
			Kind:    ir.ValueParam,
			Name:    fmt.Sprintf("p%d", i),
			Type:    typesystem.IntType,
			Index:   i,
			Default: dflt,
		}))
	}

	// A vararg tail never carries a default; absence is mask-only.
	if arity > 0 && g.src.Intn(4) == 0 {
		last := m.Value(params[arity-1])
		last.Default = nil
		last.IsVararg = true
		last.VarargElem = typesystem.IntType
		last.Type = typesystem.TApp{
			Constructor: typesystem.TCon{Name: "Array"},
			Args:        []typesystem.Type{typesystem.IntType},
		}
	}

	var ret ir.Expr = ir.Int(int64(g.src.Intn(100)))
	if len(params) > 0 && !m.Value(params[len(params)-1]).IsVararg {
		ret = g.intExpr(params, 0)
	}

	return m.NewFunc(ir.Function{
		Kind:             ir.KindFunction,
		Name:             name,
		Class:            cls,
		DispatchReceiver: recv,
		Params:           params,
		ReturnType:       typesystem.IntType,
		HandlerDispatch:  g.src.Intn(4) == 0,
		Body: &ir.Block{Stmts: []ir.Stmt{
			&ir.Return{Value: ret},
		}},
	})
}

// intExpr builds an Int expression over constants and earlier
// parameters, so it is legal as a default of the next parameter.
func (g *ModuleGenerator) intExpr(earlier []ir.ValueID, depth int) ir.Expr {
	if depth < 2 && g.src.Intn(3) == 0 {
		ops := []ir.BinOp{ir.OpAdd, ir.OpSub, ir.OpMul}
		return &ir.Binary{
			Op:    ops[g.src.Intn(len(ops))],
			Left:  g.intExpr(earlier, depth+1),
			Right: g.intExpr(earlier, depth+1),
		}
	}
	if len(earlier) > 0 && g.src.Intn(2) == 0 {
		return ir.Read(earlier[g.src.Intn(len(earlier))])
	}
	return ir.Int(int64(g.src.Intn(100)))
}

// entryPoint emits `fun run()` calling the top-level functions,
// supplying full argument lists or omitting a suffix that lies inside
// the defaulted (or vararg) tail.
func (g *ModuleGenerator) entryPoint(m *ir.Module) {
	var stmts []ir.Stmt
	for _, callee := range g.callables {
		if g.src.Intn(2) == 0 {
			continue
		}
		fn := m.Func(callee)
		supplied := len(fn.Params)
		if low := firstOmittable(m, fn); low < supplied && g.src.Intn(2) == 0 {
			supplied = low + g.src.Intn(supplied-low+1)
		}
		args := make([]ir.Expr, 0, supplied)
		for i := 0; i < supplied; i++ {
			args = append(args, ir.Int(int64(g.src.Intn(100))))
		}
		stmts = append(stmts, &ir.ExprStmt{
			X: &ir.Call{Kind: ir.CallFunction, Callee: callee, Args: args},
		})
	}
	stmts = append(stmts, &ir.Return{Value: ir.Int(0)})

	run := m.NewFunc(ir.Function{
		Kind:       ir.KindFunction,
		Name:       "run",
		ReturnType: typesystem.IntType,
		Body:       &ir.Block{Stmts: stmts},
	})
	m.TopLevel = append(m.TopLevel, run)
}

// firstOmittable is the lowest parameter index a call may leave out:
// the head of the trailing run of defaulted or vararg parameters. A
// declaration with no defaults at all gets no stub, so nothing may be
// omitted, not even a bare vararg.
func firstOmittable(m *ir.Module, fn *ir.Function) int {
	hasDefault := false
	for _, pid := range fn.Params {
		if m.Value(pid).Default != nil {
			hasDefault = true
			break
		}
	}
	if !hasDefault {
		return len(fn.Params)
	}
	low := len(fn.Params)
	for i := len(fn.Params) - 1; i >= 0; i-- {
		p := m.Value(fn.Params[i])
		if p.Default == nil && !p.IsVararg {
			break
		}
		low = i
	}
	return low
}
