package lowering

import (
	"testing"

	"github.com/funvibe/funir/internal/ir"
)

// object is an evaluated value: int64, bool, string or nil.
type object interface{}

// interp is a minimal tree-walking evaluator for lowered bodies. The
// round-trip tests run stub bodies through it and compare the results
// against the semantics the defaults had before lowering. Reaching a
// poison marker fails the test, which is exactly the contract the
// markers exist for.
type interp struct {
	t *testing.T
	m *ir.Module
}

func newInterp(t *testing.T, m *ir.Module) *interp {
	return &interp{t: t, m: m}
}

// callFn invokes a function body with the given dispatch receiver and
// argument objects.
func (in *interp) callFn(id ir.FuncID, dispatch object, args []object) object {
	result, _ := in.callCapture(id, dispatch, args)
	return result
}

// callCapture additionally returns the environment after the body ran,
// so tests can look at the resolved default locals.
func (in *interp) callCapture(id ir.FuncID, dispatch object, args []object) (object, map[ir.ValueID]object) {
	in.t.Helper()
	f := in.m.Func(id)
	env := make(map[ir.ValueID]object)
	if f.DispatchReceiver.IsValid() {
		env[f.DispatchReceiver] = dispatch
	}
	if len(args) != len(f.Params) {
		in.t.Fatalf("call to %s: %d args for %d params", f.Name, len(args), len(f.Params))
	}
	for i, pid := range f.Params {
		env[pid] = args[i]
	}
	if f.Body == nil {
		return nil, env
	}
	for _, stmt := range f.Body.Stmts {
		switch s := stmt.(type) {
		case *ir.VarDecl:
			env[s.Value] = in.eval(s.Init, env)
		case *ir.Return:
			if s.Value == nil {
				return nil, env
			}
			return in.eval(s.Value, env), env
		case *ir.ExprStmt:
			in.eval(s.X, env)
		}
	}
	return nil, env
}

func (in *interp) eval(e ir.Expr, env map[ir.ValueID]object) object {
	in.t.Helper()
	switch n := e.(type) {
	case *ir.IntConst:
		return n.Value
	case *ir.BoolConst:
		return n.Value
	case *ir.StringConst:
		return n.Value
	case *ir.NullConst:
		return nil
	case *ir.GetValue:
		v, ok := env[n.Value]
		if !ok {
			in.t.Fatalf("read of unbound value %d (%s)", n.Value, in.m.Value(n.Value).Name)
		}
		return v
	case *ir.Binary:
		return in.evalBinary(n, env)
	case *ir.If:
		cond, ok := in.eval(n.Cond, env).(bool)
		if !ok {
			in.t.Fatalf("if condition is not Bool. got=%+v", n.Cond)
		}
		if cond {
			return in.eval(n.Then, env)
		}
		return in.eval(n.Else, env)
	case *ir.Call:
		var dispatch object
		if n.DispatchArg != nil {
			dispatch = in.eval(n.DispatchArg, env)
		}
		args := make([]object, len(n.Args))
		for i, a := range n.Args {
			if a == nil {
				continue // absent vararg slot
			}
			args[i] = in.eval(a, env)
		}
		return in.callFn(n.Callee, dispatch, args)
	case *ir.ErrorExpr:
		in.t.Fatalf("evaluated a poison marker: %s", n.Description)
		return nil
	default:
		in.t.Fatalf("eval: unhandled node %T", e)
		return nil
	}
}

func (in *interp) evalBinary(n *ir.Binary, env map[ir.ValueID]object) object {
	in.t.Helper()
	l := in.eval(n.Left, env)
	r := in.eval(n.Right, env)
	switch n.Op {
	case ir.OpEq:
		return l == r
	case ir.OpNe:
		return l != r
	}
	li, lok := l.(int64)
	ri, rok := r.(int64)
	if !lok || !rok {
		in.t.Fatalf("operator %s needs Int operands. got=%T and %T", n.Op, l, r)
	}
	switch n.Op {
	case ir.OpBitAnd:
		return li & ri
	case ir.OpAdd:
		return li + ri
	case ir.OpSub:
		return li - ri
	case ir.OpMul:
		return li * ri
	default:
		in.t.Fatalf("unhandled operator %s", n.Op)
		return nil
	}
}

func testIntObject(t *testing.T, obj object, want int64) {
	t.Helper()
	got, ok := obj.(int64)
	if !ok {
		t.Fatalf("object is not Int. got=%T (%+v)", obj, obj)
	}
	if got != want {
		t.Fatalf("object has wrong value. got=%d, want=%d", got, want)
	}
}
