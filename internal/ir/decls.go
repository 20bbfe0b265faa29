package ir

import (
	"fmt"

	"github.com/funvibe/funir/internal/source"
	"github.com/funvibe/funir/internal/typesystem"
)

// FuncKind discriminates the two callable declaration kinds. The set is
// closed: every switch over it handles both kinds and rejects the rest.
type FuncKind uint8

const (
	KindFunction FuncKind = iota + 1
	KindConstructor
)

func (k FuncKind) String() string {
	switch k {
	case KindFunction:
		return "function"
	case KindConstructor:
		return "constructor"
	default:
		return fmt.Sprintf("FuncKind(%d)", uint8(k))
	}
}

// OriginTag records why a declaration exists.
type OriginTag uint8

const (
	OriginSource OriginTag = iota
	// OriginDefaultStub marks callables synthesized by default-parameter
	// lowering. Later passes treat them as ordinary declarations; the tag
	// only prevents re-lowering and feeds the convention descriptor.
	OriginDefaultStub
)

// TypeParam is a declared type parameter. References to it inside the
// declaration use typesystem.TVar with the same name.
type TypeParam struct {
	Name string
	Span source.Span
}

// Annotation is an attribute attached to a declaration. Argument
// expressions are owned by the declaration; copies must be deep.
type Annotation struct {
	Name string
	Args []Expr
}

// Function is a callable declaration: a top-level function, a method or
// a constructor, discriminated by Kind.
type Function struct {
	Kind   FuncKind
	Name   string
	Span   source.Span
	Origin OriginTag

	// Class is the owning container; invalid for top-level callables,
	// whose container is the module's file level.
	Class ClassID

	TypeParams []TypeParam

	// Receivers are invalid when absent. Constructors of inner classes
	// carry the outer instance as their dispatch receiver.
	DispatchReceiver  ValueID
	ExtensionReceiver ValueID

	Params     []ValueID
	ReturnType typesystem.Type

	// Body is nil for external declarations and for fake overrides.
	Body *Block

	// Overrides lists the declarations this one overrides. The edges are
	// non-owning references into the same arena and form a DAG.
	Overrides []FuncID

	IsOpen         bool
	IsFakeOverride bool
	IsInline       bool
	IsExternal     bool
	IsSuspend      bool

	// HandlerDispatch marks a function as a target for handler-mediated
	// dispatch. Requesting a handler call on an unmarked declaration is a
	// configuration error.
	HandlerDispatch bool

	// StubOf links a synthesized stub back to the declaration it fronts.
	// Invalid unless Origin is OriginDefaultStub.
	StubOf FuncID

	Annotations []Annotation
}

// HasDefaults reports whether any parameter of f carries a default
// value expression, resolved against the module arena.
func (m *Module) HasDefaults(id FuncID) bool {
	f := m.Func(id)
	for _, pid := range f.Params {
		if m.Value(pid).Default != nil {
			return true
		}
	}
	return false
}

// Class is a declaration container for methods and constructors.
type Class struct {
	Name       string
	Span       source.Span
	TypeParams []TypeParam

	// IsInner classes hold a reference to an Outer instance; their
	// constructors take it as dispatch receiver.
	IsInner bool
	Outer   ClassID

	Supers  []ClassID
	Members []FuncID
}

// ValueKind discriminates value declarations.
type ValueKind uint8

const (
	ValueParam ValueKind = iota + 1
	ValueLocal
	ValueReceiver
)

func (k ValueKind) String() string {
	switch k {
	case ValueParam:
		return "parameter"
	case ValueLocal:
		return "local"
	case ValueReceiver:
		return "receiver"
	default:
		return fmt.Sprintf("ValueKind(%d)", uint8(k))
	}
}

// Value is a named value slot: a parameter, a local or a receiver.
type Value struct {
	Kind ValueKind
	Name string
	Span source.Span
	Type typesystem.Type

	// Index is the ordinal among the owning function's value parameters;
	// -1 for locals and receivers.
	Index int

	// Default is the optional default value expression. Parameters only.
	// Lowering strips it into the stub and leaves an ErrorExpr marker.
	Default Expr

	IsVararg   bool
	VarargElem typesystem.Type
}
