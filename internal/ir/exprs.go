package ir

import (
	"fmt"

	"github.com/funvibe/funir/internal/source"
	"github.com/funvibe/funir/internal/typesystem"
)

// Node is implemented by every IR tree node. Nodes do not render
// themselves: resolving handles to names needs the module arena, so
// rendering lives in the prettyprinter.
type Node interface {
	GetSpan() source.Span
	Accept(v Visitor)
}

// Expr is an expression node.
type Expr interface {
	Node
	exprNode()
}

// Stmt is a statement inside a Block.
type Stmt interface {
	Node
	stmtNode()
}

// IntConst is an integer constant.
type IntConst struct {
	Span  source.Span
	Value int64
}

func (e *IntConst) exprNode()            {}
func (e *IntConst) GetSpan() source.Span { return e.Span }
func (e *IntConst) Accept(v Visitor)     { v.VisitIntConst(e) }

// BoolConst is a boolean constant.
type BoolConst struct {
	Span  source.Span
	Value bool
}

func (e *BoolConst) exprNode()            {}
func (e *BoolConst) GetSpan() source.Span { return e.Span }
func (e *BoolConst) Accept(v Visitor)     { v.VisitBoolConst(e) }

// StringConst is a string constant.
type StringConst struct {
	Span  source.Span
	Value string
}

func (e *StringConst) exprNode()            {}
func (e *StringConst) GetSpan() source.Span { return e.Span }
func (e *StringConst) Accept(v Visitor)     { v.VisitStringConst(e) }

// NullConst is the null reference of a given type. It doubles as the
// zero placeholder for omitted reference-typed arguments and as the
// always-null marker and handler arguments.
type NullConst struct {
	Span source.Span
	Type typesystem.Type
}

func (e *NullConst) exprNode()            {}
func (e *NullConst) GetSpan() source.Span { return e.Span }
func (e *NullConst) Accept(v Visitor)     { v.VisitNullConst(e) }

// GetValue reads a value slot (parameter, local or receiver).
type GetValue struct {
	Span  source.Span
	Value ValueID
}

func (e *GetValue) exprNode()            {}
func (e *GetValue) GetSpan() source.Span { return e.Span }
func (e *GetValue) Accept(v Visitor)     { v.VisitGetValue(e) }

// BinOp enumerates the intrinsic binary operators the backend builds.
type BinOp uint8

const (
	OpBitAnd BinOp = iota + 1
	OpEq
	OpNe
	OpAdd
	OpSub
	OpMul
)

func (op BinOp) String() string {
	switch op {
	case OpBitAnd:
		return "&"
	case OpEq:
		return "=="
	case OpNe:
		return "!="
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	default:
		return fmt.Sprintf("BinOp(%d)", uint8(op))
	}
}

// Binary applies an intrinsic binary operator.
type Binary struct {
	Span  source.Span
	Op    BinOp
	Left  Expr
	Right Expr
}

func (e *Binary) exprNode()            {}
func (e *Binary) GetSpan() source.Span { return e.Span }
func (e *Binary) Accept(v Visitor)     { v.VisitBinary(e) }

// If is a conditional expression; both branches produce the value.
type If struct {
	Span source.Span
	Cond Expr
	Then Expr
	Else Expr
}

func (e *If) exprNode()            {}
func (e *If) GetSpan() source.Span { return e.Span }
func (e *If) Accept(v Visitor)     { v.VisitIf(e) }

// CallKind discriminates call shapes.
type CallKind uint8

const (
	CallFunction CallKind = iota + 1
	CallConstructor
	// CallDelegating is a constructor delegating to another constructor
	// of the same class; it appears only inside constructor bodies.
	CallDelegating
)

func (k CallKind) String() string {
	switch k {
	case CallFunction:
		return "call"
	case CallConstructor:
		return "constructor call"
	case CallDelegating:
		return "delegating call"
	default:
		return fmt.Sprintf("CallKind(%d)", uint8(k))
	}
}

// Call invokes a callable. A nil entry in Args is an absent argument:
// before lowering it means "use the default", after lowering it may
// remain only at vararg positions of stub calls (absence there is
// conveyed by the mask bit alone).
type Call struct {
	Span   source.Span
	Kind   CallKind
	Callee FuncID

	DispatchArg  Expr
	ExtensionArg Expr

	TypeArgs []typesystem.Type
	Args     []Expr

	// Handler, when set, routes the call through a dispatch handler
	// object. Only valid against callees marked HandlerDispatch.
	Handler Expr
}

func (e *Call) exprNode()            {}
func (e *Call) GetSpan() source.Span { return e.Span }
func (e *Call) Accept(v Visitor)     { v.VisitCall(e) }

// ErrorExpr is a poison node. Reaching one at any later stage is an
// internal error; lowering plants them over stripped default values.
type ErrorExpr struct {
	Span        source.Span
	Description string
}

func (e *ErrorExpr) exprNode()            {}
func (e *ErrorExpr) GetSpan() source.Span { return e.Span }
func (e *ErrorExpr) Accept(v Visitor)     { v.VisitErrorExpr(e) }

// VarDecl binds a local value slot to its initializer.
type VarDecl struct {
	Span  source.Span
	Value ValueID
	Init  Expr
}

func (s *VarDecl) stmtNode()            {}
func (s *VarDecl) GetSpan() source.Span { return s.Span }
func (s *VarDecl) Accept(v Visitor)     { v.VisitVarDecl(s) }

// Return exits the function; Value is nil for unit returns.
type Return struct {
	Span  source.Span
	Value Expr
}

func (s *Return) stmtNode()            {}
func (s *Return) GetSpan() source.Span { return s.Span }
func (s *Return) Accept(v Visitor)     { v.VisitReturn(s) }

// ExprStmt evaluates an expression for effect.
type ExprStmt struct {
	Span source.Span
	X    Expr
}

func (s *ExprStmt) stmtNode()            {}
func (s *ExprStmt) GetSpan() source.Span { return s.Span }
func (s *ExprStmt) Accept(v Visitor)     { v.VisitExprStmt(s) }

// Block is a statement sequence; function bodies are blocks.
type Block struct {
	Span  source.Span
	Stmts []Stmt
}

func (b *Block) GetSpan() source.Span { return b.Span }
func (b *Block) Accept(v Visitor)     { v.VisitBlock(b) }
