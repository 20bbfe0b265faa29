// Package prettyprinter renders a module as a deterministic,
// source-like listing: classes and functions in arena order, stub
// parameters with their synthesized names, mask constants in hex.
// The listing is what `dump` prints and what the golden tests pin.
package prettyprinter

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/funvibe/funir/internal/config"
	"github.com/funvibe/funir/internal/ir"
)

// Operator precedence (higher = binds tighter). The bitwise and sits
// below the comparisons so mask tests come out fully parenthesized:
// ($mask0 & 0x4) != 0.
var operatorPrecedence = map[ir.BinOp]int{
	ir.OpBitAnd: 2,
	ir.OpEq:     3,
	ir.OpNe:     3,
	ir.OpAdd:    7,
	ir.OpSub:    7,
	ir.OpMul:    8,
}

var operatorSymbol = map[ir.BinOp]string{
	ir.OpEq:     "==",
	ir.OpNe:     "!=",
	ir.OpBitAnd: "&",
	ir.OpAdd:    "+",
	ir.OpSub:    "-",
	ir.OpMul:    "*",
}

func getPrecedence(op ir.BinOp) int {
	if p, ok := operatorPrecedence[op]; ok {
		return p
	}
	return 10
}

// CodePrinter renders IR against the arena it came from. One printer
// per module; the zero indent starts at the margin.
type CodePrinter struct {
	module *ir.Module
	buf    bytes.Buffer
	indent int
}

var _ ir.Visitor = (*CodePrinter)(nil)

func NewCodePrinter(m *ir.Module) *CodePrinter {
	return &CodePrinter{module: m}
}

func (p *CodePrinter) String() string {
	return p.buf.String()
}

func (p *CodePrinter) write(s string) {
	p.buf.WriteString(s)
}

func (p *CodePrinter) writeln() {
	p.buf.WriteString("\n")
}

func (p *CodePrinter) writeIndent() {
	for i := 0; i < p.indent; i++ {
		p.buf.WriteString("    ")
	}
}

// PrintModule renders the whole module: header, classes in arena
// order, then the file-level declarations.
func (p *CodePrinter) PrintModule() string {
	p.write("module " + p.module.Name)
	p.writeln()
	for i := range p.module.Classes {
		p.writeln()
		p.printClass(ir.ClassID(i + 1))
	}
	for _, id := range p.module.TopLevel {
		p.writeln()
		p.PrintFunction(id)
	}
	return p.String()
}

func (p *CodePrinter) printClass(id ir.ClassID) {
	cls := p.module.Class(id)
	p.writeIndent()
	if cls.IsInner {
		p.write("inner ")
	}
	p.write("class " + cls.Name)
	p.printTypeParams(cls.TypeParams)
	if len(cls.Supers) > 0 {
		names := make([]string, len(cls.Supers))
		for i, sup := range cls.Supers {
			names[i] = p.className(sup)
		}
		p.write(" : " + strings.Join(names, ", "))
	}
	p.write(" {")
	p.writeln()
	p.indent++
	for i, mem := range cls.Members {
		if i > 0 {
			p.writeln()
		}
		p.PrintFunction(mem)
	}
	p.indent--
	p.writeIndent()
	p.write("}")
	p.writeln()
}

// PrintFunction renders one declaration, body included when present.
func (p *CodePrinter) PrintFunction(id ir.FuncID) {
	fn := p.module.Func(id)

	for _, ann := range fn.Annotations {
		p.writeIndent()
		p.write("@" + ann.Name)
		if len(ann.Args) > 0 {
			p.write("(")
			for i, a := range ann.Args {
				if i > 0 {
					p.write(", ")
				}
				p.printExpr(a, 0)
			}
			p.write(")")
		}
		p.writeln()
	}

	p.writeIndent()
	if len(fn.Overrides) > 0 {
		p.write("override ")
	}
	if fn.IsOpen {
		p.write("open ")
	}
	if fn.IsInline {
		p.write("inline ")
	}
	if fn.IsExternal {
		p.write("external ")
	}
	if fn.IsSuspend {
		p.write("suspend ")
	}
	if fn.HandlerDispatch {
		p.write("handler ")
	}
	switch fn.Kind {
	case ir.KindConstructor:
		p.write("constructor ")
	default:
		p.write("fun ")
	}
	p.write(fn.Name)
	p.printTypeParams(fn.TypeParams)
	p.write("(")

	first := true
	sep := func() {
		if !first {
			p.write(", ")
		}
		first = false
	}
	if fn.DispatchReceiver.IsValid() {
		sep()
		p.write("this " + p.valueSig(fn.DispatchReceiver))
	}
	if fn.ExtensionReceiver.IsValid() {
		sep()
		p.write("ext " + p.valueSig(fn.ExtensionReceiver))
	}
	for _, pid := range fn.Params {
		sep()
		p.write(p.valueSig(pid))
	}
	p.write(")")

	if fn.ReturnType != nil {
		p.write(" -> " + fn.ReturnType.String())
	}

	if fn.Body == nil {
		p.writeln()
		return
	}
	p.write(" ")
	p.printBlock(fn.Body)
	p.writeln()
}

func (p *CodePrinter) printTypeParams(tps []ir.TypeParam) {
	if len(tps) == 0 {
		return
	}
	names := make([]string, len(tps))
	for i, tp := range tps {
		names[i] = tp.Name
	}
	p.write("<" + strings.Join(names, ", ") + ">")
}

// valueSig renders a parameter or receiver as `name: Type`, vararg
// element types spread, defaults (live or stripped) appended.
func (p *CodePrinter) valueSig(id ir.ValueID) string {
	v := p.module.Value(id)
	var sb strings.Builder
	if v.IsVararg {
		sb.WriteString("vararg ")
	}
	sb.WriteString(v.Name)
	switch {
	case v.IsVararg && v.VarargElem != nil:
		sb.WriteString(": " + v.VarargElem.String() + "...")
	case v.Type != nil:
		sb.WriteString(": " + v.Type.String())
	}
	if v.Default != nil {
		if _, stripped := v.Default.(*ir.ErrorExpr); stripped {
			sb.WriteString(" = <stripped>")
		} else {
			inner := NewCodePrinter(p.module)
			inner.printExpr(v.Default, 0)
			sb.WriteString(" = " + inner.String())
		}
	}
	return sb.String()
}

func (p *CodePrinter) className(id ir.ClassID) string {
	if !p.module.ValidClass(id) {
		return fmt.Sprintf("<class %d>", id)
	}
	return p.module.Class(id).Name
}

func (p *CodePrinter) funcName(id ir.FuncID) string {
	if !p.module.ValidFunc(id) {
		return fmt.Sprintf("<func %d>", id)
	}
	return p.module.Func(id).Name
}

func (p *CodePrinter) valueName(id ir.ValueID) string {
	if !p.module.ValidValue(id) {
		return fmt.Sprintf("<value %d>", id)
	}
	return p.module.Value(id).Name
}

func (p *CodePrinter) printBlock(b *ir.Block) {
	p.write("{")
	p.writeln()
	p.indent++
	for _, stmt := range b.Stmts {
		p.writeIndent()
		p.printStmt(stmt)
		p.writeln()
	}
	p.indent--
	p.writeIndent()
	p.write("}")
}

func (p *CodePrinter) printStmt(s ir.Stmt) {
	switch n := s.(type) {
	case *ir.VarDecl:
		p.write("let " + p.valueName(n.Value) + " = ")
		p.printExpr(n.Init, 0)
	case *ir.Return:
		p.write("return")
		if n.Value != nil {
			p.write(" ")
			p.printExpr(n.Value, 0)
		}
	case *ir.ExprStmt:
		p.printExpr(n.X, 0)
	default:
		p.write("<???>")
	}
}

// printExpr prints an expression, parenthesizing when the parent binds
// tighter.
func (p *CodePrinter) printExpr(e ir.Expr, parentPrec int) {
	if e == nil {
		p.write("_")
		return
	}
	switch n := e.(type) {
	case *ir.IntConst:
		p.write(strconv.FormatInt(n.Value, 10))
	case *ir.BoolConst:
		p.write(strconv.FormatBool(n.Value))
	case *ir.StringConst:
		p.write(strconv.Quote(n.Value))
	case *ir.NullConst:
		p.write("null")
	case *ir.GetValue:
		p.write(p.valueName(n.Value))
	case *ir.Binary:
		p.printBinary(n, parentPrec)
	case *ir.If:
		p.write("if ")
		p.printExpr(n.Cond, 0)
		p.write(" { ")
		p.printExpr(n.Then, 0)
		p.write(" } else { ")
		p.printExpr(n.Else, 0)
		p.write(" }")
	case *ir.Call:
		p.printCall(n)
	case *ir.ErrorExpr:
		p.write("<error: " + n.Description + ">")
	default:
		p.write("<???>")
	}
}

func (p *CodePrinter) printBinary(n *ir.Binary, parentPrec int) {
	prec := getPrecedence(n.Op)
	if prec < parentPrec {
		p.write("(")
		defer p.write(")")
	}
	p.printExpr(n.Left, prec)
	sym, ok := operatorSymbol[n.Op]
	if !ok {
		sym = fmt.Sprintf("<op %d>", n.Op)
	}
	p.write(" " + sym + " ")

	// Bit tests read better in hex: ($mask0 & 0x4) != 0.
	if c, isConst := n.Right.(*ir.IntConst); isConst && n.Op == ir.OpBitAnd {
		p.write(fmt.Sprintf("%#x", c.Value))
		return
	}
	p.printExpr(n.Right, prec+1)
}

func (p *CodePrinter) printCall(n *ir.Call) {
	p.write(p.funcName(n.Callee))
	if len(n.TypeArgs) > 0 {
		names := make([]string, len(n.TypeArgs))
		for i, ta := range n.TypeArgs {
			names[i] = ta.String()
		}
		p.write("<" + strings.Join(names, ", ") + ">")
	}
	p.write("(")

	first := true
	sep := func() {
		if !first {
			p.write(", ")
		}
		first = false
	}
	if n.DispatchArg != nil {
		sep()
		p.write("this=")
		p.printExpr(n.DispatchArg, 0)
	}
	if n.ExtensionArg != nil {
		sep()
		p.write("ext=")
		p.printExpr(n.ExtensionArg, 0)
	}

	var calleeParams []ir.ValueID
	if p.module.ValidFunc(n.Callee) {
		calleeParams = p.module.Func(n.Callee).Params
	}
	for i, a := range n.Args {
		sep()
		// Mask words print in hex so the set bits line up with the
		// omitted positions.
		if c, isConst := a.(*ir.IntConst); isConst && i < len(calleeParams) &&
			strings.HasPrefix(p.valueName(calleeParams[i]), config.MaskParamPrefix) {
			p.write(fmt.Sprintf("%#x", c.Value))
			continue
		}
		p.printExpr(a, 0)
	}
	if n.Handler != nil {
		sep()
		p.write("handler=")
		p.printExpr(n.Handler, 0)
	}
	p.write(")")
}

// Visitor bridge: nodes handed over via Accept print with no enclosing
// precedence.

func (p *CodePrinter) VisitIntConst(e *ir.IntConst)       { p.printExpr(e, 0) }
func (p *CodePrinter) VisitBoolConst(e *ir.BoolConst)     { p.printExpr(e, 0) }
func (p *CodePrinter) VisitStringConst(e *ir.StringConst) { p.printExpr(e, 0) }
func (p *CodePrinter) VisitNullConst(e *ir.NullConst)     { p.printExpr(e, 0) }
func (p *CodePrinter) VisitGetValue(e *ir.GetValue)       { p.printExpr(e, 0) }
func (p *CodePrinter) VisitBinary(e *ir.Binary)           { p.printExpr(e, 0) }
func (p *CodePrinter) VisitIf(e *ir.If)                   { p.printExpr(e, 0) }
func (p *CodePrinter) VisitCall(e *ir.Call)               { p.printExpr(e, 0) }
func (p *CodePrinter) VisitErrorExpr(e *ir.ErrorExpr)     { p.printExpr(e, 0) }
func (p *CodePrinter) VisitVarDecl(s *ir.VarDecl)         { p.printStmt(s) }
func (p *CodePrinter) VisitReturn(s *ir.Return)           { p.printStmt(s) }
func (p *CodePrinter) VisitExprStmt(s *ir.ExprStmt)       { p.printStmt(s) }
func (p *CodePrinter) VisitBlock(b *ir.Block)             { p.printBlock(b) }
