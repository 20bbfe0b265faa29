package ir

// Visitor dispatches over the closed node set. The prettyprinter is the
// main implementation; passes that only rewrite use WalkExprs instead.
type Visitor interface {
	VisitIntConst(e *IntConst)
	VisitBoolConst(e *BoolConst)
	VisitStringConst(e *StringConst)
	VisitNullConst(e *NullConst)
	VisitGetValue(e *GetValue)
	VisitBinary(e *Binary)
	VisitIf(e *If)
	VisitCall(e *Call)
	VisitErrorExpr(e *ErrorExpr)
	VisitVarDecl(s *VarDecl)
	VisitReturn(s *Return)
	VisitExprStmt(s *ExprStmt)
	VisitBlock(b *Block)
}

// WalkExprs applies f to every expression under e, children before
// parents, so a rewrite sees its arguments already rewritten. Absent
// (nil) argument slots are skipped, not visited.
func WalkExprs(e Expr, f func(Expr) error) error {
	if e == nil {
		return nil
	}
	switch n := e.(type) {
	case *Binary:
		if err := WalkExprs(n.Left, f); err != nil {
			return err
		}
		if err := WalkExprs(n.Right, f); err != nil {
			return err
		}
	case *If:
		if err := WalkExprs(n.Cond, f); err != nil {
			return err
		}
		if err := WalkExprs(n.Then, f); err != nil {
			return err
		}
		if err := WalkExprs(n.Else, f); err != nil {
			return err
		}
	case *Call:
		if err := WalkExprs(n.DispatchArg, f); err != nil {
			return err
		}
		if err := WalkExprs(n.ExtensionArg, f); err != nil {
			return err
		}
		for _, a := range n.Args {
			if err := WalkExprs(a, f); err != nil {
				return err
			}
		}
		if err := WalkExprs(n.Handler, f); err != nil {
			return err
		}
	}
	return f(e)
}

// WalkBlock applies f to every expression in the block, statement by
// statement, children first.
func WalkBlock(b *Block, f func(Expr) error) error {
	if b == nil {
		return nil
	}
	for _, stmt := range b.Stmts {
		var err error
		switch s := stmt.(type) {
		case *VarDecl:
			err = WalkExprs(s.Init, f)
		case *Return:
			err = WalkExprs(s.Value, f)
		case *ExprStmt:
			err = WalkExprs(s.X, f)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
