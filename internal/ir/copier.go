package ir

// CopyExpr returns a structural deep copy of e. Value reads are
// remapped through remap where an entry exists; handles without an
// entry are kept, since they reference arena slots that stay live.
// The copy shares no nodes with the original: lowering plants a poison
// marker over the original default right after copying it, and an
// aliased node would poison the copy too.
func CopyExpr(e Expr, remap map[ValueID]ValueID) Expr {
	if e == nil {
		return nil
	}
	switch n := e.(type) {
	case *IntConst:
		c := *n
		return &c
	case *BoolConst:
		c := *n
		return &c
	case *StringConst:
		c := *n
		return &c
	case *NullConst:
		c := *n
		return &c
	case *GetValue:
		c := *n
		if mapped, ok := remap[n.Value]; ok {
			c.Value = mapped
		}
		return &c
	case *Binary:
		return &Binary{
			Span:  n.Span,
			Op:    n.Op,
			Left:  CopyExpr(n.Left, remap),
			Right: CopyExpr(n.Right, remap),
		}
	case *If:
		return &If{
			Span: n.Span,
			Cond: CopyExpr(n.Cond, remap),
			Then: CopyExpr(n.Then, remap),
			Else: CopyExpr(n.Else, remap),
		}
	case *Call:
		c := &Call{
			Span:         n.Span,
			Kind:         n.Kind,
			Callee:       n.Callee,
			DispatchArg:  CopyExpr(n.DispatchArg, remap),
			ExtensionArg: CopyExpr(n.ExtensionArg, remap),
			Handler:      CopyExpr(n.Handler, remap),
		}
		if n.TypeArgs != nil {
			c.TypeArgs = append(c.TypeArgs[:0:0], n.TypeArgs...)
		}
		if n.Args != nil {
			c.Args = make([]Expr, len(n.Args))
			for i, a := range n.Args {
				// nil slots stay nil: absence is meaningful.
				c.Args[i] = CopyExpr(a, remap)
			}
		}
		return c
	case *ErrorExpr:
		c := *n
		return &c
	default:
		return e
	}
}

// CopyAnnotations deep-copies an annotation list, argument expressions
// included.
func CopyAnnotations(anns []Annotation) []Annotation {
	if anns == nil {
		return nil
	}
	out := make([]Annotation, len(anns))
	for i, a := range anns {
		out[i].Name = a.Name
		if a.Args != nil {
			out[i].Args = make([]Expr, len(a.Args))
			for j, arg := range a.Args {
				out[i].Args[j] = CopyExpr(arg, nil)
			}
		}
	}
	return out
}

// CopyTypeParams copies a type-parameter list. References to a type
// parameter are TVar nodes keyed by name, so a plain copy keeps every
// reference pointing at the copied parameter.
func CopyTypeParams(tps []TypeParam) []TypeParam {
	if tps == nil {
		return nil
	}
	return append(tps[:0:0], tps...)
}
