package typesystem

import (
	"fmt"
	"strings"
)

// Type is the backend view of a checked type. Inference already happened
// in the frontend; the backend needs identity, structure, substitution
// and printing, nothing more.
type Type interface {
	String() string
	Apply(s Subst) Type
	FreeTypeVariables() []TVar
}

// Subst maps type-variable names to types.
type Subst map[string]Type

// Builtin word types the backend synthesizes references to. Masks are
// Int; placeholders for anything outside this set are typed nulls.
var (
	IntType    = TCon{Name: "Int"}
	BoolType   = TCon{Name: "Bool"}
	StringType = TCon{Name: "String"}
	UnitType   = TCon{Name: "Unit"}
)

// TVar is a reference to a type parameter (e.g. T in fun id<T>(x: T)).
type TVar struct {
	Name string
}

func (t TVar) String() string { return t.Name }

func (t TVar) Apply(s Subst) Type {
	if r, ok := s[t.Name]; ok {
		return r
	}
	return t
}

func (t TVar) FreeTypeVariables() []TVar { return []TVar{t} }

// TCon is a named type constructor (Int, Bool, Shape, ...).
type TCon struct {
	Name string
}

func (t TCon) String() string { return t.Name }

func (t TCon) Apply(s Subst) Type { return t }

func (t TCon) FreeTypeVariables() []TVar { return nil }

// TApp applies a constructor to arguments (e.g. List<Int>).
type TApp struct {
	Constructor Type
	Args        []Type
}

func (t TApp) String() string {
	args := make([]string, len(t.Args))
	for i, a := range t.Args {
		args[i] = a.String()
	}
	return fmt.Sprintf("%s<%s>", t.Constructor.String(), strings.Join(args, ", "))
}

func (t TApp) Apply(s Subst) Type {
	args := make([]Type, len(t.Args))
	for i, a := range t.Args {
		args[i] = a.Apply(s)
	}
	return TApp{Constructor: t.Constructor.Apply(s), Args: args}
}

func (t TApp) FreeTypeVariables() []TVar {
	vars := t.Constructor.FreeTypeVariables()
	for _, a := range t.Args {
		vars = append(vars, a.FreeTypeVariables()...)
	}
	return uniqueTVars(vars)
}

// TFunc is a callable type. DefaultCount is the number of parameters
// carrying default values in the declaration; lowering erases it to zero
// on stub signatures because presence moves into the mask convention.
type TFunc struct {
	Params       []Type
	ReturnType   Type
	IsVariadic   bool
	DefaultCount int
}

func (t TFunc) String() string {
	params := make([]string, 0, len(t.Params))
	defaultStart := len(t.Params) - t.DefaultCount
	if defaultStart < 0 {
		defaultStart = 0
	}
	for i, p := range t.Params {
		s := p.String()
		if i >= defaultStart {
			s += "?"
		}
		params = append(params, s)
	}
	if t.IsVariadic && len(params) > 0 {
		params[len(params)-1] = "..." + params[len(params)-1]
	}
	ret := "Unit"
	if t.ReturnType != nil {
		ret = t.ReturnType.String()
	}
	return fmt.Sprintf("(%s) -> %s", strings.Join(params, ", "), ret)
}

func (t TFunc) Apply(s Subst) Type {
	params := make([]Type, len(t.Params))
	for i, p := range t.Params {
		params[i] = p.Apply(s)
	}
	var ret Type
	if t.ReturnType != nil {
		ret = t.ReturnType.Apply(s)
	}
	return TFunc{
		Params:       params,
		ReturnType:   ret,
		IsVariadic:   t.IsVariadic,
		DefaultCount: t.DefaultCount,
	}
}

func (t TFunc) FreeTypeVariables() []TVar {
	var vars []TVar
	for _, p := range t.Params {
		vars = append(vars, p.FreeTypeVariables()...)
	}
	if t.ReturnType != nil {
		vars = append(vars, t.ReturnType.FreeTypeVariables()...)
	}
	return uniqueTVars(vars)
}

// Equal reports structural equality of two types.
func Equal(a, b Type) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch at := a.(type) {
	case TVar:
		bt, ok := b.(TVar)
		return ok && at.Name == bt.Name
	case TCon:
		bt, ok := b.(TCon)
		return ok && at.Name == bt.Name
	case TApp:
		bt, ok := b.(TApp)
		if !ok || len(at.Args) != len(bt.Args) || !Equal(at.Constructor, bt.Constructor) {
			return false
		}
		for i := range at.Args {
			if !Equal(at.Args[i], bt.Args[i]) {
				return false
			}
		}
		return true
	case TFunc:
		bt, ok := b.(TFunc)
		if !ok || len(at.Params) != len(bt.Params) ||
			at.IsVariadic != bt.IsVariadic || at.DefaultCount != bt.DefaultCount {
			return false
		}
		for i := range at.Params {
			if !Equal(at.Params[i], bt.Params[i]) {
				return false
			}
		}
		return Equal(at.ReturnType, bt.ReturnType)
	}
	return false
}

func uniqueTVars(vars []TVar) []TVar {
	seen := make(map[string]bool, len(vars))
	out := vars[:0]
	for _, v := range vars {
		if seen[v.Name] {
			continue
		}
		seen[v.Name] = true
		out = append(out, v)
	}
	return out
}
