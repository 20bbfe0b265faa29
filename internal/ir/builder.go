package ir

import (
	"github.com/funvibe/funir/internal/source"
	"github.com/funvibe/funir/internal/typesystem"
)

// Builder intrinsics: constructors for the synthesized expressions the
// lowering passes emit. Synthesized nodes carry a zero span and render
// as generated code in diagnostics.

// Int builds an integer constant.
func Int(v int64) *IntConst {
	return &IntConst{Value: v}
}

// Bool builds a boolean constant.
func Bool(v bool) *BoolConst {
	return &BoolConst{Value: v}
}

// Str builds a string constant.
func Str(v string) *StringConst {
	return &StringConst{Value: v}
}

// Null builds a typed null reference.
func Null(t typesystem.Type) *NullConst {
	return &NullConst{Type: t}
}

// Read builds a read of a value slot.
func Read(v ValueID) *GetValue {
	return &GetValue{Value: v}
}

// ReadAt builds a read of a value slot carrying the given span, for
// synthesized expressions that should point back at source.
func ReadAt(v ValueID, span source.Span) *GetValue {
	return &GetValue{Span: span, Value: v}
}

// BitAnd builds a bitwise-AND.
func BitAnd(l, r Expr) *Binary {
	return &Binary{Op: OpBitAnd, Left: l, Right: r}
}

// Ne builds an inequality test.
func Ne(l, r Expr) *Binary {
	return &Binary{Op: OpNe, Left: l, Right: r}
}

// MaskBitSet builds the presence test for bit `bit` of a mask
// parameter: (mask & (1 << bit)) != 0. The shift is folded into the
// constant, so the emitted tree is a single AND against a literal.
func MaskBitSet(mask ValueID, bit int) Expr {
	return Ne(BitAnd(Read(mask), Int(int64(1)<<uint(bit))), Int(0))
}

// ZeroValue builds the placeholder passed for an omitted argument slot.
// Word-sized scalars get their natural zero; everything else gets a
// typed null. The callee never reads the placeholder (the mask bit
// routes it to the default), so null is sound for any reference type.
func ZeroValue(t typesystem.Type) Expr {
	if tc, ok := t.(typesystem.TCon); ok {
		switch tc.Name {
		case typesystem.IntType.Name:
			return Int(0)
		case typesystem.BoolType.Name:
			return Bool(false)
		}
	}
	return Null(t)
}
