package ir

import (
	"github.com/funvibe/funir/internal/typesystem"
)

// Module is the arena owning every declaration of a compilation unit.
// Handles index into the arena slices (offset by one). A module is
// mutated by one goroutine at a time; independent modules may be lowered
// concurrently.
type Module struct {
	Name string

	Funcs   []Function
	Classes []Class
	Values  []Value

	// TopLevel lists file-level callables. The file plays the container
	// role for them, the way a class does for its members.
	TopLevel []FuncID
}

func NewModule(name string) *Module {
	return &Module{Name: name}
}

func (m *Module) NewFunc(f Function) FuncID {
	m.Funcs = append(m.Funcs, f)
	return FuncID(len(m.Funcs))
}

func (m *Module) NewClass(c Class) ClassID {
	m.Classes = append(m.Classes, c)
	return ClassID(len(m.Classes))
}

func (m *Module) NewValue(v Value) ValueID {
	m.Values = append(m.Values, v)
	return ValueID(len(m.Values))
}

// Func resolves a handle. Panics on an invalid handle: passes must
// range-check untrusted handles with ValidFunc first.
func (m *Module) Func(id FuncID) *Function {
	return &m.Funcs[id-1]
}

func (m *Module) Class(id ClassID) *Class {
	return &m.Classes[id-1]
}

func (m *Module) Value(id ValueID) *Value {
	return &m.Values[id-1]
}

func (m *Module) ValidFunc(id FuncID) bool {
	return id >= 1 && int(id) <= len(m.Funcs)
}

func (m *Module) ValidClass(id ClassID) bool {
	return id >= 1 && int(id) <= len(m.Classes)
}

func (m *Module) ValidValue(id ValueID) bool {
	return id >= 1 && int(id) <= len(m.Values)
}

// Members returns the member list of a container: the class members for
// a valid handle, the file-level list otherwise.
func (m *Module) Members(cls ClassID) []FuncID {
	if cls.IsValid() {
		return m.Class(cls).Members
	}
	return m.TopLevel
}

// AppendOrReplaceMember registers fn in its container. An existing
// member with the same name, kind and arity is replaced, so
// re-registering a synthesized declaration never duplicates it.
// Constructors share a name, so arity keeps their stubs apart.
func (m *Module) AppendOrReplaceMember(cls ClassID, fn FuncID) {
	f := m.Func(fn)
	members := m.Members(cls)
	for i, other := range members {
		o := m.Func(other)
		if o.Name == f.Name && o.Kind == f.Kind && len(o.Params) == len(f.Params) {
			members[i] = fn
			return
		}
	}
	if cls.IsValid() {
		c := m.Class(cls)
		c.Members = append(c.Members, fn)
		return
	}
	m.TopLevel = append(m.TopLevel, fn)
}

// MemberByName finds a container member by name and kind.
func (m *Module) MemberByName(cls ClassID, name string, kind FuncKind) FuncID {
	for _, id := range m.Members(cls) {
		f := m.Func(id)
		if f.Name == name && f.Kind == kind {
			return id
		}
	}
	return InvalidFunc
}

// SignatureType assembles the callable type of a declaration. Only
// live default values count toward DefaultCount: once lowering has
// replaced a default with its error marker, omission is carried by
// mask arguments and the signature no longer advertises it.
func (m *Module) SignatureType(id FuncID) typesystem.TFunc {
	f := m.Func(id)
	params := make([]typesystem.Type, 0, len(f.Params))
	defaults := 0
	variadic := false
	for i, pid := range f.Params {
		p := m.Value(pid)
		params = append(params, p.Type)
		if p.Default != nil {
			if _, stripped := p.Default.(*ErrorExpr); !stripped {
				defaults++
			}
		}
		if p.IsVararg && i == len(f.Params)-1 {
			variadic = true
		}
	}
	return typesystem.TFunc{
		Params:       params,
		ReturnType:   f.ReturnType,
		IsVariadic:   variadic,
		DefaultCount: defaults,
	}
}
