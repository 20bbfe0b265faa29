// Package symbols answers declaration-relationship queries over a
// module: override edges, who needs a presence-mask stub, and which
// declaration in an override chain owns the authoritative stub.
//
// The queries are hot — the call-site rewriter asks them for every
// call expression — so the answers are memoized per service. A service
// is bound to one module and assumes the override edges do not change
// while it is alive; lowering only ever adds declarations, never edits
// edges, so one service per run is safe.
package symbols

import (
	"github.com/funvibe/funir/internal/ir"
)

type Service struct {
	module *ir.Module

	needsStub map[ir.FuncID]bool
	keyDecl   map[ir.FuncID]ir.FuncID

	// walking guards against override cycles. Well-formed input is a
	// DAG, but an unchecked bundle can carry anything.
	walking map[ir.FuncID]bool
}

func NewService(m *ir.Module) *Service {
	return &Service{
		module:    m,
		needsStub: make(map[ir.FuncID]bool),
		keyDecl:   make(map[ir.FuncID]ir.FuncID),
		walking:   make(map[ir.FuncID]bool),
	}
}

// OverrideSet returns the declarations id directly overrides. The
// slice is the arena's own; callers must not mutate it.
func (s *Service) OverrideSet(id ir.FuncID) []ir.FuncID {
	return s.module.Func(id).Overrides
}

// NeedsStub reports whether a declaration takes part in the default
// parameter convention: it either carries a default value itself or
// overrides (transitively) a declaration that does. Synthesized stubs
// never need stubs of their own.
//
// Diamonds in the override graph are common, so results are memoized;
// each edge is walked at most once per service lifetime.
func (s *Service) NeedsStub(id ir.FuncID) bool {
	if v, ok := s.needsStub[id]; ok {
		return v
	}
	if s.walking[id] {
		return false
	}
	s.walking[id] = true
	defer delete(s.walking, id)

	result := false
	f := s.module.Func(id)
	switch {
	case f.Origin == ir.OriginDefaultStub:
		result = false
	case s.module.HasDefaults(id):
		result = true
	default:
		for _, ov := range f.Overrides {
			if s.NeedsStub(ov) {
				result = true
				break
			}
		}
	}
	s.needsStub[id] = result
	return result
}

// KeyDeclaration resolves the declaration whose stub a call must
// target: the chain is walked upward from id until a declaration that
// itself owns default values. A declaration with its own defaults is
// its own key. When several ancestors qualify (override diamond), the
// first override edge that leads to one wins; edge order is the
// declaration order of the frontend, which keeps the choice stable.
func (s *Service) KeyDeclaration(id ir.FuncID) ir.FuncID {
	if v, ok := s.keyDecl[id]; ok {
		return v
	}
	key := s.resolveKey(id, map[ir.FuncID]bool{})
	s.keyDecl[id] = key
	return key
}

func (s *Service) resolveKey(id ir.FuncID, seen map[ir.FuncID]bool) ir.FuncID {
	if seen[id] {
		return id
	}
	seen[id] = true

	if s.module.HasDefaults(id) {
		return id
	}
	for _, ov := range s.module.Func(id).Overrides {
		if !s.NeedsStub(ov) {
			continue
		}
		return s.resolveKey(ov, seen)
	}
	return id
}
