package lowering

import (
	"sync"

	"github.com/funvibe/funir/internal/diagnostics"
	"github.com/funvibe/funir/internal/ir"
)

// StubCache memoizes synthesized stubs by the declaration they front.
// Exactly one stub exists per declaration within a run: the container
// pass, the call-site rewriter and the ancestor resolution all go
// through the cache, so whoever asks first pays for the synthesis and
// everyone else reuses the handle.
type StubCache struct {
	mu    sync.Mutex
	stubs map[ir.FuncID]ir.FuncID
}

func NewStubCache() *StubCache {
	return &StubCache{stubs: make(map[ir.FuncID]ir.FuncID)}
}

// Lookup returns the cached stub for a declaration.
func (c *StubCache) Lookup(original ir.FuncID) (ir.FuncID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.stubs[original]
	return id, ok
}

// GetOrCreate returns the stub for original, synthesizing it with
// build on the first request. The lock is held across build, so two
// goroutines missing on the same declaration cannot both synthesize.
// build must not call back into the cache.
func (c *StubCache) GetOrCreate(original ir.FuncID, build func() (ir.FuncID, *diagnostics.DiagnosticError)) (ir.FuncID, *diagnostics.DiagnosticError) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id, ok := c.stubs[original]; ok {
		return id, nil
	}
	id, err := build()
	if err != nil {
		return ir.InvalidFunc, err
	}
	c.stubs[original] = id
	return id, nil
}

// Len reports how many stubs this run has synthesized.
func (c *StubCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.stubs)
}

// stubFor returns the stub fronting original, synthesizing it on first
// request. Declarations owning default values get a full stub: lowered
// body, originals poisoned. Declarations that only inherit the
// convention through an override get a header stub — no body, an
// override edge to each ancestor stub — so virtual dispatch lands in
// the right place at runtime.
//
// Ancestor stubs are resolved before entering the critical section:
// GetOrCreate must not be reentered, and the recursion over override
// edges terminates because each declaration is resolved at most once.
func (c *Context) stubFor(original ir.FuncID) (ir.FuncID, *diagnostics.DiagnosticError) {
	if id, ok := c.stubs.Lookup(original); ok {
		return id, nil
	}
	if c.walking[original] {
		// Override cycle in unchecked input: drop the edge rather than
		// recurse forever.
		return ir.InvalidFunc, nil
	}
	c.walking[original] = true
	defer delete(c.walking, original)

	var overrides []ir.FuncID
	for _, ov := range c.symbols.OverrideSet(original) {
		if !c.symbols.NeedsStub(ov) {
			continue
		}
		ancestor, err := c.stubFor(ov)
		if err != nil {
			return ir.InvalidFunc, err
		}
		if ancestor.IsValid() {
			overrides = append(overrides, ancestor)
		}
	}

	hasDefaults := c.module.HasDefaults(original)
	return c.stubs.GetOrCreate(original, func() (ir.FuncID, *diagnostics.DiagnosticError) {
		stub, err := c.synthesizeStub(original)
		if err != nil {
			return ir.InvalidFunc, err
		}
		c.module.Func(stub).Overrides = overrides
		if !hasDefaults {
			c.module.Func(stub).IsFakeOverride = true
			return stub, nil
		}
		if err := c.buildStubBody(original, stub); err != nil {
			return ir.InvalidFunc, err
		}
		c.stripDefaults(original)
		return stub, nil
	})
}
