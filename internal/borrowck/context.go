package borrowck

import (
	"ptrperm/internal/facts"
	"ptrperm/internal/mir"
	"ptrperm/internal/perm"
)

// DefaultMaxIterations caps the number of solver runs per function.
const DefaultMaxIterations = 20

// DumpFunc receives the fact set and solver output of every iteration.
type DumpFunc func(fn string, iteration int, all *facts.AllFacts, maps *facts.Maps, out *facts.Output) error

// Context is the read-only environment of one function's analysis.
type Context struct {
	// AddrOfLocal maps each local to the pointer identity of its address.
	AddrOfLocal []perm.PointerID
	// MaxIterations overrides DefaultMaxIterations when positive.
	MaxIterations int
	// Dump, when set, is called after every solver run.
	Dump DumpFunc
}

// NewContext builds a context from the address-of identities declared on
// f's locals.
func NewContext(f *mir.Func) *Context {
	acx := &Context{MaxIterations: DefaultMaxIterations}
	if f == nil {
		return acx
	}
	acx.AddrOfLocal = make([]perm.PointerID, len(f.Locals))
	for i := range f.Locals {
		acx.AddrOfLocal[i] = f.Locals[i].AddrOf
	}
	return acx
}

func (acx *Context) maxIterations() int {
	if acx.MaxIterations > 0 {
		return acx.MaxIterations
	}
	return DefaultMaxIterations
}

func (acx *Context) addrOf(l mir.LocalID) perm.PointerID {
	if l < 0 || int(l) >= len(acx.AddrOfLocal) {
		return perm.NoPointerID
	}
	return acx.AddrOfLocal[l]
}
