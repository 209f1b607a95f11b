package borrowck

import (
	"ptrperm/internal/facts"
	"ptrperm/internal/lty"
	"ptrperm/internal/mir"
	"ptrperm/internal/perm"
)

// assignOrigins relabels ty for one solver run. Pointer nodes get a fresh
// origin; every node carries the hypothesized permissions of its pointer
// identity, or none when it has no identity.
func assignOrigins(h perm.Hypothesis, maps *facts.Maps, ty *lty.Type) *facts.LTy {
	return lty.Relabel(ty, func(n *lty.Type) facts.Label {
		p := h.Get(n.Label)
		if n.IsPointer() {
			return facts.Label{Origin: maps.Origin(), Perm: p}
		}
		return facts.Label{Origin: facts.NoOrigin, Perm: p}
	})
}

// labelLocals labels every local of f, return place and temporaries
// included, and links each local's variable to the origins in its type.
func labelLocals(acx *Context, f *mir.Func, h perm.Hypothesis, all *facts.AllFacts, maps *facts.Maps) *facts.LoanInput {
	in := &facts.LoanInput{
		Func:       f,
		LocalTys:   make([]*facts.LTy, len(f.Locals)),
		AddrOfPerm: make([]perm.PermissionSet, len(f.Locals)),
	}
	for i := range f.Locals {
		local := mir.LocalID(i)
		lt := assignOrigins(h, maps, f.Locals[i].Ty)
		v := maps.Variable(local)
		lt.ForEachLabel(func(l facts.Label) {
			if l.HasOrigin() {
				all.UseOfVarDerefsOrigin = append(all.UseOfVarDerefsOrigin, facts.VarOrigin{Var: v, Origin: l.Origin})
			}
		})
		in.LocalTys[i] = lt
		in.AddrOfPerm[i] = h.Get(acx.addrOf(local))
	}
	all.Mark(facts.GroupOrigins)
	return in
}
