package borrowck

import (
	"ptrperm/internal/lty"
	"ptrperm/internal/mir"
	"ptrperm/internal/perm"
	"ptrperm/internal/trace"
)

// LocalReport is the final permission view of one local.
type LocalReport struct {
	Local      mir.LocalID
	Name       string
	Kind       mir.LocalKind
	AddrOf     perm.PointerID
	AddrOfPerm perm.PermissionSet
	// Type labels pointer nodes with their resolved permissions.
	Type *lty.Labeled[perm.PermissionSet]
}

// TypeString renders Type with permissions after each pointer constructor.
func (lr *LocalReport) TypeString() string {
	return lty.Format(lr.Type, func(n *lty.Labeled[perm.PermissionSet]) string {
		if !n.IsPointer() {
			return ""
		}
		return n.Label.String()
	})
}

// Report lists every local of a function in declaration order.
type Report struct {
	Func   string
	Locals []LocalReport
}

// BuildReport resolves the final permissions of every local of f under h.
func BuildReport(acx *Context, f *mir.Func, h perm.Hypothesis) *Report {
	if acx == nil {
		acx = NewContext(f)
	}
	rep := &Report{Func: f.Name, Locals: make([]LocalReport, 0, len(f.Locals))}
	for i := range f.Locals {
		local := mir.LocalID(i)
		addrOf := acx.addrOf(local)
		rep.Locals = append(rep.Locals, LocalReport{
			Local:      local,
			Name:       f.LocalName(local),
			Kind:       f.LocalKind(local),
			AddrOf:     addrOf,
			AddrOfPerm: h.Get(addrOf),
			Type: lty.Relabel(f.Locals[i].Ty, func(n *lty.Type) perm.PermissionSet {
				return h.Get(n.Label)
			}),
		})
	}
	return rep
}

func (r *refiner) emitReport(rep *Report) {
	if !r.tracer.Enabled() {
		return
	}
	for i := range rep.Locals {
		lr := &rep.Locals[i]
		trace.Point(r.tracer, trace.ScopeFunc, r.span.Site(0), "final", lr.Name, map[string]string{
			"addr_of": lr.AddrOfPerm.String(),
			"type":    lr.TypeString(),
		})
	}
}
