package mir

type TermKind uint8

const (
	TermNone TermKind = iota
	TermGoto
	TermSwitchInt
	TermReturn
	TermCall
	TermDrop
	TermUnreachable
)

type Terminator struct {
	Kind TermKind

	Goto        GotoTerm
	SwitchInt   SwitchIntTerm
	Call        CallTerm
	Drop        DropTerm
	Unreachable struct{}
}

type GotoTerm struct {
	Target BlockID
}

type SwitchIntTerm struct {
	Discr     Operand
	Targets   []BlockID
	Otherwise BlockID
}

// CallTerm calls Func; Target is NoBlockID for calls that never return.
type CallTerm struct {
	Func   string
	Args   []Operand
	HasDst bool
	Dst    Place
	Target BlockID
}

type DropTerm struct {
	Place  Place
	Target BlockID
}

// Successors lists the blocks control may transfer to, in declaration order.
func (t *Terminator) Successors() []BlockID {
	if t == nil {
		return nil
	}
	switch t.Kind {
	case TermGoto:
		return []BlockID{t.Goto.Target}
	case TermSwitchInt:
		out := make([]BlockID, 0, len(t.SwitchInt.Targets)+1)
		out = append(out, t.SwitchInt.Targets...)
		return append(out, t.SwitchInt.Otherwise)
	case TermCall:
		if t.Call.Target == NoBlockID {
			return nil
		}
		return []BlockID{t.Call.Target}
	case TermDrop:
		return []BlockID{t.Drop.Target}
	}
	// TermReturn, TermUnreachable, TermNone have no successors
	return nil
}

// mapTargets rewrites every successor through fn.
func (t *Terminator) mapTargets(fn func(BlockID) BlockID) {
	switch t.Kind {
	case TermGoto:
		t.Goto.Target = fn(t.Goto.Target)
	case TermSwitchInt:
		if len(t.SwitchInt.Targets) > 0 {
			t.SwitchInt.Targets = append([]BlockID(nil), t.SwitchInt.Targets...)
		}
		for i := range t.SwitchInt.Targets {
			t.SwitchInt.Targets[i] = fn(t.SwitchInt.Targets[i])
		}
		t.SwitchInt.Otherwise = fn(t.SwitchInt.Otherwise)
	case TermCall:
		if t.Call.Target != NoBlockID {
			t.Call.Target = fn(t.Call.Target)
		}
	case TermDrop:
		t.Drop.Target = fn(t.Drop.Target)
	}
}
