package mir

import "fmt"

// Func is the control-flow graph of one function.
// Local 0 is the return place and locals 1..ArgCount are the parameters.
type Func struct {
	Name     string
	ArgCount int

	Locals []Local
	Blocks []Block
	Entry  BlockID
}

// Location addresses a statement; Index == len(Stmts) addresses the terminator.
type Location struct {
	Block BlockID
	Index int
}

func (l Location) String() string {
	return fmt.Sprintf("bb%d[%d]", l.Block, l.Index)
}

// LocalKind classifies id as return place, argument, user variable or temporary.
func (f *Func) LocalKind(id LocalID) LocalKind {
	switch {
	case id == ReturnLocal:
		return LocalReturn
	case int(id) <= f.ArgCount:
		return LocalArg
	case int(id) < len(f.Locals) && f.Locals[id].Temp:
		return LocalTemp
	default:
		return LocalVar
	}
}

// Local returns the declaration of id or nil.
func (f *Func) Local(id LocalID) *Local {
	if f == nil || id < 0 || int(id) >= len(f.Locals) {
		return nil
	}
	return &f.Locals[id]
}

// Block returns the block id or nil.
func (f *Func) Block(id BlockID) *Block {
	if f == nil || id < 0 || int(id) >= len(f.Blocks) {
		return nil
	}
	return &f.Blocks[id]
}

// StmtAt resolves loc to either a statement or the block terminator.
// Exactly one of the returned pointers is non-nil when err is nil.
func (f *Func) StmtAt(loc Location) (*Stmt, *Terminator, error) {
	bb := f.Block(loc.Block)
	if bb == nil {
		return nil, nil, fmt.Errorf("%s: no such block", loc)
	}
	switch {
	case loc.Index >= 0 && loc.Index < len(bb.Stmts):
		return &bb.Stmts[loc.Index], nil, nil
	case loc.Index == len(bb.Stmts):
		return nil, &bb.Term, nil
	default:
		return nil, nil, fmt.Errorf("%s: index out of range (%d statements)", loc, len(bb.Stmts))
	}
}

// LocalName returns a readable name for id.
func (f *Func) LocalName(id LocalID) string {
	if l := f.Local(id); l != nil && l.Name != "" {
		return l.Name
	}
	return fmt.Sprintf("_%d", id)
}
