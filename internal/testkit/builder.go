// Package testkit holds helpers shared by package tests: a MIR function
// builder and structural checks over assembled fact sets.
package testkit

import (
	"ptrperm/internal/lty"
	"ptrperm/internal/mir"
	"ptrperm/internal/perm"
)

// FuncBuilder assembles a mir.Func block by block.
type FuncBuilder struct {
	f mir.Func
}

// NewFunc starts a function with argCount parameters. The caller declares
// the return place first, then the parameters, then everything else.
func NewFunc(name string, argCount int) *FuncBuilder {
	return &FuncBuilder{f: mir.Func{Name: name, ArgCount: argCount, Entry: 0}}
}

// Local declares a local of type ty (lty syntax) whose address carries addrOf.
func (b *FuncBuilder) Local(name, ty string, addrOf perm.PointerID) mir.LocalID {
	id := mir.LocalID(len(b.f.Locals))
	b.f.Locals = append(b.f.Locals, mir.Local{Name: name, Ty: lty.MustParse(ty), AddrOf: addrOf})
	return id
}

// Temp declares a compiler temporary.
func (b *FuncBuilder) Temp(ty string, addrOf perm.PointerID) mir.LocalID {
	id := b.Local("", ty, addrOf)
	b.f.Locals[id].Temp = true
	return id
}

// Block appends an empty block and returns its id.
func (b *FuncBuilder) Block() mir.BlockID {
	id := mir.BlockID(len(b.f.Blocks))
	b.f.Blocks = append(b.f.Blocks, mir.Block{ID: id})
	return id
}

// Assign appends `dst = rv` to bb.
func (b *FuncBuilder) Assign(bb mir.BlockID, dst mir.Place, rv mir.RValue) *FuncBuilder {
	return b.stmt(bb, mir.Stmt{Kind: mir.StmtAssign, Assign: mir.AssignStmt{Dst: dst, Src: rv}})
}

// StorageLive appends a StorageLive marker for l.
func (b *FuncBuilder) StorageLive(bb mir.BlockID, l mir.LocalID) *FuncBuilder {
	return b.stmt(bb, mir.Stmt{Kind: mir.StmtStorageLive, Local: l})
}

// StorageDead appends a StorageDead marker for l.
func (b *FuncBuilder) StorageDead(bb mir.BlockID, l mir.LocalID) *FuncBuilder {
	return b.stmt(bb, mir.Stmt{Kind: mir.StmtStorageDead, Local: l})
}

// Nop appends a no-op.
func (b *FuncBuilder) Nop(bb mir.BlockID) *FuncBuilder {
	return b.stmt(bb, mir.Stmt{Kind: mir.StmtNop})
}

func (b *FuncBuilder) stmt(bb mir.BlockID, st mir.Stmt) *FuncBuilder {
	blk := &b.f.Blocks[bb]
	blk.Stmts = append(blk.Stmts, st)
	return b
}

// Goto terminates bb with a jump to target.
func (b *FuncBuilder) Goto(bb, target mir.BlockID) *FuncBuilder {
	b.f.Blocks[bb].Term = mir.Terminator{Kind: mir.TermGoto, Goto: mir.GotoTerm{Target: target}}
	return b
}

// Return terminates bb with a return.
func (b *FuncBuilder) Return(bb mir.BlockID) *FuncBuilder {
	b.f.Blocks[bb].Term = mir.Terminator{Kind: mir.TermReturn}
	return b
}

// Switch terminates bb with a branch on discr.
func (b *FuncBuilder) Switch(bb mir.BlockID, discr mir.Operand, otherwise mir.BlockID, targets ...mir.BlockID) *FuncBuilder {
	b.f.Blocks[bb].Term = mir.Terminator{Kind: mir.TermSwitchInt, SwitchInt: mir.SwitchIntTerm{
		Discr:     discr,
		Targets:   targets,
		Otherwise: otherwise,
	}}
	return b
}

// Drop terminates bb with a drop of place.
func (b *FuncBuilder) Drop(bb mir.BlockID, place mir.Place, target mir.BlockID) *FuncBuilder {
	b.f.Blocks[bb].Term = mir.Terminator{Kind: mir.TermDrop, Drop: mir.DropTerm{Place: place, Target: target}}
	return b
}

// Call terminates bb with a call; dst may be invalid for calls without a result.
func (b *FuncBuilder) Call(bb mir.BlockID, fn string, dst mir.Place, target mir.BlockID, args ...mir.Operand) *FuncBuilder {
	b.f.Blocks[bb].Term = mir.Terminator{Kind: mir.TermCall, Call: mir.CallTerm{
		Func:   fn,
		Args:   args,
		HasDst: dst.IsValid(),
		Dst:    dst,
		Target: target,
	}}
	return b
}

// Func returns the built function.
func (b *FuncBuilder) Func() *mir.Func {
	f := b.f
	return &f
}

// Place returns the bare place of l.
func Place(l mir.LocalID) mir.Place { return mir.LocalPlace(l) }

// Deref returns the place `*l`.
func Deref(l mir.LocalID) mir.Place {
	return mir.Place{Local: l, Proj: []mir.PlaceProj{{Kind: mir.PlaceProjDeref}}}
}

// Field returns the place `l.idx`.
func Field(l mir.LocalID, idx int) mir.Place {
	return mir.Place{Local: l, Proj: []mir.PlaceProj{{Kind: mir.PlaceProjField, FieldIdx: idx}}}
}

// NoPlace is the invalid place, used for calls without a destination.
var NoPlace = mir.Place{Local: mir.NoLocalID}

// Copy reads place by copy.
func Copy(place mir.Place) mir.Operand {
	return mir.Operand{Kind: mir.OperandCopy, Place: place}
}

// Move reads place by move.
func Move(place mir.Place) mir.Operand {
	return mir.Operand{Kind: mir.OperandMove, Place: place}
}

// Const is a literal operand.
func Const(text string) mir.Operand {
	return mir.Operand{Kind: mir.OperandConst, Const: text}
}

// Use is the rvalue `op`.
func Use(op mir.Operand) mir.RValue {
	return mir.RValue{Kind: mir.RValueUse, Use: op}
}

// Ref is the rvalue `&place` or `&mut place`.
func Ref(place mir.Place, mut bool) mir.RValue {
	return mir.RValue{Kind: mir.RValueRef, Borrow: mir.Borrow{Mut: mut, Place: place}}
}

// AddrOf is the rvalue `&raw const place` or `&raw mut place`.
func AddrOf(place mir.Place, mut bool) mir.RValue {
	return mir.RValue{Kind: mir.RValueAddressOf, Borrow: mir.Borrow{Mut: mut, Place: place}}
}

// Cast is the rvalue `op as ty`.
func Cast(op mir.Operand, ty string) mir.RValue {
	return mir.RValue{Kind: mir.RValueCast, Cast: mir.CastOp{Value: op, TargetTy: lty.MustParse(ty)}}
}

// Binary is the rvalue `l op r`.
func Binary(op string, l, r mir.Operand) mir.RValue {
	return mir.RValue{Kind: mir.RValueBinaryOp, Binary: mir.BinaryOp{Op: op, Left: l, Right: r}}
}

// Opaque is an rvalue the MIR does not model.
func Opaque(text string) mir.RValue {
	return mir.RValue{Kind: mir.RValueOpaque, Opaque: text}
}
