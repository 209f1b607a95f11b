package mir

import (
	"errors"
	"fmt"
)

// Validate checks the structural invariants the analysis relies on and
// reports every violation, not just the first.
func Validate(f *Func) error {
	if f == nil {
		return nil
	}
	checks := []func(*Func) error{
		validateSignature,
		validateBlocksTerminated,
		validateBlockTargets,
		validateLocalIDs,
	}
	errs := make([]error, 0, len(checks))
	for _, check := range checks {
		errs = append(errs, check(f))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("function %s: %w", f.Name, err)
	}
	return nil
}

func validateSignature(f *Func) error {
	var errs []error
	if len(f.Locals) == 0 {
		errs = append(errs, errors.New("missing return place"))
	}
	if f.ArgCount < 0 || (len(f.Locals) > 0 && f.ArgCount > len(f.Locals)-1) {
		errs = append(errs, fmt.Errorf("arg count %d exceeds %d locals", f.ArgCount, len(f.Locals)))
	}
	if len(f.Blocks) == 0 {
		errs = append(errs, errors.New("no basic blocks"))
	} else if f.Block(f.Entry) == nil {
		errs = append(errs, fmt.Errorf("entry bb%d does not exist", f.Entry))
	}
	for i := range f.Locals {
		if f.Locals[i].Ty == nil {
			errs = append(errs, fmt.Errorf("local _%d: missing type", i))
		}
	}
	return errors.Join(errs...)
}

// validateBlocksTerminated also requires Blocks[i].ID == i.
func validateBlocksTerminated(f *Func) error {
	var errs []error
	for i := range f.Blocks {
		if f.Blocks[i].Term.Kind == TermNone {
			errs = append(errs, fmt.Errorf("bb%d: unterminated block", i))
		}
		if int(f.Blocks[i].ID) != i {
			errs = append(errs, fmt.Errorf("bb%d: block carries id bb%d", i, f.Blocks[i].ID))
		}
	}
	return errors.Join(errs...)
}

func validateBlockTargets(f *Func) error {
	var errs []error
	for i := range f.Blocks {
		for _, succ := range f.Blocks[i].Term.Successors() {
			if f.Block(succ) == nil {
				errs = append(errs, fmt.Errorf("bb%d: successor bb%d does not exist", i, succ))
			}
		}
	}
	return errors.Join(errs...)
}

// validateLocalIDs checks every local named by a statement or terminator,
// index locals of projections included.
func validateLocalIDs(f *Func) error {
	var errs []error

	checkLocal := func(id LocalID, at, what string) {
		if f.Local(id) == nil {
			errs = append(errs, fmt.Errorf("%s: %s _%d does not exist", at, what, id))
		}
	}
	checkPlace := func(p Place, at string) {
		checkLocal(p.Local, at, "local")
		for _, proj := range p.Proj {
			if proj.Kind == PlaceProjIndex {
				checkLocal(proj.IndexLocal, at, "index local")
			}
		}
	}
	checkOperand := func(op Operand, at string) {
		if op.Kind == OperandCopy || op.Kind == OperandMove {
			checkPlace(op.Place, at)
		}
	}

	for i := range f.Blocks {
		bb := &f.Blocks[i]
		for j := range bb.Stmts {
			st := &bb.Stmts[j]
			at := Location{Block: bb.ID, Index: j}.String()
			switch st.Kind {
			case StmtAssign:
				checkPlace(st.Assign.Dst, at)
				src := &st.Assign.Src
				for _, op := range src.Operands() {
					checkOperand(op, at)
				}
				switch src.Kind {
				case RValueRef, RValueAddressOf:
					checkPlace(src.Borrow.Place, at)
				case RValueLen:
					checkPlace(src.Len, at)
				}
			case StmtStorageLive, StmtStorageDead:
				checkLocal(st.Local, at, "local")
			}
		}
		at := Location{Block: bb.ID, Index: len(bb.Stmts)}.String()
		switch bb.Term.Kind {
		case TermSwitchInt:
			checkOperand(bb.Term.SwitchInt.Discr, at)
		case TermCall:
			for _, op := range bb.Term.Call.Args {
				checkOperand(op, at)
			}
			if bb.Term.Call.HasDst {
				checkPlace(bb.Term.Call.Dst, at)
			}
		case TermDrop:
			checkPlace(bb.Term.Drop.Place, at)
		}
	}
	return errors.Join(errs...)
}
