package borrowck

import (
	"errors"

	"ptrperm/internal/borrowck/defuse"
	"ptrperm/internal/borrowck/typecheck"
	"ptrperm/internal/facts"
	"ptrperm/internal/mir"
	"ptrperm/internal/perm"
	"ptrperm/internal/polonius"
)

// LoanGenerator issues loans for the borrows of a labeled function. It must
// mark facts.GroupLoans once its facts are in place.
type LoanGenerator interface {
	GenerateLoans(in *facts.LoanInput, all *facts.AllFacts, maps *facts.Maps) (facts.LoanIndex, error)
}

// DefUseGenerator derives invalidations (facts.GroupInvalidations) and
// def/use/drop facts (facts.GroupDefUse).
type DefUseGenerator interface {
	LoanInvalidations(f *mir.Func, loans facts.LoanIndex, all *facts.AllFacts, maps *facts.Maps) error
	DefUse(f *mir.Func, all *facts.AllFacts, maps *facts.Maps) error
}

// Solver computes conflicts from a complete fact set. It must not mutate it.
type Solver interface {
	Compute(all *facts.AllFacts) (*facts.Output, error)
}

// Propagator weakens a hypothesis in place and reports whether it did.
type Propagator interface {
	Propagate(h perm.Hypothesis) bool
}

// Collaborators bundles the components the refinement loop drives.
type Collaborators struct {
	Loans    LoanGenerator
	DefUse   DefUseGenerator
	Solver   Solver
	Dataflow Propagator
}

// Defaults returns the built-in loan generator, def-use pass and solver
// around the given propagator.
func Defaults(dataflow Propagator) Collaborators {
	return Collaborators{
		Loans:    typecheck.Generator{},
		DefUse:   defuse.Generator{},
		Solver:   polonius.Naive{},
		Dataflow: dataflow,
	}
}

func (c Collaborators) validate() error {
	var errs []error
	if c.Loans == nil {
		errs = append(errs, errors.New("missing loan generator"))
	}
	if c.DefUse == nil {
		errs = append(errs, errors.New("missing def-use generator"))
	}
	if c.Solver == nil {
		errs = append(errs, errors.New("missing solver"))
	}
	if c.Dataflow == nil {
		errs = append(errs, errors.New("missing dataflow propagator"))
	}
	return errors.Join(errs...)
}
