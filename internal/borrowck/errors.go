package borrowck

import (
	"errors"
	"fmt"

	"ptrperm/internal/facts"
	"ptrperm/internal/mir"
)

// ErrorKind classifies why a refinement run was aborted.
type ErrorKind uint8

const (
	// KindInternal means the fact set contradicts the function it encodes.
	KindInternal ErrorKind = iota + 1
	// KindUnsupported means a conflict traces back to a borrow shape the
	// refiner cannot yet attribute to a pointer.
	KindUnsupported
	// KindPartialFacts means a fact group was never produced.
	KindPartialFacts
)

func (k ErrorKind) String() string {
	switch k {
	case KindInternal:
		return "internal inconsistency"
	case KindUnsupported:
		return "unsupported case"
	case KindPartialFacts:
		return "partial fact set"
	default:
		return "unknown"
	}
}

var (
	ErrInternalInconsistency = errors.New("internal inconsistency")
	ErrUnsupported           = errors.New("unsupported case")
	ErrPartialFacts          = errors.New("partial fact set")
	// ErrBudgetExhausted is reported through Result.Err, never by Run.
	ErrBudgetExhausted = errors.New("iteration budget exhausted")
)

// Error is a fatal per-function analysis failure.
type Error struct {
	Kind ErrorKind
	Func string
	// Loan is NoLoan when the failure is not about a particular loan.
	Loan facts.Loan
	// Location is meaningful when HasLocation is set.
	Location    mir.Location
	HasLocation bool
	// Stmt is the printed statement involved, if any.
	Stmt string
	// Missing lists the absent groups for KindPartialFacts.
	Missing facts.Group
	Msg     string
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("borrowck %s: %s: %s", e.Func, e.Kind, e.Msg)
	if e.Loan != facts.NoLoan {
		msg += fmt.Sprintf(" (loan %s", e.Loan)
		if e.HasLocation {
			msg += fmt.Sprintf(" at %s", e.Location)
		}
		if e.Stmt != "" {
			msg += fmt.Sprintf(": %s", e.Stmt)
		}
		msg += ")"
	}
	if e.Kind == KindPartialFacts {
		msg += fmt.Sprintf(" (missing %s)", e.Missing)
	}
	return msg
}

// Is matches the sentinel of e's kind.
func (e *Error) Is(target error) bool {
	switch e.Kind {
	case KindInternal:
		return target == ErrInternalInconsistency
	case KindUnsupported:
		return target == ErrUnsupported
	case KindPartialFacts:
		return target == ErrPartialFacts
	}
	return false
}
