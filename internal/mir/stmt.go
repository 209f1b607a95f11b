package mir

import "ptrperm/internal/lty"

// StmtKind enumerates statement kinds in MIR.
type StmtKind uint8

const (
	// StmtAssign represents an assignment statement.
	StmtAssign StmtKind = iota
	// StmtStorageLive marks the start of a local's storage.
	StmtStorageLive
	// StmtStorageDead marks the end of a local's storage.
	StmtStorageDead
	// StmtNop represents a no-op statement.
	StmtNop
)

// Stmt represents a MIR statement.
type Stmt struct {
	Kind StmtKind

	Assign AssignStmt
	// Local is the subject of StorageLive / StorageDead.
	Local LocalID
}

// AssignStmt represents an assignment statement.
type AssignStmt struct {
	Dst Place
	Src RValue
}

// OperandKind distinguishes operand types.
type OperandKind uint8

const (
	// OperandConst represents a constant operand.
	OperandConst OperandKind = iota
	// OperandCopy represents a copy operand.
	OperandCopy
	// OperandMove represents a move operand.
	OperandMove
)

// Operand represents a MIR operand.
type Operand struct {
	Kind  OperandKind
	Place Place
	// Const keeps the literal text of a constant operand.
	Const string
}

// RValueKind distinguishes right-hand value kinds.
type RValueKind uint8

const (
	// RValueUse represents a use of a value.
	RValueUse RValueKind = iota
	// RValueRef represents a reference borrow `&place` / `&mut place`.
	RValueRef
	// RValueAddressOf represents a raw borrow `&raw const place` / `&raw mut place`.
	RValueAddressOf
	// RValueCast represents a cast operation.
	RValueCast
	// RValueBinaryOp represents a binary operation.
	RValueBinaryOp
	// RValueUnaryOp represents a unary operation.
	RValueUnaryOp
	// RValueAggregate represents a tuple, array or struct construction.
	RValueAggregate
	// RValueLen represents a length query on a slice or array place.
	RValueLen
	// RValueOpaque represents a right-hand side this MIR does not model.
	RValueOpaque
)

func (k RValueKind) String() string {
	switch k {
	case RValueUse:
		return "use"
	case RValueRef:
		return "ref"
	case RValueAddressOf:
		return "address_of"
	case RValueCast:
		return "cast"
	case RValueBinaryOp:
		return "binary_op"
	case RValueUnaryOp:
		return "unary_op"
	case RValueAggregate:
		return "aggregate"
	case RValueLen:
		return "len"
	case RValueOpaque:
		return "opaque"
	default:
		return "unknown"
	}
}

// RValue represents a right-hand value in MIR.
type RValue struct {
	Kind RValueKind

	Use       Operand
	Borrow    Borrow
	Cast      CastOp
	Binary    BinaryOp
	Unary     UnaryOp
	Aggregate Aggregate
	Len       Place
	// Opaque keeps a textual description of an unmodeled right-hand side.
	Opaque string
}

// Borrow is the payload of RValueRef and RValueAddressOf.
type Borrow struct {
	Mut   bool
	Place Place
}

// CastOp represents a cast operation.
type CastOp struct {
	Value    Operand
	TargetTy *lty.Type
}

// BinaryOp represents a binary operation.
type BinaryOp struct {
	Op    string
	Left  Operand
	Right Operand
}

// UnaryOp represents a unary operation.
type UnaryOp struct {
	Op      string
	Operand Operand
}

// Aggregate represents a tuple, array or struct literal.
type Aggregate struct {
	Elems []Operand
}

// IsBorrow reports whether rv takes the address of a place.
func (rv *RValue) IsBorrow() bool {
	return rv.Kind == RValueRef || rv.Kind == RValueAddressOf
}

// Operands lists the operands read by rv. Borrowed and measured places are
// not operands.
func (rv *RValue) Operands() []Operand {
	switch rv.Kind {
	case RValueUse:
		return []Operand{rv.Use}
	case RValueCast:
		return []Operand{rv.Cast.Value}
	case RValueBinaryOp:
		return []Operand{rv.Binary.Left, rv.Binary.Right}
	case RValueUnaryOp:
		return []Operand{rv.Unary.Operand}
	case RValueAggregate:
		return rv.Aggregate.Elems
	}
	return nil
}
