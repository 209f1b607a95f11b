// Package lty implements type trees whose every node carries a label.
//
// Declared local types are Labeled[perm.PointerID]: pointer-shaped nodes carry
// the identity of that pointer position. Analyses relabel those trees with
// their own per-node data (origins, resolved permissions) without changing
// the shape.
package lty

import (
	"strings"

	"ptrperm/internal/perm"
)

// Kind enumerates type constructors.
type Kind uint8

const (
	KindInt Kind = iota
	KindUint
	KindFloat
	KindBool
	KindUnit
	KindRawPtr
	KindRef
	KindArray
	KindSlice
	KindTuple
	KindStruct
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindUnit:
		return "unit"
	case KindRawPtr:
		return "rawptr"
	case KindRef:
		return "ref"
	case KindArray:
		return "array"
	case KindSlice:
		return "slice"
	case KindTuple:
		return "tuple"
	case KindStruct:
		return "struct"
	default:
		return "unknown"
	}
}

// Labeled is one node of a labeled type tree.
type Labeled[L any] struct {
	Kind Kind
	// Mut is set for `*mut` and `&mut` nodes.
	Mut bool
	// Name is the primitive or struct name; for arrays it holds the length.
	Name  string
	Args  []*Labeled[L]
	Label L
}

// Type is a declared type labeled with pointer identities.
type Type = Labeled[perm.PointerID]

// IsPointer reports whether the node is pointer or reference shaped.
func (t *Labeled[L]) IsPointer() bool {
	return t != nil && (t.Kind == KindRawPtr || t.Kind == KindRef)
}

// Relabel builds a tree of the same shape whose labels are computed by f.
// Children are relabeled before their parent, so f observes nodes in
// post-order.
func Relabel[L, M any](t *Labeled[L], f func(*Labeled[L]) M) *Labeled[M] {
	if t == nil {
		return nil
	}
	var args []*Labeled[M]
	if len(t.Args) > 0 {
		args = make([]*Labeled[M], len(t.Args))
		for i, a := range t.Args {
			args[i] = Relabel(a, f)
		}
	}
	return &Labeled[M]{
		Kind:  t.Kind,
		Mut:   t.Mut,
		Name:  t.Name,
		Args:  args,
		Label: f(t),
	}
}

// Walk visits every node in pre-order.
func (t *Labeled[L]) Walk(fn func(*Labeled[L])) {
	if t == nil {
		return
	}
	fn(t)
	for _, a := range t.Args {
		a.Walk(fn)
	}
}

// ForEachLabel calls fn with every label in pre-order.
func (t *Labeled[L]) ForEachLabel(fn func(L)) {
	t.Walk(func(n *Labeled[L]) { fn(n.Label) })
}

// Format renders the tree using the type syntax accepted by Parse.
// label, when non-nil, returns a suffix printed after pointer constructors.
func Format[L any](t *Labeled[L], label func(*Labeled[L]) string) string {
	var sb strings.Builder
	format(&sb, t, label)
	return sb.String()
}

func format[L any](sb *strings.Builder, t *Labeled[L], label func(*Labeled[L]) string) {
	if t == nil {
		sb.WriteString("?")
		return
	}
	suffix := func() {
		if label == nil {
			return
		}
		if s := label(t); s != "" {
			sb.WriteString("#")
			sb.WriteString(s)
		}
	}
	switch t.Kind {
	case KindRawPtr:
		if t.Mut {
			sb.WriteString("*mut")
		} else {
			sb.WriteString("*const")
		}
		suffix()
		sb.WriteString(" ")
		format(sb, arg(t, 0), label)
	case KindRef:
		sb.WriteString("&")
		if t.Mut {
			sb.WriteString("mut")
		}
		suffix()
		sb.WriteString(" ")
		format(sb, arg(t, 0), label)
	case KindArray:
		sb.WriteString("[")
		format(sb, arg(t, 0), label)
		sb.WriteString("; ")
		sb.WriteString(t.Name)
		sb.WriteString("]")
	case KindSlice:
		sb.WriteString("[")
		format(sb, arg(t, 0), label)
		sb.WriteString("]")
	case KindTuple, KindUnit:
		sb.WriteString("(")
		for i, a := range t.Args {
			if i > 0 {
				sb.WriteString(", ")
			}
			format(sb, a, label)
		}
		sb.WriteString(")")
	case KindStruct:
		sb.WriteString(t.Name)
		if len(t.Args) > 0 {
			sb.WriteString("<")
			for i, a := range t.Args {
				if i > 0 {
					sb.WriteString(", ")
				}
				format(sb, a, label)
			}
			sb.WriteString(">")
		}
	default:
		sb.WriteString(t.Name)
	}
}

func arg[L any](t *Labeled[L], i int) *Labeled[L] {
	if i < len(t.Args) {
		return t.Args[i]
	}
	return nil
}
