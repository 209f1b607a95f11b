package lty

import (
	"fmt"
	"strconv"
	"unicode"

	"ptrperm/internal/perm"
)

// Parse reads a declared type such as `*mut#1 [&#2 i32; 4]`.
// A `#N` suffix on a pointer constructor assigns PointerID N to that node.
func Parse(src string) (*Type, error) {
	p := &typeParser{src: src}
	t, err := p.parseType()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos < len(p.src) {
		return nil, p.errorf("unexpected %q", p.src[p.pos:])
	}
	return t, nil
}

// MustParse is Parse for constant inputs; it panics on error.
func MustParse(src string) *Type {
	t, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return t
}

var primitives = map[string]Kind{
	"i8": KindInt, "i16": KindInt, "i32": KindInt, "i64": KindInt, "isize": KindInt,
	"u8": KindUint, "u16": KindUint, "u32": KindUint, "u64": KindUint, "usize": KindUint,
	"f32": KindFloat, "f64": KindFloat,
	"bool": KindBool,
}

type typeParser struct {
	src string
	pos int
}

func (p *typeParser) errorf(format string, args ...any) error {
	return fmt.Errorf("type %q at %d: %s", p.src, p.pos, fmt.Sprintf(format, args...))
}

func (p *typeParser) skipSpace() {
	for p.pos < len(p.src) && unicode.IsSpace(rune(p.src[p.pos])) {
		p.pos++
	}
}

func (p *typeParser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *typeParser) accept(c byte) bool {
	if p.peek() == c {
		p.pos++
		return true
	}
	return false
}

func (p *typeParser) expect(c byte) error {
	if !p.accept(c) {
		return p.errorf("expected %q", c)
	}
	return nil
}

func (p *typeParser) word() string {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) {
		c := rune(p.src[p.pos])
		if !unicode.IsLetter(c) && !unicode.IsDigit(c) && c != '_' {
			break
		}
		p.pos++
	}
	return p.src[start:p.pos]
}

// keyword consumes kw when it is the next whole word.
func (p *typeParser) keyword(kw string) bool {
	save := p.pos
	if p.word() == kw {
		return true
	}
	p.pos = save
	return false
}

func (p *typeParser) pointerID() (perm.PointerID, error) {
	if p.peek() != '#' {
		return perm.NoPointerID, nil
	}
	p.pos++
	digits := p.word()
	n, err := strconv.ParseUint(digits, 10, 32)
	if err != nil || n == 0 {
		return perm.NoPointerID, p.errorf("bad pointer id %q", digits)
	}
	return perm.PointerID(n), nil
}

func (p *typeParser) parseType() (*Type, error) {
	switch p.peek() {
	case '*':
		p.pos++
		t := &Type{Kind: KindRawPtr}
		switch {
		case p.keyword("mut"):
			t.Mut = true
		case p.keyword("const"):
		default:
			return nil, p.errorf("expected mut or const after *")
		}
		return p.finishPointer(t)
	case '&':
		p.pos++
		t := &Type{Kind: KindRef, Mut: p.keyword("mut")}
		return p.finishPointer(t)
	case '[':
		p.pos++
		elem, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if p.accept(';') {
			n := p.word()
			if _, err := strconv.ParseUint(n, 10, 64); err != nil {
				return nil, p.errorf("bad array length %q", n)
			}
			if err := p.expect(']'); err != nil {
				return nil, err
			}
			return &Type{Kind: KindArray, Name: n, Args: []*Type{elem}}, nil
		}
		if err := p.expect(']'); err != nil {
			return nil, err
		}
		return &Type{Kind: KindSlice, Args: []*Type{elem}}, nil
	case '(':
		p.pos++
		args, err := p.parseList(')')
		if err != nil {
			return nil, err
		}
		if len(args) == 0 {
			return &Type{Kind: KindUnit}, nil
		}
		return &Type{Kind: KindTuple, Args: args}, nil
	}
	name := p.word()
	if name == "" {
		return nil, p.errorf("expected type")
	}
	if kind, ok := primitives[name]; ok {
		return &Type{Kind: kind, Name: name}, nil
	}
	t := &Type{Kind: KindStruct, Name: name}
	if p.accept('<') {
		args, err := p.parseList('>')
		if err != nil {
			return nil, err
		}
		t.Args = args
	}
	return t, nil
}

func (p *typeParser) finishPointer(t *Type) (*Type, error) {
	id, err := p.pointerID()
	if err != nil {
		return nil, err
	}
	t.Label = id
	pointee, err := p.parseType()
	if err != nil {
		return nil, err
	}
	t.Args = []*Type{pointee}
	return t, nil
}

func (p *typeParser) parseList(closer byte) ([]*Type, error) {
	var out []*Type
	if p.accept(closer) {
		return nil, nil
	}
	for {
		t, err := p.parseType()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
		if p.accept(closer) {
			return out, nil
		}
		if err := p.expect(','); err != nil {
			return nil, err
		}
	}
}

// String renders a declared type with its pointer ids.
func String(t *Type) string {
	return Format(t, func(n *Type) string {
		if !n.Label.IsValid() {
			return ""
		}
		return strconv.FormatUint(uint64(n.Label), 10)
	})
}

// Pointers lists the pointer ids of t in pre-order.
func Pointers(t *Type) []perm.PointerID {
	var out []perm.PointerID
	t.Walk(func(n *Type) {
		if n.IsPointer() && n.Label.IsValid() {
			out = append(out, n.Label)
		}
	})
	return out
}
