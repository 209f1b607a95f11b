package program

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"ptrperm/internal/lty"
	"ptrperm/internal/mir"
)

// localScope resolves local references written either as `_N` or by name.
type localScope struct {
	names map[string]mir.LocalID
	count int
}

func (s *localScope) lookup(ref string) (mir.LocalID, error) {
	if id, ok := numericLocal(ref); ok {
		if int(id) >= s.count {
			return mir.NoLocalID, fmt.Errorf("local %s out of range (%d locals)", ref, s.count)
		}
		return id, nil
	}
	if id, ok := s.names[norm.NFC.String(ref)]; ok {
		return id, nil
	}
	return mir.NoLocalID, fmt.Errorf("unknown local %q", ref)
}

func numericLocal(ref string) (mir.LocalID, bool) {
	if len(ref) < 2 || ref[0] != '_' {
		return mir.NoLocalID, false
	}
	n, err := strconv.ParseInt(ref[1:], 10, 32)
	if err != nil || n < 0 {
		return mir.NoLocalID, false
	}
	return mir.LocalID(n), true
}

// cursor walks one statement or terminator line. The accepted grammar is the
// one printed by mir.FormatStmt and mir.FormatTerm, plus named locals.
type cursor struct {
	src   string
	pos   int
	scope *localScope
}

func (c *cursor) errorf(format string, args ...any) error {
	return fmt.Errorf("%q at offset %d: %s", c.src, c.pos, fmt.Sprintf(format, args...))
}

func (c *cursor) skipSpace() {
	for c.pos < len(c.src) && (c.src[c.pos] == ' ' || c.src[c.pos] == '\t') {
		c.pos++
	}
}

func (c *cursor) eof() bool {
	c.skipSpace()
	return c.pos >= len(c.src)
}

func (c *cursor) peek() byte {
	c.skipSpace()
	if c.pos >= len(c.src) {
		return 0
	}
	return c.src[c.pos]
}

func (c *cursor) accept(s string) bool {
	c.skipSpace()
	if strings.HasPrefix(c.src[c.pos:], s) {
		c.pos += len(s)
		return true
	}
	return false
}

// tight is accept without skipping leading space; projections are written
// directly after their base.
func (c *cursor) tight(s string) bool {
	if strings.HasPrefix(c.src[c.pos:], s) {
		c.pos += len(s)
		return true
	}
	return false
}

func (c *cursor) expect(s string) error {
	if !c.accept(s) {
		return c.errorf("expected %q", s)
	}
	return nil
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}

func (c *cursor) word() string {
	c.skipSpace()
	start := c.pos
	for c.pos < len(c.src) {
		r, size := utf8.DecodeRuneInString(c.src[c.pos:])
		if !isWordRune(r) {
			break
		}
		c.pos += size
	}
	return c.src[start:c.pos]
}

// keyword consumes kw only when it is a whole word.
func (c *cursor) keyword(kw string) bool {
	c.skipSpace()
	save := c.pos
	if c.word() == kw {
		return true
	}
	c.pos = save
	return false
}

func (c *cursor) rest() string {
	c.skipSpace()
	out := strings.TrimSpace(c.src[c.pos:])
	c.pos = len(c.src)
	return out
}

func (c *cursor) done() error {
	if !c.eof() {
		return c.errorf("unexpected %q", c.src[c.pos:])
	}
	return nil
}

func (c *cursor) local() (mir.LocalID, error) {
	name := c.word()
	if name == "" {
		return mir.NoLocalID, c.errorf("expected local")
	}
	id, err := c.scope.lookup(name)
	if err != nil {
		return mir.NoLocalID, c.errorf("%v", err)
	}
	return id, nil
}

func (c *cursor) place() (mir.Place, error) {
	l, err := c.local()
	if err != nil {
		return mir.Place{}, err
	}
	p := mir.LocalPlace(l)
	for {
		switch {
		case c.tight(".*"):
			p.Proj = append(p.Proj, mir.PlaceProj{Kind: mir.PlaceProjDeref})
		case c.tight("."):
			digits := c.word()
			idx, err := strconv.Atoi(digits)
			if err != nil || idx < 0 {
				return mir.Place{}, c.errorf("bad field index %q", digits)
			}
			p.Proj = append(p.Proj, mir.PlaceProj{Kind: mir.PlaceProjField, FieldIdx: idx})
		case c.tight("["):
			idx, err := c.local()
			if err != nil {
				return mir.Place{}, err
			}
			if err := c.expect("]"); err != nil {
				return mir.Place{}, err
			}
			p.Proj = append(p.Proj, mir.PlaceProj{Kind: mir.PlaceProjIndex, IndexLocal: idx})
		default:
			return p, nil
		}
	}
}

func (c *cursor) constText() string {
	c.skipSpace()
	start := c.pos
	for c.pos < len(c.src) && !strings.ContainsRune(" \t,)]", rune(c.src[c.pos])) {
		c.pos++
	}
	return c.src[start:c.pos]
}

func (c *cursor) operand() (mir.Operand, error) {
	switch {
	case c.keyword("copy"):
		p, err := c.place()
		return mir.Operand{Kind: mir.OperandCopy, Place: p}, err
	case c.keyword("move"):
		p, err := c.place()
		return mir.Operand{Kind: mir.OperandMove, Place: p}, err
	case c.keyword("const"):
		text := c.constText()
		if text == "" {
			return mir.Operand{}, c.errorf("expected constant")
		}
		return mir.Operand{Kind: mir.OperandConst, Const: text}, nil
	}
	return mir.Operand{}, c.errorf("expected operand (copy, move or const)")
}

func (c *cursor) operandList(closer string) ([]mir.Operand, error) {
	var out []mir.Operand
	if c.accept(closer) {
		return nil, nil
	}
	for {
		op, err := c.operand()
		if err != nil {
			return nil, err
		}
		out = append(out, op)
		if c.accept(closer) {
			return out, nil
		}
		if err := c.expect(","); err != nil {
			return nil, err
		}
	}
}

// binaryOps is ordered so that longer spellings win.
var binaryOps = []string{"==", "!=", "<=", ">=", "<<", ">>", "+", "-", "*", "/", "%", "<", ">", "&", "|", "^"}

func (c *cursor) rvalue() (mir.RValue, error) {
	switch {
	case c.accept("&raw "):
		mut := c.keyword("mut")
		if !mut && !c.keyword("const") {
			return mir.RValue{}, c.errorf("expected mut or const after &raw")
		}
		p, err := c.place()
		return mir.RValue{Kind: mir.RValueAddressOf, Borrow: mir.Borrow{Mut: mut, Place: p}}, err
	case c.accept("&"):
		mut := c.keyword("mut")
		p, err := c.place()
		return mir.RValue{Kind: mir.RValueRef, Borrow: mir.Borrow{Mut: mut, Place: p}}, err
	case c.keyword("len"):
		if err := c.expect("("); err != nil {
			return mir.RValue{}, err
		}
		p, err := c.place()
		if err != nil {
			return mir.RValue{}, err
		}
		return mir.RValue{Kind: mir.RValueLen, Len: p}, c.expect(")")
	case c.keyword("opaque"):
		return mir.RValue{Kind: mir.RValueOpaque, Opaque: c.rest()}, nil
	case c.accept("("):
		elems, err := c.operandList(")")
		return mir.RValue{Kind: mir.RValueAggregate, Aggregate: mir.Aggregate{Elems: elems}}, err
	}
	for _, op := range []string{"!", "-"} {
		if c.accept(op) {
			operand, err := c.operand()
			return mir.RValue{Kind: mir.RValueUnaryOp, Unary: mir.UnaryOp{Op: op, Operand: operand}}, err
		}
	}

	left, err := c.operand()
	if err != nil {
		return mir.RValue{}, err
	}
	if c.keyword("as") {
		ty, err := lty.Parse(c.rest())
		if err != nil {
			return mir.RValue{}, c.errorf("cast target: %v", err)
		}
		return mir.RValue{Kind: mir.RValueCast, Cast: mir.CastOp{Value: left, TargetTy: ty}}, nil
	}
	for _, op := range binaryOps {
		if c.accept(op) {
			right, err := c.operand()
			if err != nil {
				return mir.RValue{}, err
			}
			return mir.RValue{Kind: mir.RValueBinaryOp, Binary: mir.BinaryOp{Op: op, Left: left, Right: right}}, nil
		}
	}
	return mir.RValue{Kind: mir.RValueUse, Use: left}, nil
}

func parseStmt(src string, scope *localScope) (mir.Stmt, error) {
	c := &cursor{src: src, scope: scope}
	var st mir.Stmt
	switch {
	case c.keyword("nop"):
		st.Kind = mir.StmtNop
	case c.keyword("storage_live"):
		st.Kind = mir.StmtStorageLive
		l, err := c.local()
		if err != nil {
			return mir.Stmt{}, err
		}
		st.Local = l
	case c.keyword("storage_dead"):
		st.Kind = mir.StmtStorageDead
		l, err := c.local()
		if err != nil {
			return mir.Stmt{}, err
		}
		st.Local = l
	default:
		dst, err := c.place()
		if err != nil {
			return mir.Stmt{}, err
		}
		if err := c.expect("="); err != nil {
			return mir.Stmt{}, err
		}
		rv, err := c.rvalue()
		if err != nil {
			return mir.Stmt{}, err
		}
		st.Kind = mir.StmtAssign
		st.Assign = mir.AssignStmt{Dst: dst, Src: rv}
	}
	return st, c.done()
}

func (c *cursor) block() (mir.BlockID, error) {
	c.skipSpace()
	if !c.accept("bb") {
		return mir.NoBlockID, c.errorf("expected block label")
	}
	digits := c.word()
	n, err := strconv.ParseInt(digits, 10, 32)
	if err != nil || n < 0 {
		return mir.NoBlockID, c.errorf("bad block label bb%s", digits)
	}
	return mir.BlockID(n), nil
}

func parseTerm(src string, scope *localScope) (mir.Terminator, error) {
	c := &cursor{src: src, scope: scope}
	var term mir.Terminator
	var err error
	switch {
	case c.keyword("return"):
		term.Kind = mir.TermReturn
	case c.keyword("unreachable"):
		term.Kind = mir.TermUnreachable
	case c.keyword("goto"):
		term.Kind = mir.TermGoto
		term.Goto.Target, err = c.block()
	case c.keyword("drop"):
		term.Kind = mir.TermDrop
		if term.Drop.Place, err = c.place(); err != nil {
			return term, err
		}
		if err = c.expect("->"); err != nil {
			return term, err
		}
		term.Drop.Target, err = c.block()
	case c.keyword("switch_int"):
		term.Kind = mir.TermSwitchInt
		term.SwitchInt, err = c.switchArms()
	default:
		term.Kind = mir.TermCall
		term.Call, err = c.call()
	}
	if err != nil {
		return term, err
	}
	return term, c.done()
}

func (c *cursor) switchArms() (mir.SwitchIntTerm, error) {
	sw := mir.SwitchIntTerm{Otherwise: mir.NoBlockID}
	var err error
	if sw.Discr, err = c.operand(); err != nil {
		return sw, err
	}
	if err := c.expect("["); err != nil {
		return sw, err
	}
	for {
		key := c.word()
		if err := c.expect(":"); err != nil {
			return sw, err
		}
		target, err := c.block()
		if err != nil {
			return sw, err
		}
		if key == "otherwise" {
			sw.Otherwise = target
		} else {
			if want := strconv.Itoa(len(sw.Targets)); key != want {
				return sw, c.errorf("switch arm %q out of order, want %s", key, want)
			}
			sw.Targets = append(sw.Targets, target)
		}
		if c.accept("]") {
			break
		}
		if err := c.expect(","); err != nil {
			return sw, err
		}
	}
	if sw.Otherwise == mir.NoBlockID {
		return sw, c.errorf("switch_int without otherwise arm")
	}
	return sw, nil
}

func (c *cursor) call() (mir.CallTerm, error) {
	call := mir.CallTerm{Dst: mir.Place{Local: mir.NoLocalID}, Target: mir.NoBlockID}
	if !c.keyword("call") {
		dst, err := c.place()
		if err != nil {
			return call, err
		}
		if err := c.expect("="); err != nil {
			return call, err
		}
		if !c.keyword("call") {
			return call, c.errorf("expected call")
		}
		call.HasDst = true
		call.Dst = dst
	}
	call.Func = c.word()
	if call.Func == "" {
		return call, c.errorf("expected callee name")
	}
	if err := c.expect("("); err != nil {
		return call, err
	}
	args, err := c.operandList(")")
	if err != nil {
		return call, err
	}
	call.Args = args
	if c.accept("->") {
		call.Target, err = c.block()
	}
	return call, err
}
