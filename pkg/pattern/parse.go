package pattern

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

type nodeKind uint8

const (
	nodeEmpty nodeKind = iota
	nodeLabel
	nodeAny
	nodeClass
	nodeConcat
	nodeAlt
	nodeRepeat
)

const unbounded = -1

// MaxRepeat is the largest repetition count accepted in {n,m}.
const MaxRepeat = 1000

type node struct {
	kind   nodeKind
	label  string
	set    []string // nodeClass members
	negate bool     // nodeClass matches labels outside set
	subs   []*node
	min    int // nodeRepeat bounds; max == unbounded for no upper bound
	max    int
}

type parser struct {
	src string
	pos int
}

func (p *parser) errorf(msg string) error {
	return &SyntaxError{Pattern: p.src, Offset: p.pos, Msg: msg}
}

func (p *parser) parse() (n *node, anchorStart, anchorEnd bool, err error) {
	p.skipSpace()
	if p.peek() == '^' {
		anchorStart = true
		p.pos++
	}
	n, err = p.parseAlt()
	if err != nil {
		return nil, false, false, err
	}
	p.skipSpace()
	if p.peek() == '$' {
		anchorEnd = true
		p.pos++
		p.skipSpace()
	}
	if p.pos < len(p.src) {
		return nil, false, false, p.errorf("unexpected " + strconv.QuoteRune(p.peek()))
	}
	return n, anchorStart, anchorEnd, nil
}

func (p *parser) peek() rune {
	if p.pos >= len(p.src) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(p.src[p.pos:])
	return r
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) {
		r, size := utf8.DecodeRuneInString(p.src[p.pos:])
		if !unicode.IsSpace(r) {
			return
		}
		p.pos += size
	}
}

func (p *parser) parseAlt() (*node, error) {
	first, err := p.parseConcat()
	if err != nil {
		return nil, err
	}
	alts := []*node{first}
	for {
		p.skipSpace()
		if p.peek() != '|' {
			break
		}
		p.pos++
		next, err := p.parseConcat()
		if err != nil {
			return nil, err
		}
		alts = append(alts, next)
	}
	if len(alts) == 1 {
		return first, nil
	}
	return &node{kind: nodeAlt, subs: alts}, nil
}

func (p *parser) parseConcat() (*node, error) {
	var items []*node
	for {
		p.skipSpace()
		switch p.peek() {
		case 0, '|', ')':
			return concatOf(items), nil
		case '$':
			// Only legal as the final anchor; parse() decides.
			return concatOf(items), nil
		}
		item, err := p.parseRepeat()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
}

func concatOf(items []*node) *node {
	switch len(items) {
	case 0:
		return &node{kind: nodeEmpty}
	case 1:
		return items[0]
	}
	return &node{kind: nodeConcat, subs: items}
}

func (p *parser) parseRepeat() (*node, error) {
	atom, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	for {
		p.skipSpace()
		switch p.peek() {
		case '*':
			p.pos++
			atom = &node{kind: nodeRepeat, subs: []*node{atom}, min: 0, max: unbounded}
		case '+':
			p.pos++
			atom = &node{kind: nodeRepeat, subs: []*node{atom}, min: 1, max: unbounded}
		case '?':
			p.pos++
			atom = &node{kind: nodeRepeat, subs: []*node{atom}, min: 0, max: 1}
		case '{':
			lo, hi, err := p.parseBounds()
			if err != nil {
				return nil, err
			}
			atom = &node{kind: nodeRepeat, subs: []*node{atom}, min: lo, max: hi}
		default:
			return atom, nil
		}
	}
}

// parseBounds parses {n}, {n,} and {n,m}.
func (p *parser) parseBounds() (int, int, error) {
	p.pos++ // '{'
	lo, ok := p.parseInt()
	if !ok {
		return 0, 0, p.errorf("expected repetition count")
	}
	hi := lo
	p.skipSpace()
	if p.peek() == ',' {
		p.pos++
		p.skipSpace()
		if p.peek() == '}' {
			hi = unbounded
		} else if hi, ok = p.parseInt(); !ok {
			return 0, 0, p.errorf("expected repetition upper bound")
		}
	}
	p.skipSpace()
	if p.peek() != '}' {
		return 0, 0, p.errorf("expected '}'")
	}
	p.pos++
	if lo > MaxRepeat || hi > MaxRepeat {
		return 0, 0, p.errorf("repetition count above " + strconv.Itoa(MaxRepeat))
	}
	if hi != unbounded && hi < lo {
		return 0, 0, p.errorf("repetition upper bound below lower bound")
	}
	return lo, hi, nil
}

func (p *parser) parseInt() (int, bool) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
		p.pos++
	}
	if start == p.pos {
		return 0, false
	}
	n, err := strconv.Atoi(p.src[start:p.pos])
	return n, err == nil
}

func (p *parser) parseAtom() (*node, error) {
	switch r := p.peek(); {
	case r == '.':
		p.pos++
		return &node{kind: nodeAny}, nil
	case r == '(':
		p.pos++
		inner, err := p.parseAlt()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if p.peek() != ')' {
			return nil, p.errorf("missing ')'")
		}
		p.pos++
		return inner, nil
	case r == '[':
		return p.parseClass()
	case r == '"' || isIdentRune(r):
		l, err := p.parseLabel()
		if err != nil {
			return nil, err
		}
		return &node{kind: nodeLabel, label: l}, nil
	default:
		return nil, p.errorf("unexpected " + strconv.QuoteRune(r))
	}
}

func (p *parser) parseClass() (*node, error) {
	p.pos++ // '['
	n := &node{kind: nodeClass}
	p.skipSpace()
	if p.peek() == '^' {
		n.negate = true
		p.pos++
	}
	for {
		p.skipSpace()
		switch r := p.peek(); {
		case r == ']':
			p.pos++
			if len(n.set) == 0 && !n.negate {
				return nil, p.errorf("empty label class")
			}
			return n, nil
		case r == ',':
			p.pos++
		case r == '"' || isIdentRune(r):
			l, err := p.parseLabel()
			if err != nil {
				return nil, err
			}
			n.set = append(n.set, l)
		case r == 0:
			return nil, p.errorf("missing ']'")
		default:
			return nil, p.errorf("unexpected " + strconv.QuoteRune(r) + " in label class")
		}
	}
}

func (p *parser) parseLabel() (string, error) {
	if p.peek() == '"' {
		end := p.pos + 1
		for end < len(p.src) {
			if p.src[end] == '\\' {
				end += 2
				continue
			}
			if p.src[end] == '"' {
				break
			}
			end++
		}
		if end >= len(p.src) {
			return "", p.errorf("unterminated quoted label")
		}
		l, err := strconv.Unquote(p.src[p.pos : end+1])
		if err != nil {
			return "", p.errorf("invalid quoted label")
		}
		p.pos = end + 1
		return l, nil
	}
	var b strings.Builder
	for p.pos < len(p.src) {
		r, size := utf8.DecodeRuneInString(p.src[p.pos:])
		if !isIdentRune(r) {
			break
		}
		b.WriteRune(r)
		p.pos += size
	}
	return b.String(), nil
}
