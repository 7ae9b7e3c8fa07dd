// Package pattern implements regular patterns over activity labels.
//
// Patterns are the compiled form of declarative constraints. The alphabet is
// the set of activity labels, not characters:
//
//	a b c        the sequence a, b, c
//	.            any single label
//	[a b]        a or b
//	[^a b]       any label other than a and b
//	( ) |        grouping and alternation
//	* + ? {n,m}  repetition
//	^ $          anchors at the very start and end
//
// Labels are identifiers (letters, digits, '_' and '-') or double-quoted
// strings with Go escapes.
package pattern

import (
	"fmt"
	"sort"
	"strconv"
	"unicode"
)

// SyntaxError reports a malformed pattern.
type SyntaxError struct {
	Pattern string
	Offset  int
	Msg     string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("pattern: %s at offset %d in %q", e.Msg, e.Offset, e.Pattern)
}

// Program is a compiled pattern. It is immutable and safe for concurrent use.
type Program struct {
	src         string
	insts       []inst
	start       int
	anchorStart bool
	anchorEnd   bool
	labels      []string
	startSet    StateSet
}

// Compile parses and compiles a pattern.
func Compile(src string) (*Program, error) {
	p := &parser{src: src}
	tree, anchorStart, anchorEnd, err := p.parse()
	if err != nil {
		return nil, err
	}
	if size(tree) > maxInsts {
		return nil, &SyntaxError{Pattern: src, Msg: "pattern too large"}
	}
	c := &compiler{}
	f := c.compile(tree)
	m := c.emit(inst{op: opMatch})
	c.patch(f.out, m)

	prog := &Program{
		src:         src,
		insts:       c.insts,
		start:       f.start,
		anchorStart: anchorStart,
		anchorEnd:   anchorEnd,
		labels:      collectLabels(tree),
	}
	prog.startSet = prog.closure([]int{prog.start})
	return prog, nil
}

// MustCompile is like Compile but panics on error. It is intended for
// patterns built from trusted templates.
func MustCompile(src string) *Program {
	p, err := Compile(src)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the source text.
func (p *Program) String() string { return p.src }

// Labels returns the sorted distinct labels the pattern mentions.
func (p *Program) Labels() []string {
	out := make([]string, len(p.labels))
	copy(out, p.labels)
	return out
}

// AnchoredStart reports whether the pattern began with '^'.
func (p *Program) AnchoredStart() bool { return p.anchorStart }

// AnchoredEnd reports whether the pattern ended with '$'.
func (p *Program) AnchoredEnd() bool { return p.anchorEnd }

// Quote renders a label so that it parses back as a single label.
func Quote(label string) string {
	if label == "" {
		return `""`
	}
	for _, r := range label {
		if !isIdentRune(r) {
			return strconv.Quote(label)
		}
	}
	return label
}

func isIdentRune(r rune) bool {
	return r == '_' || r == '-' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func collectLabels(n *node) []string {
	seen := make(map[string]struct{})
	var walk func(*node)
	walk = func(n *node) {
		switch n.kind {
		case nodeLabel:
			seen[n.label] = struct{}{}
		case nodeClass:
			for _, l := range n.set {
				seen[l] = struct{}{}
			}
		}
		for _, s := range n.subs {
			walk(s)
		}
	}
	walk(n)
	out := make([]string, 0, len(seen))
	for l := range seen {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}
