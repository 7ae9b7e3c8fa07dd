package pattern

import (
	"slices"
	"strconv"
	"strings"
)

// StateSet is a sorted set of NFA positions after epsilon closure.
type StateSet []int

// Key returns a canonical string for use as a map key.
func (s StateSet) Key() string {
	var b strings.Builder
	for i, pc := range s {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(pc))
	}
	return b.String()
}

func (p *Program) closure(pcs []int) StateSet {
	seen := make([]bool, len(p.insts))
	stack := append([]int(nil), pcs...)
	var out StateSet
	for len(stack) > 0 {
		pc := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if pc < 0 || seen[pc] {
			continue
		}
		seen[pc] = true
		switch in := &p.insts[pc]; in.op {
		case opSplit:
			stack = append(stack, in.y, in.x)
		case opNop:
			stack = append(stack, in.x)
		default:
			out = append(out, pc)
		}
	}
	slices.Sort(out)
	return out
}

// Start returns the initial state set.
func (p *Program) Start() StateSet { return p.startSet }

// Step advances every state in s over one label.
func (p *Program) Step(s StateSet, label string) StateSet {
	var next []int
	for _, pc := range s {
		if in := &p.insts[pc]; in.consumes(label) {
			next = append(next, in.x)
		}
	}
	if len(next) == 0 {
		return nil
	}
	return p.closure(next)
}

// Accepting reports whether s contains the match state.
func (p *Program) Accepting(s StateSet) bool {
	for _, pc := range s {
		if p.insts[pc].op == opMatch {
			return true
		}
	}
	return false
}

func union(a, b StateSet) StateSet {
	if len(a) == 0 {
		return b
	}
	out := make(StateSet, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			out = append(out, a[i])
			i++
		case a[i] > b[j]:
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}

// Match reports whether the whole label sequence matches, regardless of
// explicit anchors.
func (p *Program) Match(labels []string) bool {
	s := p.Start()
	for _, l := range labels {
		if s = p.Step(s, l); len(s) == 0 {
			return false
		}
	}
	return p.Accepting(s)
}

// Find reports whether an occurrence of the pattern appears in the label
// sequence. Explicit anchors restrict where the occurrence may start and end.
func (p *Program) Find(labels []string) bool {
	st := p.FindStart()
	for _, l := range labels {
		if st.hit {
			return true
		}
		st = p.FindStep(st, l)
	}
	return p.Found(st)
}

// FindState is the incremental state of a Find scan.
type FindState struct {
	set StateSet
	hit bool
}

// Key returns a canonical string for use as a map key.
func (f FindState) Key() string {
	if f.hit {
		return "!"
	}
	return f.set.Key()
}

// FindStart begins an incremental Find scan.
func (p *Program) FindStart() FindState {
	st := FindState{set: p.Start()}
	if !p.anchorEnd && p.Accepting(st.set) {
		return FindState{hit: true}
	}
	return st
}

// FindStep consumes one label. Once an occurrence has been seen by a pattern
// without an end anchor the state no longer changes.
func (p *Program) FindStep(st FindState, label string) FindState {
	if st.hit {
		return st
	}
	next := p.Step(st.set, label)
	if !p.anchorStart {
		next = union(next, p.startSet)
	}
	if !p.anchorEnd && p.Accepting(next) {
		return FindState{hit: true}
	}
	return FindState{set: next}
}

// Found reports whether the scan has seen an occurrence, treating the
// current position as the end of the sequence.
func (p *Program) Found(st FindState) bool {
	return st.hit || (p.anchorEnd && p.Accepting(st.set))
}

// Settled reports whether no further input can change the result of Found.
func (p *Program) Settled(st FindState) bool {
	return st.hit || len(st.set) == 0
}
