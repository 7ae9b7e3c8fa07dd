package explainer

import (
	"strings"

	"github.com/Mindburn-Labs/conformance/pkg/constraint"
	"github.com/Mindburn-Labs/conformance/pkg/pattern"
	"github.com/Mindburn-Labs/conformance/pkg/trace"
)

// product runs every Compiled constraint in lockstep. Constraints without
// automata are kept aside and checked on complete candidate traces.
type product struct {
	acts   []*pattern.Program
	sats   []*pattern.Program
	opaque []constraint.Constraint
}

type cstate struct {
	act pattern.FindState
	sat pattern.StateSet
}

type pstate []cstate

func newProduct(cs []constraint.Constraint) *product {
	p := &product{}
	for _, c := range cs {
		if cc, ok := c.(constraint.Compiled); ok {
			p.acts = append(p.acts, cc.Activation())
			p.sats = append(p.sats, cc.Satisfaction())
			continue
		}
		p.opaque = append(p.opaque, c)
	}
	return p
}

// exact reports whether product states fully determine conformance.
func (p *product) exact() bool { return len(p.opaque) == 0 }

func (p *product) start() pstate {
	s := make(pstate, len(p.acts))
	for i := range s {
		s[i] = cstate{act: p.acts[i].FindStart(), sat: p.sats[i].Start()}
	}
	return s
}

func (p *product) step(s pstate, label string) pstate {
	next := make(pstate, len(s))
	for i, cs := range s {
		next[i] = cstate{
			act: p.acts[i].FindStep(cs.act, label),
			sat: p.sats[i].Step(cs.sat, label),
		}
	}
	return next
}

// accepting reports whether a trace ending in s conforms to every compiled
// constraint.
func (p *product) accepting(s pstate) bool {
	for i, cs := range s {
		if p.acts[i].Found(cs.act) && !p.sats[i].Accepting(cs.sat) {
			return false
		}
	}
	return true
}

// dead reports whether no extension of a trace reaching s can conform: some
// constraint has been activated for good and can no longer be satisfied.
func (p *product) dead(s pstate) bool {
	for i, cs := range s {
		if len(cs.sat) == 0 && p.acts[i].Found(cs.act) && p.acts[i].Settled(cs.act) {
			return true
		}
	}
	return false
}

func (p *product) key(s pstate) string {
	var b strings.Builder
	for _, cs := range s {
		b.WriteString(cs.act.Key())
		b.WriteByte('/')
		b.WriteString(cs.sat.Key())
		b.WriteByte(';')
	}
	return b.String()
}

func (p *product) opaqueConformant(labels []string) bool {
	if len(p.opaque) == 0 {
		return true
	}
	return conformant(trace.New(labels...), p.opaque)
}
