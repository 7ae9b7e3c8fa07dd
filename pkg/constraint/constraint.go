// Package constraint defines the constraint contract consumed by the
// explainer and the compiled constraint forms shipped with it.
//
// A constraint has an activation condition and a satisfaction condition.
// A trace that never activates a constraint satisfies it vacuously.
package constraint

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Mindburn-Labs/conformance/pkg/pattern"
	"github.com/Mindburn-Labs/conformance/pkg/trace"
)

// Description identifies a constraint for diagnostics: the template name and
// its parameters.
type Description struct {
	Template string   `json:"template" yaml:"template"`
	Params   []string `json:"params,omitempty" yaml:"params,omitempty"`
}

func (d Description) String() string {
	return d.Template + "(" + strings.Join(d.Params, ", ") + ")"
}

// Constraint is the contract the explainer relies on.
type Constraint interface {
	// Activates reports whether the trace triggers the constraint's obligation.
	Activates(t trace.Trace) bool
	// Satisfied reports whether the whole trace respects the obligation.
	Satisfied(t trace.Trace) bool
	Description() Description
	String() string
}

// Compiled is implemented by constraints backed by label automata. The
// explainer uses it to search the product automaton instead of enumerating
// traces.
type Compiled interface {
	Constraint
	Activation() *pattern.Program
	Satisfaction() *pattern.Program
}

// Labeler is implemented by constraints that can list the labels they refer
// to. Those labels form the alphabet of bounded searches.
type Labeler interface {
	Labels() []string
}

// Conformant reports whether t conforms to c: c is either not activated or
// satisfied.
func Conformant(c Constraint, t trace.Trace) bool {
	return !c.Activates(t) || c.Satisfied(t)
}

// Alphabet returns the sorted union of the labels of every Labeler in cs.
func Alphabet(cs []Constraint) []string {
	seen := make(map[string]struct{})
	for _, c := range cs {
		if l, ok := c.(Labeler); ok {
			for _, s := range l.Labels() {
				seen[s] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	slices.Sort(out)
	return out
}

// Pattern is a constraint compiled from an activation and a satisfaction
// pattern.
type Pattern struct {
	desc         Description
	activation   *pattern.Program
	satisfaction *pattern.Program
}

// NewPattern compiles a pattern constraint. The satisfaction pattern is
// matched against the whole trace. An empty activation pattern activates on
// every trace.
func NewPattern(desc Description, activation, satisfaction string) (*Pattern, error) {
	act, err := pattern.Compile(activation)
	if err != nil {
		return nil, fmt.Errorf("constraint %s: activation: %w", desc, err)
	}
	sat, err := pattern.Compile(anchored(satisfaction))
	if err != nil {
		return nil, fmt.Errorf("constraint %s: satisfaction: %w", desc, err)
	}
	return &Pattern{desc: desc, activation: act, satisfaction: sat}, nil
}

// anchored wraps src in '^' and '$' unless it already carries them.
func anchored(src string) string {
	s := strings.TrimSpace(src)
	if !strings.HasPrefix(s, "^") {
		s = "^ " + s
	}
	if !strings.HasSuffix(s, "$") {
		s += " $"
	}
	return s
}

func (p *Pattern) Activates(t trace.Trace) bool { return p.activation.Find(t.Labels()) }

func (p *Pattern) Satisfied(t trace.Trace) bool { return p.satisfaction.Match(t.Labels()) }

func (p *Pattern) Description() Description { return p.desc }

func (p *Pattern) Activation() *pattern.Program { return p.activation }

func (p *Pattern) Satisfaction() *pattern.Program { return p.satisfaction }

// Labels returns the labels mentioned by either pattern.
func (p *Pattern) Labels() []string {
	out := append(p.activation.Labels(), p.satisfaction.Labels()...)
	slices.Sort(out)
	return slices.Compact(out)
}

func (p *Pattern) String() string { return p.desc.String() }
