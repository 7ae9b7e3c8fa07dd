package explainer

import (
	"github.com/Mindburn-Labs/conformance/pkg/constraint"
	"github.com/Mindburn-Labs/conformance/pkg/trace"
)

// Activation reports whether any constraint in cs activates on t.
func (e *Engine) Activation(t trace.Trace, cs []constraint.Constraint) bool {
	for _, c := range e.resolve(cs) {
		if c.Activates(t) {
			return true
		}
	}
	return false
}

// Conformant reports whether every constraint in cs is conformant on t.
func (e *Engine) Conformant(t trace.Trace, cs []constraint.Constraint) bool {
	return conformant(t, e.resolve(cs))
}

// Violated returns the held constraints that t violates, in list order.
// Removing exactly these makes t conformant.
func (e *Engine) Violated(t trace.Trace) []constraint.Constraint {
	var out []constraint.Constraint
	for _, c := range e.constraints {
		if !constraint.Conformant(c, t) {
			out = append(out, c)
		}
	}
	return out
}

func conformant(t trace.Trace, cs []constraint.Constraint) bool {
	for _, c := range cs {
		if !constraint.Conformant(c, t) {
			return false
		}
	}
	return true
}
