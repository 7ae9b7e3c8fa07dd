//go:build property
// +build property

package explainer

import (
	"context"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/Mindburn-Labs/conformance/pkg/constraint"
	"github.com/Mindburn-Labs/conformance/pkg/trace"
)

var propLabels = []string{"a", "b", "c"}

func fromInts(xs []int) trace.Trace {
	labels := make([]string, len(xs))
	for i, x := range xs {
		labels[i] = propLabels[x]
	}
	return trace.New(labels...)
}

func propTrace() gopter.Gen {
	return gen.SliceOf(gen.IntRange(0, len(propLabels)-1))
}

// propParameters keeps generated traces short enough for exhaustive search.
func propParameters(runs int) *gopter.TestParameters {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = runs
	parameters.MaxSize = 6
	return parameters
}

func propConstraints() []constraint.Constraint {
	return []constraint.Constraint{
		constraint.Init("a"),
		constraint.Response("a", "b"),
		constraint.End("c"),
		constraint.NotChainSuccession("b", "a"),
	}
}

// TestConformantIsConjunction verifies conformance is the conjunction of the
// per-constraint checks.
func TestConformantIsConjunction(t *testing.T) {
	properties := gopter.NewProperties(propParameters(200))

	cs := propConstraints()
	e := New(DefaultConfig(), cs...)

	properties.Property("conformant iff every constraint is conformant", prop.ForAll(
		func(xs []int) bool {
			tr := fromInts(xs)
			want := true
			for _, c := range cs {
				want = want && (!c.Activates(tr) || c.Satisfied(tr))
			}
			return e.Conformant(tr, nil) == want
		},
		propTrace(),
	))

	properties.TestingRun(t)
}

// TestConformanceRateMatchesCounts verifies the rate is the conformant share
// of occurrences.
func TestConformanceRateMatchesCounts(t *testing.T) {
	properties := gopter.NewProperties(propParameters(100))

	e := New(DefaultConfig(), propConstraints()...)

	properties.Property("rate equals conformant occurrences over size", prop.ForAll(
		func(a, b []int, n, m int) bool {
			log := trace.NewEventLog()
			_ = log.Add(fromInts(a), n)
			_ = log.Add(fromInts(b), m)

			ok := 0
			for tr, count := range log.Variants() {
				if e.Conformant(tr, nil) {
					ok += count
				}
			}
			want := float64(ok) / float64(log.Size())
			return e.ConformanceRate(log, nil) == want &&
				e.ConformanceRate(log, []constraint.Constraint{}) == 1.0
		},
		propTrace(),
		propTrace(),
		gen.IntRange(1, 5),
		gen.IntRange(1, 5),
	))

	properties.TestingRun(t)
}

// TestInactiveConstraintContributesNothing verifies a constraint that never
// activates has zero contribution to conformance.
func TestInactiveConstraintContributesNothing(t *testing.T) {
	properties := gopter.NewProperties(propParameters(100))

	e := New(DefaultConfig())
	cs := append(propConstraints(), constraint.Response("z", "b"))

	properties.Property("contribution of an inactive constraint is zero", prop.ForAll(
		func(a, b []int) bool {
			log := trace.NewEventLog(fromInts(a), fromInts(b))
			got, err := e.ConstraintContributionToConformance(log, cs, len(cs)-1)
			return err == nil && got == 0
		},
		propTrace(),
		propTrace(),
	))

	properties.TestingRun(t)
}

// TestRemoveRoundTrip verifies removing a variant's full count removes it.
func TestRemoveRoundTrip(t *testing.T) {
	properties := gopter.NewProperties(propParameters(100))

	properties.Property("remove(t, count(t)) leaves no occurrence", prop.ForAll(
		func(xs []int, n int) bool {
			tr := fromInts(xs)
			log := trace.NewEventLog()
			_ = log.Add(tr, n)
			_ = log.Add(tr, 1)
			if log.VariantCount(tr) != n+1 {
				return false
			}
			_ = log.Remove(tr, log.VariantCount(tr))
			for range log.All() {
				return false
			}
			return log.VariantCount(tr) == 0
		},
		propTrace(),
		gen.IntRange(1, 10),
	))

	properties.TestingRun(t)
}

// TestCounterfactualIsConformantAndMinimal verifies counterfactuals conform
// and no conformant trace is closer among single edits.
func TestCounterfactualIsConformantAndMinimal(t *testing.T) {
	properties := gopter.NewProperties(propParameters(50))

	e := New(DefaultConfig(), propConstraints()...)

	properties.Property("counterfactual conforms at its edit distance", prop.ForAll(
		func(xs []int) bool {
			tr := fromInts(xs)
			cf, err := e.CounterfactualExpl(context.Background(), tr)
			if err != nil || !cf.Found {
				return false
			}
			if !e.Conformant(cf.Trace, nil) || EditDistance(tr, cf.Trace) != cf.Distance {
				return false
			}
			if cf.Distance > 1 {
				for _, near := range singleEdits(tr) {
					if e.Conformant(near, nil) {
						return false
					}
				}
			}
			return true
		},
		propTrace(),
	))

	properties.TestingRun(t)
}

// TestExplanationIsValid verifies every explaining window violates its
// constraint in isolation and that the trace conforms to the constraints left
// unexplained.
func TestExplanationIsValid(t *testing.T) {
	properties := gopter.NewProperties(propParameters(100))

	for _, minimal := range []bool{false, true} {
		e := New(Config{MinimalSolution: minimal}, propConstraints()...)
		name := "greedy explanation is valid"
		if minimal {
			name = "exhaustive explanation is valid"
		}

		properties.Property(name, prop.ForAll(
			func(xs []int) bool {
				tr := fromInts(xs)
				x, err := e.MinimalExpl(context.Background(), tr)
				if err != nil {
					return false
				}
				if e.Conformant(tr, nil) {
					return x.Empty()
				}
				if x.Empty() {
					return false
				}
				explained := make(map[int]bool)
				for _, v := range x.Violations {
					if constraint.Conformant(v.Constraint, v.Subtrace) || !v.Subtrace.Equal(tr.Sub(v.Start, v.End)) {
						return false
					}
					explained[v.Index] = true
				}
				rest := []constraint.Constraint{}
				for i, c := range e.Constraints() {
					if !explained[i] {
						rest = append(rest, c)
					}
				}
				return e.Conformant(tr, rest)
			},
			propTrace(),
		))
	}

	properties.TestingRun(t)
}

// singleEdits lists every trace one edit away from t over propLabels.
func singleEdits(t trace.Trace) []trace.Trace {
	in := t.Labels()
	var out []trace.Trace
	edit := func(labels ...string) { out = append(out, trace.New(labels...)) }
	for i := 0; i <= len(in); i++ {
		for _, a := range propLabels {
			edit(concat(in[:i], []string{a}, in[i:])...)
			if i < len(in) {
				edit(concat(in[:i], []string{a}, in[i+1:])...)
			}
		}
		if i < len(in) {
			edit(concat(in[:i], in[i+1:])...)
		}
		if i+1 < len(in) {
			edit(concat(in[:i], []string{in[i+1], in[i]}, in[i+2:])...)
		}
	}
	return out
}

func concat(parts ...[]string) []string {
	var out []string
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
