package explainer

import (
	"fmt"
	"slices"

	"github.com/Mindburn-Labs/conformance/pkg/constraint"
	"github.com/Mindburn-Labs/conformance/pkg/trace"
)

// ConformanceRate is the share of log occurrences that conform to every
// constraint in cs. An empty log has rate 0.
func (e *Engine) ConformanceRate(log *trace.EventLog, cs []constraint.Constraint) float64 {
	return conformanceRate(log, e.resolve(cs))
}

// FitnessRate is the count-weighted mean, over the occurrences of log, of the
// share of constraints in cs the occurrence conforms to. With no constraints
// every occurrence scores 1. An empty log has rate 0.
func (e *Engine) FitnessRate(log *trace.EventLog, cs []constraint.Constraint) float64 {
	return fitnessRate(log, e.resolve(cs))
}

// VariantContributionToConformanceLoss is the change in conformance rate
// when every occurrence of t's variant is removed from log.
func (e *Engine) VariantContributionToConformanceLoss(log *trace.EventLog, t trace.Trace, cs []constraint.Constraint) float64 {
	return variantContribution(log, t, e.resolve(cs), conformanceRate)
}

// VariantContributionToFitness is the change in fitness rate when every
// occurrence of t's variant is removed from log.
func (e *Engine) VariantContributionToFitness(log *trace.EventLog, t trace.Trace, cs []constraint.Constraint) float64 {
	return variantContribution(log, t, e.resolve(cs), fitnessRate)
}

// ConstraintContributionToConformance is the change in conformance rate when
// the constraint at index is excluded from cs.
func (e *Engine) ConstraintContributionToConformance(log *trace.EventLog, cs []constraint.Constraint, index int) (float64, error) {
	return constraintContribution(log, e.resolve(cs), index, conformanceRate)
}

// ConstraintContributionToFitness is the change in fitness rate when the
// constraint at index is excluded from cs.
func (e *Engine) ConstraintContributionToFitness(log *trace.EventLog, cs []constraint.Constraint, index int) (float64, error) {
	return constraintContribution(log, e.resolve(cs), index, fitnessRate)
}

type rateFunc func(*trace.EventLog, []constraint.Constraint) float64

func conformanceRate(log *trace.EventLog, cs []constraint.Constraint) float64 {
	size := log.Size()
	if size == 0 {
		return 0
	}
	ok := 0
	for t, n := range log.Variants() {
		if conformant(t, cs) {
			ok += n
		}
	}
	return float64(ok) / float64(size)
}

func fitnessRate(log *trace.EventLog, cs []constraint.Constraint) float64 {
	size := log.Size()
	if size == 0 {
		return 0
	}
	var sum float64
	for t, n := range log.Variants() {
		sum += float64(n) * traceFitness(t, cs)
	}
	return sum / float64(size)
}

func traceFitness(t trace.Trace, cs []constraint.Constraint) float64 {
	if len(cs) == 0 {
		return 1
	}
	ok := 0
	for _, c := range cs {
		if constraint.Conformant(c, t) {
			ok++
		}
	}
	return float64(ok) / float64(len(cs))
}

func variantContribution(log *trace.EventLog, t trace.Trace, cs []constraint.Constraint, rate rateFunc) float64 {
	if log.VariantCount(t) == 0 {
		return 0
	}
	after := log.Clone()
	after.RemoveVariant(t)
	return rate(after, cs) - rate(log, cs)
}

func constraintContribution(log *trace.EventLog, cs []constraint.Constraint, index int, rate rateFunc) (float64, error) {
	if index < 0 || index >= len(cs) {
		return 0, fmt.Errorf("constraint contribution %d of %d: %w", index, len(cs), ErrIndexOutOfRange)
	}
	rest := slices.Delete(slices.Clone(cs), index, index+1)
	return rate(log, rest) - rate(log, cs), nil
}
