// Package explainer checks traces against an ordered set of constraints and
// explains non-conformance.
//
// The Engine answers per-trace questions (activation, conformance, minimal
// and counterfactual explanations, similarity), decides whether the held set
// is contradictory, and aggregates conformance and fitness over event logs.
// Searches are bounded by Config and honour context cancellation.
package explainer

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/Mindburn-Labs/conformance/pkg/constraint"
	"github.com/Mindburn-Labs/conformance/pkg/observability"
	"github.com/Mindburn-Labs/conformance/pkg/trace"
)

// Explainer is the full capability set of a conformance explainer.
//
// Methods taking a constraint slice use the held set when it is nil; a
// non-nil empty slice means no constraints.
type Explainer interface {
	AddConstraint(ctx context.Context, c constraint.Constraint) (bool, error)
	RemoveConstraint(index int) error
	Constraints() []constraint.Constraint

	Activation(t trace.Trace, cs []constraint.Constraint) bool
	Conformant(t trace.Trace, cs []constraint.Constraint) bool
	Contradiction(ctx context.Context, opts ...ContradictionOption) (ContradictionResult, error)

	MinimalExpl(ctx context.Context, t trace.Trace) (Explanation, error)
	CounterfactualExpl(ctx context.Context, t trace.Trace) (Counterfactual, error)
	EvaluateSimilarity(ctx context.Context, t trace.Trace) (float64, error)

	ConformanceRate(log *trace.EventLog, cs []constraint.Constraint) float64
	FitnessRate(log *trace.EventLog, cs []constraint.Constraint) float64
	VariantContributionToConformanceLoss(log *trace.EventLog, t trace.Trace, cs []constraint.Constraint) float64
	VariantContributionToFitness(log *trace.EventLog, t trace.Trace, cs []constraint.Constraint) float64
	ConstraintContributionToConformance(log *trace.EventLog, cs []constraint.Constraint, index int) (float64, error)
	ConstraintContributionToFitness(log *trace.EventLog, cs []constraint.Constraint, index int) (float64, error)
}

var _ Explainer = (*Engine)(nil)

// Config controls search behaviour.
type Config struct {
	// MinimalSolution makes MinimalExpl exhaustive instead of greedy.
	MinimalSolution bool
	// MaxLength bounds the witness length of contradiction checks.
	MaxLength int
	// CheckMultiple re-checks bounded contradiction verdicts at 2*MaxLength.
	CheckMultiple bool
	// MaxEditDistance bounds counterfactual search. Zero means
	// len(trace)+MaxLength.
	MaxEditDistance int
	// MaxCandidates caps the candidates a single search may examine.
	MaxCandidates int

	Logger    *slog.Logger
	Telemetry *observability.Provider
}

const (
	DefaultMaxLength     = 10
	DefaultMaxCandidates = 200000
)

// DefaultConfig returns the default search configuration.
func DefaultConfig() Config {
	return Config{MaxLength: DefaultMaxLength, MaxCandidates: DefaultMaxCandidates}
}

func (c Config) withDefaults() Config {
	if c.MaxLength <= 0 {
		c.MaxLength = DefaultMaxLength
	}
	if c.MaxCandidates <= 0 {
		c.MaxCandidates = DefaultMaxCandidates
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	c.Logger = c.Logger.With("component", "explainer")
	return c
}

// Engine is the automaton-backed Explainer. It is not safe for concurrent
// mutation.
type Engine struct {
	cfg         Config
	constraints []constraint.Constraint
}

// New returns an engine holding cs in order. The set is not checked for
// contradictions; use AddConstraint for guarded insertion.
func New(cfg Config, cs ...constraint.Constraint) *Engine {
	return &Engine{cfg: cfg.withDefaults(), constraints: slices.Clone(cs)}
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// Constraints returns a copy of the held constraint list.
func (e *Engine) Constraints() []constraint.Constraint { return slices.Clone(e.constraints) }

// AddConstraint appends c and rejects it again if the resulting set is
// contradictory. A rejection is not an error.
func (e *Engine) AddConstraint(ctx context.Context, c constraint.Constraint) (bool, error) {
	if c == nil {
		return false, fmt.Errorf("add constraint: nil constraint: %w", ErrInvalidArgument)
	}
	e.constraints = append(e.constraints, c)

	res, err := e.Contradiction(ctx)
	if err != nil {
		e.constraints = e.constraints[:len(e.constraints)-1]
		return false, fmt.Errorf("add constraint %s: %w", c, err)
	}
	if res.Contradictory {
		e.constraints = e.constraints[:len(e.constraints)-1]
		e.cfg.Logger.WarnContext(ctx, "constraint rejected",
			"constraint", c.String(),
			"bound", res.Bound,
			"proven", res.Proven,
		)
		return false, nil
	}
	return true, nil
}

// RemoveConstraint removes the constraint at index.
func (e *Engine) RemoveConstraint(index int) error {
	if index < 0 || index >= len(e.constraints) {
		return fmt.Errorf("remove constraint %d of %d: %w", index, len(e.constraints), ErrIndexOutOfRange)
	}
	e.constraints = slices.Delete(e.constraints, index, index+1)
	return nil
}

func (e *Engine) resolve(cs []constraint.Constraint) []constraint.Constraint {
	if cs == nil {
		return e.constraints
	}
	return cs
}

// alphabet is the sorted union of the constraint labels and the labels of ts.
func alphabet(cs []constraint.Constraint, ts ...trace.Trace) []string {
	out := constraint.Alphabet(cs)
	for _, t := range ts {
		for _, l := range t.All() {
			out = append(out, l)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
