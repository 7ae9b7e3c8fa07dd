// Package conform runs a full conformance analysis of an event log and
// produces a digested report.
package conform

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Mindburn-Labs/conformance/pkg/constraint"
	"github.com/Mindburn-Labs/conformance/pkg/explainer"
	"github.com/Mindburn-Labs/conformance/pkg/observability"
	"github.com/Mindburn-Labs/conformance/pkg/trace"
)

// Engine analyses event logs against the constraints held by an explainer.
type Engine struct {
	x        *explainer.Engine
	clock    func() time.Time
	newID    func() string
	rejected []Rejection
	logger   *slog.Logger
}

// NewEngine creates an analysis engine over x.
func NewEngine(x *explainer.Engine) *Engine {
	return &Engine{
		x:      x,
		clock:  time.Now,
		newID:  uuid.NewString,
		logger: slog.Default().With("component", "conform"),
	}
}

// WithClock overrides the clock for deterministic testing.
func (e *Engine) WithClock(clock func() time.Time) *Engine {
	e.clock = clock
	return e
}

// Rejection records a constraint refused by Admit.
type Rejection struct {
	Constraint string `json:"constraint"`
	ReasonCode string `json:"reason_code"`
}

// Admit adds cs one by one, refusing each constraint that would make the set
// contradictory. Refusals are reported by the next Run.
func (e *Engine) Admit(ctx context.Context, cs ...constraint.Constraint) ([]Rejection, error) {
	var out []Rejection
	for _, c := range cs {
		ok, err := e.x.AddConstraint(ctx, c)
		if err != nil {
			return out, fmt.Errorf("admit %s: %w", c, err)
		}
		if !ok {
			out = append(out, Rejection{Constraint: c.String(), ReasonCode: ReasonConstraintRejected})
		}
	}
	e.rejected = append(e.rejected, out...)
	return out, nil
}

// RunOptions configures an analysis run.
type RunOptions struct {
	LogName string
	// Explain computes minimal and counterfactual explanations for every
	// non-conformant variant.
	Explain bool
	// CheckContradiction checks the constraint set before classifying.
	CheckContradiction bool
}

// Run classifies every variant of log and computes rates and contributions.
func (e *Engine) Run(ctx context.Context, log *trace.EventLog, opts *RunOptions) (_ *ConformanceReport, err error) {
	if opts == nil {
		opts = &RunOptions{}
	}
	start := e.clock()
	cs := e.x.Constraints()

	ctx, done := e.x.Config().Telemetry.TrackOperation(ctx, "conform.run",
		observability.LogOperation(len(cs), log.Size(), log.NumVariants())...)
	defer func() { done(err) }()

	report := &ConformanceReport{
		RunID:       e.newID(),
		LogName:     opts.LogName,
		Timestamp:   start.UTC(),
		Constraints: make([]string, len(cs)),
		Rejected:    e.rejected,
		Variants:    []VariantResult{},
	}
	for i, c := range cs {
		report.Constraints[i] = c.String()
	}

	if opts.CheckContradiction && len(cs) > 0 {
		res, err := e.x.Contradiction(ctx)
		if err != nil {
			return nil, fmt.Errorf("conform: contradiction check: %w", err)
		}
		report.Contradiction = &ContradictionSummary{
			Contradictory: res.Contradictory,
			Proven:        res.Proven,
			Stable:        res.Stable,
			Bounded:       res.Bounded,
			Bound:         res.Bound,
			Witness:       res.Witness.Labels(),
		}
		if res.Contradictory {
			report.ReasonCodes = append(report.ReasonCodes, ReasonContradictionDetected)
		}
		if res.Bounded {
			report.ReasonCodes = append(report.ReasonCodes, ReasonSearchBoundExhausted)
		}
	}

	stats := make([]ConstraintResult, len(cs))
	for i, c := range cs {
		stats[i] = ConstraintResult{Index: i, Constraint: c.String()}
	}

	for t, n := range log.Variants() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := e.classify(ctx, log, t, n, cs, stats, opts)
		if err != nil {
			return nil, err
		}
		report.Summary.Traces += n
		report.Summary.Variants++
		if v.Conformant {
			report.Summary.Conformant += n
		} else {
			report.Summary.NonConformant += n
		}
		report.Variants = append(report.Variants, v)
	}

	for i := range stats {
		var err error
		if stats[i].ConformanceContribution, err = e.x.ConstraintContributionToConformance(log, nil, i); err != nil {
			return nil, err
		}
		if stats[i].FitnessContribution, err = e.x.ConstraintContributionToFitness(log, nil, i); err != nil {
			return nil, err
		}
	}
	report.ConstraintResults = stats
	report.Summary.ConformanceRate = e.x.ConformanceRate(log, nil)
	report.Summary.FitnessRate = e.x.FitnessRate(log, nil)
	report.Pass = report.Summary.NonConformant == 0 &&
		(report.Contradiction == nil || !report.Contradiction.Contradictory)
	report.DurationMs = e.clock().Sub(start).Milliseconds()

	digest, err := report.ComputeDigest()
	if err != nil {
		return nil, err
	}
	report.Digest = digest

	e.logger.InfoContext(ctx, "conformance run complete",
		"run_id", report.RunID,
		"log", opts.LogName,
		"traces", report.Summary.Traces,
		"conformance_rate", report.Summary.ConformanceRate,
		"pass", report.Pass,
	)
	return report, nil
}

func (e *Engine) classify(ctx context.Context, log *trace.EventLog, t trace.Trace, n int, cs []constraint.Constraint, stats []ConstraintResult, opts *RunOptions) (VariantResult, error) {
	v := VariantResult{
		Labels:     t.Labels(),
		Count:      n,
		Conformant: true,
	}
	if v.Labels == nil {
		v.Labels = []string{}
	}
	ok := 0
	for i, c := range cs {
		if c.Activates(t) {
			stats[i].Activations += n
		}
		if constraint.Conformant(c, t) {
			ok++
			continue
		}
		stats[i].Violations += n
		v.Conformant = false
		v.Violated = append(v.Violated, c.String())
	}
	v.Fitness = 1
	if len(cs) > 0 {
		v.Fitness = float64(ok) / float64(len(cs))
	}
	observability.VariantClassified(ctx, t.Len(), n, v.Conformant)
	v.ConformanceLoss = e.x.VariantContributionToConformanceLoss(log, t, nil)
	v.FitnessContribution = e.x.VariantContributionToFitness(log, t, nil)

	if v.Conformant {
		return v, nil
	}
	v.ReasonCodes = []string{ReasonConstraintViolated}
	if !opts.Explain {
		return v, nil
	}

	x, err := e.x.MinimalExpl(ctx, t)
	if err != nil {
		return v, fmt.Errorf("conform: explain %s: %w", t, err)
	}
	for _, w := range x.Violations {
		v.Explanation = append(v.Explanation, ExplanationResult{
			Index:      w.Index,
			Constraint: w.Constraint.String(),
			Start:      w.Start,
			End:        w.End,
			Window:     nonNil(w.Subtrace.Labels()),
		})
	}

	cf, err := e.x.CounterfactualExpl(ctx, t)
	if err != nil {
		return v, fmt.Errorf("conform: counterfactual %s: %w", t, err)
	}
	v.Counterfactual = &CounterfactualResult{
		Found:      cf.Found,
		Bounded:    cf.Bounded,
		Labels:     nonNil(cf.Trace.Labels()),
		Distance:   cf.Distance,
		Similarity: cf.Similarity(t),
	}
	if cf.Bounded {
		v.ReasonCodes = append(v.ReasonCodes, ReasonSearchBoundExhausted)
	}
	return v, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
