package explainer

import (
	"context"

	"github.com/Mindburn-Labs/conformance/pkg/constraint"
	"github.com/Mindburn-Labs/conformance/pkg/observability"
	"github.com/Mindburn-Labs/conformance/pkg/trace"
)

// Violation is a constraint together with the contiguous window of the trace
// on which it is already non-conformant in isolation.
type Violation struct {
	Index      int
	Constraint constraint.Constraint
	Start      int
	End        int
	Subtrace   trace.Trace
}

// Explanation says why a trace is non-conformant: one violation per violated
// constraint, in list order. Removing the explaining constraints leaves the
// trace conformant to the rest. It is empty for a conformant trace.
type Explanation struct {
	Violations []Violation
}

// Empty reports whether the explanation holds no violation.
func (x Explanation) Empty() bool { return len(x.Violations) == 0 }

// Constraints returns the explaining constraints.
func (x Explanation) Constraints() []constraint.Constraint {
	out := make([]constraint.Constraint, len(x.Violations))
	for i, v := range x.Violations {
		out[i] = v.Constraint
	}
	return out
}

// MinimalExpl explains why t does not conform to the held constraints.
//
// Every violated constraint is reported with a window of t on which it is
// non-conformant in isolation. The greedy search shrinks the whole trace from
// the left and then from the right while the window stays non-conformant.
// With MinimalSolution set all windows are tried and the shortest, then
// leftmost, one is kept.
func (e *Engine) MinimalExpl(ctx context.Context, t trace.Trace) (x Explanation, err error) {
	strategy := "greedy"
	if e.cfg.MinimalSolution {
		strategy = "exhaustive"
	}
	ctx, done := e.cfg.Telemetry.TrackOperation(ctx, "explainer.minimal_expl",
		observability.SearchOperation(len(e.constraints), t.Len(), t.Len(), strategy)...)
	defer func() { done(err) }()

	for i, c := range e.constraints {
		if constraint.Conformant(c, t) {
			continue
		}
		var v Violation
		if e.cfg.MinimalSolution {
			if v, err = shortestWindow(ctx, c, t); err != nil {
				return Explanation{}, err
			}
		} else {
			if v, err = shrinkWindow(ctx, c, t); err != nil {
				return Explanation{}, err
			}
		}
		v.Index = i
		x.Violations = append(x.Violations, v)
		e.cfg.Logger.DebugContext(ctx, "violation explained",
			"constraint", c.String(),
			"start", v.Start,
			"end", v.End,
		)
	}
	return x, nil
}

func window(c constraint.Constraint, t trace.Trace, start, end int) Violation {
	return Violation{Constraint: c, Start: start, End: end, Subtrace: t.Sub(start, end)}
}

// shrinkWindow narrows the violating window [0, len(t)) greedily. c must be
// non-conformant on t.
func shrinkWindow(ctx context.Context, c constraint.Constraint, t trace.Trace) (Violation, error) {
	start, end := 0, t.Len()
	for end-start > 1 && !constraint.Conformant(c, t.Sub(start+1, end)) {
		start++
	}
	if err := ctx.Err(); err != nil {
		return Violation{}, err
	}
	for end-start > 1 && !constraint.Conformant(c, t.Sub(start, end-1)) {
		end--
	}
	return window(c, t, start, end), nil
}

// shortestWindow finds the shortest, then leftmost, window of t on which c
// is non-conformant. Windows are non-empty unless t itself is empty. c must
// be non-conformant on t.
func shortestWindow(ctx context.Context, c constraint.Constraint, t trace.Trace) (Violation, error) {
	n := t.Len()
	for size := min(1, n); size < n; size++ {
		if err := ctx.Err(); err != nil {
			return Violation{}, err
		}
		for start := 0; start+size <= n; start++ {
			if !constraint.Conformant(c, t.Sub(start, start+size)) {
				return window(c, t, start, start+size), nil
			}
		}
	}
	return window(c, t, 0, n), nil
}
