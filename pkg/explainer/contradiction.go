package explainer

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/Mindburn-Labs/conformance/pkg/observability"
	"github.com/Mindburn-Labs/conformance/pkg/trace"
)

// OtherLabel stands for every activity the constraints do not mention when
// contradiction search builds its alphabet. It is suffixed with '_' until it
// collides with no real label.
const OtherLabel = "_other"

var errCandidateLimit = errors.New("explainer: candidate limit reached")

// ContradictionResult is the outcome of a contradiction check.
type ContradictionResult struct {
	// Contradictory is true when no witness was found within Bound.
	Contradictory bool
	// Witness is the shortest, then lexicographically smallest, trace
	// conforming to every constraint. It may contain the fresh "other"
	// label.
	Witness trace.Trace
	// Bound is the largest witness length searched.
	Bound int
	// Proven is set when the verdict holds for every length: a witness was
	// found, or the reachable product states were exhausted.
	Proven bool
	// Stable is set when the verdict did not change between the checked
	// bounds, or was proven.
	Stable bool
	// Bounded marks a contradictory verdict that only holds up to Bound.
	Bounded bool
}

type contradictionOptions struct {
	maxLength     int
	checkMultiple bool
}

// ContradictionOption overrides the configured search bounds for one call.
type ContradictionOption func(*contradictionOptions)

// WithMaxLength sets the witness length bound.
func WithMaxLength(n int) ContradictionOption {
	return func(o *contradictionOptions) { o.maxLength = n }
}

// WithCheckMultiple toggles the second check at twice the bound.
func WithCheckMultiple(v bool) ContradictionOption {
	return func(o *contradictionOptions) { o.checkMultiple = v }
}

// Contradiction reports whether no trace of bounded length conforms to every
// held constraint.
func (e *Engine) Contradiction(ctx context.Context, opts ...ContradictionOption) (res ContradictionResult, err error) {
	o := contradictionOptions{maxLength: e.cfg.MaxLength, checkMultiple: e.cfg.CheckMultiple}
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxLength < 0 {
		return res, fmt.Errorf("contradiction: negative bound %d: %w", o.maxLength, ErrInvalidArgument)
	}
	if len(e.constraints) == 0 {
		return res, fmt.Errorf("contradiction: empty constraint set: %w", ErrInvalidArgument)
	}

	ctx, done := e.cfg.Telemetry.TrackOperation(ctx, "explainer.contradiction",
		observability.SearchOperation(len(e.constraints), 0, o.maxLength, "product")...)
	defer func() { done(err) }()

	p := newProduct(e.constraints)
	alpha := withOther(alphabet(e.constraints))

	res, err = e.contradictionAt(ctx, p, alpha, o.maxLength)
	if err != nil {
		return ContradictionResult{}, err
	}
	if res.Proven || !o.checkMultiple {
		res.Stable = res.Proven
		return res, nil
	}

	second, err := e.contradictionAt(ctx, p, alpha, 2*o.maxLength)
	if err != nil {
		return ContradictionResult{}, err
	}
	second.Stable = second.Contradictory == res.Contradictory
	if !second.Stable {
		e.cfg.Logger.InfoContext(ctx, "contradiction verdict changed with larger bound",
			"bound", o.maxLength,
			"larger_bound", second.Bound,
		)
	}
	return second, nil
}

func (e *Engine) contradictionAt(ctx context.Context, p *product, alpha []string, bound int) (ContradictionResult, error) {
	res := ContradictionResult{Bound: bound}
	var (
		witness   []string
		found     bool
		exhausted bool
		err       error
	)
	if p.exact() {
		witness, found, exhausted, err = e.productSearch(ctx, p, alpha, bound)
	} else {
		witness, found, err = e.enumerate(ctx, p, alpha, bound)
		if errors.Is(err, errCandidateLimit) {
			e.cfg.Logger.WarnContext(ctx, "contradiction enumeration capped",
				"max_candidates", e.cfg.MaxCandidates,
				"bound", bound,
			)
			err = nil
		}
	}
	if err != nil {
		return res, err
	}

	switch {
	case found:
		res.Witness = trace.New(witness...)
		res.Proven = true
	case exhausted:
		res.Contradictory = true
		res.Proven = true
	default:
		res.Contradictory = true
		res.Bounded = true
	}
	return res, nil
}

// productSearch runs a breadth-first search over the product automaton.
// Visiting labels in sorted order makes the first accepting state found the
// end of the shortest, then lexicographically smallest, witness.
func (e *Engine) productSearch(ctx context.Context, p *product, alpha []string, bound int) (witness []string, found, exhausted bool, err error) {
	type node struct {
		s      pstate
		parent int
		label  string
	}

	start := p.start()
	if p.dead(start) {
		return nil, false, true, nil
	}
	nodes := []node{{s: start, parent: -1}}
	seen := map[string]struct{}{p.key(start): {}}
	frontier := []int{0}

	path := func(id int) []string {
		var out []string
		for ; nodes[id].parent >= 0; id = nodes[id].parent {
			out = append(out, nodes[id].label)
		}
		slices.Reverse(out)
		return out
	}

	for depth := 0; ; depth++ {
		for _, id := range frontier {
			if p.accepting(nodes[id].s) {
				return path(id), true, false, nil
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, false, false, err
		}
		if len(nodes) > e.cfg.MaxCandidates {
			e.cfg.Logger.WarnContext(ctx, "product search capped",
				"max_candidates", e.cfg.MaxCandidates,
				"depth", depth,
			)
			return nil, false, false, nil
		}

		var next []int
		for _, id := range frontier {
			for _, a := range alpha {
				s := p.step(nodes[id].s, a)
				if p.dead(s) {
					continue
				}
				k := p.key(s)
				if _, ok := seen[k]; ok {
					continue
				}
				seen[k] = struct{}{}
				nodes = append(nodes, node{s: s, parent: id, label: a})
				next = append(next, len(nodes)-1)
			}
		}
		if len(next) == 0 {
			return nil, false, true, nil
		}
		if depth == bound {
			return nil, false, false, nil
		}
		frontier = next
	}
}

// enumerate checks candidate traces by increasing length when some
// constraints are opaque. The compiled constraints still prune dead
// prefixes.
func (e *Engine) enumerate(ctx context.Context, p *product, alpha []string, bound int) ([]string, bool, error) {
	budget := e.cfg.MaxCandidates
	buf := make([]string, 0, bound)

	var walk func(s pstate, n int) (bool, error)
	walk = func(s pstate, n int) (bool, error) {
		if p.dead(s) {
			return false, nil
		}
		if len(buf) == n {
			if budget--; budget < 0 {
				return false, errCandidateLimit
			}
			return p.accepting(s) && p.opaqueConformant(buf), nil
		}
		if err := ctx.Err(); err != nil {
			return false, err
		}
		for _, a := range alpha {
			buf = append(buf, a)
			ok, err := walk(p.step(s, a), n)
			if ok || err != nil {
				return ok, err
			}
			buf = buf[:len(buf)-1]
		}
		return false, nil
	}

	for n := 0; n <= bound; n++ {
		ok, err := walk(p.start(), n)
		if err != nil {
			return nil, false, err
		}
		if ok {
			return slices.Clone(buf), true, nil
		}
	}
	return nil, false, nil
}

// freshLabel returns OtherLabel suffixed until it is not in alpha.
func freshLabel(alpha []string) string {
	other := OtherLabel
	for slices.Contains(alpha, other) {
		other += "_"
	}
	return other
}

func withOther(alpha []string) []string {
	out := append(slices.Clone(alpha), freshLabel(alpha))
	slices.Sort(out)
	return out
}
