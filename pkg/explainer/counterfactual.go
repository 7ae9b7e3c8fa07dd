package explainer

import (
	"container/heap"
	"context"
	"slices"
	"strconv"
	"strings"

	"github.com/Mindburn-Labs/conformance/pkg/observability"
	"github.com/Mindburn-Labs/conformance/pkg/trace"
)

// Counterfactual is the conformant trace nearest to an input trace.
type Counterfactual struct {
	Trace    trace.Trace
	Distance int
	// Found is false when no conformant trace exists within the edit bound.
	Found bool
	// Bounded is set when the search stopped at a bound without an answer.
	Bounded bool
}

// CounterfactualExpl returns the trace conformant to the held constraints
// with the smallest edit distance to t. Edits are insertion, deletion,
// substitution and transposition of adjacent labels, each of cost one. Ties
// go to the lexicographically smallest result.
//
// Inserted or substituted labels are drawn from the constraint and trace
// labels plus OtherLabel, which stands for any activity none of them names.
// OtherLabel orders after every real label, so it only appears when no
// equally near trace of real labels exists.
func (e *Engine) CounterfactualExpl(ctx context.Context, t trace.Trace) (cf Counterfactual, err error) {
	if conformant(t, e.constraints) {
		return Counterfactual{Trace: t, Found: true}, nil
	}

	maxDist := e.cfg.MaxEditDistance
	if maxDist <= 0 {
		maxDist = t.Len() + e.cfg.MaxLength
	}
	ctx, done := e.cfg.Telemetry.TrackOperation(ctx, "explainer.counterfactual",
		observability.SearchOperation(len(e.constraints), t.Len(), maxDist, "uniform-cost")...)
	defer func() { done(err) }()

	p := newProduct(e.constraints)
	alpha := alphabet(e.constraints, t)
	other := freshLabel(alpha)
	cf, err = e.counterfactual(ctx, p, append(alpha, other), other, t.Labels(), maxDist)
	if err != nil {
		return Counterfactual{}, err
	}
	if !cf.Found {
		e.cfg.Logger.InfoContext(ctx, "no counterfactual within bound",
			"trace", t.String(),
			"max_edit_distance", maxDist,
		)
	}
	return cf, nil
}

// EvaluateSimilarity returns 1 - d/max(len(t), len(cf)) for the nearest
// counterfactual cf at distance d, and 0 when there is none.
func (e *Engine) EvaluateSimilarity(ctx context.Context, t trace.Trace) (float64, error) {
	cf, err := e.CounterfactualExpl(ctx, t)
	if err != nil {
		return 0, err
	}
	return cf.Similarity(t), nil
}

// Similarity scores cf against the trace it was computed for.
func (cf Counterfactual) Similarity(t trace.Trace) float64 {
	if !cf.Found {
		return 0
	}
	return similarity(cf.Distance, t.Len(), cf.Trace.Len())
}

func similarity(d, a, b int) float64 {
	n := max(a, b)
	if n == 0 || d == 0 {
		return 1
	}
	return 1 - float64(d)/float64(n)
}

type cfNode struct {
	cost int
	i    int
	out  []string
	s    pstate
	seq  int
}

// cfQueue orders nodes by cost, then output sequence, then insertion. The
// fresh label compares after every other label.
type cfQueue struct {
	nodes []*cfNode
	other string
}

func (q *cfQueue) Len() int { return len(q.nodes) }

func (q *cfQueue) Less(i, j int) bool {
	a, b := q.nodes[i], q.nodes[j]
	if a.cost != b.cost {
		return a.cost < b.cost
	}
	if c := slices.CompareFunc(a.out, b.out, q.compareLabels); c != 0 {
		return c < 0
	}
	return a.seq < b.seq
}

func (q *cfQueue) compareLabels(x, y string) int {
	switch {
	case x == y:
		return 0
	case x == q.other:
		return 1
	case y == q.other:
		return -1
	}
	return strings.Compare(x, y)
}

func (q *cfQueue) Swap(i, j int) { q.nodes[i], q.nodes[j] = q.nodes[j], q.nodes[i] }

func (q *cfQueue) Push(x any) { q.nodes = append(q.nodes, x.(*cfNode)) }

func (q *cfQueue) Pop() any {
	old := q.nodes
	n := old[len(old)-1]
	old[len(old)-1] = nil
	q.nodes = old[:len(old)-1]
	return n
}

// counterfactual is a uniform-cost search over (input position, product
// state, output). Costs never decrease and outputs only grow, so the first
// goal popped is minimal in (cost, output). Nodes agreeing on position,
// product state and output length are interchangeable for every completion,
// so only the first of them is expanded. Opaque constraints make the product
// state incomplete and the full output is used instead.
func (e *Engine) counterfactual(ctx context.Context, p *product, alpha []string, other string, in []string, maxDist int) (Counterfactual, error) {
	var (
		q      = &cfQueue{other: other}
		seq    int
		closed = make(map[string]struct{})
	)
	push := func(parent *cfNode, cost, i int, s pstate, labels ...string) {
		if cost > maxDist || p.dead(s) {
			return
		}
		seq++
		out := parent.out
		if len(labels) > 0 {
			out = append(slices.Clip(out), labels...)
		}
		heap.Push(q, &cfNode{cost: cost, i: i, out: out, s: s, seq: seq})
	}
	key := func(n *cfNode) string {
		prefix := strconv.Itoa(n.i) + "|"
		if p.exact() {
			return prefix + strconv.Itoa(len(n.out)) + "|" + p.key(n.s)
		}
		return prefix + trace.New(n.out...).Key()
	}

	heap.Push(q, &cfNode{s: p.start()})
	expanded := 0
	for q.Len() > 0 {
		n := heap.Pop(q).(*cfNode)
		k := key(n)
		if _, ok := closed[k]; ok {
			continue
		}
		closed[k] = struct{}{}

		if n.i == len(in) && p.accepting(n.s) && p.opaqueConformant(n.out) {
			return Counterfactual{Trace: trace.New(n.out...), Distance: n.cost, Found: true}, nil
		}
		if expanded++; expanded > e.cfg.MaxCandidates {
			e.cfg.Logger.WarnContext(ctx, "counterfactual search capped",
				"max_candidates", e.cfg.MaxCandidates,
				"cost", n.cost,
			)
			return Counterfactual{Bounded: true}, nil
		}
		if expanded%256 == 0 {
			if err := ctx.Err(); err != nil {
				return Counterfactual{}, err
			}
		}

		if n.i < len(in) {
			cur := in[n.i]
			push(n, n.cost, n.i+1, p.step(n.s, cur), cur)
			push(n, n.cost+1, n.i+1, n.s)
			for _, a := range alpha {
				if a != cur {
					push(n, n.cost+1, n.i+1, p.step(n.s, a), a)
				}
			}
			if n.i+1 < len(in) && in[n.i+1] != cur {
				nxt := in[n.i+1]
				push(n, n.cost+1, n.i+2, p.step(p.step(n.s, nxt), cur), nxt, cur)
			}
		}
		for _, a := range alpha {
			push(n, n.cost+1, n.i, p.step(n.s, a), a)
		}
	}
	return Counterfactual{Bounded: true}, nil
}

// EditDistance is the optimal string alignment distance between two traces:
// unit insertions, deletions, substitutions and adjacent transpositions.
func EditDistance(a, b trace.Trace) int {
	x, y := a.Labels(), b.Labels()
	d := make([][]int, len(x)+1)
	for i := range d {
		d[i] = make([]int, len(y)+1)
		d[i][0] = i
	}
	for j := range len(y) + 1 {
		d[0][j] = j
	}
	for i := 1; i <= len(x); i++ {
		for j := 1; j <= len(y); j++ {
			cost := 1
			if x[i-1] == y[j-1] {
				cost = 0
			}
			d[i][j] = min(d[i-1][j]+1, d[i][j-1]+1, d[i-1][j-1]+cost)
			if i > 1 && j > 1 && x[i-1] == y[j-2] && x[i-2] == y[j-1] {
				d[i][j] = min(d[i][j], d[i-2][j-2]+1)
			}
		}
	}
	return d[len(x)][len(y)]
}
