package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/Mindburn-Labs/conformance/pkg/explainer"
)

type explainResult struct {
	Trace          []string            `json:"trace"`
	Conformant     bool                `json:"conformant"`
	Violated       []string            `json:"violated,omitempty"`
	Explanation    []explainWindow     `json:"explanation,omitempty"`
	Counterfactual *explainAlternative `json:"counterfactual,omitempty"`
}

type explainWindow struct {
	Constraint string   `json:"constraint"`
	Start      int      `json:"start"`
	End        int      `json:"end"`
	Window     []string `json:"window"`
}

type explainAlternative struct {
	Found      bool     `json:"found"`
	Bounded    bool     `json:"bounded,omitempty"`
	Labels     []string `json:"labels"`
	Distance   int      `json:"distance"`
	Similarity float64  `json:"similarity"`
}

// runExplainCmd implements `conform explain`.
//
// Exit codes:
//
//	0 = trace conformant
//	1 = trace non-conformant (explanation printed)
//	2 = usage or runtime error
func runExplainCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("explain", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		common  commonFlags
		traceIn string
		minimal bool
		maxDist int
	)
	common.register(cmd)
	cmd.StringVar(&traceIn, "trace", "", "Comma-separated activity labels, e.g. a,b,c")
	cmd.BoolVar(&minimal, "minimal", false, "Search every violated constraint for the shortest window")
	cmd.IntVar(&maxDist, "max-distance", -1, "Counterfactual edit bound (0 = trace length + max length)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	ctx := context.Background()
	s, err := newSession(ctx, common.configPath, stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer s.close(ctx)

	cs, err := s.loadConstraints(common.constraints)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	cfg := s.explainerConfig()
	cfg.MinimalSolution = cfg.MinimalSolution || minimal
	if maxDist >= 0 {
		cfg.MaxEditDistance = maxDist
	}
	x := explainer.New(cfg, cs...)

	t := parseTrace(traceIn)
	res := explainResult{Trace: t.Labels(), Conformant: x.Conformant(t, nil)}
	for _, c := range x.Violated(t) {
		res.Violated = append(res.Violated, c.String())
	}

	if !res.Conformant {
		expl, err := x.MinimalExpl(ctx, t)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: explanation: %v\n", err)
			return 2
		}
		for _, v := range expl.Violations {
			res.Explanation = append(res.Explanation, explainWindow{
				Constraint: v.Constraint.String(),
				Start:      v.Start,
				End:        v.End,
				Window:     v.Subtrace.Labels(),
			})
		}

		cf, err := x.CounterfactualExpl(ctx, t)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: counterfactual: %v\n", err)
			return 2
		}
		res.Counterfactual = &explainAlternative{
			Found:      cf.Found,
			Bounded:    cf.Bounded,
			Labels:     cf.Trace.Labels(),
			Distance:   cf.Distance,
			Similarity: cf.Similarity(t),
		}
	}

	if common.jsonOutput {
		data, _ := json.MarshalIndent(res, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
	} else {
		printExplainResult(stdout, &res)
	}

	if !res.Conformant {
		return 1
	}
	return 0
}

func printExplainResult(w io.Writer, r *explainResult) {
	_, _ = fmt.Fprintf(w, "%sTrace:%s %v\n", ColorBold, ColorReset, r.Trace)
	if r.Conformant {
		_, _ = fmt.Fprintf(w, "%s✓ conformant%s\n", ColorGreen, ColorReset)
		return
	}
	_, _ = fmt.Fprintf(w, "%s✗ non-conformant%s\n", ColorRed, ColorReset)
	for _, c := range r.Violated {
		_, _ = fmt.Fprintf(w, "  violates %s\n", c)
	}
	if len(r.Explanation) > 0 {
		_, _ = fmt.Fprintf(w, "\n%sExplanation:%s\n", ColorBold, ColorReset)
	}
	for _, e := range r.Explanation {
		_, _ = fmt.Fprintf(w, "  %s on %v [%d:%d]\n", e.Constraint, e.Window, e.Start, e.End)
	}
	if c := r.Counterfactual; c != nil {
		if !c.Found {
			_, _ = fmt.Fprintf(w, "%sCounterfactual:%s none within bound\n", ColorBold, ColorReset)
			return
		}
		_, _ = fmt.Fprintf(w, "%sCounterfactual:%s %v (distance %d, similarity %.4f)\n",
			ColorBold, ColorReset, c.Labels, c.Distance, c.Similarity)
	}
}
