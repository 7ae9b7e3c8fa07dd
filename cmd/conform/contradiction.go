package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/Mindburn-Labs/conformance/pkg/explainer"
)

type contradictionOutput struct {
	Constraints   []string `json:"constraints"`
	Contradictory bool     `json:"contradictory"`
	Proven        bool     `json:"proven"`
	Stable        bool     `json:"stable"`
	Bounded       bool     `json:"bounded"`
	Bound         int      `json:"bound"`
	Witness       []string `json:"witness,omitempty"`
}

// runContradictionCmd implements `conform contradiction`.
//
// Exit codes:
//
//	0 = a conforming witness exists
//	1 = contradictory within the bound
//	2 = usage or runtime error
func runContradictionCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("contradiction", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		common    commonFlags
		maxLength int
		multiple  bool
	)
	common.register(cmd)
	cmd.IntVar(&maxLength, "max-length", -1, "Witness length bound (default from config)")
	cmd.BoolVar(&multiple, "check-multiple", false, "Re-check at twice the bound")

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

	x := explainer.New(s.explainerConfig(), cs...)
	var opts []explainer.ContradictionOption
	if maxLength >= 0 {
		opts = append(opts, explainer.WithMaxLength(maxLength))
	}
	if multiple {
		opts = append(opts, explainer.WithCheckMultiple(true))
	}

	res, err := x.Contradiction(ctx, opts...)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	out := contradictionOutput{
		Contradictory: res.Contradictory,
		Proven:        res.Proven,
		Stable:        res.Stable,
		Bounded:       res.Bounded,
		Bound:         res.Bound,
		Witness:       res.Witness.Labels(),
	}
	for _, c := range cs {
		out.Constraints = append(out.Constraints, c.String())
	}

	if common.jsonOutput {
		data, _ := json.MarshalIndent(out, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
	} else {
		printContradiction(stdout, &out)
	}

	if out.Contradictory {
		return 1
	}
	return 0
}

func printContradiction(w io.Writer, r *contradictionOutput) {
	if !r.Contradictory {
		_, _ = fmt.Fprintf(w, "%s✓ consistent%s witness %v\n", ColorGreen, ColorReset, r.Witness)
		return
	}
	verdict := "up to length"
	if r.Proven {
		verdict = "proven beyond length"
	}
	_, _ = fmt.Fprintf(w, "%s✗ contradictory%s (%s %d)\n", ColorRed, ColorReset, verdict, r.Bound)
	if !r.Stable {
		_, _ = fmt.Fprintln(w, "  verdict not stable across bounds")
	}
}
