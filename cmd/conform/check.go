package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/Mindburn-Labs/conformance/pkg/explainer"
)

type checkVariant struct {
	Labels     []string `json:"labels"`
	Count      int      `json:"count"`
	Conformant bool     `json:"conformant"`
	Violated   []string `json:"violated,omitempty"`
}

type checkResult struct {
	Log             string         `json:"log,omitempty"`
	Variants        []checkVariant `json:"variants"`
	ConformanceRate float64        `json:"conformance_rate"`
	FitnessRate     float64        `json:"fitness_rate"`
}

// runCheckCmd implements `conform check`.
//
// Exit codes:
//
//	0 = every variant conformant
//	1 = at least one non-conformant variant
//	2 = usage or runtime error
func runCheckCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("check", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		common commonFlags
		logPth string
		stored string
	)
	common.register(cmd)
	cmd.StringVar(&logPth, "log", "", "Event-log YAML file")
	cmd.StringVar(&stored, "stored", "", "Name of a log held in the store")

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
	log, name, err := s.loadLog(ctx, logPth, stored)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	x := explainer.New(s.explainerConfig(), cs...)
	res := checkResult{
		Log:             name,
		Variants:        []checkVariant{},
		ConformanceRate: x.ConformanceRate(log, nil),
		FitnessRate:     x.FitnessRate(log, nil),
	}
	failed := false
	for t, n := range log.Variants() {
		v := checkVariant{Labels: t.Labels(), Count: n, Conformant: x.Conformant(t, nil)}
		for _, c := range x.Violated(t) {
			v.Violated = append(v.Violated, c.String())
		}
		failed = failed || !v.Conformant
		res.Variants = append(res.Variants, v)
	}

	if common.jsonOutput {
		data, _ := json.MarshalIndent(res, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
	} else {
		printCheckResult(stdout, &res)
	}

	if failed {
		return 1
	}
	return 0
}

func printCheckResult(w io.Writer, r *checkResult) {
	if r.Log != "" {
		_, _ = fmt.Fprintf(w, "%sLog:%s %s\n", ColorBold, ColorReset, r.Log)
	}
	for _, v := range r.Variants {
		mark := ColorGreen + "✓" + ColorReset
		if !v.Conformant {
			mark = ColorRed + "✗" + ColorReset
		}
		_, _ = fmt.Fprintf(w, "  %s %v ×%d\n", mark, v.Labels, v.Count)
		for _, c := range v.Violated {
			_, _ = fmt.Fprintf(w, "      violates %s\n", c)
		}
	}
	_, _ = fmt.Fprintf(w, "\nConformance rate: %.4f\n", r.ConformanceRate)
	_, _ = fmt.Fprintf(w, "Fitness rate:     %.4f\n", r.FitnessRate)
}
