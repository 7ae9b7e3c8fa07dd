package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/Mindburn-Labs/conformance/pkg/conform"
	"github.com/Mindburn-Labs/conformance/pkg/explainer"
)

// runAnalyzeCmd implements `conform analyze`.
//
// Exit codes:
//
//	0 = report passes
//	1 = report fails
//	2 = usage or runtime error
func runAnalyzeCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("analyze", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		common    commonFlags
		logPth    string
		stored    string
		outputDir string
		explain   bool
		contra    bool
		admit     bool
	)
	common.register(cmd)
	cmd.StringVar(&logPth, "log", "", "Event-log YAML file")
	cmd.StringVar(&stored, "stored", "", "Name of a log held in the store")
	cmd.StringVar(&outputDir, "output", "", "Directory for report.json and report.sha256")
	cmd.BoolVar(&explain, "explain", true, "Explain every non-conformant variant")
	cmd.BoolVar(&contra, "check-contradiction", true, "Check the constraint set for contradictions")
	cmd.BoolVar(&admit, "admit", false, "Add constraints one by one, rejecting those that contradict the set")

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

	var engine *conform.Engine
	if admit {
		engine = conform.NewEngine(explainer.New(s.explainerConfig()))
		if _, err := engine.Admit(ctx, cs...); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
	} else {
		engine = conform.NewEngine(explainer.New(s.explainerConfig(), cs...))
	}

	report, err := engine.Run(ctx, log, &conform.RunOptions{
		LogName:            name,
		Explain:            explain,
		CheckContradiction: contra,
	})
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	if outputDir != "" {
		if err := conform.WriteReport(outputDir, report); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
	}

	if common.jsonOutput {
		data, _ := json.MarshalIndent(report, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
	} else {
		printConformanceReport(stdout, report)
	}

	if !report.Pass {
		return 1
	}
	return 0
}

func printConformanceReport(w io.Writer, r *conform.ConformanceReport) {
	_, _ = fmt.Fprintf(w, "\n%sConformance Report%s\n", ColorBold+ColorBlue, ColorReset)
	_, _ = fmt.Fprintf(w, "  Run ID:       %s\n", r.RunID)
	if r.LogName != "" {
		_, _ = fmt.Fprintf(w, "  Log:          %s\n", r.LogName)
	}
	_, _ = fmt.Fprintf(w, "  Constraints:  %d\n", len(r.Constraints))
	_, _ = fmt.Fprintf(w, "  Traces:       %d (%d variants)\n", r.Summary.Traces, r.Summary.Variants)
	_, _ = fmt.Fprintf(w, "  Conformance:  %.4f\n", r.Summary.ConformanceRate)
	_, _ = fmt.Fprintf(w, "  Fitness:      %.4f\n", r.Summary.FitnessRate)
	_, _ = fmt.Fprintf(w, "  Duration:     %dms\n", r.DurationMs)

	if r.Pass {
		_, _ = fmt.Fprintf(w, "  Verdict:      %sPASS%s\n", ColorGreen, ColorReset)
	} else {
		_, _ = fmt.Fprintf(w, "  Verdict:      %sFAIL%s\n", ColorRed, ColorReset)
	}
	for _, code := range r.ReasonCodes {
		_, _ = fmt.Fprintf(w, "    - %s\n", code)
	}
	for _, rej := range r.Rejected {
		_, _ = fmt.Fprintf(w, "    rejected %s (%s)\n", rej.Constraint, rej.ReasonCode)
	}

	for _, v := range r.Variants {
		if v.Conformant {
			continue
		}
		_, _ = fmt.Fprintf(w, "\n  %s✗%s %v ×%d  loss %.4f\n", ColorRed, ColorReset, v.Labels, v.Count, v.ConformanceLoss)
		for _, e := range v.Explanation {
			_, _ = fmt.Fprintf(w, "      because %s on %v\n", e.Constraint, e.Window)
		}
		if c := v.Counterfactual; c != nil && c.Found {
			_, _ = fmt.Fprintf(w, "      nearest %v (distance %d)\n", c.Labels, c.Distance)
		}
	}
	if r.Digest != "" {
		_, _ = fmt.Fprintf(w, "\n  Digest: %s\n", r.Digest)
	}
	_, _ = fmt.Fprintln(w, "")
}
