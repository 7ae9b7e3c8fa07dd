package main

import (
	"fmt"
	"io"
	"os"
)

const version = "0.3.0"

// Dispatcher
func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint for testing.
//
// Exit codes:
//
//	0 = success, conformant or consistent
//	1 = non-conformant trace or log, contradictory constraint set
//	2 = usage or runtime error
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stderr)
		return 2
	}

	switch args[1] {
	case "check":
		return runCheckCmd(args[2:], stdout, stderr)
	case "explain":
		return runExplainCmd(args[2:], stdout, stderr)
	case "contradiction":
		return runContradictionCmd(args[2:], stdout, stderr)
	case "analyze", "analyse":
		return runAnalyzeCmd(args[2:], stdout, stderr)
	case "import":
		return runImportCmd(args[2:], stdout, stderr)
	case "version", "--version":
		_, _ = fmt.Fprintf(stdout, "conform v%s\n", version)
		return 0
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

// ANSI Colors
const (
	ColorReset = "\033[0m"
	ColorBold  = "\033[1m"
	ColorRed   = "\033[31m"
	ColorGreen = "\033[32m"
	ColorBlue  = "\033[34m"
	ColorCyan  = "\033[36m"
	ColorGray  = "\033[37m"
)

func printUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintf(w, "%sconform %s%s\n", ColorBold+ColorBlue, "v"+version, ColorReset)
	_, _ = fmt.Fprintf(w, "%sDeclarative conformance checking and explanation.%s\n", ColorGray, ColorReset)
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintf(w, "%sUSAGE:%s\n", ColorBold, ColorReset)
	_, _ = fmt.Fprintln(w, "  conform <command> [flags]")
	_, _ = fmt.Fprintln(w, "")

	printSection(w, "CONFORMANCE")
	printCommand(w, "check", "Classify every variant of a log (--constraints, --log)")
	printCommand(w, "explain", "Explain one trace (--constraints, --trace)")
	printCommand(w, "contradiction", "Check a constraint set for contradictions")
	printCommand(w, "analyze", "Full analysis report (--json, --output)")

	printSection(w, "STORAGE")
	printCommand(w, "import", "Load a YAML log into the store (--log, --name)")

	printSection(w, "UTILITIES")
	printCommand(w, "version", "Show version information")
	printCommand(w, "help", "Show this help")
	_, _ = fmt.Fprintln(w, "")
}

func printSection(w io.Writer, title string) {
	_, _ = fmt.Fprintf(w, "%s%s:%s\n", ColorBold+ColorCyan, title, ColorReset)
}

func printCommand(w io.Writer, name, desc string) {
	_, _ = fmt.Fprintf(w, "  %s%-14s%s %s\n", ColorGreen, name, ColorReset, desc)
}
