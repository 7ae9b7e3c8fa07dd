package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/Mindburn-Labs/conformance/pkg/model"
	"github.com/Mindburn-Labs/conformance/pkg/store"
)

// runImportCmd implements `conform import`, which saves a YAML log to the
// configured store. With --list it prints the stored logs instead.
func runImportCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("import", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		configPath string
		logPth     string
		name       string
		list       bool
		jsonOutput bool
	)
	cmd.StringVar(&configPath, "config", "", "YAML configuration file (overlays CONFORM_* environment)")
	cmd.StringVar(&logPth, "log", "", "Event-log YAML file")
	cmd.StringVar(&name, "name", "", "Stored name (default: the document name)")
	cmd.BoolVar(&list, "list", false, "List stored logs")
	cmd.BoolVar(&jsonOutput, "json", false, "Output result as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	ctx := context.Background()
	s, err := newSession(ctx, configPath, stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer s.close(ctx)

	st, err := store.Open(ctx, s.cfg.DBDriver, s.cfg.DBDSN)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer func() { _ = st.Close() }()

	if !list {
		if logPth == "" {
			_, _ = fmt.Fprintln(stderr, "Error: --log is required")
			return 2
		}
		log, docName, err := model.LoadLog(logPth)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		if name == "" {
			name = docName
		}
		if name == "" {
			_, _ = fmt.Fprintln(stderr, "Error: --name is required when the document has no name")
			return 2
		}
		if err := st.Save(ctx, name, log); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		s.logger.Info("log imported", "name", name, "size", log.Size(), "variants", log.NumVariants())
	}

	infos, err := st.List(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	if jsonOutput {
		data, _ := json.MarshalIndent(infos, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
		return 0
	}
	for _, info := range infos {
		_, _ = fmt.Fprintf(stdout, "  %-24s %6d traces %4d variants\n", info.Name, info.Size, info.Variants)
	}
	return 0
}
