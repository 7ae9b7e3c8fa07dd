package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/Mindburn-Labs/conformance/pkg/config"
	"github.com/Mindburn-Labs/conformance/pkg/constraint"
	"github.com/Mindburn-Labs/conformance/pkg/explainer"
	"github.com/Mindburn-Labs/conformance/pkg/model"
	"github.com/Mindburn-Labs/conformance/pkg/observability"
	"github.com/Mindburn-Labs/conformance/pkg/store"
	"github.com/Mindburn-Labs/conformance/pkg/trace"
)

// commonFlags are shared by every command that runs the engine.
type commonFlags struct {
	configPath  string
	constraints string
	jsonOutput  bool
}

func (c *commonFlags) register(cmd *flag.FlagSet) {
	cmd.StringVar(&c.configPath, "config", "", "YAML configuration file (overlays CONFORM_* environment)")
	cmd.StringVar(&c.constraints, "constraints", "", "Constraint-set YAML file (REQUIRED)")
	cmd.BoolVar(&c.jsonOutput, "json", false, "Output result as JSON")
}

// session is the configured runtime for one command.
type session struct {
	cfg       *config.Config
	logger    *slog.Logger
	telemetry *observability.Provider
}

func newSession(ctx context.Context, configPath string, stderr io.Writer) (*session, error) {
	cfg := config.Load()
	if configPath != "" {
		var err error
		if cfg, err = config.LoadFile(configPath); err != nil {
			return nil, err
		}
	}
	logger := cfg.NewLogger(stderr)
	slog.SetDefault(logger)

	tp, err := observability.New(ctx, cfg.Observability())
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	return &session{cfg: cfg, logger: logger, telemetry: tp}, nil
}

func (s *session) close(ctx context.Context) {
	_ = s.telemetry.Shutdown(ctx)
}

func (s *session) explainerConfig() explainer.Config {
	ec := s.cfg.Explainer()
	ec.Logger = s.logger
	ec.Telemetry = s.telemetry
	return ec
}

func (s *session) loadConstraints(path string) ([]constraint.Constraint, error) {
	if path == "" {
		return nil, fmt.Errorf("--constraints is required")
	}
	cs, err := model.LoadConstraints(path)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("constraints loaded", "path", path, "count", len(cs))
	return cs, nil
}

// loadLog reads a log from a YAML file or, when name is set, from the store.
func (s *session) loadLog(ctx context.Context, path, name string) (*trace.EventLog, string, error) {
	switch {
	case path != "" && name != "":
		return nil, "", fmt.Errorf("--log and --stored are mutually exclusive")
	case path != "":
		return model.LoadLog(path)
	case name != "":
		st, err := store.Open(ctx, s.cfg.DBDriver, s.cfg.DBDSN)
		if err != nil {
			return nil, "", err
		}
		defer func() { _ = st.Close() }()
		log, err := st.Load(ctx, name)
		return log, name, err
	}
	return nil, "", fmt.Errorf("--log or --stored is required")
}

// parseTrace splits a comma-separated label list.
func parseTrace(s string) trace.Trace {
	if strings.TrimSpace(s) == "" {
		return trace.New()
	}
	return trace.Normalized(strings.Split(s, ",")...)
}
