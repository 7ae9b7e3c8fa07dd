package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the YAML form of Config. Fields left out keep the value loaded
// from the environment.
type File struct {
	Log struct {
		Level  *string `yaml:"level"`
		Format *string `yaml:"format"`
	} `yaml:"log"`
	Search struct {
		MaxLength       *int  `yaml:"max_length"`
		MinimalSolution *bool `yaml:"minimal_solution"`
		CheckMultiple   *bool `yaml:"check_multiple"`
		MaxEditDistance *int  `yaml:"max_edit_distance"`
		MaxCandidates   *int  `yaml:"max_candidates"`
	} `yaml:"search"`
	Store struct {
		Driver *string `yaml:"driver"`
		DSN    *string `yaml:"dsn"`
	} `yaml:"store"`
	Telemetry struct {
		Enabled  *bool   `yaml:"enabled"`
		Endpoint *string `yaml:"endpoint"`
	} `yaml:"telemetry"`
}

// LoadFile loads the environment configuration and overlays the YAML file
// at path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}

	cfg := Load()
	set(&cfg.LogLevel, f.Log.Level)
	set(&cfg.LogFormat, f.Log.Format)
	set(&cfg.MaxLength, f.Search.MaxLength)
	set(&cfg.MinimalSolution, f.Search.MinimalSolution)
	set(&cfg.CheckMultiple, f.Search.CheckMultiple)
	set(&cfg.MaxEditDistance, f.Search.MaxEditDistance)
	set(&cfg.MaxCandidates, f.Search.MaxCandidates)
	set(&cfg.DBDriver, f.Store.Driver)
	set(&cfg.DBDSN, f.Store.DSN)
	set(&cfg.OTelEnabled, f.Telemetry.Enabled)
	set(&cfg.OTelEndpoint, f.Telemetry.Endpoint)

	if cfg.MaxLength < 0 || cfg.MaxEditDistance < 0 || cfg.MaxCandidates < 0 {
		return nil, fmt.Errorf("config %q: search bounds must not be negative", path)
	}
	return cfg, nil
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
