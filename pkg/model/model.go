// Package model reads and writes the YAML documents describing constraint
// sets and event logs.
//
// Every document carries a version checked against SupportedVersions and is
// validated against an embedded JSON Schema before it is decoded. Activity
// labels are NFC-normalised on the way in.
package model

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// SupportedVersions is the document version range this package reads.
const SupportedVersions = ">=1.0.0, <2.0.0"

// CurrentVersion is written into encoded documents.
const CurrentVersion = "1.0.0"

var (
	ErrUnsupportedVersion = errors.New("model: unsupported document version")
	ErrInvalidDocument    = errors.New("model: invalid document")
)

//go:embed schemas/*.json
var schemaFS embed.FS

const schemaBase = "https://conformance.schemas.local/"

var (
	constraintsSchema = mustSchema("constraints.schema.json")
	logSchema         = mustSchema("log.schema.json")
	versionRange      = mustConstraint(SupportedVersions)
)

func mustSchema(name string) *jsonschema.Schema {
	data, err := schemaFS.ReadFile("schemas/" + name)
	if err != nil {
		panic(err)
	}
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(schemaBase+name, strings.NewReader(string(data))); err != nil {
		panic(fmt.Sprintf("model: load schema %s: %v", name, err))
	}
	return c.MustCompile(schemaBase + name)
}

func mustConstraint(s string) *semver.Constraints {
	c, err := semver.NewConstraint(s)
	if err != nil {
		panic(err)
	}
	return c
}

// decode validates YAML data against schema and the version range, then
// decodes it into out.
func decode(data []byte, schema *jsonschema.Schema, out any) error {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	// The validator expects JSON values.
	js, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	var doc any
	if err := json.Unmarshal(js, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	if m, ok := doc.(map[string]any); ok {
		if err := checkVersion(m["version"]); err != nil {
			return err
		}
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return nil
}

func checkVersion(v any) error {
	s, _ := v.(string)
	ver, err := semver.NewVersion(s)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrUnsupportedVersion, s, err)
	}
	if !versionRange.Check(ver) {
		return fmt.Errorf("%w: %s not in %s", ErrUnsupportedVersion, ver, SupportedVersions)
	}
	return nil
}

func readFile(path string, fn func([]byte) error) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %q: %w", path, err)
	}
	if err := fn(data); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func readAll(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("model: read: %w", err)
	}
	return data, nil
}
