package model

import (
	"fmt"
	"io"

	"github.com/Mindburn-Labs/conformance/pkg/constraint"
	"github.com/Mindburn-Labs/conformance/pkg/trace"
)

// ConstraintSet is the YAML form of an ordered constraint list.
type ConstraintSet struct {
	Version     string            `yaml:"version"`
	Name        string            `yaml:"name,omitempty"`
	Constraints []ConstraintEntry `yaml:"constraints"`
}

// ConstraintEntry is one constraint: a template with parameters, a pair of
// raw patterns, or a CEL block.
type ConstraintEntry struct {
	Template string   `yaml:"template,omitempty"`
	Params   []string `yaml:"params,omitempty"`

	Name         string `yaml:"name,omitempty"`
	Activation   string `yaml:"activation,omitempty"`
	Satisfaction string `yaml:"satisfaction,omitempty"`

	CEL *CELEntry `yaml:"cel,omitempty"`
}

// CELEntry holds CEL expressions over the variable trace.
type CELEntry struct {
	Activation   string   `yaml:"activation,omitempty"`
	Satisfaction string   `yaml:"satisfaction"`
	Labels       []string `yaml:"labels,omitempty"`
}

// DecodeConstraints reads a constraint-set document.
func DecodeConstraints(r io.Reader) (*ConstraintSet, error) {
	data, err := readAll(r)
	if err != nil {
		return nil, err
	}
	var set ConstraintSet
	if err := decode(data, constraintsSchema, &set); err != nil {
		return nil, err
	}
	return &set, nil
}

// LoadConstraints reads and builds the constraint set at path.
func LoadConstraints(path string) ([]constraint.Constraint, error) {
	var out []constraint.Constraint
	err := readFile(path, func(data []byte) error {
		var set ConstraintSet
		if err := decode(data, constraintsSchema, &set); err != nil {
			return err
		}
		cs, err := set.Build()
		out = cs
		return err
	})
	return out, err
}

// Build compiles every entry in order.
func (s *ConstraintSet) Build() ([]constraint.Constraint, error) {
	out := make([]constraint.Constraint, 0, len(s.Constraints))
	for i, e := range s.Constraints {
		c, err := e.Build()
		if err != nil {
			return nil, fmt.Errorf("constraint %d: %w", i, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// Build compiles the entry. Template parameters and CEL labels are
// normalised; raw patterns are used as written.
func (e ConstraintEntry) Build() (constraint.Constraint, error) {
	switch {
	case e.Template != "":
		params := make([]string, len(e.Params))
		for i, p := range e.Params {
			params[i] = trace.NormalizeLabel(p)
		}
		return constraint.FromTemplate(e.Template, params)
	case e.CEL != nil:
		labels := make([]string, len(e.CEL.Labels))
		for i, l := range e.CEL.Labels {
			labels[i] = trace.NormalizeLabel(l)
		}
		return constraint.NewCEL(e.description("CEL"), e.CEL.Activation, e.CEL.Satisfaction, labels)
	case e.Satisfaction != "":
		return constraint.NewPattern(e.description("Pattern"), e.Activation, e.Satisfaction)
	default:
		return nil, fmt.Errorf("%w: entry has no template, satisfaction or cel", ErrInvalidDocument)
	}
}

func (e ConstraintEntry) description(def string) constraint.Description {
	name := e.Name
	if name == "" {
		name = def
	}
	return constraint.Description{Template: name}
}
