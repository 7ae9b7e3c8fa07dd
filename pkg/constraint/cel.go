package constraint

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/cel-go/cel"

	"github.com/Mindburn-Labs/conformance/pkg/trace"
)

// celCostLimit bounds the runtime cost of a single predicate evaluation.
const celCostLimit = 100000

// CEL is an opaque constraint whose predicates are CEL expressions over the
// variable `trace` of type list(string). It cannot be searched as an
// automaton, so bounded searches enumerate candidate traces instead.
type CEL struct {
	desc         Description
	labels       []string
	activation   cel.Program
	satisfaction cel.Program
}

// NewCEL compiles a CEL constraint. An empty activation expression activates
// on every trace. labels declares the alphabet the expressions refer to.
func NewCEL(desc Description, activation, satisfaction string, labels []string) (*CEL, error) {
	env, err := cel.NewEnv(
		cel.Variable("trace", cel.ListType(cel.StringType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	if activation == "" {
		activation = "true"
	}
	act, err := compileBool(env, activation)
	if err != nil {
		return nil, fmt.Errorf("constraint %s: activation: %w", desc, err)
	}
	sat, err := compileBool(env, satisfaction)
	if err != nil {
		return nil, fmt.Errorf("constraint %s: satisfaction: %w", desc, err)
	}
	ls := slices.Clone(labels)
	slices.Sort(ls)
	return &CEL{
		desc:         desc,
		labels:       slices.Compact(ls),
		activation:   act,
		satisfaction: sat,
	}, nil
}

func compileBool(env *cel.Env, expr string) (cel.Program, error) {
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile: %w", issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("compile: expression %q does not yield bool", expr)
	}
	prg, err := env.Program(ast,
		cel.InterruptCheckFrequency(100),
		cel.CostLimit(celCostLimit),
	)
	if err != nil {
		return nil, fmt.Errorf("program: %w", err)
	}
	return prg, nil
}

func (c *CEL) eval(prg cel.Program, t trace.Trace) bool {
	out, _, err := prg.Eval(map[string]any{"trace": t.Labels()})
	if err != nil {
		slog.Default().Debug("cel constraint evaluation failed", "constraint", c.desc.String(), "error", err)
		return false
	}
	v, ok := out.Value().(bool)
	return ok && v
}

func (c *CEL) Activates(t trace.Trace) bool { return c.eval(c.activation, t) }

func (c *CEL) Satisfied(t trace.Trace) bool { return c.eval(c.satisfaction, t) }

func (c *CEL) Description() Description { return c.desc }

func (c *CEL) Labels() []string { return slices.Clone(c.labels) }

func (c *CEL) String() string { return c.desc.String() }
