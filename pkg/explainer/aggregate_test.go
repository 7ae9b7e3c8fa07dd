package explainer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/conformance/pkg/constraint"
	"github.com/Mindburn-Labs/conformance/pkg/trace"
)

func scenarioLog(t *testing.T) *trace.EventLog {
	t.Helper()
	log := trace.NewEventLog()
	require.NoError(t, log.Add(tr("a b c"), 3))
	require.NoError(t, log.Add(tr("b a c"), 1))
	return log
}

func TestConformanceRate(t *testing.T) {
	e := New(DefaultConfig(), process()...)
	log := scenarioLog(t)

	assert.InDelta(t, 0.75, e.ConformanceRate(log, nil), 1e-9)
	assert.Equal(t, 1.0, e.ConformanceRate(log, []constraint.Constraint{}))
	assert.Zero(t, e.ConformanceRate(trace.NewEventLog(), nil))
}

func TestFitnessRate(t *testing.T) {
	e := New(DefaultConfig(), process()...)
	log := scenarioLog(t)

	// [b a c] conforms to End(c) only.
	assert.InDelta(t, (3+1.0/3.0)/4, e.FitnessRate(log, nil), 1e-9)
	assert.Equal(t, 1.0, e.FitnessRate(log, []constraint.Constraint{}))
	assert.Zero(t, e.FitnessRate(trace.NewEventLog(), nil))
}

func TestVariantContributionToConformanceLoss(t *testing.T) {
	e := New(DefaultConfig(), process()...)
	log := scenarioLog(t)

	assert.InDelta(t, 0.25, e.VariantContributionToConformanceLoss(log, tr("b a c"), nil), 1e-9)
	assert.InDelta(t, -0.75, e.VariantContributionToConformanceLoss(log, tr("a b c"), nil), 1e-9)
	assert.Zero(t, e.VariantContributionToConformanceLoss(log, tr("z"), nil))
	assert.Equal(t, 1, log.VariantCount(tr("b a c")), "the log is not modified")
}

func TestVariantContributionToFitness(t *testing.T) {
	e := New(DefaultConfig(), process()...)
	log := scenarioLog(t)

	before := (3 + 1.0/3.0) / 4
	assert.InDelta(t, 1-before, e.VariantContributionToFitness(log, tr("b a c"), nil), 1e-9)
	assert.Zero(t, e.VariantContributionToFitness(log, tr("z"), nil))
}

func TestConstraintContributionToConformance(t *testing.T) {
	cs := append(process(), constraint.ChainResponse("x", "y"))
	e := New(DefaultConfig())
	log := scenarioLog(t)

	got, err := e.ConstraintContributionToConformance(log, cs, 3)
	require.NoError(t, err)
	assert.Zero(t, got, "ChainResponse(x, y) never activates")

	// [b a c] also violates Response(a, b), so dropping Init(a) alone does not help.
	got, err = e.ConstraintContributionToConformance(log, cs, 0)
	require.NoError(t, err)
	assert.Zero(t, got)

	single := []constraint.Constraint{constraint.Init("a")}
	got, err = e.ConstraintContributionToConformance(log, single, 0)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, got, 1e-9)

	_, err = e.ConstraintContributionToConformance(log, cs, 4)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = e.ConstraintContributionToConformance(log, cs, -1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestConstraintContributionToFitness(t *testing.T) {
	e := New(DefaultConfig(), process()...)
	log := scenarioLog(t)

	// Without Init(a): [a b c] scores 1, [b a c] scores 1/2.
	got, err := e.ConstraintContributionToFitness(log, nil, 0)
	require.NoError(t, err)
	assert.InDelta(t, (3+0.5)/4-(3+1.0/3.0)/4, got, 1e-9)

	_, err = e.ConstraintContributionToFitness(log, nil, 3)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}
