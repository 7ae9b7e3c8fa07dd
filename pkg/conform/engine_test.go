package conform

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/conformance/pkg/constraint"
	"github.com/Mindburn-Labs/conformance/pkg/explainer"
	"github.com/Mindburn-Labs/conformance/pkg/trace"
)

var fixed = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func tr(s string) trace.Trace { return trace.New(strings.Fields(s)...) }

func scenario(t *testing.T) (*Engine, *trace.EventLog) {
	t.Helper()
	x := explainer.New(explainer.DefaultConfig(),
		constraint.Init("a"), constraint.Response("a", "b"), constraint.End("c"))
	log := trace.NewEventLog()
	require.NoError(t, log.Add(tr("a b c"), 3))
	require.NoError(t, log.Add(tr("b a c"), 1))
	return NewEngine(x).WithClock(func() time.Time { return fixed }), log
}

func TestRun(t *testing.T) {
	e, log := scenario(t)

	r, err := e.Run(context.Background(), log, &RunOptions{LogName: "orders", Explain: true, CheckContradiction: true})
	require.NoError(t, err)

	_, err = uuid.Parse(r.RunID)
	assert.NoError(t, err)
	assert.Equal(t, fixed, r.Timestamp)
	assert.False(t, r.Pass)
	assert.Equal(t, []string{"Init(a)", "Response(a, b)", "End(c)"}, r.Constraints)

	require.NotNil(t, r.Contradiction)
	assert.False(t, r.Contradiction.Contradictory)
	assert.Equal(t, []string{"a", "b", "c"}, r.Contradiction.Witness)
	assert.Empty(t, r.ReasonCodes)

	assert.Equal(t, Summary{
		Traces:          4,
		Variants:        2,
		Conformant:      3,
		NonConformant:   1,
		ConformanceRate: 0.75,
		FitnessRate:     (3 + 1.0/3.0) / 4,
	}, r.Summary)

	require.Len(t, r.Variants, 2)
	ok, bad := r.Variants[0], r.Variants[1]
	assert.True(t, ok.Conformant)
	assert.Nil(t, ok.Explanation)
	assert.InDelta(t, -0.75, ok.ConformanceLoss, 1e-9)

	assert.False(t, bad.Conformant)
	assert.Equal(t, []string{"Init(a)", "Response(a, b)"}, bad.Violated)
	assert.Equal(t, []string{ReasonConstraintViolated}, bad.ReasonCodes)
	assert.InDelta(t, 0.25, bad.ConformanceLoss, 1e-9)
	require.Len(t, bad.Explanation, 2)
	assert.Equal(t, "Init(a)", bad.Explanation[0].Constraint)
	assert.Equal(t, []string{"b"}, bad.Explanation[0].Window)
	assert.Equal(t, "Response(a, b)", bad.Explanation[1].Constraint)
	assert.Equal(t, []string{"a"}, bad.Explanation[1].Window)
	require.NotNil(t, bad.Counterfactual)
	assert.Equal(t, []string{"a", "b", "c"}, bad.Counterfactual.Labels)
	assert.Equal(t, 1, bad.Counterfactual.Distance)
	assert.InDelta(t, 2.0/3.0, bad.Counterfactual.Similarity, 1e-9)

	require.Len(t, r.ConstraintResults, 3)
	assert.Equal(t, 4, r.ConstraintResults[0].Activations)
	assert.Equal(t, 1, r.ConstraintResults[0].Violations)
	assert.Equal(t, 4, r.ConstraintResults[1].Activations)
	assert.Zero(t, r.ConstraintResults[2].Violations)

	assert.Len(t, r.Digest, 64)
	d, err := r.ComputeDigest()
	require.NoError(t, err)
	assert.Equal(t, r.Digest, d)
}

func TestRun_PassAndEmptyLog(t *testing.T) {
	e, _ := scenario(t)

	r, err := e.Run(context.Background(), trace.NewEventLog(tr("a b c")), nil)
	require.NoError(t, err)
	assert.True(t, r.Pass)
	assert.Equal(t, 1.0, r.Summary.ConformanceRate)
	assert.Nil(t, r.Contradiction)

	r, err = e.Run(context.Background(), trace.NewEventLog(), nil)
	require.NoError(t, err)
	assert.True(t, r.Pass)
	assert.Zero(t, r.Summary.Traces)
	assert.Zero(t, r.Summary.ConformanceRate)
	assert.Empty(t, r.Variants)
}

func TestRun_Contradiction(t *testing.T) {
	x := explainer.New(explainer.Config{MaxLength: 3}, constraint.Init("a"), constraint.Existence("b", 4))
	e := NewEngine(x).WithClock(func() time.Time { return fixed })

	r, err := e.Run(context.Background(), trace.NewEventLog(tr("a b")), &RunOptions{CheckContradiction: true})
	require.NoError(t, err)
	assert.False(t, r.Pass)
	assert.Equal(t, []string{ReasonContradictionDetected, ReasonSearchBoundExhausted}, r.ReasonCodes)
	assert.True(t, r.Contradiction.Bounded)
}

func TestAdmit(t *testing.T) {
	x := explainer.New(explainer.DefaultConfig())
	e := NewEngine(x).WithClock(func() time.Time { return fixed })

	rejected, err := e.Admit(context.Background(), constraint.Init("a"), constraint.Absence("a"), constraint.End("c"))
	require.NoError(t, err)
	assert.Equal(t, []Rejection{{Constraint: "Absence(a)", ReasonCode: ReasonConstraintRejected}}, rejected)
	assert.Len(t, x.Constraints(), 2)

	r, err := e.Run(context.Background(), trace.NewEventLog(tr("a c")), nil)
	require.NoError(t, err)
	assert.Equal(t, rejected, r.Rejected)
}

func TestRun_Cancelled(t *testing.T) {
	e, log := scenario(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Run(ctx, log, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWriteReadReport(t *testing.T) {
	e, log := scenario(t)
	r, err := e.Run(context.Background(), log, &RunOptions{LogName: "orders", Explain: true})
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "out")
	require.NoError(t, WriteReport(dir, r))

	sum, err := os.ReadFile(filepath.Join(dir, DigestFile))
	require.NoError(t, err)
	assert.Equal(t, r.Digest+"  report.json\n", string(sum))

	got, err := ReadReport(dir)
	require.NoError(t, err)
	assert.Equal(t, r.Digest, got.Digest)
	assert.Equal(t, r.Summary, got.Summary)

	// Tampering with the report is detected.
	data, err := os.ReadFile(filepath.Join(dir, ReportFile))
	require.NoError(t, err)
	tampered := strings.Replace(string(data), `"pass": false`, `"pass": true`, 1)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ReportFile), []byte(tampered), 0600))
	_, err = ReadReport(dir)
	assert.ErrorIs(t, err, ErrDigestMismatch)
}

func TestDigestIsCanonical(t *testing.T) {
	a := &ConformanceReport{RunID: "r", Timestamp: fixed, Constraints: []string{}, Variants: []VariantResult{}}
	b := *a
	da, err := a.ComputeDigest()
	require.NoError(t, err)
	b.Digest = "ignored"
	db, err := b.ComputeDigest()
	require.NoError(t, err)
	assert.Equal(t, da, db, "the digest field is excluded")

	b.Pass = true
	db, err = b.ComputeDigest()
	require.NoError(t, err)
	assert.NotEqual(t, da, db)
}

func TestAllReasonCodes(t *testing.T) {
	codes := AllReasonCodes()
	assert.Len(t, codes, 4)
	seen := map[string]bool{}
	for _, c := range codes {
		assert.False(t, seen[c], "duplicate %s", c)
		seen[c] = true
		assert.Equal(t, strings.ToUpper(c), c)
	}
}
