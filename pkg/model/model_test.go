package model_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/conformance/pkg/constraint"
	"github.com/Mindburn-Labs/conformance/pkg/model"
	"github.com/Mindburn-Labs/conformance/pkg/trace"
)

const constraintsDoc = `
version: "1.2.0"
name: orders
constraints:
  - template: Init
    params: [a]
  - template: response
    params: [a, b]
  - template: Existence
    params: [b, "2"]
  - name: MinLength
    satisfaction: ". . .*"
  - name: Short
    cel:
      satisfaction: "size(trace) <= 5"
      labels: [a, b]
`

func TestDecodeConstraints(t *testing.T) {
	set, err := model.DecodeConstraints(strings.NewReader(constraintsDoc))
	require.NoError(t, err)
	assert.Equal(t, "orders", set.Name)

	cs, err := set.Build()
	require.NoError(t, err)
	require.Len(t, cs, 5)

	var names []string
	for _, c := range cs {
		names = append(names, c.String())
	}
	assert.Equal(t, []string{"Init(a)", "Response(a, b)", "Existence(b, 2)", "MinLength()", "Short()"}, names)

	_, compiled := cs[3].(constraint.Compiled)
	assert.True(t, compiled)
	_, compiled = cs[4].(constraint.Compiled)
	assert.False(t, compiled)

	ok := trace.New("a", "b", "b")
	for _, c := range cs {
		assert.True(t, constraint.Conformant(c, ok), c.String())
	}
	assert.False(t, constraint.Conformant(cs[4], trace.New("a", "b", "b", "b", "b", "b")))
}

func TestDecodeConstraints_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want error
	}{
		{"not yaml", "version: [", model.ErrInvalidDocument},
		{"missing version", "constraints: []", model.ErrInvalidDocument},
		{"unknown field", "version: 1.0.0\nconstraints: []\nextra: 1", model.ErrInvalidDocument},
		{"template and cel", "version: 1.0.0\nconstraints:\n  - template: Init\n    params: [a]\n    cel: {satisfaction: 'true'}", model.ErrInvalidDocument},
		{"empty entry", "version: 1.0.0\nconstraints:\n  - name: nothing", model.ErrInvalidDocument},
		{"future version", "version: 2.0.0\nconstraints: []", model.ErrUnsupportedVersion},
		{"bad version", "version: latest\nconstraints: []", model.ErrUnsupportedVersion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := model.DecodeConstraints(strings.NewReader(tt.doc))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestBuild_Errors(t *testing.T) {
	_, err := model.ConstraintEntry{Template: "Nope", Params: []string{"a"}}.Build()
	assert.ErrorIs(t, err, constraint.ErrUnknownTemplate)

	_, err = model.ConstraintEntry{Satisfaction: "(a"}.Build()
	assert.Error(t, err)

	_, err = model.ConstraintEntry{CEL: &model.CELEntry{Satisfaction: "size(trace)"}}.Build()
	assert.Error(t, err, "non-boolean CEL expressions are rejected")
}

func TestBuild_NormalisesTemplateParams(t *testing.T) {
	c, err := model.ConstraintEntry{Template: "Init", Params: []string{" é "}}.Build()
	require.NoError(t, err)
	assert.True(t, c.Satisfied(trace.New("é")))
}

func TestLoadConstraints(t *testing.T) {
	path := filepath.Join(t.TempDir(), "constraints.yaml")
	require.NoError(t, os.WriteFile(path, []byte(constraintsDoc), 0o600))

	cs, err := model.LoadConstraints(path)
	require.NoError(t, err)
	assert.Len(t, cs, 5)

	_, err = model.LoadConstraints(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

const logDoc = `
version: 1.0.0
name: orders
traces:
  - labels: [a, b, c]
    count: 3
  - labels: [b, a, c]
  - labels: [a, b, c]
`

func TestDecodeLog(t *testing.T) {
	doc, err := model.DecodeLog(strings.NewReader(logDoc))
	require.NoError(t, err)

	log, err := doc.EventLog()
	require.NoError(t, err)
	assert.Equal(t, 5, log.Size())
	assert.Equal(t, 4, log.VariantCount(trace.New("a", "b", "c")))
	assert.Equal(t, 1, log.VariantCount(trace.New("b", "a", "c")))
}

func TestDecodeLog_Invalid(t *testing.T) {
	_, err := model.DecodeLog(strings.NewReader("version: 1.0.0\ntraces:\n  - labels: [a]\n    count: 0"))
	assert.ErrorIs(t, err, model.ErrInvalidDocument)

	_, err = model.DecodeLog(strings.NewReader("version: 0.9.0\ntraces: []"))
	assert.ErrorIs(t, err, model.ErrUnsupportedVersion)
}

func TestEncodeLog_RoundTrip(t *testing.T) {
	log := trace.NewEventLog()
	require.NoError(t, log.Add(trace.New("b", "a"), 2))
	require.NoError(t, log.Add(trace.New("a", "needs quoting"), 1))
	require.NoError(t, log.Add(trace.New(), 1))

	var buf bytes.Buffer
	require.NoError(t, model.EncodeLog(&buf, "sample", log))

	doc, err := model.DecodeLog(&buf)
	require.NoError(t, err)
	assert.Equal(t, "sample", doc.Name)
	assert.Equal(t, model.CurrentVersion, doc.Version)

	got, err := doc.EventLog()
	require.NoError(t, err)
	assert.Equal(t, log.String(), got.String())
}

func TestLoadLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.yaml")
	require.NoError(t, os.WriteFile(path, []byte(logDoc), 0o600))

	log, name, err := model.LoadLog(path)
	require.NoError(t, err)
	assert.Equal(t, "orders", name)
	assert.Equal(t, 5, log.Size())
}
