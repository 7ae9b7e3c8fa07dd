package trace

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrace_Basics(t *testing.T) {
	labels := []string{"a", "b", "c"}
	tr := New(labels...)
	labels[0] = "mutated"

	require.Equal(t, 3, tr.Len())
	require.Equal(t, []string{"a", "b", "c"}, tr.Labels(), "New must copy its input")
	require.Equal(t, "[a, b, c]", tr.String())

	out := tr.Labels()
	out[1] = "x"
	require.Equal(t, "b", tr.At(1), "Labels must return a copy")
}

func TestTrace_IterationRestarts(t *testing.T) {
	tr := New("a", "b")

	collect := func() []string {
		var got []string
		for _, l := range tr.All() {
			got = append(got, l)
		}
		return got
	}
	require.Equal(t, []string{"a", "b"}, collect())
	require.Equal(t, []string{"a", "b"}, collect(), "second iteration must start from the beginning")

	// Early break leaves no cursor behind.
	for i := range tr.All() {
		if i == 0 {
			break
		}
	}
	require.Equal(t, []string{"a", "b"}, collect())
}

func TestTrace_KeyIsInjective(t *testing.T) {
	require.NotEqual(t, New("ab").Key(), New("a", "b").Key())
	require.NotEqual(t, New("1:a").Key(), New("1", "a").Key())
	require.Equal(t, New("a", "b").Key(), New("a", "b").Key())
	require.Equal(t, "", New().Key())
}

func TestTrace_Compare(t *testing.T) {
	assert.Negative(t, New("a").Compare(New("a", "b")))
	assert.Negative(t, New("a", "b").Compare(New("b")))
	assert.Zero(t, New("a", "b").Compare(New("a", "b")))
	assert.True(t, New().Equal(Trace{}))
}

func TestNormalizeLabel(t *testing.T) {
	// "é" as e + combining acute accent collapses to the precomposed form.
	require.Equal(t, "\u00e9", NormalizeLabel(" e\u0301 "))
	require.True(t, Normalized("e\u0301").Equal(New("\u00e9")))
}

func TestEventLog_AddAndCount(t *testing.T) {
	l := NewEventLog()
	abc := New("a", "b", "c")

	require.NoError(t, l.Add(abc, 1))
	require.NoError(t, l.Add(abc, 1))
	require.NoError(t, l.Add(New("b", "a", "c"), 1))

	other := NewEventLog()
	require.NoError(t, other.Add(abc, 2))

	require.Equal(t, other.VariantCount(abc), l.VariantCount(abc))
	require.Equal(t, 3, l.Size())
	require.Equal(t, 2, l.NumVariants())
	require.Equal(t, 0, l.VariantCount(New("z")))
}

func TestEventLog_RejectsNonPositiveCounts(t *testing.T) {
	l := NewEventLog()
	err := l.Add(New("a"), 0)
	require.True(t, errors.Is(err, ErrInvalidArgument))
	err = l.Remove(New("a"), -1)
	require.ErrorIs(t, err, ErrInvalidArgument)
	require.Equal(t, 0, l.Size())
}

func TestEventLog_ZeroValue(t *testing.T) {
	var l EventLog
	require.Equal(t, 0, l.Size())
	require.NoError(t, l.Remove(New("a"), 1))

	require.NoError(t, l.Add(New("a", "b"), 2))
	require.Equal(t, 2, l.VariantCount(New("a", "b")))
	require.Equal(t, 1, l.Clone().NumVariants())

	err := l.Add(New("a"), 0)
	require.ErrorIs(t, err, ErrInvalidArgument)
	require.Contains(t, err.Error(), "trace: invalid argument")
}

func TestEventLog_Remove(t *testing.T) {
	tr := New("a", "b")
	l := NewEventLog()
	require.NoError(t, l.Add(tr, 5))

	require.NoError(t, l.Remove(tr, 2))
	require.Equal(t, 3, l.VariantCount(tr))

	// Removing more than stored deletes the variant outright.
	require.NoError(t, l.Remove(tr, 10))
	require.Equal(t, 0, l.VariantCount(tr))
	require.Equal(t, 0, l.NumVariants())

	// Absent variant is a no-op.
	require.NoError(t, l.Remove(New("q"), 1))
}

func TestEventLog_RemoveRoundTrip(t *testing.T) {
	tr := New("x")
	l := NewEventLog(New("y"))
	require.NoError(t, l.Add(tr, 4))

	require.NoError(t, l.Remove(tr, l.VariantCount(tr)))
	require.Equal(t, 0, l.VariantCount(tr))
	for occ := range l.All() {
		require.False(t, occ.Equal(tr))
	}
}

func TestEventLog_AllExpandsCounts(t *testing.T) {
	l := NewEventLog()
	require.NoError(t, l.Add(New("a", "b", "c"), 3))
	require.NoError(t, l.Add(New("b", "a", "c"), 1))

	var got []string
	for occ := range l.All() {
		got = append(got, occ.String())
	}
	require.Equal(t, []string{"[a, b, c]", "[a, b, c]", "[a, b, c]", "[b, a, c]"}, got)

	// Restartable and stable.
	n := 0
	for range l.All() {
		n++
	}
	require.Equal(t, l.Size(), n)
}

func TestEventLog_CloneIsIndependent(t *testing.T) {
	l := NewEventLog(New("a"))
	c := l.Clone()
	require.NoError(t, c.Add(New("b"), 2))
	c.RemoveVariant(New("a"))

	require.Equal(t, 1, l.Size())
	require.Equal(t, 1, l.VariantCount(New("a")))
	require.Equal(t, 2, c.Size())
	require.Equal(t, "{[b]: 2}", c.String())
}
