// Package trace implements execution traces and event logs.
//
// A Trace is an immutable sequence of activity labels. An EventLog stores
// distinct traces (variants) with their occurrence counts.
package trace

import (
	"errors"
	"iter"
	"slices"
	"strconv"
	"strings"
)

// ErrInvalidArgument is returned for malformed input to a mutator.
var ErrInvalidArgument = errors.New("trace: invalid argument")

// Trace is one execution of a process: an ordered sequence of activity labels.
// The zero value is the empty trace.
type Trace struct {
	labels []string
}

// New creates a trace from labels. The input slice is copied.
func New(labels ...string) Trace {
	if len(labels) == 0 {
		return Trace{}
	}
	return Trace{labels: slices.Clone(labels)}
}

// Len returns the number of labels in the trace.
func (t Trace) Len() int { return len(t.labels) }

// At returns the label at position i.
func (t Trace) At(i int) string { return t.labels[i] }

// All returns an iterator over positions and labels in original order.
// Each call starts a fresh iteration.
func (t Trace) All() iter.Seq2[int, string] {
	return func(yield func(int, string) bool) {
		for i, l := range t.labels {
			if !yield(i, l) {
				return
			}
		}
	}
}

// Labels returns a copy of the label sequence.
func (t Trace) Labels() []string { return slices.Clone(t.labels) }

// Sub returns the contiguous subtrace [i, j).
func (t Trace) Sub(i, j int) Trace { return New(t.labels[i:j]...) }

// Equal reports whether both traces have the same ordered labels.
func (t Trace) Equal(o Trace) bool { return slices.Equal(t.labels, o.labels) }

// Compare orders traces lexicographically by label; a proper prefix sorts first.
func (t Trace) Compare(o Trace) int { return slices.Compare(t.labels, o.labels) }

// Key returns a string that identifies the exact label sequence.
// Labels are length-prefixed so no label content can collide with a separator.
func (t Trace) Key() string {
	var b strings.Builder
	for _, l := range t.labels {
		b.WriteString(strconv.Itoa(len(l)))
		b.WriteByte(':')
		b.WriteString(l)
	}
	return b.String()
}

func (t Trace) String() string {
	return "[" + strings.Join(t.labels, ", ") + "]"
}
