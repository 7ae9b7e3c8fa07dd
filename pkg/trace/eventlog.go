package trace

import (
	"fmt"
	"iter"
	"slices"
	"strings"
)

// EventLog is a multiset of trace variants. The zero value is an empty log.
// A stored count is always strictly positive. EventLog is not safe for
// concurrent mutation.
type EventLog struct {
	counts   map[string]int
	variants map[string]Trace
	order    []string // insertion order of variant keys
}

// NewEventLog creates an event log holding the given traces once each.
func NewEventLog(traces ...Trace) *EventLog {
	l := &EventLog{
		counts:   make(map[string]int),
		variants: make(map[string]Trace),
	}
	for _, t := range traces {
		l.insert(t, 1)
	}
	return l
}

// Add increments the count of the trace's variant by count.
func (l *EventLog) Add(t Trace, count int) error {
	if count <= 0 {
		return fmt.Errorf("%w: count must be positive, got %d", ErrInvalidArgument, count)
	}
	l.insert(t, count)
	return nil
}

func (l *EventLog) insert(t Trace, count int) {
	if l.counts == nil {
		l.counts = make(map[string]int)
		l.variants = make(map[string]Trace)
	}
	key := t.Key()
	if _, ok := l.counts[key]; !ok {
		l.order = append(l.order, key)
		l.variants[key] = t
	}
	l.counts[key] += count
}

// Remove decrements the count of the trace's variant by count. The variant is
// deleted when count reaches or exceeds the stored count. Removing an absent
// variant is a no-op.
func (l *EventLog) Remove(t Trace, count int) error {
	if count <= 0 {
		return fmt.Errorf("%w: count must be positive, got %d", ErrInvalidArgument, count)
	}
	key := t.Key()
	stored, ok := l.counts[key]
	if !ok {
		return nil
	}
	if stored > count {
		l.counts[key] = stored - count
		return nil
	}
	delete(l.counts, key)
	delete(l.variants, key)
	l.order = slices.DeleteFunc(l.order, func(k string) bool { return k == key })
	return nil
}

// RemoveVariant deletes every occurrence of the trace's variant.
func (l *EventLog) RemoveVariant(t Trace) {
	if c := l.VariantCount(t); c > 0 {
		_ = l.Remove(t, c)
	}
}

// VariantCount returns the stored count of the trace's variant, or 0.
func (l *EventLog) VariantCount(t Trace) int {
	return l.counts[t.Key()]
}

// Size returns the total number of occurrences across all variants.
func (l *EventLog) Size() int {
	n := 0
	for _, c := range l.counts {
		n += c
	}
	return n
}

// NumVariants returns the number of distinct variants.
func (l *EventLog) NumVariants() int { return len(l.order) }

// Variants iterates distinct variants with their counts in insertion order.
func (l *EventLog) Variants() iter.Seq2[Trace, int] {
	return func(yield func(Trace, int) bool) {
		for _, key := range l.order {
			if !yield(l.variants[key], l.counts[key]) {
				return
			}
		}
	}
}

// All yields one independent Trace per occurrence: count copies per variant,
// variants in insertion order.
func (l *EventLog) All() iter.Seq[Trace] {
	return func(yield func(Trace) bool) {
		for _, key := range l.order {
			v := l.variants[key]
			for range l.counts[key] {
				if !yield(New(v.labels...)) {
					return
				}
			}
		}
	}
}

// Clone returns a deep copy of the log.
func (l *EventLog) Clone() *EventLog {
	c := &EventLog{
		counts:   make(map[string]int, len(l.counts)),
		variants: make(map[string]Trace, len(l.variants)),
		order:    slices.Clone(l.order),
	}
	for k, v := range l.counts {
		c.counts[k] = v
	}
	for k, v := range l.variants {
		c.variants[k] = v
	}
	return c
}

func (l *EventLog) String() string {
	parts := make([]string, 0, len(l.order))
	for t, c := range l.Variants() {
		parts = append(parts, fmt.Sprintf("%s: %d", t, c))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
