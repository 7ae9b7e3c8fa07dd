package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Engine semantic convention attributes.
var (
	AttrOperation       = attribute.Key("conform.operation")
	AttrConstraintCount = attribute.Key("conform.constraints.count")
	AttrTraceLength     = attribute.Key("conform.trace.length")
	AttrSearchBound     = attribute.Key("conform.search.bound")
	AttrSearchStrategy  = attribute.Key("conform.search.strategy")
	AttrLogSize         = attribute.Key("conform.log.size")
	AttrLogVariants     = attribute.Key("conform.log.variants")
	AttrConformant      = attribute.Key("conform.conformant")
)

// SearchOperation creates attributes for a bounded search.
func SearchOperation(constraints, traceLength, bound int, strategy string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrConstraintCount.Int(constraints),
		AttrTraceLength.Int(traceLength),
		AttrSearchBound.Int(bound),
		AttrSearchStrategy.String(strategy),
	}
}

// LogOperation creates attributes for an event-log analysis.
func LogOperation(constraints, size, variants int) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrConstraintCount.Int(constraints),
		AttrLogSize.Int(size),
		AttrLogVariants.Int(variants),
	}
}

// VariantClassified records the verdict for one log variant on the span in ctx.
func VariantClassified(ctx context.Context, length, count int, conformant bool) {
	AddSpanEvent(ctx, "variant.classified",
		AttrTraceLength.Int(length),
		attribute.Int("conform.variant.count", count),
		AttrConformant.Bool(conformant),
	)
}

// AddSpanEvent adds an event to the span in ctx.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}
