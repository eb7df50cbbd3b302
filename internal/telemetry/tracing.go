package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("sarifer.coordinator")

// StartAnalyzeSpan opens a span for a single-target analysis.
func StartAnalyzeSpan(ctx context.Context, target, root string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Coordinator.Analyze",
		trace.WithAttributes(
			attribute.String("sarifer.target", target),
			attribute.String("sarifer.project_root", root),
		),
	)
}

// StartBatchSpan opens a span for a batch analysis.
func StartBatchSpan(ctx context.Context, root string, targets int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Coordinator.AnalyzeBatch",
		trace.WithAttributes(
			attribute.String("sarifer.project_root", root),
			attribute.Int("sarifer.targets", targets),
		),
	)
}

// EndSpan records the outcome on span and ends it.
func EndSpan(span trace.Span, outcome string, findings int, err error) {
	span.SetAttributes(
		attribute.String("sarifer.outcome", outcome),
		attribute.Int("sarifer.findings", findings),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
