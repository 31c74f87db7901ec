// Package otel provides OpenTelemetry instrumentation utilities for discovery runs.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys shared by the spans of a run
const (
	AttrRepoURL  = attribute.Key("font_sources.repo_url")
	AttrFamily   = attribute.Key("font_sources.family")
	AttrRev      = attribute.Key("font_sources.rev")
	AttrStrategy = attribute.Key("font_sources.strategy")
	AttrOutcome  = attribute.Key("font_sources.outcome")
	AttrConfigs  = attribute.Key("font_sources.config_count")
)

// StartSpan starts a new span if the tracer is non-nil, otherwise returns a no-op span.
func StartSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

// RecordError records an error on a span and sets the span status to error.
// It safely handles nil spans and nil errors.
//
// The status description is the error's outcome class rather than the
// error text, which can carry token-bearing URLs.
func RecordError(span trace.Span, err error, outcome string) {
	if err != nil && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
}
