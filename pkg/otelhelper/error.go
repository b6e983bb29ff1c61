package otelhelper

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrorPermanentKey marks whether a dispatch error was classified as
// permanent (no retry) or transient.
const ErrorPermanentKey = "fieldline.error.permanent"

// SetError records err on the span and flags the span status as failed.
func SetError(span trace.Span, err error, permanent bool, attrs ...attribute.KeyValue) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.Bool(ErrorPermanentKey, permanent))

	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
}
