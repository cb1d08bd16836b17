package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "github.com/janhq/gallery-api"
)

// GetTracer returns the tracer for the gallery-api service.
func GetTracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartUploadSpan starts a span covering one upload batch.
func StartUploadSpan(ctx context.Context, batchID, ownerID string, files int, grouped bool) (context.Context, trace.Span) {
	return GetTracer().Start(ctx, "upload.batch",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("upload.batch_id", batchID),
			attribute.String("upload.owner_id", ownerID),
			attribute.Int("upload.files", files),
			attribute.Bool("upload.grouped", grouped),
		),
	)
}

// StartArchiveSpan starts a span covering one album archive stream.
func StartArchiveSpan(ctx context.Context, albumID string) (context.Context, trace.Span) {
	return GetTracer().Start(ctx, "archive.stream",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("archive.album_id", albumID)),
	)
}

// RecordError records an error on a span.
func RecordError(span trace.Span, err error, severity string) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.String("error.severity", severity))
}

// AddStatusTransition adds a state transition event to a span.
func AddStatusTransition(span trace.Span, fromStatus, toStatus string) {
	span.AddEvent("status.transition",
		trace.WithAttributes(
			attribute.String("status.from", fromStatus),
			attribute.String("status.to", toStatus),
		),
	)
}
