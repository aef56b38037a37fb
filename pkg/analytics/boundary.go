package analytics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/persona-insights/pkg/observability"
)

const tracerName = "github.com/platinummonkey/persona-insights/pkg/analytics"

// guard is the error boundary wrapped around every public Service operation.
// Failures are logged with the operation and owner id, recorded on the span
// and in metrics, and returned unchanged.
func guard[T any](ctx context.Context, s *Service, op, ownerID string, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "analytics."+op,
		trace.WithAttributes(
			attribute.String("analytics.operation", op),
			attribute.String("analytics.owner_id", ownerID),
		),
	)
	defer span.End()

	start := time.Now()
	result, err := fn(ctx)
	s.metrics.RecordAnalyticsOperation(op, time.Since(start), err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observability.UpdateLoggerWithTraceContext(ctx, s.logger).
			WithFields(map[string]interface{}{
				"operation": op,
				"owner_id":  ownerID,
			}).
			WithError(err).
			Error("Analytics operation failed")
	}
	return result, err
}
