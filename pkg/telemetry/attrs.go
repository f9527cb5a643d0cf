package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// AuthorizeOperation builds the attribute set for one pkg/authz.Authorize
// call, grounded on the teacher's PDPOperation helper (domain, action,
// decision, latency tuple) but renamed for this system's Authorization
// Engine.
func AuthorizeOperation(agentID, actionType, denialReason string, band int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("agentgov.agent.id", agentID),
		attribute.String("agentgov.authz.action_type", actionType),
		attribute.String("agentgov.authz.denial_reason", denialReason),
		attribute.Int("agentgov.authz.band", band),
	}
}

// CouncilOperation builds the attribute set for a pkg/council validator
// dispatch round.
func CouncilOperation(intentID, verdict string, validatorCount int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("agentgov.council.intent_id", intentID),
		attribute.String("agentgov.council.verdict", verdict),
		attribute.Int("agentgov.council.validator_count", validatorCount),
	}
}

// TrustTransitionOperation builds the attribute set for a
// pkg/trust.Pipeline.Transition call.
func TrustTransitionOperation(agentID string, from, to string, forced bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("agentgov.agent.id", agentID),
		attribute.String("agentgov.trust.from_stage", from),
		attribute.String("agentgov.trust.to_stage", to),
		attribute.Bool("agentgov.trust.forced", forced),
	}
}

// SpanFromContext returns the current span, or a no-op span if none.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// AddSpanEvent records a named event on the current span.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}

// SetSpanStatus marks the current span as errored, or OK if err is nil.
func SetSpanStatus(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}
