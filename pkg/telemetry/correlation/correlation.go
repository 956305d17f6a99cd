package correlation

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// correlationKey is an unexported type for context keys within this package.
type correlationKey struct{}

// ExtractCorrelationID fetches a correlation ID from the context if present.
func ExtractCorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if val, ok := ctx.Value(correlationKey{}).(string); ok {
		return val
	}
	return ""
}

// ContextWithCorrelationID sets the correlation ID onto the context.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationKey{}, id)
}

// EnsureCorrelationID guarantees a correlation ID on the context, generating one when missing.
func EnsureCorrelationID(ctx context.Context) (context.Context, string) {
	cid := ExtractCorrelationID(ctx)
	if cid == "" {
		cid = ulid.Make().String()
	}
	return ContextWithCorrelationID(ctx, cid), cid
}

// Metadata links a published message back to the request that produced it.
type Metadata struct {
	CorrelationID string    `json:"correlation_id"`
	TraceID       string    `json:"trace_id,omitempty"`
	SpanID        string    `json:"span_id,omitempty"`
	PublishedAt   time.Time `json:"published_at"`
}

// NewMetadata captures correlation and tracing identifiers from ctx.
func NewMetadata(ctx context.Context) Metadata {
	_, cid := EnsureCorrelationID(ctx)
	md := Metadata{
		CorrelationID: cid,
		PublishedAt:   time.Now().UTC(),
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		md.TraceID = sc.TraceID().String()
		md.SpanID = sc.SpanID().String()
	}
	return md
}

// ContextWithRemoteSpan seeds the context with the span recorded in md, if any.
func ContextWithRemoteSpan(ctx context.Context, md Metadata) context.Context {
	ctx = ContextWithCorrelationID(ctx, md.CorrelationID)
	if md.TraceID == "" || md.SpanID == "" {
		return ctx
	}

	traceID, err := trace.TraceIDFromHex(md.TraceID)
	if err != nil {
		return ctx
	}
	spanID, err := trace.SpanIDFromHex(md.SpanID)
	if err != nil {
		return ctx
	}

	parent := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled, Remote: true})
	return trace.ContextWithSpanContext(ctx, parent)
}

// SpanProcessor stamps every span with the correlation id of its context.
type SpanProcessor struct{}

func (SpanProcessor) OnStart(ctx context.Context, s sdktrace.ReadWriteSpan) {
	_, cid := EnsureCorrelationID(ctx)
	s.SetAttributes(attribute.String("correlation_id", cid))
}

func (SpanProcessor) OnEnd(sdktrace.ReadOnlySpan) {}

func (SpanProcessor) Shutdown(context.Context) error { return nil }

func (SpanProcessor) ForceFlush(context.Context) error { return nil }
