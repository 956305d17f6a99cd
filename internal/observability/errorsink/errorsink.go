// Package errorsink receives failures that background work cannot return to a
// caller, such as a profile lookup that failed after the request was served.
package errorsink

import (
	"context"
	"errors"
	"sort"

	"github.com/smallbiznis/talentbay/internal/observability/logger"
	"github.com/smallbiznis/talentbay/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Sink accepts errors along with low-cardinality tags.
type Sink interface {
	Report(ctx context.Context, err error, tags map[string]string)
}

// Kinder is implemented by errors that classify themselves for the kind tag.
type Kinder interface {
	Kind() string
}

// Logging reports to zap, the active span and a Prometheus counter.
type Logging struct {
	log     *zap.Logger
	metrics *telemetry.Metrics
}

func New(log *zap.Logger, metrics *telemetry.Metrics) *Logging {
	if log == nil {
		log = zap.NewNop()
	}
	return &Logging{log: log.Named("errorsink"), metrics: metrics}
}

func (s *Logging) Report(ctx context.Context, err error, tags map[string]string) {
	if err == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	kind := tags["kind"]
	if kind == "" {
		var k Kinder
		if errors.As(err, &k) {
			kind = k.Kind()
		}
	}
	if kind == "" {
		kind = "unclassified"
	}

	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]zap.Field, 0, len(keys)+2)
	attrs := make([]attribute.KeyValue, 0, len(keys)+1)
	fields = append(fields, zap.String("kind", kind), zap.Error(err))
	attrs = append(attrs, attribute.String("error.kind", kind))
	for _, k := range keys {
		if k == "kind" {
			continue
		}
		fields = append(fields, zap.String(k, tags[k]))
		attrs = append(attrs, attribute.String("error.tag."+k, tags[k]))
	}

	logger.WithContext(ctx, s.log).Error("background operation failed", fields...)

	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.AddEvent("error.reported", trace.WithAttributes(attrs...))
	}

	s.metrics.RecordReportedError(kind)
}

// Func adapts a plain function to Sink.
type Func func(ctx context.Context, err error, tags map[string]string)

func (f Func) Report(ctx context.Context, err error, tags map[string]string) {
	if f != nil {
		f(ctx, err, tags)
	}
}
