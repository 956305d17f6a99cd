package metrics

import (
	"cmp"
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const exportInterval = 10 * time.Second

// Session changes made through the HTTP API.
const (
	ChangeSignOut = "sign_out"
	ChangeExtend  = "extend"
)

// Config configures the OTLP meter provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics counts what users do with their sessions: sign-in attempts by
// outcome, explicit session changes and throttled requests.
type Metrics struct {
	signIns   metric.Int64Counter
	changes   metric.Int64Counter
	throttled metric.Int64Counter
}

// NewProvider registers the global meter provider. When export is disabled a
// noop provider is installed so instruments stay cheap.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}
	if log == nil {
		log = zap.NewNop()
	}

	exporter, err := newExporter(context.Background(), cfg)
	if err != nil {
		return nil, err
	}
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			attribute.String("service.name", serviceName(cfg)),
			attribute.String("deployment.environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, err
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(exportInterval))),
	)
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				log.Info("flushing session metrics")
				return provider.Shutdown(ctx)
			},
		})
	}
	log.Info("otlp metrics export enabled",
		zap.String("endpoint", cfg.ExporterEndpoint),
		zap.String("protocol", cfg.ExporterProtocol),
	)
	return provider, nil
}

// New creates the session instruments on provider.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	meter := provider.Meter(serviceName(cfg))

	var m Metrics
	for _, inst := range []struct {
		target *metric.Int64Counter
		name   string
		desc   string
	}{
		{&m.signIns, "talentbay_sign_in_attempts_total", "Sign-in attempts by outcome."},
		{&m.changes, "talentbay_session_changes_total", "Sign-outs and session extensions requested by users."},
		{&m.throttled, "talentbay_requests_throttled_total", "Requests refused by the rate limiter, by route."},
	} {
		counter, err := meter.Int64Counter(inst.name, metric.WithDescription(inst.desc), metric.WithUnit("{request}"))
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", inst.name, err)
		}
		*inst.target = counter
	}
	return &m, nil
}

// RecordSignIn counts a sign-in attempt. outcome is success,
// invalid_credentials or error.
func (m *Metrics) RecordSignIn(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.signIns.Add(ctx, 1, withLabels(attribute.String("outcome", outcome)))
}

func (m *Metrics) RecordSignOut(ctx context.Context) {
	m.recordChange(ctx, ChangeSignOut)
}

func (m *Metrics) RecordSessionExtend(ctx context.Context) {
	m.recordChange(ctx, ChangeExtend)
}

func (m *Metrics) recordChange(ctx context.Context, change string) {
	if m == nil {
		return
	}
	m.changes.Add(ctx, 1, withLabels(attribute.String("change", change)))
}

// RecordThrottled counts a request on route that the rate limiter refused.
func (m *Metrics) RecordThrottled(ctx context.Context, route string) {
	if m == nil {
		return
	}
	m.throttled.Add(ctx, 1, withLabels(attribute.String("route", route)))
}

func withLabels(attrs ...attribute.KeyValue) metric.AddOption {
	return metric.WithAttributes(FilterAttributes(attrs...)...)
}

func serviceName(cfg Config) string {
	return cmp.Or(strings.TrimSpace(cfg.ServiceName), "talentbay")
}

func newExporter(ctx context.Context, cfg Config) (sdkmetric.Exporter, error) {
	endpoint := strings.TrimSpace(cfg.ExporterEndpoint)
	switch protocol := strings.ToLower(strings.TrimSpace(cfg.ExporterProtocol)); protocol {
	case "", "grpc", "grpc/protobuf":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(ctx, opts...)
	case "http", "http/protobuf":
		var opts []otlpmetrichttp.Option
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

// Label keys that may reach the exporter. Anything keyed by a user, device or
// email would make series unbounded.
var allowedLabelKeys = map[attribute.Key]struct{}{
	"change":      {},
	"method":      {},
	"outcome":     {},
	"route":       {},
	"status_code": {},
}

// FilterAttributes drops labels outside allowedLabelKeys and trims values.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		if attr.Value.Type() == attribute.STRING {
			attr = attr.Key.String(strings.TrimSpace(attr.Value.AsString()))
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
