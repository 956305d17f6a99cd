package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/talentbay/internal/observability/errorsink"
	"github.com/smallbiznis/talentbay/internal/observability/logger"
	"github.com/smallbiznis/talentbay/internal/observability/metrics"
	"github.com/smallbiznis/talentbay/internal/observability/tracing"
	"github.com/smallbiznis/talentbay/pkg/telemetry"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		Config.LoggerConfig,
		logger.New,
		Config.TracingConfig,
		tracing.NewProvider,
		Config.MetricsConfig,
		metrics.NewProvider,
		metrics.New,
		metrics.NewHTTPMetrics,
		providePrometheusRegisterer,
		telemetry.NewMetrics,
		fx.Annotate(errorsink.New, fx.As(new(errorsink.Sink))),
	),
	fx.Invoke(ensureTracingProvider),
)

func ensureTracingProvider(_ *sdktrace.TracerProvider) {}

func providePrometheusRegisterer() prometheus.Registerer {
	return prometheus.DefaultRegisterer
}
