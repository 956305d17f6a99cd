package observability

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/smallbiznis/talentbay/internal/config"
	"github.com/smallbiznis/talentbay/internal/observability/logger"
	"github.com/smallbiznis/talentbay/internal/observability/metrics"
	"github.com/smallbiznis/talentbay/internal/observability/tracing"
	"go.uber.org/zap/zapcore"
)

// Config holds observability settings. Values come from the app config and
// can be overridden through the standard OTEL_* and LOG_* variables.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64
}

var (
	devEnvironments = []string{"dev", "development", "local", "test"}
	otlpProtocols   = []string{"grpc", "grpc/protobuf", "http", "http/protobuf"}
)

func LoadConfig(cfg config.Config) (Config, error) {
	out := Config{
		ServiceName:          cmp.Or(strings.TrimSpace(cfg.AppName), "talentbay"),
		Environment:          cmp.Or(env("DEPLOYMENT_ENV"), strings.TrimSpace(cfg.Environment)),
		Version:              cmp.Or(env("SERVICE_VERSION"), strings.TrimSpace(cfg.AppVersion)),
		LogLevel:             strings.ToLower(cmp.Or(env("LOG_LEVEL"), "info")),
		LogFormat:            strings.ToLower(cmp.Or(env("LOG_FORMAT"), "json")),
		OtelEnabled:          true,
		OtelExporterEndpoint: cmp.Or(env("OTEL_EXPORTER_OTLP_ENDPOINT"), strings.TrimSpace(cfg.OTLPEndpoint)),
		OtelExporterProtocol: strings.ToLower(cmp.Or(env("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL"), env("OTEL_EXPORTER_OTLP_PROTOCOL"), "grpc")),
		OtelSamplingRatio:    0.1,
	}

	var errs []error
	if raw := env("OTEL_ENABLED"); raw != "" {
		enabled, err := strconv.ParseBool(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("OTEL_ENABLED: %w", err))
		}
		out.OtelEnabled = enabled
	}
	if raw := env("OTEL_SAMPLING_RATIO"); raw != "" {
		ratio, err := strconv.ParseFloat(raw, 64)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("OTEL_SAMPLING_RATIO: %w", err))
		case ratio < 0 || ratio > 1:
			errs = append(errs, fmt.Errorf("OTEL_SAMPLING_RATIO: %v is outside [0, 1]", ratio))
		default:
			out.OtelSamplingRatio = ratio
		}
	}
	if _, err := zapcore.ParseLevel(out.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}
	if !slices.Contains(otlpProtocols, out.OtelExporterProtocol) {
		errs = append(errs, fmt.Errorf("OTLP protocol %q is not supported", out.OtelExporterProtocol))
	}

	return out, errors.Join(errs...)
}

// Debug is on for debug logging and for every development environment.
func (c Config) Debug() bool {
	return c.LogLevel == "debug" || slices.Contains(devEnvironments, strings.ToLower(c.Environment))
}

// LoggerConfig keeps caller info everywhere and stack traces only while
// debugging.
func (c Config) LoggerConfig() logger.Config {
	return logger.Config{
		ServiceName:         c.ServiceName,
		Environment:         c.Environment,
		Version:             c.Version,
		Level:               c.LogLevel,
		Format:              c.LogFormat,
		Debug:               c.Debug(),
		IncludeCaller:       true,
		IncludeStackOnError: c.Debug(),
	}
}

func (c Config) TracingConfig() tracing.Config {
	return tracing.Config{
		Enabled:          c.OtelEnabled,
		ServiceName:      c.ServiceName,
		ServiceVersion:   c.Version,
		Environment:      c.Environment,
		ExporterEndpoint: c.OtelExporterEndpoint,
		ExporterProtocol: c.OtelExporterProtocol,
		SamplingRatio:    c.OtelSamplingRatio,
	}
}

func (c Config) MetricsConfig() metrics.Config {
	return metrics.Config{
		Enabled:          c.OtelEnabled,
		ExporterEndpoint: c.OtelExporterEndpoint,
		ExporterProtocol: c.OtelExporterProtocol,
		ServiceName:      c.ServiceName,
		Environment:      c.Environment,
	}
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
