package observability

import (
	"testing"

	"github.com/smallbiznis/talentbay/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(config.Config{AppVersion: "1.2.3", Environment: "production", OTLPEndpoint: "otel:4317"})
	require.NoError(t, err)

	assert.Equal(t, "talentbay", cfg.ServiceName)
	assert.Equal(t, "1.2.3", cfg.Version)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "grpc", cfg.OtelExporterProtocol)
	assert.Equal(t, "otel:4317", cfg.OtelExporterEndpoint)
	assert.True(t, cfg.OtelEnabled)
	assert.False(t, cfg.Debug())
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("OTEL_ENABLED", "false")
	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "http")
	t.Setenv("OTEL_SAMPLING_RATIO", "0.5")

	cfg, err := LoadConfig(config.Config{Environment: "production"})
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.False(t, cfg.OtelEnabled)
	assert.Equal(t, "http", cfg.OtelExporterProtocol)
	assert.InDelta(t, 0.5, cfg.OtelSamplingRatio, 1e-9)
	assert.True(t, cfg.Debug())
}

func TestLoadConfigReportsEveryBadValue(t *testing.T) {
	t.Setenv("LOG_LEVEL", "loud")
	t.Setenv("OTEL_SAMPLING_RATIO", "2")
	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "carrier-pigeon")

	_, err := LoadConfig(config.Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LOG_LEVEL")
	assert.Contains(t, err.Error(), "OTEL_SAMPLING_RATIO")
	assert.Contains(t, err.Error(), "carrier-pigeon")
}

func TestDebugInDevelopmentEnvironments(t *testing.T) {
	assert.True(t, Config{Environment: "Local", LogLevel: "info"}.Debug())
	assert.False(t, Config{Environment: "staging", LogLevel: "info"}.Debug())
}

func TestDerivedConfigs(t *testing.T) {
	cfg := Config{ServiceName: "talentbay", Environment: "local", LogLevel: "info", OtelEnabled: true, OtelSamplingRatio: 0.25}

	assert.True(t, cfg.LoggerConfig().IncludeStackOnError)
	assert.InDelta(t, 0.25, cfg.TracingConfig().SamplingRatio, 1e-9)
	assert.True(t, cfg.MetricsConfig().Enabled)
}
