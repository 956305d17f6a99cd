package logger

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	obscontext "github.com/smallbiznis/talentbay/internal/observability/context"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const defaultServiceName = "talentbay"

// Config configures the process logger. Zero sampling values fall back to
// 100 entries per second, then 1 in 100.
type Config struct {
	ServiceName string
	Environment string
	Version     string
	Level       string
	Format      string
	Debug       bool

	SamplingInitial     int
	SamplingThereafter  int
	SamplingWindow      time.Duration
	IncludeCaller       bool
	IncludeStackOnError bool
}

// New builds the process logger, installs it as zap's global and syncs it
// when the app stops.
func New(lc fx.Lifecycle, cfg Config) (*zap.Logger, error) {
	log, err := Build(cfg)
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(log)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				// stdout cannot be synced on some platforms; that is not a shutdown failure.
				_ = log.Sync()
				return nil
			},
		})
	}
	return log, nil
}

// Build returns a logger for cfg without touching global state.
func Build(cfg Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cmp.Or(strings.TrimSpace(cfg.Level), "info"))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if isConsole(cfg.Format) {
		encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), level)
	if !cfg.Debug {
		core = zapcore.NewSamplerWithOptions(core,
			cmp.Or(cfg.SamplingWindow, time.Second),
			cmp.Or(cfg.SamplingInitial, 100),
			cmp.Or(cfg.SamplingThereafter, 100),
		)
	}

	opts := []zap.Option{zap.ErrorOutput(zapcore.Lock(os.Stderr))}
	if cfg.IncludeCaller {
		opts = append(opts, zap.AddCaller())
	}
	if cfg.IncludeStackOnError {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	return zap.New(core, opts...).With(serviceFields(cfg)...), nil
}

func isConsole(format string) bool {
	return strings.EqualFold(strings.TrimSpace(format), "console")
}

func serviceFields(cfg Config) []zap.Field {
	fields := []zap.Field{zap.String("service", cmp.Or(strings.TrimSpace(cfg.ServiceName), defaultServiceName))}
	if env := strings.TrimSpace(cfg.Environment); env != "" {
		fields = append(fields, zap.String("env", env))
	}
	if version := strings.TrimSpace(cfg.Version); version != "" {
		fields = append(fields, zap.String("version", version))
	}
	return fields
}

// FromContext is WithContext on the global logger.
func FromContext(ctx context.Context) *zap.Logger {
	return WithContext(ctx, zap.L())
}

// WithContext tags base with the request, device and signed-in actor carried
// by ctx, plus the active span. Absent values are left out.
func WithContext(ctx context.Context, base *zap.Logger) *zap.Logger {
	if ctx == nil || base == nil {
		return base
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}

// ContextFields returns the correlation fields found in ctx.
func ContextFields(ctx context.Context) []zap.Field {
	var fields []zap.Field
	for _, f := range []struct{ key, value string }{
		{"request_id", obscontext.RequestIDFromContext(ctx)},
		{"device_id", obscontext.DeviceIDFromContext(ctx)},
		{"actor_id", obscontext.ActorIDFromContext(ctx)},
	} {
		if f.value != "" {
			fields = append(fields, zap.String(f.key, f.value))
		}
	}

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	return fields
}
