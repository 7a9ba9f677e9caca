package observability

import (
	"context"
	"os"
	"strconv"
	"strings"

	"github.com/voundbrand/gatehouse/internal/config"
	"github.com/voundbrand/gatehouse/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

// Module wires the tracer provider for the application.
var Module = fx.Module("observability",
	fx.Provide(provideTracingConfig, tracing.NewProvider),
	fx.Invoke(registerShutdown),
)

func provideTracingConfig(cfg config.Config) tracing.Config {
	return tracing.Config{
		Enabled:          getenvBool("OTEL_ENABLED", true),
		ServiceName:      cfg.AppName,
		ServiceVersion:   cfg.AppVersion,
		Environment:      cfg.Environment,
		ExporterEndpoint: cfg.OTLPEndpoint,
		SamplingRatio:    getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
	}
}

func registerShutdown(lc fx.Lifecycle, provider *sdktrace.TracerProvider) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return tracing.Shutdown(ctx, provider)
		},
	})
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}
