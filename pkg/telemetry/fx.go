package telemetry

import "go.uber.org/fx"

// Module provides the Prometheus metrics registry.
var Module = fx.Module("telemetry",
	fx.Provide(NewMetrics),
)
