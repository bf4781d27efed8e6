package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	coremetrics "github.com/fluxgate/fluxgate/pkg/govern/core/metrics"
)

// NewTracer selects the configured tracer: an OTLP exporter when tracing is
// enabled, a no-op otherwise.
func NewTracer(lc fx.Lifecycle, cfg TracingConfig) (coremetrics.Tracer, error) {
	if !cfg.Enabled {
		return coremetrics.NewNopTracer(), nil
	}
	tracer, err := NewOTelTracer(context.Background(), cfg)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return tracer.Shutdown(ctx)
		},
	})
	return tracer, nil
}

// Module provides the metric registry, the Prometheus recorder and the
// tracer.
var Module = fx.Options(
	fx.Provide(
		prometheus.NewRegistry,
		fx.Annotate(
			NewPrometheusRecorder,
			fx.As(new(coremetrics.MetricRecorder)),
		),
		NewTracer,
	),
)
