package processor

import (
	"context"

	"go.uber.org/fx"
)

// Module provides the job processor and ties its worker pool to the
// application lifecycle.
var Module = fx.Options(
	fx.Provide(NewProcessor),
	fx.Invoke(func(lc fx.Lifecycle, p *Processor) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				return p.Start(ctx)
			},
			OnStop: func(ctx context.Context) error {
				return p.Stop(ctx)
			},
		})
	}),
)
