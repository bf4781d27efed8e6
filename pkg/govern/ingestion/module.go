package ingestion

import "go.uber.org/fx"

// Module provides the ingestion gateway.
var Module = fx.Options(
	fx.Provide(NewGateway),
)
