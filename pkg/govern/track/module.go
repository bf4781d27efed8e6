package track

import "go.uber.org/fx"

// Module provides the exception tracker.
var Module = fx.Options(
	fx.Provide(NewTracker),
)
