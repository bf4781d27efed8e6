package storage

import "go.uber.org/fx"

// Module provides the configured object store.
var Module = fx.Options(
	fx.Provide(NewObjectStore),
)
