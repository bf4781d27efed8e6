package lineage

import "go.uber.org/fx"

// Module provides the lineage recorder.
var Module = fx.Options(
	fx.Provide(NewRecorder),
)
