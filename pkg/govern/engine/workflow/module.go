package workflow

import "go.uber.org/fx"

// Module provides the workflow engine.
var Module = fx.Options(
	fx.Provide(NewEngine),
)
