package rule

import "go.uber.org/fx"

// Module provides the rule engine.
var Module = fx.Options(
	fx.Provide(NewEngine),
)
