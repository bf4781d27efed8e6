package logger

import "go.uber.org/fx"

// Module is an Fx module that routes the Fx event log through this logger.
var Module = fx.Options(
	fx.WithLogger(NewFxLoggerAdapter),
)
