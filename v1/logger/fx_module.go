package logger

import (
	"context"

	"go.uber.org/fx"
)

// FXModule wires the logger into an Fx application: it provides the
// NewLogger factory and registers the shutdown hook that flushes buffered
// entries.
//
// Usage:
//
//	app := fx.New(
//	    logger.FXModule,
//	    // other modules...
//	)
//
// A logger.Config must be available in the dependency injection
// container.
var FXModule = fx.Module("logger",
	fx.Provide(
		NewLogger,
	),
	fx.Invoke(RegisterLoggerLifecycle),
)

// RegisterLoggerLifecycle appends an OnStop hook that syncs the
// underlying Zap logger, so entries still buffered in memory reach their
// destination before the process exits. It is invoked by FXModule and
// does not need to be called directly.
func RegisterLoggerLifecycle(lc fx.Lifecycle, client *Logger) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Zap.Sync()
		},
	})
}
