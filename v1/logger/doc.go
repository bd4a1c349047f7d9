// Package logger provides structured logging for the pidmq packages.
//
// It wraps Uber's Zap logger with a small, stable surface: leveled logging
// methods with optional error and structured-field parameters, plus
// context-aware variants that attach trace identifiers when tracing
// integration is enabled. Other packages in this repository consume the
// logger through their own minimal Logger interfaces, so they stay
// decoupled from Zap.
//
// # Direct Usage (Without FX)
//
//	import "github.com/Aleph-Alpha/pidmq/v1/logger"
//
//	log := logger.NewLogger(logger.Config{
//		Level:       logger.Info,
//		ServiceName: "pid-publisher",
//	})
//
//	log.Info("publisher started", nil, map[string]interface{}{
//		"hosts": 3,
//	})
//
// # Usage With FX
//
//	app := fx.New(
//		logger.FXModule,
//		fx.Provide(func() logger.Config {
//			return logger.Config{Level: logger.Info, ServiceName: "pid-publisher"}
//		}),
//	)
//
// The fx module registers a shutdown hook that flushes buffered entries on
// application stop.
package logger
