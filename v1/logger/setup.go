package logger

import (
	"log"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps Uber's Zap logger behind the small structured interface
// the publishing components consume.
type Logger struct {
	// Zap is the underlying zap.Logger instance. It is exposed for the
	// rare case that needs Zap-specific functionality; regular logging
	// goes through the wrapper methods.
	Zap *zap.Logger

	// tracingEnabled controls whether the WithContext variants extract
	// trace context and attach trace/span IDs to entries.
	tracingEnabled bool
}

// NewLogger builds the logger from the given configuration.
//
// The logger writes JSON to stderr with ISO8601 timestamps, capital level
// names, and caller information, and stamps every entry with the process
// ID and service name. The level mapping follows Config.Level; anything
// below the configured level is dropped by zap before encoding.
//
// Initialization failure is unrecoverable and terminates the process.
//
// Example:
//
//	log := logger.NewLogger(logger.Config{
//	    Level:       logger.Info,
//	    ServiceName: "pid-publisher",
//	})
//	log.Info("publisher starting", nil, nil)
func NewLogger(cfg Config) *Logger {

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderCfg.EncodeCaller = zapcore.FullCallerEncoder
	encoderCfg.EncodeDuration = zapcore.MillisDurationEncoder

	logLevel := zap.InfoLevel

	switch cfg.Level {
	case Debug:
		logLevel = zap.DebugLevel
	case Info:
		logLevel = zap.InfoLevel
	case Warning:
		logLevel = zap.WarnLevel
	case Error:
		logLevel = zap.ErrorLevel
	}

	config := zap.Config{
		Level:             zap.NewAtomicLevelAt(logLevel),
		Development:       false,
		DisableCaller:     false,
		DisableStacktrace: false,
		Sampling:          nil,
		Encoding:          "json",
		EncoderConfig:     encoderCfg,
		OutputPaths: []string{
			"stderr",
		},
		ErrorOutputPaths: []string{
			"stderr",
		},
		InitialFields: map[string]interface{}{
			"pid":     os.Getpid(),
			"service": cfg.ServiceName,
		},
	}

	logger, err := config.Build(zap.AddCaller(), zap.AddCallerSkip(1))

	if err != nil {
		log.Fatal(err)
	}

	return &Logger{
		Zap:            logger,
		tracingEnabled: cfg.EnableTracing,
	}
}
