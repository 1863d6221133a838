package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// l starts as a no-op so packages that log before InitLogger (tests, tools) stay quiet.
var l = zap.NewNop()

// InitLogger builds the process logger. "prod" emits JSON with ISO8601 timestamps,
// every other environment uses the zap development console encoder.
func InitLogger(env string) {
	var cfg zap.Config

	switch env {
	case "prod":
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "time"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	case "test":
		l = zap.NewNop()
		return
	default:
		cfg = zap.NewDevelopmentConfig()
	}

	logger, err := cfg.Build(zap.AddCaller(), zap.AddCallerSkip(1))
	if err != nil {
		panic(err)
	}

	l = logger
	zap.ReplaceGlobals(logger.WithOptions(zap.AddCallerSkip(-1)))
}

// L exposes the underlying logger for libraries that want a *zap.Logger.
func L() *zap.Logger {
	return l.WithOptions(zap.AddCallerSkip(-1))
}

func Info(msg string, fields ...zap.Field) {
	l.Info(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	l.Error(msg, fields...)
}

func Debug(msg string, fields ...zap.Field) {
	l.Debug(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	l.Warn(msg, fields...)
}

func Sync() error {
	return l.Sync()
}
