package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// BootstrapLogger logs to stderr at info until config has been read.
func BootstrapLogger() *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)

	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// BuildLogger builds the service logger. env "prod" writes JSON, every other
// env writes the console format. Every entry carries the app name.
//
// An unknown level is not fatal: the logger falls back to info and reports
// the bad value as its first entry.
func BuildLogger(level, env, app string) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	if env == "prod" {
		cfg = zap.NewProductionConfig()
	}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	if app != "" {
		cfg.InitialFields = map[string]any{"app": app}
	}

	lvl, badLevel := ParseLevel(level)
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	if badLevel {
		logger.Warn("invalid log level, using info",
			zap.String("log_level", level),
			zap.String("valid", "debug, info, warn, error, dpanic, panic, fatal"))
	}
	return logger, nil
}

// ParseLevel maps a configured level name to a zap level. The second result
// is true when the name was not recognised and info was substituted.
func ParseLevel(level string) (zapcore.Level, bool) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return zapcore.InfoLevel, true
	}
	return lvl, false
}
