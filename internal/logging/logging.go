// Package logging builds the shared zap.Logger used across every
// component, with a JSON encoder in production and a console encoder in
// development.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a *zap.Logger. format is "json" or "console"; level is any
// zapcore level name ("debug", "info", "warn", "error").
func New(level, format, serviceName string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("logging: invalid level %q: %w", level, err)
	}

	var cfg zap.Config
	switch format {
	case "console":
		cfg = zap.NewDevelopmentConfig()
	case "json", "":
		cfg = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("logging: unknown format %q", format)
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("logging: build: %w", err)
	}

	if serviceName != "" {
		logger = logger.With(zap.String("service", serviceName))
	}
	return logger, nil
}

// NewDevelopment returns a console-format debug logger, convenient for
// local runs and tests that want real output instead of zap.NewNop.
func NewDevelopment(serviceName string) *zap.Logger {
	logger, err := New("debug", "console", serviceName)
	if err != nil {
		panic(err) // static config, cannot fail
	}
	return logger
}
