// Package logger builds the service's zap logger.
package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a JSON logger. Development and local environments get the
// development profile at debug level; everything else the production profile
// at info level. A non-empty level overrides the default.
func New(environment, level string) (*zap.Logger, error) {
	env := strings.ToLower(strings.TrimSpace(environment))
	development := env == "development" || env == "local"

	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Encoding = "json"
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = true

	if strings.TrimSpace(level) != "" {
		var parsed zapcore.Level
		if err := parsed.Set(strings.TrimSpace(level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		cfg.Level = zap.NewAtomicLevelAt(parsed)
	} else if development {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}

	built, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return built.With(zap.String("service", "fundtransfer-service")), nil
}
