// Package observability provides structured logging for the relay server.
package observability

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xiaoas/noname-server/internal/config"
	"github.com/xiaoas/noname-server/internal/session"
)

// ServiceName is attached to every log entry produced by NewLogger.
const ServiceName = "noname-relay"

// NewLogger creates a structured logger from the given logging configuration.
// JSON output is unsampled so that every connect and disconnect is recorded;
// console output uses colored levels for local runs.
//
// Precondition: cfg.Level must be one of "debug", "info", "warn", "error".
// Precondition: cfg.Format must be "json" or "console".
// Postcondition: Returns a configured zap.Logger or a non-nil error.
func NewLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level %q: %w", cfg.Level, err)
	}

	zapCfg, err := baseConfig(cfg.Format)
	if err != nil {
		return nil, err
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapCfg.InitialFields = map[string]interface{}{"service": ServiceName}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger, nil
}

func baseConfig(format string) (zap.Config, error) {
	switch format {
	case "json":
		c := zap.NewProductionConfig()
		c.Sampling = nil
		return c, nil
	case "console":
		c := zap.NewDevelopmentConfig()
		c.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return c, nil
	default:
		return zap.Config{}, fmt.Errorf("unknown log format %q", format)
	}
}

// ForSession returns a child logger tagged with the connection's client ID.
func ForSession(logger *zap.Logger, uid string) *zap.Logger {
	return logger.With(zap.String("uid", uid))
}

// StatsFields renders registry statistics as log fields.
func StatsFields(st session.Stats) []zap.Field {
	return []zap.Field{
		zap.Int("sessions", st.Sessions),
		zap.Int("unauthenticated", st.Unauthenticated),
		zap.Int("owners", st.Owners),
		zap.Int("guests", st.Guests),
	}
}
