// Package logger builds the process logger: zap owns encoding and levels, and
// the rest of the codebase logs through log/slog via the zapslog bridge.
package logger

import (
	"fmt"
	"log/slog"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"

	"wishguard/internal/platform/config"
)

// New returns a slog.Logger backed by a zap core, plus a sync func to flush
// buffered entries on shutdown.
func New(cfg config.LogConfig) (*slog.Logger, func() error, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("parse log level %q: %w", cfg.Level, err)
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.EncoderConfig.TimeKey = "time"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if cfg.Format == "text" || cfg.Format == "console" {
		zcfg.Encoding = "console"
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zl, err := zcfg.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("build zap logger: %w", err)
	}

	handler := zapslog.NewHandler(zl.Core(), zapslog.WithCaller(true))
	return slog.New(handler), zl.Sync, nil
}

// Security derives the logger handed to the security event publisher.
func Security(base *slog.Logger) *slog.Logger {
	return base.With("logger", "security")
}
