package logging

import (
	"fmt"
	"log/slog"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"

	"github.com/eval-hub/eval-dashboard/internal/config"
)

const loggerName = "eval-dashboard"

// NewLogger builds the application logger. The code logs through log/slog, zap does the
// encoding and writing. The returned function flushes buffered entries.
func NewLogger(cfg *config.LoggingConfig) (*slog.Logger, func() error, error) {
	if cfg == nil {
		cfg = &config.LoggingConfig{Level: "info", Encoding: "console"}
	}
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	var zapConfig zap.Config
	switch cfg.Encoding {
	case "", "console":
		zapConfig = zap.NewDevelopmentConfig()
	case "json":
		zapConfig = zap.NewProductionConfig()
	default:
		return nil, nil, fmt.Errorf("invalid log encoding %q", cfg.Encoding)
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)
	// stdout is reserved for command output
	zapConfig.OutputPaths = []string{"stderr"}
	zapConfig.ErrorOutputPaths = []string{"stderr"}

	zapLogger, err := zapConfig.Build()
	if err != nil {
		return nil, nil, err
	}
	return NewLoggerFromCore(zapLogger.Core()), zapLogger.Sync, nil
}

// NewLoggerFromCore wraps an existing zap core, used by tests with an observer core.
func NewLoggerFromCore(core zapcore.Core) *slog.Logger {
	return slog.New(zapslog.NewHandler(core, zapslog.WithName(loggerName), zapslog.WithCaller(true)))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return NewLoggerFromCore(zapcore.NewNopCore())
}
