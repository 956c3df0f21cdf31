package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/eval-hub/eval-dashboard/internal/config"
	"github.com/eval-hub/eval-dashboard/internal/constants"
)

func TestNewLogger(t *testing.T) {
	for _, encoding := range []string{"console", "json", ""} {
		logger, sync, err := NewLogger(&config.LoggingConfig{Level: "debug", Encoding: encoding})
		if err != nil {
			t.Fatalf("encoding %q: %v", encoding, err)
		}
		if logger == nil || sync == nil {
			t.Fatalf("encoding %q: expected a logger and a sync function", encoding)
		}
	}
}

func TestNewLoggerRejectsInvalidConfig(t *testing.T) {
	if _, _, err := NewLogger(&config.LoggingConfig{Level: "verbose", Encoding: "json"}); err == nil {
		t.Errorf("Expected an invalid level to fail")
	}
	if _, _, err := NewLogger(&config.LoggingConfig{Level: "info", Encoding: "xml"}); err == nil {
		t.Errorf("Expected an invalid encoding to fail")
	}
}

func TestNewLoggerFromCore(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := NewLoggerFromCore(core).With(constants.LOG_REQUEST_ID, "req-1")

	logger.Debug("dropped")
	logger.Info("Dataset loaded", constants.LOG_ID, "ds-1")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Message != "Dataset loaded" || entry.LoggerName != loggerName {
		t.Errorf("Unexpected entry %+v", entry)
	}
	fields := entry.ContextMap()
	if fields[constants.LOG_REQUEST_ID] != "req-1" || fields[constants.LOG_ID] != "ds-1" {
		t.Errorf("Unexpected fields %v", fields)
	}
}

func TestDiscard(t *testing.T) {
	Discard().Error("nothing to see")
}
