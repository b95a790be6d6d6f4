package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewFallsBackOnUnknownLevel(t *testing.T) {
	logger, err := New(Config{Level: "loud", Encoding: "yaml"})
	if err != nil {
		t.Fatalf("build logger: %v", err)
	}
	if !logger.Core().Enabled(zapcore.InfoLevel) {
		t.Fatalf("expected info level to be enabled")
	}
	if logger.Core().Enabled(zapcore.DebugLevel) {
		t.Fatalf("expected debug level to be disabled by default")
	}
}

func TestNewDevelopmentEnablesDebug(t *testing.T) {
	logger, err := New(Config{Level: "error", Development: true})
	if err != nil {
		t.Fatalf("build logger: %v", err)
	}
	if !logger.Core().Enabled(zapcore.DebugLevel) {
		t.Fatalf("expected debug level in development mode")
	}
}
