package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLoggerHonorsLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"info":    zapcore.InfoLevel,
		"warn":    zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"bogus":   zapcore.InfoLevel,
	}

	for level, want := range cases {
		logger, err := NewLogger(level)
		if err != nil {
			t.Fatalf("level %q: unexpected error: %v", level, err)
		}
		if !logger.Core().Enabled(want) {
			t.Fatalf("level %q: expected %s enabled", level, want)
		}
		if want != zapcore.DebugLevel && logger.Core().Enabled(want-1) {
			t.Fatalf("level %q: expected %s disabled", level, want-1)
		}
	}
}
