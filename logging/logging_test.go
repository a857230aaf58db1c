package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantBad bool
	}{
		{"debug", zapcore.DebugLevel, false},
		{"WARN", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"", zapcore.InfoLevel, false},
		{"loud", zapcore.InfoLevel, true},
	}
	for _, tt := range tests {
		got, bad := ParseLevel(tt.in)
		if got != tt.want || bad != tt.wantBad {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v, %v", tt.in, got, bad, tt.want, tt.wantBad)
		}
	}
}

func TestBuildLogger_Level(t *testing.T) {
	for _, env := range []string{"dev", "prod"} {
		logger, err := BuildLogger("warn", env, "formmail")
		if err != nil {
			t.Fatalf("BuildLogger(%s): %v", env, err)
		}
		if logger.Core().Enabled(zapcore.InfoLevel) {
			t.Errorf("%s: info enabled at warn level", env)
		}
		if !logger.Core().Enabled(zapcore.WarnLevel) {
			t.Errorf("%s: warn disabled at warn level", env)
		}
	}
}

func TestBuildLogger_BadLevelFallsBackToInfo(t *testing.T) {
	logger, err := BuildLogger("loud", "dev", "formmail")
	if err != nil {
		t.Fatalf("BuildLogger: %v", err)
	}
	if !logger.Core().Enabled(zapcore.InfoLevel) || logger.Core().Enabled(zapcore.DebugLevel) {
		t.Error("want info level after fallback")
	}
}
