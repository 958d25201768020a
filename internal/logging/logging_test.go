package logging

import (
	"errors"
	"testing"

	"go.uber.org/zap/zapcore"

	msgerrors "github.com/wippyai/msgwire/errors"
	"github.com/wippyai/msgwire/host"
)

func TestNew(t *testing.T) {
	tests := []struct {
		level, format string
		enabled       zapcore.Level
		disabled      zapcore.Level
	}{
		{"info", "console", zapcore.InfoLevel, zapcore.DebugLevel},
		{"debug", "json", zapcore.DebugLevel, zapcore.DebugLevel - 1},
		{"error", "json", zapcore.ErrorLevel, zapcore.WarnLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level+"/"+tt.format, func(t *testing.T) {
			l, err := New(tt.level, tt.format)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if !l.Core().Enabled(tt.enabled) {
				t.Errorf("%s should be enabled", tt.enabled)
			}
			if l.Core().Enabled(tt.disabled) {
				t.Errorf("%s should be disabled", tt.disabled)
			}
		})
	}
}

func TestNew_BadLevel(t *testing.T) {
	_, err := New("loud", "json")
	if !errors.Is(err, msgerrors.ErrConfig) {
		t.Errorf("err = %v, want config error", err)
	}
}

func TestInstall(t *testing.T) {
	prev := host.Logger()
	t.Cleanup(func() { host.SetLogger(prev) })

	if _, err := Install("warn", "console"); err != nil {
		t.Fatal(err)
	}
	if host.Logger().Core().Enabled(zapcore.InfoLevel) {
		t.Error("host logger should follow the installed level")
	}
}
