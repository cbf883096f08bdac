package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	lg, err := New("debug", true)
	if err != nil {
		t.Fatal(err)
	}
	if !lg.Core().Enabled(zapcore.DebugLevel) {
		t.Error("debug level should be enabled")
	}

	lg, err = New("", false)
	if err != nil {
		t.Fatal(err)
	}
	if lg.Core().Enabled(zapcore.DebugLevel) || !lg.Core().Enabled(zapcore.InfoLevel) {
		t.Error("empty level should mean info")
	}

	if _, err := New("loud", false); err == nil {
		t.Error("unknown level should fail")
	}
}
