package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestModuleLoggerCarriesAttribute(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithHandler(slog.NewTextHandler(&buf, nil)).Module("executor")
	l.Info("transaction rejected", "index", 3)

	out := buf.String()
	if !strings.Contains(out, "module=executor") {
		t.Fatalf("module attribute missing: %s", out)
	}
	if !strings.Contains(out, "index=3") {
		t.Fatalf("kv context missing: %s", out)
	}
}

func TestVerbosityMapping(t *testing.T) {
	if VerbosityToLevel(3) != slog.LevelInfo {
		t.Fatalf("verbosity 3 = %v", VerbosityToLevel(3))
	}
	if VerbosityToLevel(5) != slog.LevelDebug {
		t.Fatalf("verbosity 5 = %v", VerbosityToLevel(5))
	}
	if VerbosityToLevel(0) <= slog.LevelError {
		t.Fatalf("verbosity 0 must be quieter than error")
	}
}

func TestSetDefaultIgnoresNil(t *testing.T) {
	prev := Default()
	SetDefault(nil)
	if Default() != prev {
		t.Fatal("nil replaced the default logger")
	}
}
