package log

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestSetLevelFiltersOutput(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	SetLevel(LevelWarning)
	Debug("debug message")
	Info("info message")
	Warning("warning message")
	Error("error message")

	out := buf.String()
	if strings.Contains(out, "debug message") || strings.Contains(out, "info message") {
		t.Fatalf("expected Debug/Info suppressed at LevelWarning, got: %s", out)
	}
	if !strings.Contains(out, "warning message") || !strings.Contains(out, "error message") {
		t.Fatalf("expected Warning/Error to appear, got: %s", out)
	}
}

func TestSetLevelDebugShowsEverything(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	SetLevel(LevelDebug)
	Debug("trace detail %d", 7)

	if !strings.Contains(buf.String(), "trace detail 7") {
		t.Fatalf("expected formatted debug message, got: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "[DEBUG]") {
		t.Fatalf("expected level tag, got: %s", buf.String())
	}
}

func TestLevelNoneSuppressesAll(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	SetLevel(LevelNone)
	Error("should not appear")

	if buf.Len() != 0 {
		t.Fatalf("expected no output at LevelNone, got: %s", buf.String())
	}
}
