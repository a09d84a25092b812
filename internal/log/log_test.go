package log

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestLevels(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(LevelInfo)
	t.Cleanup(func() { SetLevel(LevelInfo) })

	Debug("hidden", "k", 1)
	Info("fetch done", "id", "work", "count", 3)
	Error("fetch failed", errors.New("boom"), "id", "home")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug line written at info level:\n%s", out)
	}
	for _, want := range []string{"fetch done", "id=work", "count=3", "fetch failed", "err=boom", "id=home"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	SetLevel(LevelDebug)
	Debug("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Errorf("debug line missing at debug level: %q", buf.String())
	}

	buf.Reset()
	SetLevel(LevelError)
	Info("quiet")
	if buf.Len() != 0 {
		t.Errorf("info line written at error level: %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug": LevelDebug,
		"INFO":  LevelInfo,
		"warn":  LevelInfo,
		"error": LevelError,
		"fatal": LevelError,
		"bogus": LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
