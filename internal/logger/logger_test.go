package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestOrNop(t *testing.T) {
	if _, ok := OrNop(nil).(Nop); !ok {
		t.Errorf("OrNop(nil) did not return a Nop logger")
	}

	l := NewZerolog(&bytes.Buffer{}, zerolog.InfoLevel)
	if OrNop(l) != Logger(l) {
		t.Errorf("OrNop replaced a non-nil logger")
	}
}

func TestParseLevel(t *testing.T) {
	cases := []struct {
		name string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"bogus", zerolog.InfoLevel},
	}
	for _, tc := range cases {
		if got := ParseLevel(tc.name); got != tc.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestZerologEmitsComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewZerolog(&buf, zerolog.DebugLevel)

	l.Info("threshold", "mask built", map[string]interface{}{"foreground": 42})

	out := buf.String()
	for _, want := range []string{`"component":"threshold"`, `"foreground":42`, "mask built"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q: %s", want, out)
		}
	}
}

func TestZerologLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewZerolog(&buf, zerolog.WarnLevel)

	l.Debug("threshold", "suppressed", nil)
	l.Info("threshold", "suppressed", nil)

	if buf.Len() != 0 {
		t.Errorf("debug/info output emitted at warn level: %s", buf.String())
	}
}
