package common

import (
	"bytes"
	"log"
	"strings"
	"testing"

	"github.com/lni/dragonboat/v4/logger"
)

func TestParseLogLevel(t *testing.T) {
	tests := map[string]logger.LogLevel{
		"debug":   logger.DEBUG,
		"INFO":    logger.INFO,
		"warn":    logger.WARNING,
		"warning": logger.WARNING,
		"error":   logger.ERROR,
	}
	for in, want := range tests {
		got, err := ParseLogLevel(in)
		if err != nil {
			t.Fatalf("ParseLogLevel(%q) failed: %v", in, err)
		}
		if got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}

	if _, err := ParseLogLevel("verbose"); err == nil {
		t.Error("expected an error for an unknown level")
	}
	if err := InitLoggers("verbose"); err == nil {
		t.Error("expected InitLoggers to reject an unknown level")
	}
}

func TestLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	l := &dLockLogger{name: "lockmgr", logger: log.New(&buf, "", 0)}
	l.SetLevel(logger.WARNING)

	l.Infof("hidden %d", 1)
	l.Warningf("lock %q lost", "job-42")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line written at warning level: %q", out)
	}
	if !strings.Contains(out, "WARN  | lockmgr") || !strings.Contains(out, `lock "job-42" lost`) {
		t.Errorf("unexpected log output: %q", out)
	}

	defer func() {
		if recover() == nil {
			t.Error("expected Panicf to panic")
		}
	}()
	l.Panicf("boom")
}
