package internal

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

func capture(t *testing.T, fn func()) string {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Writer()
	log.SetOutput(&buf)
	defer log.SetOutput(prev)
	fn()
	return buf.String()
}

func TestLoggerFiltersByLevel(t *testing.T) {
	logger := NewLogger(LogLevelWarn)

	out := capture(t, func() {
		logger.Error("boom %d", 1)
		logger.Warn("careful")
		logger.Info("routine")
		logger.Debug("detail")
	})

	if !strings.Contains(out, "[ERROR] boom 1") {
		t.Errorf("error line missing from output: %q", out)
	}
	if !strings.Contains(out, "[WARN] careful") {
		t.Errorf("warn line missing from output: %q", out)
	}
	if strings.Contains(out, "routine") || strings.Contains(out, "detail") {
		t.Errorf("lines above the configured level leaked: %q", out)
	}
}

func TestLoggerComponentTag(t *testing.T) {
	logger := NewLogger(LogLevelInfo).WithComponent("experiment")

	out := capture(t, func() {
		logger.Info("batch started")
	})
	if !strings.Contains(out, "[INFO] [experiment] batch started") {
		t.Errorf("expected component tag in output, got %q", out)
	}

	if logger.GetLevel() != LogLevelInfo {
		t.Errorf("WithComponent must preserve the level")
	}
}
