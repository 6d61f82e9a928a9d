package telemetry

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogSettingsFromEnv(t *testing.T) {
	tests := []struct {
		name, level, format string
		wantLevel           slog.Level
		wantFormat          string
	}{
		{"defaults", "", "", slog.LevelInfo, "text"},
		{"debug json", "DEBUG", "json", slog.LevelDebug, "json"},
		{"warn", "warn", "text", slog.LevelWarn, "text"},
		{"unknown level", "verbose", "xml", slog.LevelInfo, "text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("LOG_LEVEL", tt.level)
			t.Setenv("LOG_FORMAT", tt.format)
			t.Setenv("LOG_FILE", "")
			s := LogSettingsFromEnv()
			if s.Level != tt.wantLevel || s.Format != tt.wantFormat {
				t.Errorf("settings = %+v", s)
			}
		})
	}
}

func TestNewLogger_JSONAndUnknownLevelWarning(t *testing.T) {
	t.Setenv("LOG_LEVEL", "loud")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_FILE", "")
	var buf bytes.Buffer
	logger, closer := NewLogger(LogSettingsFromEnv(), &buf)
	defer closer.Close()

	logger.Info("hello", slog.String("component", "test"))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %q", lines)
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &rec); err != nil {
		t.Fatalf("not json: %v", err)
	}
	if rec["msg"] != "hello" || rec["component"] != "test" {
		t.Errorf("record = %v", rec)
	}
	if !strings.Contains(lines[0], "unknown LOG_LEVEL") {
		t.Errorf("missing level warning: %q", lines[0])
	}
}

func TestNewLogger_RotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.log")
	var buf bytes.Buffer
	logger, closer := NewLogger(LogSettings{Level: slog.LevelDebug, Format: "text", File: path, MaxSizeMB: 1}, &buf)
	logger.Debug("to both")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "to both") || !strings.Contains(buf.String(), "to both") {
		t.Errorf("file=%q stdout=%q", data, buf.String())
	}
}
