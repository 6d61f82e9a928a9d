package telemetry

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogSettings is read from LOG_LEVEL, LOG_FORMAT, LOG_FILE, LOG_FILE_MAX_MB and LOG_FILE_BACKUPS.
type LogSettings struct {
	Level      slog.Level
	Format     string // text | json
	File       string // rotated copy of the log; empty disables it
	MaxSizeMB  int
	MaxBackups int
	unknown    string
}

// LogSettingsFromEnv parses the logging env vars. Unknown levels fall back to info.
func LogSettingsFromEnv() LogSettings {
	s := LogSettings{Level: slog.LevelInfo, Format: "text", MaxSizeMB: 10, MaxBackups: 3}
	switch v := strings.ToLower(os.Getenv("LOG_LEVEL")); v {
	case "debug":
		s.Level = slog.LevelDebug
	case "warn":
		s.Level = slog.LevelWarn
	case "error":
		s.Level = slog.LevelError
	case "info", "":
	default:
		s.unknown = v
	}
	if strings.ToLower(os.Getenv("LOG_FORMAT")) == "json" {
		s.Format = "json"
	}
	s.File = os.Getenv("LOG_FILE")
	if n, err := strconv.Atoi(os.Getenv("LOG_FILE_MAX_MB")); err == nil && n > 0 {
		s.MaxSizeMB = n
	}
	if n, err := strconv.Atoi(os.Getenv("LOG_FILE_BACKUPS")); err == nil && n >= 0 {
		s.MaxBackups = n
	}
	return s
}

// NewLogger builds a slog logger writing to stdout and, when File is set, to a
// lumberjack-rotated file. The returned closer flushes and closes the file.
func NewLogger(s LogSettings, stdout io.Writer) (*slog.Logger, io.Closer) {
	var out io.Writer = stdout
	var closer io.Closer = nopCloser{}
	if s.File != "" {
		lj := &lumberjack.Logger{
			Filename:   s.File,
			MaxSize:    s.MaxSizeMB,
			MaxBackups: s.MaxBackups,
			Compress:   true,
		}
		out = io.MultiWriter(stdout, lj)
		closer = lj
	}

	opts := &slog.HandlerOptions{Level: s.Level}
	var handler slog.Handler
	if s.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	logger := slog.New(handler)
	if s.unknown != "" {
		logger.Warn("unknown LOG_LEVEL, using info", slog.String("value", s.unknown))
	}
	return logger, closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
