// Package history keeps the append-only plain-text log of track changes and summarizes it.
//
// Each line has the form:
//
//	2024-05-01T21:04:05Z | Title — Artist, Other Artist
//
// The file is the only state that survives a restart.
package history

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/onnwee/nowplaying/telemetry"
)

const (
	fieldSep  = " | "
	artistSep = " — "
)

// Record is one logged track change.
type Record struct {
	Time    time.Time
	Title   string
	Artists string
}

// Line renders r in the on-disk format.
func (r Record) Line() string {
	return r.Time.Format(time.RFC3339) + fieldSep + r.Title + artistSep + r.Artists
}

// ParseLine is the inverse of Record.Line. Titles may contain the artist separator; the
// last occurrence splits title from artists.
func ParseLine(line string) (Record, error) {
	line = strings.TrimRight(line, "\r\n")
	ts, rest, ok := strings.Cut(line, fieldSep)
	if !ok {
		return Record{}, fmt.Errorf("history line %q: missing timestamp separator", line)
	}
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(ts))
	if err != nil {
		return Record{}, fmt.Errorf("history line %q: %w", line, err)
	}
	i := strings.LastIndex(rest, artistSep)
	if i < 0 {
		return Record{Time: t, Title: rest}, nil
	}
	return Record{Time: t, Title: rest[:i], Artists: rest[i+len(artistSep):]}, nil
}

// FileLog appends to and reads back a history file. Safe for concurrent use.
type FileLog struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// NewFileLog returns a log backed by path. The file is created on first append.
func NewFileLog(path string) *FileLog {
	return &FileLog{path: path, now: time.Now}
}

// Path returns the backing file path.
func (l *FileLog) Path() string { return l.path }

// Append writes one record stamped with the current time.
func (l *FileLog) Append(ctx context.Context, title, artists string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rec := Record{Time: l.now().UTC().Truncate(time.Second), Title: oneLine(title), Artists: oneLine(artists)}

	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) //nolint:gosec // G302: plain-text log meant to be readable
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	_, werr := f.WriteString(rec.Line() + "\n")
	cerr := f.Close()
	if werr != nil {
		return fmt.Errorf("write history: %w", werr)
	}
	if cerr != nil {
		return fmt.Errorf("close history: %w", cerr)
	}
	telemetry.CountHistoryAppend()
	return nil
}

// Lines returns the raw lines in append order. limit > 0 keeps only the last limit lines.
// A missing file is an empty history.
func (l *FileLog) Lines(limit int) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open history: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.Warn("failed to close history file", slog.Any("err", err))
		}
	}()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) == "" {
			continue
		}
		lines = append(lines, sc.Text())
		if limit > 0 && len(lines) > limit {
			lines = lines[1:]
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	return lines, nil
}

// Read returns parsed records in append order. Lines that do not parse are skipped.
func (l *FileLog) Read(limit int) ([]Record, error) {
	lines, err := l.Lines(limit)
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(lines))
	for _, line := range lines {
		rec, err := ParseLine(line)
		if err != nil {
			slog.Debug("skipping history line", slog.Any("err", err))
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
