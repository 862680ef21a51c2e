// Package logs builds the process logger: a text or JSON handler on the
// given writer, fanned out to the systemd journal when running as a
// systemd service.
package logs

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"

	slogmulti "github.com/samber/slog-multi"
	slogjournal "github.com/systemd/slog-journal"
)

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

// New returns a logger writing to w in format ("text" or "json") at level.
func New(w io.Writer, format string, level slog.Level) *slog.Logger {
	if !isSystemdService() {
		return slog.New(newLocal(w, format, level))
	}

	journal, err := slogjournal.NewHandler(&slogjournal.Options{
		Level: level,
		ReplaceGroup: func(key string) string {
			return toJournalKey(key)
		},
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			a.Key = toJournalKey(a.Key)
			return a
		},
	})
	if err != nil {
		local := newLocal(w, format, level)
		slog.New(local).Warn("new systemd journal handler", "error", err)
		return slog.New(local)
	}

	return slog.New(withJournal(w, format, level, journal))
}

// withJournal sends every record to journal and only warnings and
// errors to w, which systemd also captures.
func withJournal(w io.Writer, format string, level slog.Level, journal slog.Handler) slog.Handler {
	return slogmulti.Fanout(
		journal,
		newLocal(w, format, max(level, slog.LevelWarn)),
	)
}

func newLocal(w io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func toJournalKey(str string) string {
	str = strings.ToUpper(str)
	str = strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' ||
			r >= '0' && r <= '9' {
			return r
		}
		return '_'
	}, str)
	return str
}

func isSystemdService() bool {
	content, err := os.ReadFile("/proc/self/cgroup")
	if err != nil {
		return false
	}
	parts := strings.Split(strings.TrimSpace(string(content)), ":")
	if len(parts) < 3 {
		return false
	}
	return strings.HasSuffix(path.Dir(parts[2]), ".service")
}
