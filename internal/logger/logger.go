package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// Logger defines the docvault logging contract.
// Arguments after msg are slog-style key/value pairs.
// Implementations should be safe for concurrent use.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Debug(msg string, args ...any)
}

// New returns a tinted slog logger writing to w at the given level.
// Color is enabled only when w is a terminal.
func New(w io.Writer, level slog.Leveler) *slog.Logger {
	noColor := true
	if f, ok := w.(*os.File); ok {
		noColor = !isatty.IsTerminal(f.Fd())
		w = colorable.NewColorable(f)
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000",
		NoColor:    noColor,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Drop empty values (not useful in logs).
			switch a.Value.Kind() {
			case slog.KindString:
				if a.Value.String() == "" {
					return slog.Attr{}
				}
			case slog.KindDuration:
				if a.Value.Duration() == 0 {
					return slog.Attr{}
				}
			}
			return a
		},
	}))
}

// ParseLevel maps a config string to a slog level. Unknown values mean info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Discard drops everything. Useful in tests.
var Discard Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

// Default provides a global default logger on stderr at info level.
var Default Logger = New(os.Stderr, slog.LevelInfo)

// Since is a helper for the common "elapsed" attribute.
func Since(start time.Time) slog.Attr {
	return slog.Duration("elapsed", time.Since(start).Round(time.Millisecond))
}
