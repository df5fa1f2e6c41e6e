package internal

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// NewLogger builds the process logger. The json format writes one object per
// line to out; text writes coloured, human readable lines to out when it is a
// terminal and plain ones otherwise.
func NewLogger(format string, level slog.Level, out *os.File) *slog.Logger {
	if format == LogFormatText {
		var w io.Writer = out
		if out == os.Stdout || out == os.Stderr {
			w = colorable.NewColorable(out)
		}
		underSystemd := os.Getenv("JOURNAL_STREAM") != ""
		return slog.New(tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: "15:04:05.000",
			NoColor:    !isatty.IsTerminal(out.Fd()),
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				// systemd adds its own timestamps.
				if underSystemd && a.Key == slog.TimeKey && len(groups) == 0 {
					return slog.Attr{}
				}
				if d, ok := a.Value.Any().(time.Duration); ok {
					return slog.String(a.Key, d.Round(time.Millisecond).String())
				}
				return a
			},
		}))
	}
	return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: level,
	}))
}
