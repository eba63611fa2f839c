package config

import (
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
)

// NewLogger builds the process logger from the log section. Format "auto"
// picks text on a terminal and JSON otherwise.
func (c *Config) NewLogger(out *os.File) *slog.Logger {
	return newLogger(out, c.Log.Level, c.Log.Format, isatty.IsTerminal(out.Fd()) || isatty.IsCygwinTerminal(out.Fd()))
}

func newLogger(w io.Writer, level, format string, tty bool) *slog.Logger {
	var lv slog.Level
	if err := lv.UnmarshalText([]byte(level)); err != nil {
		lv = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lv}

	if format == "json" || (format != "text" && !tty) {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
