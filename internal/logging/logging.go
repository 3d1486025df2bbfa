// Package logging builds the slog handlers used for diagnostics.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// ErrKey is the attribute key used by Err.
const ErrKey = "error"

type Format string

const (
	FormatText Format = "TEXT"
	FormatJSON Format = "JSON"
)

// ParseFormat accepts TEXT or JSON in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToUpper(s)); f {
	case FormatText, FormatJSON:
		return f, nil
	}
	return "", fmt.Errorf("logging: invalid log format %q", s)
}

// ParseLevel accepts DEBUG, INFO, WARN or ERROR in any case, with optional
// offsets such as "INFO+2".
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("logging: %w", err)
	}
	return l, nil
}

// NewHandler returns a handler writing to w. TEXT output is coloured only
// when w is a terminal.
func NewHandler(w io.Writer, format Format, level slog.Level) (slog.Handler, error) {
	switch format {
	case FormatText:
		color := false
		if f, ok := w.(*os.File); ok {
			color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
		}
		return tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: "15:04:05",
			NoColor:    !color,
		}), nil
	case FormatJSON:
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}), nil
	}
	return nil, fmt.Errorf("logging: unsupported log format %q", format)
}

// Err returns an error attribute, highlighted red in coloured output.
func Err(err error) slog.Attr {
	const ansiRed = 9
	return tint.Attr(ansiRed, slog.Any(ErrKey, err))
}
