// Package logging собирает zerolog.Logger из настроек LOG_LEVEL / LOG_FORMAT.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// New — JSON в stdout, либо человекочитаемый вывод при format=console.
// Неизвестный уровень трактуется как info.
func New(level, format string) zerolog.Logger {
	return NewWithWriter(os.Stdout, level, format)
}

func NewWithWriter(w io.Writer, level, format string) zerolog.Logger {
	if strings.EqualFold(format, "console") {
		w = zerolog.ConsoleWriter{Out: w}
	}

	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	return zerolog.New(w).Level(lvl).With().Timestamp().Str("service", "care-gateway").Logger()
}
