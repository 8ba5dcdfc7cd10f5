package logger

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger обертка над zerolog
type Logger struct{ zerolog.Logger }

// New создает логгер с заданным уровнем; неизвестный уровень трактуется как info
func New(level string) *Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339
	z := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(lvl)
	return &Logger{z}
}
