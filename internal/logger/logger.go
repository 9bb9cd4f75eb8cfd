package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var Log = zerolog.Nop()

// Init builds the process logger. format "json" writes raw JSON lines,
// anything else goes through the console writer.
func Init(level, format string) {
	Log = New(os.Stdout, level, format)
	zerolog.SetGlobalLevel(parseLevel(level))
}

func New(out io.Writer, level, format string) zerolog.Logger {
	if strings.EqualFold(format, "json") {
		return zerolog.New(out).Level(parseLevel(level)).With().
			Timestamp().
			Logger()
	}

	output := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
		NoColor:    false,
	}

	return zerolog.New(output).Level(parseLevel(level)).With().
		Timestamp().
		Caller().
		Logger()
}

func parseLevel(level string) zerolog.Level {
	if level == "" {
		return zerolog.InfoLevel
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}
