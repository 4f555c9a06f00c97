package shared

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func init() {
	SetupLogger(os.Stdout, "debug", "console")
}

// SetupLogger replaces the global zerolog logger. format is "console" or "json".
func SetupLogger(out io.Writer, level string, format string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.DebugLevel
	}

	if format != "json" {
		wd, _ := os.Getwd()
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: "15:04:05",
			FormatCaller: func(i interface{}) string {
				path, _ := i.(string)
				relPath, err := filepath.Rel(wd, path)
				if err != nil || wd == "" {
					relPath = path
				}
				return fmt.Sprintf("[%s]", relPath)
			},
		}
	}
	log.Logger = zerolog.New(out).
		Level(lvl).
		With().
		Timestamp().
		Caller().
		Logger()
}
