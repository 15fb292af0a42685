package config

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SetupLogging sets the global level and routes the global logger through a
// console writer on w (stderr when nil).
func SetupLogging(level string, w io.Writer) {
	switch strings.ToLower(level) {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	if w == nil {
		w = os.Stderr
	}
	_, isFile := w.(*os.File)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: w, NoColor: isFile && w != os.Stderr})
}
