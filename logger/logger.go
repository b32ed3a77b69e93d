package logger

import (
	"os"

	"github.com/lesgoski/dealengine/config"
	"github.com/rs/zerolog"
)

// New returns a configured zerolog.Logger: human-readable console
// output, with debug verbosity in development and info otherwise.
func New(cfg *config.Config) zerolog.Logger {
	out := zerolog.ConsoleWriter{Out: os.Stderr}
	lvl := zerolog.InfoLevel
	if cfg.IsDevelopment() {
		lvl = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(lvl)
	return zerolog.New(out).With().Timestamp().Logger()
}
