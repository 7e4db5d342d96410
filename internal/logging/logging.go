package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // timezone names must resolve in slim CI images

	"github.com/rs/zerolog"
	waLog "go.mau.fi/whatsmeow/util/log"

	"github.com/nikitkaralius/pollbot/internal/config"
)

// New creates a zerolog logger configured from config.
// Timestamps are rendered in cfg.Timezone; an unknown zone falls back to
// the local one and is reported by the returned error.
func New(cfg config.LogConfig, out io.Writer) (zerolog.Logger, *time.Location, error) {
	if out == nil {
		out = os.Stderr
	}
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	loc, locErr := Location(cfg.Timezone)
	zerolog.TimestampFunc = func() time.Time { return time.Now().In(loc) }

	var base zerolog.Logger
	if strings.ToLower(cfg.Format) == "json" {
		base = zerolog.New(out)
	} else {
		base = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: "2006-01-02 15:04:05 MST"})
	}
	base = base.Level(level).With().Timestamp().Logger()
	return base, loc, locErr
}

func Location(name string) (*time.Location, error) {
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.Local, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}

// WALogger adapts a zerolog logger to the whatsmeow logging interface.
type WALogger struct {
	log zerolog.Logger
}

var _ waLog.Logger = WALogger{}

func NewWALogger(log zerolog.Logger, module string) WALogger {
	return WALogger{log: log.With().Str("module", module).Logger()}
}

func (l WALogger) Warnf(msg string, args ...interface{})  { l.log.Warn().Msgf(msg, args...) }
func (l WALogger) Errorf(msg string, args ...interface{}) { l.log.Error().Msgf(msg, args...) }
func (l WALogger) Infof(msg string, args ...interface{})  { l.log.Info().Msgf(msg, args...) }
func (l WALogger) Debugf(msg string, args ...interface{}) { l.log.Debug().Msgf(msg, args...) }

func (l WALogger) Sub(module string) waLog.Logger {
	return WALogger{log: l.log.With().Str("module", module).Logger()}
}
