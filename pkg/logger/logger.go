package logx

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
)

func ParseEnvironment(raw string) Environment {
	if strings.EqualFold(strings.TrimSpace(raw), string(Production)) {
		return Production
	}
	return Development
}

type Config struct {
	Environment  Environment `split_words:"true" default:"development"`
	Debug        bool        `split_words:"true" default:"false"`
	PrettyFormat bool        `split_words:"true" default:"false"`
}

var DefaultConfig = &Config{
	Environment:  Development,
	Debug:        false,
	PrettyFormat: false,
}

func safe(opts ...Config) *Config {
	if len(opts) == 0 {
		return DefaultConfig
	}
	return &opts[0]
}

// Init replaces the global zerolog logger. Development defaults to a console
// writer at debug level; production writes JSON at info unless Debug is set.
func Init(opts ...Config) {
	conf := safe(opts...)
	prod := ParseEnvironment(string(conf.Environment)) == Production

	var out io.Writer = os.Stdout
	if conf.PrettyFormat || !prod {
		out = zerolog.NewConsoleWriter()
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()

	if conf.Debug || !prod {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	} else {
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}

	log.Logger = log.Logger.With().Caller().Stack().Logger()
}

func Debug() *zerolog.Event {
	return log.Debug()
}

func Info() *zerolog.Event {
	return log.Info()
}

func Warn() *zerolog.Event {
	return log.Warn()
}

func Error() *zerolog.Event {
	return log.Error()
}

func Fatal() *zerolog.Event {
	return log.Fatal()
}
