package app

import (
	"io"
	"strings"
	"time"

	"github.com/jrsteele09/go-storefront/internal/config"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ConfigureLogging sets the global zerolog level from cfg and sends log output to out. DEV
// gets the human readable console writer; any other environment logs JSON.
func ConfigureLogging(cfg config.EnvConfig, out io.Writer) error {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.GetLogLevel()))
	if err != nil {
		return errors.Wrapf(err, "[app.ConfigureLogging] invalid log level %q", cfg.GetLogLevel())
	}
	zerolog.SetGlobalLevel(level)

	if strings.EqualFold(cfg.GetEnv(), "DEV") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Str("app", cfg.GetAppName()).Logger()
	return nil
}
