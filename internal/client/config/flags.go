package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/nextshape/internal/flagx"
)

var ownFlags = []string{"-a", "-t", "-m", "-d", "-l", "-p"}

// parseFlags populates Config fields from command-line flags. Arguments that
// belong to other parsers (-c, -e) are filtered out first.
func parseFlags(cfg *Config, args []string) error {
	fs := flag.NewFlagSet("nextshape", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.APIBaseURL, "a", cfg.APIBaseURL, "API base URL")
	timeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")
	fs.StringVar(&cfg.AuthMode, "m", cfg.AuthMode, "auth mode: cookie or bearer")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "local database path")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	probe := fs.Int("p", int(cfg.SessionProbeInterval.Seconds()), "session probe interval (in seconds, 0 disables)")

	if err := fs.Parse(flagx.FilterArgs(args, ownFlags)); err != nil {
		return err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			cfg.RequestTimeout = time.Duration(*timeout) * time.Second
		case "p":
			cfg.SessionProbeInterval = time.Duration(*probe) * time.Second
		}
	})
	return nil
}
