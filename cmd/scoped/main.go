// Scoped is the scopelink daemon. It keeps a link open to every configured
// telescope, serves their state over HTTP and WebSocket, and optionally
// slews one of them to the rise point of a tracked satellite.
//
// Shutdown is handled gracefully on SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/large-farva/scopelink/internal/app"
	"github.com/large-farva/scopelink/internal/config"
	"github.com/large-farva/scopelink/internal/logging"
)

func main() {
	var (
		configPath = pflag.StringP("config", "c", "/etc/scopelink/scoped.toml", "Path to config TOML")
		bind       = pflag.String("bind", "", "HTTP bind address (overrides server.bind)")
		logLevel   = pflag.String("log-level", "", "Log level (overrides logging.level)")
		telescopes = pflag.StringArrayP("telescope", "t", nil, "Extra telescope descriptor, e.g. Sim:Dummy (repeatable)")
		noConfig   = pflag.Bool("no-config", false, "Run on built-in defaults without reading a config file")
	)
	pflag.Parse()

	cfg := config.Default()
	if !*noConfig {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "scoped: config load failed:", err)
			os.Exit(1)
		}
	}
	cfg.Telescopes = append(cfg.Telescopes, *telescopes...)
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *bind != "" {
		cfg.Server.Bind = *bind
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintln(os.Stderr, "scoped: invalid config:", err)
		os.Exit(1)
	}

	logger, err := logging.New(logging.Options{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		JSON:       cfg.Logging.JSON,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "scoped: logging setup failed:", err)
		os.Exit(1)
	}
	defer logger.Close()

	log := logger.Component("scoped")
	log.Info().Str("version", app.Version).Int("descriptors", len(cfg.Telescopes)).Msg("starting")

	a := app.New(app.Options{
		Logger: logger.Logger,
		Cfg:    cfg,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("scoped failed")
		logger.Close()
		os.Exit(1)
	}

	// Brief pause so in-flight log writes can flush before exit.
	time.Sleep(50 * time.Millisecond)
}
