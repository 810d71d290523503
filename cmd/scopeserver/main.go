// Scopeserver emulates a telescope mount on a TCP port, speaking the same
// binary protocol as real telescope servers. Point a Stream descriptor at it
// to exercise scoped without hardware.
package main

import (
	"context"
	"fmt"
	"math"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/large-farva/scopelink/internal/demo"
	"github.com/large-farva/scopelink/internal/logging"
)

func main() {
	var (
		listen   = pflag.StringP("listen", "l", "127.0.0.1:10001", "TCP address to accept clients on")
		interval = pflag.Duration("interval", 500*time.Millisecond, "Time between position reports")
		slewDeg  = pflag.Float64("slew-rate", 5, "Slew rate in degrees per second (0 = instantaneous)")
		status   = pflag.Int32("status", 0, "Status word reported in position frames")
		logLevel = pflag.String("log-level", "info", "Log level")
	)
	pflag.Parse()

	logger, err := logging.New(logging.Options{Level: *logLevel})
	if err != nil {
		fmt.Fprintln(os.Stderr, "scopeserver:", err)
		os.Exit(2)
	}
	log := logger.Component("mount")

	if *interval <= 0 {
		log.Fatal().Dur("interval", *interval).Msg("interval must be positive")
	}

	m := demo.New(log)
	m.Interval = *interval
	m.SlewRate = *slewDeg * math.Pi / 180
	m.Status = *status

	ln, err := net.Listen("tcp", *listen)
	if err != nil {
		log.Fatal().Err(err).Msg("listen failed")
	}
	log.Info().Str("addr", ln.Addr().String()).Float64("slew_deg_s", *slewDeg).Msg("mount emulator listening")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := m.Serve(ctx, ln); err != nil {
		log.Fatal().Err(err).Msg("serve failed")
	}
	log.Info().Msg("stopped")
}
