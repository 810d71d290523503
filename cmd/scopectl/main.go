// Scopectl is the command-line client for monitoring and controlling a
// running scoped instance. It connects over HTTP and WebSocket to query
// telescopes, issue gotos and stream live events from the daemon.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/large-farva/scopelink/internal/ctl"
)

func main() {
	var (
		host    = pflag.StringP("host", "H", "http://127.0.0.1:8090", "scoped base URL (e.g. http://192.168.8.1:8090)")
		jsonOut = pflag.Bool("json", false, "Output raw JSON instead of formatted text")
		filter  = pflag.StringSlice("filter", nil, "Event types to show in watch (e.g. --filter state,goto)")
	)

	// Stop at the command name so per-command flags like --ra reach their
	// own flag set.
	pflag.CommandLine.SetInterspersed(false)
	pflag.Parse()

	if pflag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	cmd := pflag.Arg(0)
	subArgs := pflag.Args()[1:]

	var err error
	switch cmd {
	case "status":
		err = ctl.Status(*host, *jsonOut)

	case "health":
		err = ctl.Health(*host, *jsonOut)

	case "version":
		err = ctl.VersionInfo(*host, *jsonOut)

	case "telescopes":
		err = ctl.Telescopes(*host, *jsonOut)

	case "goto":
		opts := ctl.GotoOptions{JSON: *jsonOut}
		gotoFlags := pflag.NewFlagSet("goto", pflag.ContinueOnError)
		gotoFlags.Float64Var(&opts.RAHours, "ra", 0, "Right ascension in hours [0,24)")
		gotoFlags.Float64Var(&opts.DecDeg, "dec", 0, "Declination in degrees [-90,90]")
		if err := gotoFlags.Parse(subArgs); err != nil {
			os.Exit(2)
		}
		if gotoFlags.NArg() > 0 {
			opts.Telescope = gotoFlags.Arg(0)
		}
		err = ctl.Goto(*host, opts)

	case "track":
		if len(subArgs) == 0 {
			err = ctl.Track(*host, *jsonOut)
		} else {
			err = ctl.TrackControl(*host, subArgs[0], *jsonOut)
		}

	case "watch":
		opts := ctl.WatchOptions{JSON: *jsonOut}
		watchFlags := pflag.NewFlagSet("watch", pflag.ContinueOnError)
		watchFlags.StringSliceVar(&opts.Filter, "filter", *filter, "Event types to show")
		if err := watchFlags.Parse(subArgs); err != nil {
			os.Exit(2)
		}
		err = ctl.Watch(*host, opts)

	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Print(`
  scopectl - scopelink control CLI

  USAGE
    scopectl [flags] <command> [command-flags]

  COMMANDS
    status                  Show daemon state, uptime and link summary
    health                  Check that the daemon and its reactor are up
    version                 Show CLI and daemon version information
    telescopes              List telescopes with link state and pointing
    goto NAME --ra H --dec D
                            Slew a telescope to RA (hours) and Dec (degrees)
    track                   Show the pass tracker and its next pass
    track pause|resume      Stop or restart automatic slews
    track skip              Skip the current or next pass
    track refresh           Force a TLE download and recompute passes
    watch                   Stream live events from the daemon (Ctrl-C to stop)

  GLOBAL FLAGS
    -H, --host URL      Daemon base URL (default: http://127.0.0.1:8090)
        --json          Output raw JSON instead of formatted text
        --filter TYPE   Event types for watch: heartbeat, state, position, goto, log

  EXAMPLES
    scopectl status
    scopectl --json telescopes
    scopectl goto Scope1 --ra 5.5755 --dec -5.39
    scopectl track skip
    scopectl --host http://192.168.8.1:8090 watch --filter state,goto

`)
}
