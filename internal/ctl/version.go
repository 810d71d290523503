package ctl

import (
	"fmt"
	"runtime"
	"strings"
)

// Build-time variables set via -ldflags.
var Version = "dev"

type daemonVersion struct {
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	BuiltAt   string `json:"built_at"`
}

// VersionInfo prints the CLI version next to the daemon's, flagging a
// mismatch between the two.
func VersionInfo(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var daemon daemonVersion
	daemonErr := getJSON(baseURL, "/api/version", &daemon)

	if jsonOutput {
		resp := map[string]any{
			"cli": map[string]any{
				"version":    Version,
				"go_version": runtime.Version(),
			},
		}
		if daemonErr == nil {
			resp["daemon"] = daemon
		} else {
			resp["daemon_error"] = daemonErr.Error()
		}
		return printJSON(resp)
	}

	fmt.Println()
	fmt.Println(header("  SCOPELINK VERSION"))
	fmt.Println(colorize(dim, "  "+strings.Repeat("─", 38)))
	fmt.Printf("  %-12s %s\n", colorize(dim, "CLI:"), Version+" ("+runtime.Version()+")")
	if daemonErr != nil {
		fmt.Printf("  %-12s %s\n", colorize(dim, "Daemon:"), colorize(red, "unreachable: "+daemonErr.Error()))
		fmt.Println()
		return nil
	}
	fmt.Printf("  %-12s %s\n", colorize(dim, "Daemon:"), daemon.Version+" ("+daemon.GoVersion+")")
	fmt.Printf("  %-12s %s\n", colorize(dim, "Built:"), daemon.BuiltAt)
	if daemon.Version != Version {
		fmt.Printf("  %-12s %s\n", "", colorize(yellow, "CLI and daemon versions differ"))
	}
	fmt.Println()
	return nil
}
