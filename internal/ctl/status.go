package ctl

import (
	"fmt"
	"strings"
	"time"
)

// StatusResponse mirrors the JSON returned by GET /api/status.
type StatusResponse struct {
	Name          string   `json:"name"`
	State         string   `json:"state"`
	UptimeSeconds int64    `json:"uptime_seconds"`
	Telescopes    int      `json:"telescopes"`
	Connected     int      `json:"connected"`
	Skipped       []string `json:"skipped"`
	Subscribers   int      `json:"subscribers"`
	EventsDropped uint64   `json:"events_dropped"`
	Tracking      bool     `json:"tracking"`
	TLECache      *struct {
		Path  string `json:"path"`
		Fresh bool   `json:"fresh"`
	} `json:"tle_cache"`
	Disk *struct {
		AvailableBytes int64 `json:"available_bytes"`
	} `json:"disk"`
}

// Status fetches the daemon status and prints a formatted summary.
func Status(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var s StatusResponse
	if err := getJSON(baseURL, "/api/status", &s); err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(s)
	}

	uptime := formatDuration(time.Duration(s.UptimeSeconds) * time.Second)

	fmt.Println()
	fmt.Println(header("  SCOPELINK STATUS"))
	fmt.Println(colorize(dim, "  "+strings.Repeat("─", 38)))
	fmt.Printf("  %-12s %s\n", colorize(dim, "Daemon:"), s.Name)
	fmt.Printf("  %-12s %s\n", colorize(dim, "State:"), colorize(stateColor(s.State), s.State))
	fmt.Printf("  %-12s %s\n", colorize(dim, "Uptime:"), uptime)
	fmt.Printf("  %-12s %d of %d connected\n", colorize(dim, "Scopes:"), s.Connected, s.Telescopes)
	for _, d := range s.Skipped {
		fmt.Printf("  %-12s %s\n", colorize(dim, "Skipped:"), colorize(yellow, d))
	}
	fmt.Printf("  %-12s %d\n", colorize(dim, "Watchers:"), s.Subscribers)
	if s.EventsDropped > 0 {
		fmt.Printf("  %-12s %s\n", colorize(dim, "Dropped:"), colorize(yellow, fmt.Sprintf("%d events", s.EventsDropped)))
	}
	if s.Tracking {
		tracking := "enabled"
		if s.TLECache != nil && !s.TLECache.Fresh {
			tracking += colorize(yellow, " (TLE cache stale)")
		}
		fmt.Printf("  %-12s %s\n", colorize(dim, "Tracking:"), tracking)
	}
	if s.Disk != nil {
		fmt.Printf("  %-12s %s free\n", colorize(dim, "Disk:"), formatBytes(s.Disk.AvailableBytes))
	}
	fmt.Printf("  %-12s %s\n", colorize(dim, "Host:"), baseURL)
	fmt.Println()

	return nil
}
