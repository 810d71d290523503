package ctl

import (
	"fmt"
	"strings"
	"time"
)

// TrackResponse mirrors GET /api/track.
type TrackResponse struct {
	Enabled   bool   `json:"enabled"`
	Paused    bool   `json:"paused"`
	NoradID   int    `json:"norad_id"`
	Telescope string `json:"telescope"`
	Pass      *struct {
		AOS        time.Time `json:"aos"`
		LOS        time.Time `json:"los"`
		MaxElev    float64   `json:"max_elev"`
		AOSAzimuth float64   `json:"aos_azimuth"`
		GotoAt     time.Time `json:"goto_at"`
		Stage      string    `json:"stage"`
		Target     string    `json:"target"`
	} `json:"pass"`
}

// Track shows the pass tracker and the pass it is working on.
func Track(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var resp TrackResponse
	if err := getJSON(baseURL, "/api/track", &resp); err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(resp)
	}

	fmt.Println()
	fmt.Println(header("  PASS TRACKER"))
	fmt.Println(colorize(dim, "  "+strings.Repeat("─", 42)))

	if !resp.Enabled {
		fmt.Println("  Tracking is disabled in the daemon config.")
		fmt.Println()
		return nil
	}

	state := colorize(green, "RUNNING")
	if resp.Paused {
		state = colorize(yellow, "PAUSED")
	}
	fmt.Printf("  State:      %s\n", state)
	fmt.Printf("  Satellite:  NORAD %d\n", resp.NoradID)
	fmt.Printf("  Telescope:  %s\n", resp.Telescope)

	p := resp.Pass
	if p == nil {
		fmt.Println("  No pass scheduled.")
		fmt.Println()
		return nil
	}

	fmt.Printf("  AOS:        %s (az %.1f°)\n", p.AOS.Local().Format(time.RFC3339), p.AOSAzimuth)
	fmt.Printf("  LOS:        %s\n", p.LOS.Local().Format(time.RFC3339))
	fmt.Printf("  Max elev:   %.1f°\n", p.MaxElev)
	fmt.Printf("  Duration:   %s\n", formatDuration(p.LOS.Sub(p.AOS)))
	if p.Target != "" {
		fmt.Printf("  Target:     %s\n", p.Target)
	}
	if wait := time.Until(p.GotoAt); wait > 0 {
		fmt.Printf("  Slew in:    %s\n", formatDuration(wait))
	} else {
		fmt.Printf("  Stage:      %s\n", colorize(stateColor(p.Stage), p.Stage))
	}
	fmt.Println()
	return nil
}

// TrackControl sends pause, resume, skip or refresh to the tracker.
func TrackControl(baseURL, action string, jsonOutput bool) error {
	switch action {
	case "pause", "resume", "skip", "refresh":
	default:
		return fmt.Errorf("unknown track action %q (want pause, resume, skip or refresh)", action)
	}

	var result struct {
		OK      bool   `json:"ok"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := postJSON(baseURL, "/api/track/"+action, nil, &result); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(result)
	}
	fmt.Printf("\n  %s  %s\n\n", colorize(green, strings.ToUpper(action)), result.Message)
	return nil
}
