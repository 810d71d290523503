package ctl

import (
	"fmt"
	"strings"
)

// TelescopeInfo mirrors one entry of GET /api/telescopes.
type TelescopeInfo struct {
	ID            string      `json:"id"`
	Type          string      `json:"type"`
	State         string      `json:"state"`
	Connected     bool        `json:"connected"`
	PositionKnown bool        `json:"position_known"`
	Vector        *[3]float64 `json:"vector,omitempty"`
	RA            *float64    `json:"ra,omitempty"`
	Dec           *float64    `json:"dec,omitempty"`
	Text          string      `json:"text,omitempty"`
	Samples       int         `json:"samples"`
	LastStatus    int32       `json:"last_status"`
	Dropped       int         `json:"dropped"`
	Address       string      `json:"address,omitempty"`
	DelayMicros   int64       `json:"delay_us,omitempty"`
}

// Telescopes lists every configured telescope with its link state and
// current pointing.
func Telescopes(baseURL string, jsonOutput bool) error {
	var resp struct {
		Telescopes []TelescopeInfo `json:"telescopes"`
	}
	if err := getJSON(baseURL, "/api/telescopes", &resp); err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(resp)
	}

	fmt.Println()
	fmt.Println(header("  TELESCOPES"))
	fmt.Println(colorize(dim, "  "+strings.Repeat("─", 72)))
	if len(resp.Telescopes) == 0 {
		fmt.Println("  none configured")
		fmt.Println()
		return nil
	}
	for _, t := range resp.Telescopes {
		fmt.Printf("  %s %s  %s\n",
			colorize(bold, padRight(t.ID, 12)),
			padRight(t.Type, 10),
			colorize(stateColor(t.State), padRight(t.State, 12)),
		)
		pointing := colorize(dim, "position unknown")
		if t.PositionKnown {
			pointing = t.Text
		}
		fmt.Printf("    %-10s %s\n", colorize(dim, "Pointing:"), pointing)
		if t.Address != "" {
			fmt.Printf("    %-10s %s  delay %.3fs  samples %d  status %d\n",
				colorize(dim, "Link:"), t.Address, float64(t.DelayMicros)/1e6, t.Samples, t.LastStatus)
		}
		if t.Dropped > 0 {
			fmt.Printf("    %-10s %s\n", colorize(dim, "Dropped:"),
				colorize(yellow, fmt.Sprintf("%d gotos (link too slow)", t.Dropped)))
		}
	}
	fmt.Println()
	return nil
}
