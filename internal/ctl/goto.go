package ctl

import (
	"fmt"
	"strings"
)

// GotoOptions configures the goto command. RA is in hours and Dec in
// degrees, the way they appear on a star chart.
type GotoOptions struct {
	Telescope string
	RAHours   float64
	DecDeg    float64
	JSON      bool
}

func (o GotoOptions) validate() error {
	if o.Telescope == "" {
		return fmt.Errorf("goto needs a telescope name")
	}
	if o.RAHours < 0 || o.RAHours >= 24 {
		return fmt.Errorf("--ra %g outside [0,24) hours", o.RAHours)
	}
	if o.DecDeg < -90 || o.DecDeg > 90 {
		return fmt.Errorf("--dec %g outside [-90,90] degrees", o.DecDeg)
	}
	return nil
}

// Goto asks the daemon to slew a telescope.
func Goto(baseURL string, opts GotoOptions) error {
	if err := opts.validate(); err != nil {
		return err
	}
	body := map[string]any{
		"telescope": opts.Telescope,
		"ra_deg":    opts.RAHours * 15,
		"dec_deg":   opts.DecDeg,
	}
	var result struct {
		OK      bool   `json:"ok"`
		Message string `json:"message"`
	}
	if err := postJSON(baseURL, "/api/goto", body, &result); err != nil {
		return err
	}
	if opts.JSON {
		return printJSON(result)
	}
	fmt.Printf("\n  %s  %s %s\n\n", colorize(green, "GOTO"), colorize(bold, opts.Telescope),
		strings.TrimPrefix(result.Message, "goto queued: "))
	return nil
}
