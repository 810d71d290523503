package ctl

import (
	"fmt"
	"net/http"
	"strings"
)

// Health checks daemon liveness via GET /healthz. scoped answers 503 with a
// reason when its reactor is not running.
func Health(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	status, body, err := getRaw(baseURL, "/healthz")
	if err != nil {
		if jsonOutput {
			return printJSON(map[string]any{"healthy": false, "url": baseURL, "error": err.Error()})
		}
		return err
	}

	healthy := status == http.StatusOK
	reason := strings.TrimSpace(string(body))

	if jsonOutput {
		resp := map[string]any{"healthy": healthy, "url": baseURL, "http_status": status}
		if !healthy && reason != "" {
			resp["reason"] = reason
		}
		return printJSON(resp)
	}

	fmt.Println()
	switch {
	case healthy:
		fmt.Printf("  %s  scoped is up at %s\n", colorize(green, "HEALTHY"), colorize(dim, baseURL))
	case reason != "":
		fmt.Printf("  %s  %s (HTTP %d) at %s\n", colorize(red, "UNHEALTHY"), reason, status, colorize(dim, baseURL))
	default:
		fmt.Printf("  %s  scoped returned HTTP %d at %s\n", colorize(red, "UNHEALTHY"), status, colorize(dim, baseURL))
	}
	fmt.Println()
	return nil
}
