package ctl

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// WatchOptions controls the watch command behavior.
type WatchOptions struct {
	Filter []string // event types to show (empty = all)
	JSON   bool     // output raw JSON per event
}

// watchURL turns the daemon's HTTP base URL into its WebSocket endpoint.
// The filter is applied server-side through the types query parameter.
func watchURL(baseURL string, filter []string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	u.Path = "/ws"
	u.RawQuery = ""
	if len(filter) > 0 {
		u.RawQuery = url.Values{"types": {strings.Join(filter, ",")}}.Encode()
	}
	return u.String(), nil
}

// Watch connects to the daemon's WebSocket endpoint and streams events to
// the terminal in a human-readable format until interrupted.
func Watch(baseURL string, opts WatchOptions) error {
	endpoint, err := watchURL(baseURL, opts.Filter)
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.Dial(endpoint, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	if !opts.JSON {
		fmt.Println()
		fmt.Printf("  %s %s\n", colorize(green, "connected"), colorize(dim, endpoint))
		if len(opts.Filter) > 0 {
			fmt.Printf("  %s %s\n", colorize(dim, "filter:"), colorize(dim, strings.Join(opts.Filter, ", ")))
		}
		fmt.Println(colorize(dim, "  "+strings.Repeat("─", 50)))
		fmt.Println()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if opts.JSON {
				fmt.Println(string(msg))
			} else {
				fmt.Print(renderEvent(msg))
			}
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sig:
		if !opts.JSON {
			fmt.Println()
			fmt.Println(colorize(dim, "  disconnecting..."))
		}
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
			time.Now().Add(1*time.Second),
		)
		return nil
	case <-done:
		return nil
	}
}

// renderEvent formats one JSON event for the terminal. Unrecognized event
// types fall back to indented JSON.
func renderEvent(raw []byte) string {
	var ev map[string]any
	if err := json.Unmarshal(raw, &ev); err != nil {
		return fmt.Sprintf("  %s\n", string(raw))
	}

	evType, _ := ev["type"].(string)
	ts := colorize(dim, formatEventTime(ev))

	switch evType {
	case "heartbeat":
		uptime, _ := ev["uptime_seconds"].(float64)
		total, _ := ev["telescopes"].(float64)
		connected, _ := ev["connected"].(float64)
		return fmt.Sprintf("  %s %s  %d/%d connected  up %s\n",
			ts,
			colorize(dim, "heartbeat"),
			int(connected), int(total),
			colorize(dim, formatDuration(time.Duration(uptime)*time.Second)),
		)

	case "state":
		from, _ := ev["from"].(string)
		to, _ := ev["to"].(string)
		who, _ := ev["telescope"].(string)
		if who == "" {
			who = "daemon"
		}
		return fmt.Sprintf("  %s %s  %s %s %s %s\n",
			ts,
			colorize(bold, "STATE"),
			padRight(who, 10),
			colorize(stateColor(from), from),
			colorize(dim, "->"),
			colorize(stateColor(to), to),
		)

	case "position":
		who, _ := ev["telescope"].(string)
		known, _ := ev["known"].(bool)
		text, _ := ev["text"].(string)
		if !known {
			text = colorize(dim, "unknown")
		}
		return fmt.Sprintf("  %s %s  %s %s\n", ts, colorize(cyan, "POS  "), padRight(who, 10), text)

	case "goto":
		who, _ := ev["telescope"].(string)
		source, _ := ev["source"].(string)
		text, _ := ev["text"].(string)
		return fmt.Sprintf("  %s %s  %s %s %s\n",
			ts, colorize(yellow, "GOTO "), padRight(who, 10), text, colorize(dim, "("+source+")"))

	case "log":
		level, _ := ev["level"].(string)
		message, _ := ev["message"].(string)
		return fmt.Sprintf("  %s %s  %s\n", ts, formatLogLevel(level), message)

	default:
		pretty, err := json.MarshalIndent(ev, "  ", "  ")
		if err != nil {
			return fmt.Sprintf("  %s\n", string(raw))
		}
		return fmt.Sprintf("  %s\n", string(pretty))
	}
}

// formatEventTime extracts and shortens the timestamp from an event.
func formatEventTime(ev map[string]any) string {
	tsRaw, ok := ev["ts"].(string)
	if !ok {
		return "        "
	}
	t, err := time.Parse(time.RFC3339Nano, tsRaw)
	if err != nil {
		if len(tsRaw) > 8 {
			return tsRaw[:8]
		}
		return tsRaw
	}
	return t.Local().Format("15:04:05")
}

// formatLogLevel returns a colored, fixed-width log level label.
func formatLogLevel(level string) string {
	switch level {
	case "debug":
		return colorize(dim, "DEBUG")
	case "info":
		return colorize(green, "INFO ")
	case "warn":
		return colorize(yellow, "WARN ")
	case "error", "fatal", "panic":
		return colorize(red, "ERROR")
	default:
		return padRight(level, 5)
	}
}
