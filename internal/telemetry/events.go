// Package telemetry defines the events scoped pushes over its WebSocket feed.
// Every event embeds Event, so clients can switch on "type" before decoding
// the rest.
package telemetry

import "time"

// EventType identifies the kind of WebSocket event.
type EventType string

const (
	EventHeartbeat EventType = "heartbeat"
	EventState     EventType = "state"
	EventPosition  EventType = "position"
	EventGoto      EventType = "goto"
	EventLog       EventType = "log"
)

// Event is the base envelope shared by every event type.
type Event struct {
	Type      EventType `json:"type"`
	TS        string    `json:"ts"`
	Component string    `json:"component,omitempty"`
}

// NowTS returns the current UTC time as an RFC 3339 nano string.
func NowTS() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func envelope(t EventType, component string) Event {
	return Event{Type: t, TS: NowTS(), Component: component}
}

// Heartbeat is sent periodically so clients can detect connectivity.
type Heartbeat struct {
	Event
	UptimeSeconds int64 `json:"uptime_seconds"`
	Telescopes    int   `json:"telescopes"`
	Connected     int   `json:"connected"`
}

func NewHeartbeat(uptime time.Duration, telescopes, connected int) Heartbeat {
	return Heartbeat{
		Event:         envelope(EventHeartbeat, "app"),
		UptimeSeconds: int64(uptime.Seconds()),
		Telescopes:    telescopes,
		Connected:     connected,
	}
}

// StateTransition is emitted whenever a telescope link changes state
// (e.g. CONNECTING -> CONNECTED).
type StateTransition struct {
	Event
	Telescope string `json:"telescope"`
	From      string `json:"from"`
	To        string `json:"to"`
}

func NewStateTransition(telescope, from, to string) StateTransition {
	return StateTransition{
		Event:     envelope(EventState, "telescope"),
		Telescope: telescope,
		From:      from,
		To:        to,
	}
}

// Position reports where a telescope points right now. RA and Dec are only
// meaningful when Known is set.
type Position struct {
	Event
	Telescope string     `json:"telescope"`
	Known     bool       `json:"known"`
	Vector    [3]float64 `json:"vector"`
	RA        float64    `json:"ra"`  // radians
	Dec       float64    `json:"dec"` // radians
	Text      string     `json:"text,omitempty"`
}

func NewPosition(telescope string) Position {
	return Position{Event: envelope(EventPosition, "reactor"), Telescope: telescope}
}

// GotoIssued records a slew request accepted by the daemon.
type GotoIssued struct {
	Event
	Telescope string `json:"telescope"`
	Source    string `json:"source"` // "api" or "track"
	Text      string `json:"text"`
}

func NewGotoIssued(telescope, source, text string) GotoIssued {
	return GotoIssued{
		Event:     envelope(EventGoto, source),
		Telescope: telescope,
		Source:    source,
		Text:      text,
	}
}

// LogLine carries a human-readable log message at a severity level.
type LogLine struct {
	Event
	Level   string `json:"level"`
	Message string `json:"message"`
}

func NewLogLine(level, message string) LogLine {
	return LogLine{Event: envelope(EventLog, "log"), Level: level, Message: message}
}
