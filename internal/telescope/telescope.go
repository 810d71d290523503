// Package telescope models a remotely controlled telescope mount: where it
// points right now and how to ask it to point somewhere else.
//
// Two variants exist. Stream talks to a telescope server over a
// non-blocking TCP link and keeps a short interpolated history of the
// positions it reports. Simulator is a local stand-in that slews smoothly
// toward commanded directions, useful without hardware.
//
// Telescopes are driven by a reactor.Loop and are not safe for concurrent
// use: every method must be called from the loop goroutine.
package telescope

import (
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/large-farva/scopelink/internal/reactor"
	"github.com/large-farva/scopelink/internal/sockio"
)

var (
	ErrInvalidDescriptor = errors.New("telescope: descriptor must look like NAME:TYPE[:PARAMS]")
	ErrUnknownType       = errors.New("telescope: unknown type")
	ErrInvalidParams     = errors.New("telescope: invalid parameters")
)

// Telescope is the capability set shared by all variants.
type Telescope interface {
	reactor.Handler

	ID() string
	DisplayName() string
	Connected() bool
	PositionKnown() bool
	// CurrentDirection returns the J2000 unit vector the telescope points at
	// now. ok is false while the position is unknown.
	CurrentDirection() (dir r3.Vec, ok bool)
	// Goto asks the telescope to slew to dir. It never blocks; requests that
	// cannot be delivered are dropped.
	Goto(dir r3.Vec)
	// Info returns a snapshot for status reporting.
	Info() Info
	// Close releases the link. It is safe to call more than once.
	Close() error
}

// State is the link state of a telescope.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "CONNECTING"
	case Connected:
		return "CONNECTED"
	default:
		return "DISCONNECTED"
	}
}

// Info is a point-in-time view of a telescope.
type Info struct {
	ID            string
	DisplayName   string
	Type          string
	State         State
	PositionKnown bool
	Direction     r3.Vec
	Samples       int
	LastStatus    int32
	Dropped       int // goto requests discarded for back-pressure
	Address       string
	DelayMicros   int64
}

// Clock supplies the current time in microseconds.
type Clock interface {
	NowMicros() int64
}

// WallClock reads the system clock.
type WallClock struct{}

func (WallClock) NowMicros() int64 { return time.Now().UnixMicro() }

// StateFunc observes link state transitions.
type StateFunc func(id string, from, to State)

const (
	DefaultReconnectBackoff = 5 * time.Second
	DefaultConnectTimeout   = 1 * time.Second
)

// Options configures the variants built by Create. Zero fields take defaults.
type Options struct {
	Logger           zerolog.Logger
	Clock            Clock
	Opener           sockio.Opener
	ReconnectBackoff time.Duration
	ConnectTimeout   time.Duration
	OnStateChange    StateFunc
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = WallClock{}
	}
	if o.Opener == nil {
		o.Opener = sockio.Unix{}
	}
	if o.ReconnectBackoff <= 0 {
		o.ReconnectBackoff = DefaultReconnectBackoff
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}
	return o
}
