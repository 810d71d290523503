package telescope

import (
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/large-farva/scopelink/internal/reactor"
	"github.com/large-farva/scopelink/internal/sphere"
)

// slewRetention is how much of the old direction survives each tick.
const slewRetention = 31.0

// Simulator is an always-connected telescope that eases toward the last
// commanded direction, keeping about 97% of its old heading per tick.
type Simulator struct {
	id      string
	log     zerolog.Logger
	current r3.Vec
	desired r3.Vec
}

// NewSimulator returns a simulator pointing at RA 0, Dec 0.
func NewSimulator(name string, opts Options) *Simulator {
	start := r3.Vec{X: 1}
	return &Simulator{
		id:      name,
		log:     opts.Logger.With().Str("telescope", name).Logger(),
		current: start,
		desired: start,
	}
}

func (s *Simulator) ID() string          { return s.id }
func (s *Simulator) DisplayName() string { return s.id }
func (s *Simulator) Connected() bool     { return true }
func (s *Simulator) PositionKnown() bool { return true }

func (s *Simulator) CurrentDirection() (r3.Vec, bool) { return s.current, true }

func (s *Simulator) Goto(dir r3.Vec) {
	s.desired = sphere.Normalize(dir, s.desired)
	s.log.Debug().Str("target", sphere.FormatDirection(s.desired)).Msg("goto")
}

// RegisterInterest is a no-op: the simulator owns no descriptors.
func (s *Simulator) RegisterInterest(*reactor.Set) {}

// OnReady advances the slew by one tick.
func (s *Simulator) OnReady(*reactor.Set) {
	s.Step()
}

// Step moves current one tick toward desired.
func (s *Simulator) Step() {
	s.current = sphere.Normalize(r3.Add(r3.Scale(slewRetention, s.current), s.desired), s.desired)
}

func (s *Simulator) Info() Info {
	return Info{
		ID:            s.id,
		DisplayName:   s.id,
		Type:          TypeSimulator,
		State:         Connected,
		PositionKnown: true,
		Direction:     s.current,
	}
}

func (s *Simulator) Close() error { return nil }
