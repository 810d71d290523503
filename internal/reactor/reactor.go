// Package reactor drives non-blocking handlers from a single goroutine.
//
// Each tick the Loop asks every handler which descriptors it wants watched
// (RegisterInterest), waits for readiness with a Poller, then hands the ready
// set back (OnReady). Handlers never block; all their I/O happens inside
// those two calls.
package reactor

import (
	"context"
	"time"
)

// Set is a pair of read and write descriptor sets plus the highest
// descriptor added. It is used both for interest and for readiness.
type Set struct {
	read  map[int]struct{}
	write map[int]struct{}
	max   int
}

// NewSet returns an empty set.
func NewSet() *Set {
	return &Set{
		read:  make(map[int]struct{}),
		write: make(map[int]struct{}),
		max:   -1,
	}
}

// Reset empties the set for reuse.
func (s *Set) Reset() {
	clear(s.read)
	clear(s.write)
	s.max = -1
}

func (s *Set) track(fd int) {
	if fd > s.max {
		s.max = fd
	}
}

// AddRead marks fd for read interest or readiness.
func (s *Set) AddRead(fd int) {
	s.read[fd] = struct{}{}
	s.track(fd)
}

// AddWrite marks fd for write interest or readiness.
func (s *Set) AddWrite(fd int) {
	s.write[fd] = struct{}{}
	s.track(fd)
}

// Readable reports whether fd is in the read set.
func (s *Set) Readable(fd int) bool {
	_, ok := s.read[fd]
	return ok
}

// Writable reports whether fd is in the write set.
func (s *Set) Writable(fd int) bool {
	_, ok := s.write[fd]
	return ok
}

// Max returns the highest descriptor added, or -1.
func (s *Set) Max() int { return s.max }

// Empty reports whether no descriptor was added.
func (s *Set) Empty() bool { return len(s.read) == 0 && len(s.write) == 0 }

// Each calls fn for every descriptor in either set with its flags.
func (s *Set) Each(fn func(fd int, read, write bool)) {
	for fd := range s.read {
		_, w := s.write[fd]
		fn(fd, true, w)
	}
	for fd := range s.write {
		if _, r := s.read[fd]; !r {
			fn(fd, false, true)
		}
	}
}

// Handler is anything driven by the loop.
type Handler interface {
	RegisterInterest(interest *Set)
	OnReady(ready *Set)
}

// Poller waits up to timeout for any descriptor in interest to become ready
// and records the ready ones in ready. An empty interest set just sleeps.
type Poller interface {
	Poll(interest, ready *Set, timeout time.Duration) error
}

// Loop runs ticks over a fixed list of handlers.
type Loop struct {
	Poller   Poller
	Handlers []Handler
	Timeout  time.Duration // poll timeout per tick

	interest *Set
	ready    *Set
}

// Tick runs one register/poll/react round.
func (l *Loop) Tick() error {
	if l.interest == nil {
		l.interest, l.ready = NewSet(), NewSet()
	}
	l.interest.Reset()
	l.ready.Reset()

	for _, h := range l.Handlers {
		h.RegisterInterest(l.interest)
	}
	if err := l.Poller.Poll(l.interest, l.ready, l.Timeout); err != nil {
		return err
	}
	for _, h := range l.Handlers {
		h.OnReady(l.ready)
	}
	return nil
}

// Run ticks until ctx is cancelled. between, if not nil, runs after every
// tick on the loop goroutine; it is where callers apply queued commands.
func (l *Loop) Run(ctx context.Context, between func()) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := l.Tick(); err != nil {
			return err
		}
		if between != nil {
			between()
		}
	}
}
