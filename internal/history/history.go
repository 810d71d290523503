// Package history keeps the most recent pointing reports of a telescope and
// answers "where was it pointing at time Q" by interpolating between them.
package history

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Capacity is the number of samples retained.
const Capacity = 16

// Unset marks a slot that has never been written since the last Reset.
const Unset = math.MaxInt64

// Sample is one pointing report. Timestamps are microseconds.
type Sample struct {
	ServerMicros int64
	LocalMicros  int64 // when the report arrived here
	Dir          r3.Vec
	Status       int32
}

func (s Sample) unset() bool { return s.LocalMicros == Unset }

// History is a fixed ring of samples. cursor indexes the newest slot.
// The zero value is not ready for use; call New or Reset.
type History struct {
	slots  [Capacity]Sample
	cursor int
}

// New returns an empty history.
func New() *History {
	h := &History{}
	h.Reset()
	return h
}

// Reset marks every slot unset.
func (h *History) Reset() {
	for i := range h.slots {
		h.slots[i] = Sample{ServerMicros: Unset, LocalMicros: Unset}
	}
	h.cursor = 0
}

// Append records s as the newest sample, overwriting the oldest when full.
func (h *History) Append(s Sample) {
	h.cursor = (h.cursor + 1) % Capacity
	h.slots[h.cursor] = s
}

// Known reports whether at least one sample has been recorded.
func (h *History) Known() bool {
	return !h.slots[h.cursor].unset()
}

// Len returns how many slots hold samples.
func (h *History) Len() int {
	n := 0
	for _, s := range h.slots {
		if !s.unset() {
			n++
		}
	}
	return n
}

// Newest returns the most recent sample.
func (h *History) Newest() (Sample, bool) {
	s := h.slots[h.cursor]
	return s, !s.unset()
}

func prev(i int) int { return (i + Capacity - 1) % Capacity }

// At returns the direction at local time q. ok is false when nothing has
// been recorded.
//
// The ring is scanned from the newest sample backwards for two adjacent
// samples whose local timestamps bracket q; their directions are blended by
// proximity and renormalized. When no pair brackets q the oldest retained
// direction is returned.
func (h *History) At(q int64) (dir r3.Vec, ok bool) {
	if !h.Known() {
		return r3.Vec{}, false
	}

	newer := h.cursor
	for range Capacity - 1 {
		older := prev(newer)
		o, n := h.slots[older], h.slots[newer]
		if o.unset() {
			break
		}
		if o.LocalMicros <= q && q <= n.LocalMicros {
			return blend(o, n, q), true
		}
		newer = older
	}
	return h.slots[newer].Dir, true
}

func blend(o, n Sample, q int64) r3.Vec {
	span := n.LocalMicros - o.LocalMicros
	if span == 0 {
		return n.Dir
	}
	w := float64(q-o.LocalMicros) / float64(span)
	v := r3.Add(r3.Scale(1-w, o.Dir), r3.Scale(w, n.Dir))
	l := r3.Norm(v)
	if l < 1e-9 {
		return n.Dir
	}
	return r3.Scale(1/l, v)
}
