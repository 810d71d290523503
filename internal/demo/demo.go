// Package demo emulates a telescope mount speaking the wire protocol, so the
// daemon, CLI and dashboards can be tested end-to-end without hardware.
// The mount slews toward the last goto it received at a fixed rate and
// reports its pointing to every connected client on a fixed interval.
package demo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/large-farva/scopelink/internal/codec"
	"github.com/large-farva/scopelink/internal/sphere"
)

// Mount is one emulated telescope. Every client sees and steers the same
// pointing.
type Mount struct {
	Log      zerolog.Logger
	Interval time.Duration // time between position reports
	SlewRate float64       // radians per second; <= 0 means instantaneous
	Status   int32         // reported in every position frame

	mu       sync.Mutex
	current  r3.Vec
	target   r3.Vec
	lastStep time.Time
}

// New creates a mount pointing at RA 0, Dec 0 with sensible defaults.
func New(log zerolog.Logger) *Mount {
	home := r3.Vec{X: 1}
	return &Mount{
		Log:      log,
		Interval: 500 * time.Millisecond,
		SlewRate: 5 * math.Pi / 180,
		current:  home,
		target:   home,
	}
}

// Serve accepts clients on ln until ctx is cancelled. It closes ln before
// returning.
func (m *Mount) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		m.Log.Info().Str("client", conn.RemoteAddr().String()).Msg("client connected")
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.handle(ctx, conn)
		}()
	}
}

// Pointing returns where the mount points after advancing the slew to now.
func (m *Mount) Pointing() r3.Vec {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.advance(time.Now())
	return m.current
}

// SetTarget starts a slew toward dir.
func (m *Mount) SetTarget(dir r3.Vec) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.advance(time.Now())
	m.target = sphere.Normalize(dir, m.target)
}

// advance moves current toward target along the great circle. Callers hold mu.
func (m *Mount) advance(now time.Time) {
	dt := now.Sub(m.lastStep).Seconds()
	if m.lastStep.IsZero() {
		dt = 0
	}
	m.lastStep = now

	sep := sphere.Separation(m.current, m.target)
	if sep == 0 {
		return
	}
	step := m.SlewRate * dt
	if m.SlewRate <= 0 || step >= sep {
		m.current = m.target
		return
	}
	m.current = slerp(m.current, m.target, sep, step)
}

// slerp rotates a by step radians toward b, sep being their separation.
func slerp(a, b r3.Vec, sep, step float64) r3.Vec {
	s := math.Sin(sep)
	if s < 1e-12 {
		// Antipodal: any great circle will do.
		p := sphere.Normalize(r3.Cross(a, r3.Vec{Z: 1}), r3.Vec{Y: 1})
		return sphere.Normalize(r3.Add(r3.Scale(math.Cos(step), a), r3.Scale(math.Sin(step), p)), a)
	}
	wa := math.Sin(sep-step) / s
	wb := math.Sin(step) / s
	return sphere.Normalize(r3.Add(r3.Scale(wa, a), r3.Scale(wb, b)), a)
}

func (m *Mount) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		defer cancel()
		for {
			g, err := readGoto(conn)
			if err != nil {
				if !errors.Is(err, io.EOF) && ctx.Err() == nil {
					m.Log.Warn().Err(err).Msg("client read failed")
				}
				return
			}
			dir := sphere.FromRaw(g.RA, g.Dec)
			m.Log.Info().Str("target", sphere.FormatRaDec(g.RA, g.Dec)).Msg("goto received")
			m.SetTarget(dir)
		}
	}()

	t := time.NewTicker(m.Interval)
	defer t.Stop()

	var frame []byte
	for {
		ra, dec := sphere.ToRaw(m.Pointing())
		frame = codec.Position{
			ServerMicros: time.Now().UnixMicro(),
			RA:           ra,
			Dec:          dec,
			Status:       m.Status,
		}.AppendTo(frame[:0])
		if _, err := conn.Write(frame); err != nil {
			m.Log.Info().Err(err).Msg("client gone")
			return
		}

		select {
		case <-ctx.Done():
			m.Log.Info().Str("client", conn.RemoteAddr().String()).Msg("client disconnected")
			return
		case <-t.C:
		}
	}
}

// readGoto reads frames from r until a goto arrives. Frames of other types
// are skipped by length.
func readGoto(r io.Reader) (codec.Goto, error) {
	var hdr [codec.HeaderLen]byte
	for {
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return codec.Goto{}, err
		}
		n := int(hdr[0]) | int(hdr[1])<<8
		typ := uint16(hdr[2]) | uint16(hdr[3])<<8
		if n < codec.HeaderLen || n > codec.QueueCapacity {
			return codec.Goto{}, fmt.Errorf("length %d: %w", n, codec.ErrFrameLength)
		}
		frame := make([]byte, n)
		copy(frame, hdr[:])
		if _, err := io.ReadFull(r, frame[codec.HeaderLen:]); err != nil {
			return codec.Goto{}, err
		}
		if typ != codec.TypeGoto {
			continue
		}
		return codec.DecodeGoto(frame)
	}
}
