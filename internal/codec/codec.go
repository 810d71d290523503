// Package codec implements the little-endian, length-prefixed frame format
// spoken between the client and a telescope server.
//
// Every frame starts with a 4 byte header: u16 total length, u16 type.
// The client sends goto frames and receives position frames; both use type 0
// in their own direction. Frames of unknown type are skipped by length so
// newer servers can add messages without breaking older clients.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	TypeGoto     uint16 = 0
	TypePosition uint16 = 0

	HeaderLen        = 4
	GotoFrameLen     = 20
	PositionFrameLen = 24
)

var (
	// ErrFrameLength means a length prefix outside [HeaderLen, QueueCapacity].
	// The stream cannot be resynchronized after it.
	ErrFrameLength = errors.New("codec: bad frame length")

	// ErrShortFrame means a known frame type arrived with fewer bytes than its
	// fields need.
	ErrShortFrame = errors.New("codec: frame too short")
)

var le = binary.LittleEndian

// Goto is an outbound slew request.
type Goto struct {
	ClientMicros int64
	RA           uint32
	Dec          int32
}

// AppendTo appends the 20 byte wire form of g to dst.
func (g Goto) AppendTo(dst []byte) []byte {
	dst = le.AppendUint16(dst, GotoFrameLen)
	dst = le.AppendUint16(dst, TypeGoto)
	dst = le.AppendUint64(dst, uint64(g.ClientMicros))
	dst = le.AppendUint32(dst, g.RA)
	dst = le.AppendUint32(dst, uint32(g.Dec))
	return dst
}

// DecodeGoto parses a goto frame as received by a server.
func DecodeGoto(frame []byte) (Goto, error) {
	if len(frame) < GotoFrameLen {
		return Goto{}, fmt.Errorf("goto: %d bytes: %w", len(frame), ErrShortFrame)
	}
	return Goto{
		ClientMicros: int64(le.Uint64(frame[4:])),
		RA:           le.Uint32(frame[12:]),
		Dec:          int32(le.Uint32(frame[16:])),
	}, nil
}

// Position is an inbound pointing report.
type Position struct {
	ServerMicros int64
	RA           uint32
	Dec          int32
	Status       int32
}

// AppendTo appends the 24 byte wire form of p to dst.
func (p Position) AppendTo(dst []byte) []byte {
	dst = le.AppendUint16(dst, PositionFrameLen)
	dst = le.AppendUint16(dst, TypePosition)
	dst = le.AppendUint64(dst, uint64(p.ServerMicros))
	dst = le.AppendUint32(dst, p.RA)
	dst = le.AppendUint32(dst, uint32(p.Dec))
	dst = le.AppendUint32(dst, uint32(p.Status))
	return dst
}

// DecodePosition parses a complete position frame. Bytes past the 24th are
// ignored so servers may extend the frame.
func DecodePosition(frame []byte) (Position, error) {
	if len(frame) < PositionFrameLen {
		return Position{}, fmt.Errorf("position: %d bytes: %w", len(frame), ErrShortFrame)
	}
	return Position{
		ServerMicros: int64(le.Uint64(frame[4:])),
		RA:           le.Uint32(frame[12:]),
		Dec:          int32(le.Uint32(frame[16:])),
		Status:       int32(le.Uint32(frame[20:])),
	}, nil
}

// EnqueueGoto writes g into q. It reports false when the frame does not fit,
// in which case q is left as it was.
func EnqueueGoto(q *Queue, g Goto) bool {
	if q.Free() < GotoFrameLen {
		return false
	}
	var frame [GotoFrameLen]byte
	return q.Append(g.AppendTo(frame[:0]))
}

// Stats counts what one Parse call consumed.
type Stats struct {
	Positions int
	Unknown   int
}

// Parse decodes every complete frame at the front of q, calling onPosition
// for each position report, and leaves any trailing partial frame in q.
// onPosition must not touch q.
//
// A non-nil error is unrecoverable; the caller should drop the link.
func Parse(q *Queue, onPosition func(Position)) (Stats, error) {
	var st Stats
	buf := q.Bytes()
	off := 0
	for len(buf)-off >= 2 {
		size := int(le.Uint16(buf[off:]))
		if size < HeaderLen || size > QueueCapacity {
			return st, fmt.Errorf("length %d: %w", size, ErrFrameLength)
		}
		if size > len(buf)-off {
			break
		}
		frame := buf[off : off+size]
		switch typ := le.Uint16(frame[2:]); typ {
		case TypePosition:
			pos, err := DecodePosition(frame)
			if err != nil {
				return st, err
			}
			st.Positions++
			onPosition(pos)
		default:
			st.Unknown++
		}
		off += size
	}
	q.Consume(off)
	return st, nil
}
