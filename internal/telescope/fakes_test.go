package telescope

import (
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/large-farva/scopelink/internal/sockio"
)

type fakeClock struct{ now int64 }

func (c *fakeClock) NowMicros() int64         { return c.now }
func (c *fakeClock) advance(d time.Duration) { c.now += d.Microseconds() }

// fakeSocket scripts one connection. Reads drain inbound; once it is empty
// Recv reports would-block, or end of stream when eof is set.
type fakeSocket struct {
	fd         int
	connectErr error
	pendingErr error
	recvErr    error
	sendErr    error
	sendLimit  int

	inbound []byte
	eof     bool
	sent    []byte
	closed  bool
	target  netip.AddrPort
}

func (s *fakeSocket) FD() int { return s.fd }

func (s *fakeSocket) Connect(addr netip.AddrPort) error {
	s.target = addr
	return s.connectErr
}

func (s *fakeSocket) PendingError() error { return s.pendingErr }

func (s *fakeSocket) Send(p []byte) (int, error) {
	if s.sendErr != nil {
		return 0, s.sendErr
	}
	n := len(p)
	if s.sendLimit > 0 && n > s.sendLimit {
		n = s.sendLimit
	}
	s.sent = append(s.sent, p[:n]...)
	return n, nil
}

func (s *fakeSocket) Recv(p []byte) (int, error) {
	if s.recvErr != nil {
		return 0, s.recvErr
	}
	if len(s.inbound) == 0 {
		if s.eof {
			return 0, nil
		}
		return 0, fmt.Errorf("recv: %w", sockio.ErrWouldBlock)
	}
	n := copy(p, s.inbound)
	s.inbound = s.inbound[n:]
	return n, nil
}

func (s *fakeSocket) Close() error {
	s.closed = true
	return nil
}

// fakeOpener hands out sockets whose connect result is connectErr.
type fakeOpener struct {
	connectErr error
	openErr    error
	opened     []*fakeSocket
}

func (o *fakeOpener) Open() (sockio.Socket, error) {
	if o.openErr != nil {
		return nil, o.openErr
	}
	s := &fakeSocket{fd: 100 + len(o.opened), connectErr: o.connectErr}
	o.opened = append(o.opened, s)
	return s, nil
}

func (o *fakeOpener) last() *fakeSocket {
	if len(o.opened) == 0 {
		return nil
	}
	return o.opened[len(o.opened)-1]
}

var errInProgress = fmt.Errorf("connect: %w", sockio.ErrInProgress)

var errReset = errors.New("connection reset by peer")
