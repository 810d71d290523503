// Package sockio is the small platform adapter behind the telescope link:
// a non-blocking TCP socket exposed as a plain file descriptor so a
// poll-driven reactor can multiplex it.
//
// Errors returned by a Socket are classified with Classify. Transient
// conditions are reported through the sentinel errors below so callers never
// need to look at platform error numbers.
package sockio

import (
	"errors"
	"net/netip"
)

var (
	ErrWouldBlock  = errors.New("sockio: operation would block")
	ErrInterrupted = errors.New("sockio: interrupted system call")
	ErrInProgress  = errors.New("sockio: connection in progress")
	ErrClosed      = errors.New("sockio: socket closed")
)

// Class is how the link should react to an error.
type Class int

const (
	OK Class = iota
	WouldBlock
	Interrupted
	InProgress
	Fatal
)

func (c Class) String() string {
	switch c {
	case OK:
		return "ok"
	case WouldBlock:
		return "would-block"
	case Interrupted:
		return "interrupted"
	case InProgress:
		return "in-progress"
	default:
		return "fatal"
	}
}

// Transient reports whether the operation should simply be retried on the
// next readiness notification.
func (c Class) Transient() bool {
	return c == WouldBlock || c == Interrupted
}

// Classify maps an error from a Socket onto a Class.
func Classify(err error) Class {
	switch {
	case err == nil:
		return OK
	case errors.Is(err, ErrWouldBlock):
		return WouldBlock
	case errors.Is(err, ErrInterrupted):
		return Interrupted
	case errors.Is(err, ErrInProgress):
		return InProgress
	default:
		return Fatal
	}
}

// Socket is one non-blocking stream socket.
type Socket interface {
	// FD is the descriptor to register with the reactor.
	FD() int
	// Connect starts connecting to addr. It returns nil when the connection
	// completed immediately and ErrInProgress or ErrWouldBlock when the result
	// will be signalled by write readiness.
	Connect(addr netip.AddrPort) error
	// PendingError returns the deferred result of an asynchronous connect.
	PendingError() error
	Send(p []byte) (int, error)
	// Recv returns 0, nil when the peer has closed the stream.
	Recv(p []byte) (int, error)
	Close() error
}

// Opener creates sockets already switched to non-blocking mode.
type Opener interface {
	Open() (Socket, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func() (Socket, error)

func (f OpenerFunc) Open() (Socket, error) { return f() }
