//go:build linux || darwin || freebsd || netbsd || openbsd

package sockio

import (
	"errors"
	"fmt"
	"net/netip"

	"golang.org/x/sys/unix"
)

// Unix opens IPv4 stream sockets through golang.org/x/sys/unix.
type Unix struct{}

// Open creates a TCP socket and switches it to non-blocking mode. The
// descriptor is closed again if the mode change fails.
func (Unix) Open() (Socket, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, mapErrno("socket", err)
	}
	unix.CloseOnExec(fd)
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return nil, mapErrno("set nonblocking", err)
	}
	return &unixSocket{fd: fd}, nil
}

type unixSocket struct {
	fd int
}

func (s *unixSocket) FD() int { return s.fd }

func (s *unixSocket) Connect(addr netip.AddrPort) error {
	if s.fd < 0 {
		return ErrClosed
	}
	if !addr.Addr().Is4() {
		return fmt.Errorf("connect %s: not an IPv4 address", addr)
	}
	sa := &unix.SockaddrInet4{Port: int(addr.Port()), Addr: addr.Addr().As4()}
	if err := unix.Connect(s.fd, sa); err != nil {
		return mapErrno("connect", err)
	}
	return nil
}

func (s *unixSocket) PendingError() error {
	if s.fd < 0 {
		return ErrClosed
	}
	errno, err := unix.GetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return mapErrno("getsockopt", err)
	}
	if errno != 0 {
		return mapErrno("connect", unix.Errno(errno))
	}
	return nil
}

func (s *unixSocket) Send(p []byte) (int, error) {
	if s.fd < 0 {
		return 0, ErrClosed
	}
	n, err := unix.Write(s.fd, p)
	if err != nil {
		return 0, mapErrno("send", err)
	}
	return n, nil
}

func (s *unixSocket) Recv(p []byte) (int, error) {
	if s.fd < 0 {
		return 0, ErrClosed
	}
	n, err := unix.Read(s.fd, p)
	if err != nil {
		return 0, mapErrno("recv", err)
	}
	return n, nil
}

func (s *unixSocket) Close() error {
	if s.fd < 0 {
		return nil
	}
	err := unix.Close(s.fd)
	s.fd = -1
	return err
}

// mapErrno replaces the errno values that mean "try again" with the package
// sentinels and wraps everything else with the failing operation.
func mapErrno(op string, err error) error {
	var errno unix.Errno
	if !errors.As(err, &errno) {
		return fmt.Errorf("%s: %w", op, err)
	}
	switch errno {
	case unix.EAGAIN:
		return fmt.Errorf("%s: %w", op, ErrWouldBlock)
	case unix.EINTR:
		return fmt.Errorf("%s: %w", op, ErrInterrupted)
	case unix.EINPROGRESS:
		return fmt.Errorf("%s: %w", op, ErrInProgress)
	}
	return fmt.Errorf("%s: %w", op, errno)
}
