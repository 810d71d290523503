//go:build linux || darwin || freebsd || netbsd || openbsd

package reactor

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// UnixPoller implements Poller with poll(2).
type UnixPoller struct {
	fds []unix.PollFd
}

func (p *UnixPoller) Poll(interest, ready *Set, timeout time.Duration) error {
	p.fds = p.fds[:0]
	interest.Each(func(fd int, read, write bool) {
		var ev int16
		if read {
			ev |= unix.POLLIN
		}
		if write {
			ev |= unix.POLLOUT
		}
		p.fds = append(p.fds, unix.PollFd{Fd: int32(fd), Events: ev})
	})

	ms := int(timeout / time.Millisecond)
	if len(p.fds) == 0 {
		time.Sleep(timeout)
		return nil
	}

	n, err := unix.Poll(p.fds, ms)
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return nil
		}
		return fmt.Errorf("poll: %w", err)
	}
	if n == 0 {
		return nil
	}

	for _, pfd := range p.fds {
		fd := int(pfd.Fd)
		// Errors and hangups are reported as both readable and writable so the
		// owner discovers them through its own recv or pending-error check.
		broken := pfd.Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0
		if pfd.Revents&unix.POLLIN != 0 || (broken && interest.Readable(fd)) {
			ready.AddRead(fd)
		}
		if pfd.Revents&unix.POLLOUT != 0 || (broken && interest.Writable(fd)) {
			ready.AddWrite(fd)
		}
	}
	return nil
}
