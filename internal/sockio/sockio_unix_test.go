//go:build linux || darwin || freebsd || netbsd || openbsd

package sockio

import (
	"errors"
	"testing"

	"golang.org/x/sys/unix"
)

func TestMapErrno(t *testing.T) {
	cases := []struct {
		errno unix.Errno
		want  Class
	}{
		{unix.EAGAIN, WouldBlock},
		{unix.EINTR, Interrupted},
		{unix.EINPROGRESS, InProgress},
		{unix.ECONNREFUSED, Fatal},
	}
	for _, c := range cases {
		err := mapErrno("op", c.errno)
		if got := Classify(err); got != c.want {
			t.Errorf("%v -> %v, want %v", c.errno, got, c.want)
		}
	}
	if err := mapErrno("connect", unix.ECONNREFUSED); !errors.Is(err, unix.ECONNREFUSED) {
		t.Errorf("errno lost: %v", err)
	}
}

func TestOpenClose(t *testing.T) {
	s, err := Unix{}.Open()
	if err != nil {
		t.Fatal(err)
	}
	if s.FD() < 0 {
		t.Errorf("fd = %d", s.FD())
	}
	if err := s.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
}
