package sockio

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want Class
	}{
		{nil, OK},
		{fmt.Errorf("send: %w", ErrWouldBlock), WouldBlock},
		{fmt.Errorf("recv: %w", ErrInterrupted), Interrupted},
		{fmt.Errorf("connect: %w", ErrInProgress), InProgress},
		{ErrClosed, Fatal},
		{errors.New("connection reset by peer"), Fatal},
	}
	for _, c := range cases {
		if got := Classify(c.err); got != c.want {
			t.Errorf("Classify(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}

func TestTransient(t *testing.T) {
	for _, c := range []Class{WouldBlock, Interrupted} {
		if !c.Transient() {
			t.Errorf("%v not transient", c)
		}
	}
	for _, c := range []Class{OK, InProgress, Fatal} {
		if c.Transient() {
			t.Errorf("%v transient", c)
		}
	}
}
