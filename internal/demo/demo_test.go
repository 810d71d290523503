package demo

import (
	"bytes"
	"context"
	"io"
	"math"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/large-farva/scopelink/internal/codec"
	"github.com/large-farva/scopelink/internal/sphere"
)

func startMount(t *testing.T, m *Mount) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Serve(ctx, ln)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return ln.Addr().String()
}

func readPosition(t *testing.T, conn net.Conn) codec.Position {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, codec.PositionFrameLen)
	if _, err := io.ReadFull(conn, buf); err != nil {
		t.Fatalf("read position: %v", err)
	}
	p, err := codec.DecodePosition(buf)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestMountReportsAndSlews(t *testing.T) {
	m := New(zerolog.Nop())
	m.Interval = 10 * time.Millisecond
	m.SlewRate = 0
	m.Status = 3
	addr := startMount(t, m)

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	first := readPosition(t, conn)
	if first.RA != 0 || first.Dec != 0 || first.Status != 3 {
		t.Errorf("first position = %+v", first)
	}

	want := codec.Goto{RA: 0x40000000, Dec: 0x10000000}
	if _, err := conn.Write(want.AppendTo(nil)); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		p := readPosition(t, conn)
		if p.RA == want.RA && p.Dec == want.Dec {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("mount never reached target, last %+v", p)
		}
	}
}

func TestReadGotoSkipsUnknownFrames(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{6, 0, 7, 0, 0xAA, 0xBB})
	buf.Write(codec.Goto{ClientMicros: 42, RA: 1, Dec: -1}.AppendTo(nil))

	g, err := readGoto(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if g.ClientMicros != 42 || g.RA != 1 || g.Dec != -1 {
		t.Errorf("goto = %+v", g)
	}
	if _, err := readGoto(&buf); err != io.EOF {
		t.Errorf("empty reader: %v", err)
	}
}

func TestReadGotoBadLength(t *testing.T) {
	if _, err := readGoto(bytes.NewReader([]byte{2, 0, 0, 0})); err == nil {
		t.Error("length 2 accepted")
	}
}

func TestSlewStepsAlongGreatCircle(t *testing.T) {
	m := New(zerolog.Nop())
	m.SlewRate = 1 // rad/s

	start := time.Unix(1000, 0)
	m.lastStep = start
	m.target = r3.Vec{Y: 1}
	m.advance(start.Add(500 * time.Millisecond))

	if got := sphere.Separation(r3.Vec{X: 1}, m.current); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("moved %v rad, want 0.5", got)
	}
	if n := r3.Norm(m.current); math.Abs(n-1) > 1e-12 {
		t.Errorf("norm = %v", n)
	}

	m.advance(start.Add(5 * time.Second))
	if m.current != m.target {
		t.Errorf("current = %v, want target", m.current)
	}
}

func TestSlerpAntipodal(t *testing.T) {
	a := r3.Vec{X: 1}
	got := slerp(a, r3.Vec{X: -1}, math.Pi, 0.25)
	if sep := sphere.Separation(a, got); math.Abs(sep-0.25) > 1e-9 {
		t.Errorf("antipodal step = %v rad", sep)
	}
}
