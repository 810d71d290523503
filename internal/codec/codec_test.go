package codec

import (
	"bytes"
	"errors"
	"testing"
)

func TestGotoWireLayout(t *testing.T) {
	g := Goto{ClientMicros: 0x0102030405060708, RA: 0x40000000, Dec: -2}
	got := g.AppendTo(nil)
	want := []byte{
		20, 0, // length
		0, 0, // type
		0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01,
		0x00, 0x00, 0x00, 0x40,
		0xfe, 0xff, 0xff, 0xff,
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("AppendTo = % x\nwant       % x", got, want)
	}

	back, err := DecodeGoto(got)
	if err != nil {
		t.Fatalf("DecodeGoto: %v", err)
	}
	if back != g {
		t.Errorf("DecodeGoto = %+v, want %+v", back, g)
	}
}

func TestDecodePositionScenario(t *testing.T) {
	frame := Position{ServerMicros: 42, RA: 0x40000000, Dec: 0, Status: 7}.AppendTo(nil)
	if len(frame) != PositionFrameLen {
		t.Fatalf("frame length = %d", len(frame))
	}
	if frame[0] != 24 || frame[1] != 0 || frame[2] != 0 || frame[3] != 0 {
		t.Fatalf("header = % x", frame[:4])
	}
	p, err := DecodePosition(frame)
	if err != nil {
		t.Fatalf("DecodePosition: %v", err)
	}
	if p.ServerMicros != 42 || p.RA != 0x40000000 || p.Dec != 0 || p.Status != 7 {
		t.Errorf("DecodePosition = %+v", p)
	}
}

func TestDecodePositionShort(t *testing.T) {
	_, err := DecodePosition(make([]byte, 23))
	if !errors.Is(err, ErrShortFrame) {
		t.Errorf("err = %v, want ErrShortFrame", err)
	}
}

func TestParseSplitAcrossReads(t *testing.T) {
	stream := Position{ServerMicros: 1, RA: 10, Dec: -10}.AppendTo(nil)
	stream = Position{ServerMicros: 2, RA: 20, Dec: -20}.AppendTo(stream)

	var q Queue
	var got []Position
	collect := func(p Position) { got = append(got, p) }

	// First read ends in the middle of the second frame.
	q.Append(stream[:30])
	st, err := Parse(&q, collect)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if st.Positions != 1 || len(got) != 1 {
		t.Fatalf("after first read: stats %+v, got %d", st, len(got))
	}
	if q.Len() != 6 || !bytes.Equal(q.Bytes(), stream[24:30]) {
		t.Fatalf("leftover = % x, want % x", q.Bytes(), stream[24:30])
	}

	q.Append(stream[30:])
	if _, err := Parse(&q, collect); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(got) != 2 || got[1].ServerMicros != 2 || got[1].Dec != -20 {
		t.Fatalf("got %+v", got)
	}
	if q.Len() != 0 {
		t.Errorf("queue not drained: %d bytes", q.Len())
	}
}

func TestParseSkipsUnknownTypes(t *testing.T) {
	unknown := []byte{6, 0, 9, 0, 0xaa, 0xbb}
	stream := append(unknown, Position{ServerMicros: 5}.AppendTo(nil)...)

	var q Queue
	q.Append(stream)
	var n int
	st, err := Parse(&q, func(Position) { n++ })
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if st.Unknown != 1 || st.Positions != 1 || n != 1 {
		t.Errorf("stats = %+v, callbacks = %d", st, n)
	}
}

func TestParseBadLength(t *testing.T) {
	cases := map[string][]byte{
		"below header": {3, 0, 0, 0},
		"above queue":  {121, 0, 0, 0},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			var q Queue
			q.Append(in)
			_, err := Parse(&q, func(Position) {})
			if !errors.Is(err, ErrFrameLength) {
				t.Errorf("err = %v, want ErrFrameLength", err)
			}
		})
	}
}

func TestParseShortPositionFrame(t *testing.T) {
	var q Queue
	q.Append([]byte{20, 0, 0, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16})
	_, err := Parse(&q, func(Position) {})
	if !errors.Is(err, ErrShortFrame) {
		t.Errorf("err = %v, want ErrShortFrame", err)
	}
}

func TestParseWaitsOnSingleByte(t *testing.T) {
	var q Queue
	q.Append([]byte{24})
	st, err := Parse(&q, func(Position) { t.Fatal("unexpected frame") })
	if err != nil || st != (Stats{}) || q.Len() != 1 {
		t.Errorf("stats %+v err %v len %d", st, err, q.Len())
	}
}

func TestEnqueueGotoBackPressure(t *testing.T) {
	var q Queue
	n := 0
	for EnqueueGoto(&q, Goto{ClientMicros: int64(n)}) {
		n++
	}
	if n != QueueCapacity/GotoFrameLen {
		t.Fatalf("queued %d frames, want %d", n, QueueCapacity/GotoFrameLen)
	}
	first := append([]byte(nil), q.Bytes()[:GotoFrameLen]...)
	if EnqueueGoto(&q, Goto{ClientMicros: 999}) {
		t.Fatal("overflowing goto accepted")
	}
	if !bytes.Equal(q.Bytes()[:GotoFrameLen], first) || q.Len() != n*GotoFrameLen {
		t.Error("queued commands changed after a dropped goto")
	}
}

func TestQueueConsumeCompacts(t *testing.T) {
	var q Queue
	q.Append([]byte("abcdef"))
	q.Consume(4)
	if string(q.Bytes()) != "ef" {
		t.Errorf("Bytes = %q", q.Bytes())
	}
	copy(q.Tail(), "gh")
	q.Commit(2)
	if string(q.Bytes()) != "efgh" || q.Free() != QueueCapacity-4 {
		t.Errorf("Bytes = %q free %d", q.Bytes(), q.Free())
	}
	q.Consume(100)
	if q.Len() != 0 {
		t.Errorf("Len = %d", q.Len())
	}
}
