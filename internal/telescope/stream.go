package telescope

import (
	"context"
	"fmt"
	"math"
	"net"
	"net/netip"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/large-farva/scopelink/internal/codec"
	"github.com/large-farva/scopelink/internal/history"
	"github.com/large-farva/scopelink/internal/reactor"
	"github.com/large-farva/scopelink/internal/sockio"
	"github.com/large-farva/scopelink/internal/sphere"
)

const (
	MaxDelayMicros = 10_000_000
	resolveTimeout = 5 * time.Second
)

var streamParamsRx = regexp.MustCompile(`^([^:]*):(\d+):(\d+)$`)

// Stream is a telescope reached over TCP. It reconnects on its own, feeds
// reported positions into a history, and answers CurrentDirection by
// interpolating that history DelayMicros in the past.
type Stream struct {
	id      string
	log     zerolog.Logger
	clock   Clock
	opener  sockio.Opener
	onState StateFunc

	addr           netip.AddrPort
	delay          int64 // µs
	backoff        int64 // µs
	connectTimeout int64 // µs

	sock            sockio.Socket
	state           State
	nextAttempt     int64
	connectDeadline int64

	in, out codec.Queue
	hist    *history.History
	dropped int
}

// NewStream parses HOST:PORT:DELAY_MICROS and returns a disconnected client.
// No socket is opened until the first RegisterInterest call.
func NewStream(name, params string, opts Options) (*Stream, error) {
	opts = opts.withDefaults()

	m := streamParamsRx.FindStringSubmatch(params)
	if m == nil {
		return nil, fmt.Errorf("%q: want HOST:PORT:DELAY_MICROS: %w", params, ErrInvalidParams)
	}
	host := strings.TrimSpace(m[1])
	port, err := strconv.Atoi(m[2])
	if err != nil || port < 1 || port > 0xFFFF {
		return nil, fmt.Errorf("port %s not in [1,65535]: %w", m[2], ErrInvalidParams)
	}
	delay, err := strconv.ParseInt(m[3], 10, 64)
	if err != nil || delay < 1 || delay > MaxDelayMicros {
		return nil, fmt.Errorf("delay %s not in [1,%d]: %w", m[3], MaxDelayMicros, ErrInvalidParams)
	}
	ip, err := resolveIPv4(host)
	if err != nil {
		return nil, fmt.Errorf("host %q: %v: %w", host, err, ErrInvalidParams)
	}

	s := &Stream{
		id:             name,
		clock:          opts.Clock,
		opener:         opts.Opener,
		onState:        opts.OnStateChange,
		addr:           netip.AddrPortFrom(ip, uint16(port)),
		delay:          delay,
		backoff:        opts.ReconnectBackoff.Microseconds(),
		connectTimeout: opts.ConnectTimeout.Microseconds(),
		nextAttempt:    math.MinInt64,
		hist:           history.New(),
	}
	s.log = opts.Logger.With().Str("telescope", name).Str("addr", s.addr.String()).Logger()
	s.log.Debug().Int64("delay_us", delay).Msg("stream telescope configured")
	return s, nil
}

func resolveIPv4(host string) (netip.Addr, error) {
	if ip, err := netip.ParseAddr(host); err == nil {
		if !ip.Is4() {
			return netip.Addr{}, fmt.Errorf("not an IPv4 address")
		}
		return ip, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	defer cancel()
	ips, err := net.DefaultResolver.LookupNetIP(ctx, "ip4", host)
	if err != nil {
		return netip.Addr{}, err
	}
	if len(ips) == 0 {
		return netip.Addr{}, fmt.Errorf("no IPv4 address")
	}
	return ips[0].Unmap(), nil
}

func (s *Stream) ID() string          { return s.id }
func (s *Stream) DisplayName() string { return s.id }
func (s *Stream) Connected() bool     { return s.state == Connected }
func (s *Stream) PositionKnown() bool { return s.hist.Known() }

// State returns the current link state.
func (s *Stream) State() State { return s.state }

// Addr returns the server address.
func (s *Stream) Addr() netip.AddrPort { return s.addr }

// DelayMicros returns the configured transport delay.
func (s *Stream) DelayMicros() int64 { return s.delay }

func (s *Stream) CurrentDirection() (r3.Vec, bool) {
	return s.hist.At(s.clock.NowMicros() - s.delay)
}

// Goto queues a goto frame. It is ignored while not connected and dropped
// when the outbound queue is full; frames already queued are kept.
func (s *Stream) Goto(dir r3.Vec) {
	if !s.Connected() {
		s.log.Debug().Msg("goto ignored, not connected")
		return
	}
	ra, dec := sphere.ToRaw(dir)
	g := codec.Goto{ClientMicros: s.clock.NowMicros(), RA: ra, Dec: dec}
	if !codec.EnqueueGoto(&s.out, g) {
		s.dropped++
		s.log.Warn().Int("queued_bytes", s.out.Len()).Msg("communication is too slow, dropping goto")
		return
	}
	s.log.Debug().Str("target", sphere.FormatRaDec(ra, dec)).Msg("goto queued")
}

// RegisterInterest starts a connection attempt when the backoff allows,
// expires a pending connect that took too long, and declares which
// readiness events the link needs.
func (s *Stream) RegisterInterest(interest *reactor.Set) {
	now := s.clock.NowMicros()
	if s.sock == nil {
		if now < s.nextAttempt {
			return
		}
		s.connect(now)
		if s.sock == nil {
			return
		}
	}

	fd := s.sock.FD()
	switch s.state {
	case Connecting:
		if now > s.connectDeadline {
			s.log.Warn().Msg("connect timeout")
			s.hangup()
			return
		}
		interest.AddWrite(fd)
	case Connected:
		interest.AddRead(fd)
		if s.out.Len() > 0 {
			interest.AddWrite(fd)
		}
	}
}

func (s *Stream) connect(now int64) {
	s.nextAttempt = now + s.backoff

	sock, err := s.opener.Open()
	if err != nil {
		s.log.Warn().Err(err).Msg("could not open socket")
		return
	}
	s.sock = sock

	err = sock.Connect(s.addr)
	switch sockio.Classify(err) {
	case sockio.OK:
		s.log.Info().Msg("connection established")
		s.setState(Connected)
	case sockio.InProgress, sockio.WouldBlock, sockio.Interrupted:
		s.connectDeadline = now + s.connectTimeout
		s.setState(Connecting)
	default:
		s.log.Warn().Err(err).Msg("connect failed")
		s.hangup()
	}
}

// OnReady performs the I/O that ready allows. With nothing ready it changes
// nothing.
func (s *Stream) OnReady(ready *reactor.Set) {
	if s.sock == nil {
		return
	}
	fd := s.sock.FD()

	switch s.state {
	case Connecting:
		if !ready.Writable(fd) {
			return
		}
		if err := s.sock.PendingError(); err != nil {
			s.log.Warn().Err(err).Msg("connect failed")
			s.hangup()
			return
		}
		s.log.Info().Msg("connection established")
		s.setState(Connected)
	case Connected:
		if ready.Writable(fd) {
			s.performWrite()
		}
		if s.sock != nil && ready.Readable(fd) {
			s.performRead()
		}
	}
}

func (s *Stream) performWrite() {
	n, err := s.sock.Send(s.out.Bytes())
	if err != nil {
		if sockio.Classify(err).Transient() {
			return
		}
		s.log.Warn().Err(err).Msg("send failed")
		s.hangup()
		return
	}
	s.out.Consume(n)
}

func (s *Stream) performRead() {
	tail := s.in.Tail()
	if len(tail) == 0 {
		s.log.Warn().Msg("inbound buffer full without a complete frame")
		s.hangup()
		return
	}
	n, err := s.sock.Recv(tail)
	if err != nil {
		if sockio.Classify(err).Transient() {
			return
		}
		s.log.Warn().Err(err).Msg("recv failed")
		s.hangup()
		return
	}
	if n == 0 {
		s.log.Info().Msg("server has closed the connection")
		s.hangup()
		return
	}
	s.in.Commit(n)

	st, err := codec.Parse(&s.in, s.record)
	if err != nil {
		s.log.Warn().Err(err).Msg("bad packet")
		s.hangup()
		return
	}
	if st.Unknown > 0 {
		s.log.Debug().Int("frames", st.Unknown).Msg("ignoring unknown packets")
	}
}

func (s *Stream) record(p codec.Position) {
	s.hist.Append(history.Sample{
		ServerMicros: p.ServerMicros,
		LocalMicros:  s.clock.NowMicros(),
		Dir:          sphere.FromRaw(p.RA, p.Dec),
		Status:       p.Status,
	})
	s.log.Trace().Int64("server_us", p.ServerMicros).Int32("status", p.Status).
		Str("position", sphere.FormatRaDec(p.RA, p.Dec)).Msg("position")
}

// hangup closes the socket and forgets everything learned over it, so no
// interpolation ever spans a gap in connectivity. The next attempt waits at
// least one backoff from now.
func (s *Stream) hangup() {
	if s.sock != nil {
		if err := s.sock.Close(); err != nil {
			s.log.Debug().Err(err).Msg("close")
		}
		s.sock = nil
	}
	s.in.Reset()
	s.out.Reset()
	s.hist.Reset()
	if next := s.clock.NowMicros() + s.backoff; next > s.nextAttempt {
		s.nextAttempt = next
	}
	s.setState(Disconnected)
}

func (s *Stream) setState(to State) {
	from := s.state
	if from == to {
		return
	}
	s.state = to
	if s.onState != nil {
		s.onState(s.id, from, to)
	}
}

func (s *Stream) Info() Info {
	dir, ok := s.CurrentDirection()
	info := Info{
		ID:            s.id,
		DisplayName:   s.id,
		Type:          TypeStream,
		State:         s.state,
		PositionKnown: ok,
		Direction:     dir,
		Samples:       s.hist.Len(),
		Dropped:       s.dropped,
		Address:       s.addr.String(),
		DelayMicros:   s.delay,
	}
	if newest, ok := s.hist.Newest(); ok {
		info.LastStatus = newest.Status
	}
	return info
}

// Close drops the connection. The stream reconnects on a later tick unless
// it is no longer driven.
func (s *Stream) Close() error {
	if s.sock == nil && s.state == Disconnected {
		return nil
	}
	s.hangup()
	return nil
}
