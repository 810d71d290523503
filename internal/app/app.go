// Package app wires together the telescope reactor, the HTTP server, the
// WebSocket hub and the optional pass tracker. It owns the daemon's
// lifecycle and is the single source of truth for its operating state.
//
// Telescopes are only ever touched on the reactor goroutine. HTTP handlers
// read published snapshots and send gotos through a command channel that
// the reactor drains between ticks.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/large-farva/scopelink/internal/config"
	"github.com/large-farva/scopelink/internal/logging"
	"github.com/large-farva/scopelink/internal/predict"
	"github.com/large-farva/scopelink/internal/reactor"
	"github.com/large-farva/scopelink/internal/sphere"
	"github.com/large-farva/scopelink/internal/telemetry"
	"github.com/large-farva/scopelink/internal/telescope"
	"github.com/large-farva/scopelink/internal/track"
	"github.com/large-farva/scopelink/internal/ws"
)

var (
	ErrUnknownTelescope = errors.New("unknown telescope")
	ErrNotConnected     = errors.New("telescope not connected")
	ErrStopped          = errors.New("reactor stopped")
)

// Options holds everything the App needs from the caller.
type Options struct {
	Logger zerolog.Logger
	Cfg    config.Config
	Bind   string

	// Poller overrides the reactor's poll(2) backend.
	Poller reactor.Poller
	// Telescope seeds the options handed to every telescope; tests use it
	// to inject a clock and socket opener. Logger, link timings and the
	// state callback are always filled in by New.
	Telescope telescope.Options
}

type gotoCmd struct {
	telescope string
	dir       r3.Vec
	source    string
	reply     chan error
}

// App is the top-level daemon process.
type App struct {
	log    zerolog.Logger
	cfg    config.Config
	bind   string
	server *http.Server

	startedAt time.Time
	state     atomic.Value // BOOTING, RUNNING, STOPPING

	hub     *ws.Hub
	tracker *track.Runner
	pred    *predict.Predictor

	// Reactor-goroutine state.
	scopes        []telescope.Telescope
	byID          map[string]telescope.Telescope
	loop          *reactor.Loop
	lastBroadcast time.Time

	gotos     chan gotoCmd
	snapshot  atomic.Pointer[[]telescope.Info]
	skipped   []string
	reactorUp atomic.Bool
	done      chan struct{}
}

// New creates an App in the BOOTING state and builds its telescopes.
// Descriptors that fail to parse are logged and skipped.
func New(opts Options) *App {
	a := &App{
		cfg:       opts.Cfg,
		bind:      opts.Bind,
		startedAt: time.Now(),
		byID:      make(map[string]telescope.Telescope),
		gotos:     make(chan gotoCmd, 16),
		done:      make(chan struct{}),
	}
	a.hub = ws.NewHub(opts.Logger.With().Str("component", "ws").Logger())
	a.log = opts.Logger.Hook(logging.Hook{Min: zerolog.InfoLevel, Fn: a.mirrorLog})
	a.state.Store("BOOTING")

	topts := opts.Telescope
	topts.Logger = a.log.With().Str("component", "telescope").Logger()
	topts.ReconnectBackoff = a.cfg.Link.ReconnectBackoff()
	topts.ConnectTimeout = a.cfg.Link.ConnectTimeout()
	topts.OnStateChange = a.onStateChange

	for _, desc := range a.cfg.Telescopes {
		t, err := telescope.Create(desc, topts)
		if err != nil {
			a.skipped = append(a.skipped, desc)
			continue
		}
		if _, dup := a.byID[t.ID()]; dup {
			a.log.Warn().Str("telescope", t.ID()).Msg("duplicate telescope name, skipping")
			_ = t.Close()
			a.skipped = append(a.skipped, desc)
			continue
		}
		a.byID[t.ID()] = t
		a.scopes = append(a.scopes, t)
	}

	poller := opts.Poller
	if poller == nil {
		poller = &reactor.UnixPoller{}
	}
	handlers := make([]reactor.Handler, len(a.scopes))
	for i, t := range a.scopes {
		handlers[i] = t
	}
	a.loop = &reactor.Loop{Poller: poller, Handlers: handlers, Timeout: a.cfg.Reactor.Tick()}
	a.publish()

	if a.cfg.Track.Enabled {
		a.pred = predict.NewPredictor(a.cfg, a.log.With().Str("component", "predict").Logger())
		a.tracker = track.New(track.Options{
			Logger:    a.log.With().Str("component", "track").Logger(),
			Telescope: a.cfg.Track.Telescope,
			Lead:      time.Duration(a.cfg.Track.LeadSeconds) * time.Second,
			Idle:      time.Duration(a.cfg.Track.TLERefreshHours) * time.Hour,
			Source:    a.pred,
			Goto: func(ctx context.Context, name string, dir r3.Vec) error {
				return a.Goto(ctx, name, dir, "track")
			},
		})
	}
	return a
}

// Run starts the HTTP server, WebSocket hub, heartbeat ticker, reactor and
// tracker. It blocks until the context is cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	bind := a.bind
	if bind == "" {
		bind = a.cfg.Server.Bind
	}

	a.server = &http.Server{
		Addr:              bind,
		Handler:           a.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", bind)
	if err != nil {
		return err
	}
	a.log.Info().Str("addr", "http://"+bind).Int("telescopes", len(a.scopes)).Msg("listening")

	go a.hub.Run(ctx)
	go a.runReactor(ctx)
	go a.heartbeatLoop(ctx)
	if a.tracker != nil {
		go a.tracker.Run(ctx)
	}
	a.transition("RUNNING")

	go func() {
		<-ctx.Done()
		a.transition("STOPPING")
		a.log.Info().Msg("shutdown requested")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.server.Shutdown(shutdownCtx)
	}()

	err = a.server.Serve(ln)
	<-a.done
	return err
}

func (a *App) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", a.handleHealthz)
	mux.HandleFunc("GET /api/status", a.handleStatus)
	mux.HandleFunc("GET /api/version", a.handleVersion)
	mux.HandleFunc("GET /api/telescopes", a.handleTelescopes)
	mux.HandleFunc("POST /api/goto", a.handleGoto)
	mux.HandleFunc("GET /api/track", a.handleTrack)
	mux.HandleFunc("POST /api/track/{action}", a.handleTrackCommand)
	mux.Handle("GET /ws", a.hub.Handler())
	return mux
}

// runReactor drives every telescope until ctx is cancelled, then closes
// them on the same goroutine.
func (a *App) runReactor(ctx context.Context) {
	defer close(a.done)
	a.reactorUp.Store(true)
	defer a.reactorUp.Store(false)

	log := a.log.With().Str("component", "reactor").Logger()
	log.Info().Int("handlers", len(a.scopes)).Dur("tick", a.loop.Timeout).Msg("reactor started")

	err := a.loop.Run(ctx, a.between)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("reactor stopped")
	}

	for _, t := range a.scopes {
		if cerr := t.Close(); cerr != nil {
			log.Debug().Err(cerr).Str("telescope", t.ID()).Msg("close")
		}
	}
	a.publish()
	a.failPending()
}

// between runs on the reactor goroutine after every tick.
func (a *App) between() {
	for {
		select {
		case cmd := <-a.gotos:
			cmd.reply <- a.applyGoto(cmd)
		default:
			a.publish()
			a.maybeBroadcast()
			return
		}
	}
}

func (a *App) applyGoto(cmd gotoCmd) error {
	t, ok := a.byID[cmd.telescope]
	if !ok {
		return fmt.Errorf("%q: %w", cmd.telescope, ErrUnknownTelescope)
	}
	if !t.Connected() {
		return fmt.Errorf("%q: %w", cmd.telescope, ErrNotConnected)
	}
	t.Goto(cmd.dir)
	text := sphere.FormatDirection(cmd.dir)
	a.hub.Broadcast(string(telemetry.EventGoto), telemetry.NewGotoIssued(cmd.telescope, cmd.source, text))
	return nil
}

// failPending answers gotos that raced with shutdown.
func (a *App) failPending() {
	for {
		select {
		case cmd := <-a.gotos:
			cmd.reply <- ErrStopped
		default:
			return
		}
	}
}

// Goto hands a slew to the reactor goroutine and waits for its verdict.
func (a *App) Goto(ctx context.Context, name string, dir r3.Vec, source string) error {
	if !a.reactorUp.Load() {
		return ErrStopped
	}
	cmd := gotoCmd{telescope: name, dir: dir, source: source, reply: make(chan error, 1)}
	select {
	case a.gotos <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-a.done:
		return ErrStopped
	}
}

func (a *App) publish() {
	infos := make([]telescope.Info, len(a.scopes))
	for i, t := range a.scopes {
		infos[i] = t.Info()
	}
	a.snapshot.Store(&infos)
}

// Telescopes returns the latest published snapshot.
func (a *App) Telescopes() []telescope.Info {
	if p := a.snapshot.Load(); p != nil {
		return *p
	}
	return nil
}

func (a *App) maybeBroadcast() {
	every := a.cfg.Reactor.BroadcastEvery()
	if every <= 0 || time.Since(a.lastBroadcast) < every {
		return
	}
	a.lastBroadcast = time.Now()
	for _, info := range a.Telescopes() {
		a.hub.Broadcast(string(telemetry.EventPosition), positionEvent(info))
	}
}

func positionEvent(info telescope.Info) telemetry.Position {
	ev := telemetry.NewPosition(info.ID)
	ev.Known = info.PositionKnown
	if info.PositionKnown {
		d := info.Direction
		ev.Vector = [3]float64{d.X, d.Y, d.Z}
		ev.RA, ev.Dec = sphere.ToRaDec(d)
		ev.Text = sphere.FormatDirection(d)
	}
	return ev
}

// onStateChange runs on the reactor goroutine.
func (a *App) onStateChange(id string, from, to telescope.State) {
	a.hub.Broadcast(string(telemetry.EventState), telemetry.NewStateTransition(id, from.String(), to.String()))
}

// mirrorLog forwards log lines to WebSocket subscribers.
func (a *App) mirrorLog(level zerolog.Level, msg string) {
	a.hub.Broadcast(string(telemetry.EventLog), telemetry.NewLogLine(level.String(), msg))
}

// transition updates the daemon state and broadcasts the change.
func (a *App) transition(newState string) {
	old := a.state.Swap(newState).(string)
	if old == newState {
		return
	}
	ev := telemetry.NewStateTransition("", old, newState)
	ev.Component = "app"
	a.hub.Broadcast(string(telemetry.EventState), ev)
}

func (a *App) connectedCount() int {
	n := 0
	for _, info := range a.Telescopes() {
		if info.State == telescope.Connected {
			n++
		}
	}
	return n
}

// heartbeatLoop sends a periodic heartbeat so clients can detect
// connectivity without polling.
func (a *App) heartbeatLoop(ctx context.Context) {
	t := time.NewTicker(10 * time.Second)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			a.hub.Broadcast(string(telemetry.EventHeartbeat),
				telemetry.NewHeartbeat(time.Since(a.startedAt), len(a.scopes), a.connectedCount()))
		}
	}
}
