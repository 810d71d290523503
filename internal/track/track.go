// Package track runs the predict-wait-slew loop of the pass tracker. It
// computes upcoming passes of one satellite, waits until shortly before
// each AOS, and sends a goto for the rise point to a configured telescope.
package track

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/large-farva/scopelink/internal/predict"
	"github.com/large-farva/scopelink/internal/sphere"
)

// Stages reported in PassInfo.
const (
	StageWaiting = "waiting"
	StageSlewed  = "slewed"
	StageInPass  = "in_pass"
)

// PassSource is what the tracker needs from predict.Predictor.
type PassSource interface {
	ResolveLocation(ctx context.Context) predict.Location
	ComputePasses(ctx context.Context, loc predict.Location) ([]predict.Pass, error)
	ForceRefreshTLEs(ctx context.Context) (int, error)
}

// GotoFunc delivers a slew to the named telescope.
type GotoFunc func(ctx context.Context, telescope string, dir r3.Vec) error

// PassInfo is the tracker's view of the pass it is working on.
type PassInfo struct {
	NoradID    int       `json:"norad_id"`
	Telescope  string    `json:"telescope"`
	AOS        time.Time `json:"aos"`
	LOS        time.Time `json:"los"`
	MaxElev    float64   `json:"max_elev"`
	AOSAzimuth float64   `json:"aos_azimuth"`
	GotoAt     time.Time `json:"goto_at"`
	Stage      string    `json:"stage"`
	Target     string    `json:"target,omitempty"`
}

// Command is an external request sent through Runner.Commands. Reply
// receives exactly one result.
type Command struct {
	Type  string // pause, resume, skip, refresh
	Reply chan<- CommandResult
}

type CommandResult struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	TLEs    int    `json:"tles,omitempty"`
}

// Options configures a Runner.
type Options struct {
	Logger    zerolog.Logger
	Telescope string
	Lead      time.Duration // goto this long before AOS
	Retry     time.Duration // wait after a failed prediction
	GotoRetry time.Duration // wait between failed gotos before AOS
	Idle      time.Duration // wait when no pass is upcoming
	Source    PassSource
	Goto      GotoFunc
}

// Runner owns the tracking loop.
type Runner struct {
	log       zerolog.Logger
	telescope string
	lead      time.Duration
	retry     time.Duration
	gotoRetry time.Duration
	idle      time.Duration
	source    PassSource
	gotoFn    GotoFunc

	// Commands receives external commands from HTTP handlers. The loop
	// checks it during every wait.
	Commands chan Command

	paused    atomic.Bool
	current   atomic.Pointer[PassInfo]
	skipUntil time.Time
	active    *PassInfo
}

func New(opts Options) *Runner {
	if opts.Retry <= 0 {
		opts.Retry = 5 * time.Minute
	}
	if opts.GotoRetry <= 0 {
		opts.GotoRetry = 5 * time.Second
	}
	if opts.Idle <= 0 {
		opts.Idle = time.Hour
	}
	return &Runner{
		log:       opts.Logger,
		telescope: opts.Telescope,
		lead:      opts.Lead,
		retry:     opts.Retry,
		gotoRetry: opts.GotoRetry,
		idle:      opts.Idle,
		source:    opts.Source,
		gotoFn:    opts.Goto,
		Commands:  make(chan Command, 4),
	}
}

// IsPaused reports whether the tracker is paused.
func (r *Runner) IsPaused() bool { return r.paused.Load() }

// Current returns the pass being worked on, or nil.
func (r *Runner) Current() *PassInfo { return r.current.Load() }

func (r *Runner) publish(info *PassInfo) {
	r.active = info
	if info == nil {
		r.current.Store(nil)
		return
	}
	snap := *info
	r.current.Store(&snap)
}

// Run is the main tracking loop:
//  1. Resolve the station and compute passes.
//  2. If none, sleep Idle and recompute.
//  3. Wait until Lead before the next AOS.
//  4. Slew the telescope to the AOS point.
//  5. Wait for LOS, then loop.
func (r *Runner) Run(ctx context.Context) {
	r.log.Info().Str("telescope", r.telescope).Dur("lead", r.lead).Msg("tracker started")

	for {
		if ctx.Err() != nil {
			return
		}

		if r.paused.Load() {
			r.publish(nil)
			r.log.Info().Msg("tracker paused, waiting for resume")
			if r.sleepOrCommand(ctx, 24*365*time.Hour) == sleepCancelled {
				return
			}
			continue
		}

		loc := r.source.ResolveLocation(ctx)
		passes, err := r.source.ComputePasses(ctx, loc)
		if err != nil {
			r.log.Error().Err(err).Msg("prediction failed")
			if r.sleepOrCommand(ctx, r.retry) == sleepCancelled {
				return
			}
			continue
		}

		upcoming := r.upcoming(passes, time.Now())
		if len(upcoming) == 0 {
			r.log.Info().Dur("retry_in", r.idle).Msg("no upcoming passes, will recompute later")
			if r.sleepOrCommand(ctx, r.idle) == sleepCancelled {
				return
			}
			continue
		}

		for _, pass := range upcoming {
			if ctx.Err() != nil {
				return
			}
			if !r.follow(ctx, pass, loc) {
				// Cancelled or interrupted by a command; recompute.
				break
			}
		}
	}
}

func (r *Runner) upcoming(passes []predict.Pass, now time.Time) []predict.Pass {
	var out []predict.Pass
	for _, p := range passes {
		if p.LOS.After(now) && !p.AOS.Before(r.skipUntil) {
			out = append(out, p)
		}
	}
	return out
}

// follow handles one pass. It returns false when the wait was interrupted.
func (r *Runner) follow(ctx context.Context, pass predict.Pass, loc predict.Location) bool {
	if r.paused.Load() {
		return false
	}
	if time.Now().After(pass.LOS) {
		return true
	}

	info := &PassInfo{
		NoradID:    pass.NoradID,
		Telescope:  r.telescope,
		AOS:        pass.AOS,
		LOS:        pass.LOS,
		MaxElev:    pass.MaxElev,
		AOSAzimuth: pass.AOSAzimuth,
		GotoAt:     pass.AOS.Add(-r.lead),
		Stage:      StageWaiting,
	}
	r.publish(info)
	r.log.Info().Int("norad_id", pass.NoradID).Time("aos", pass.AOS).Time("los", pass.LOS).
		Float64("max_elev", pass.MaxElev).Float64("aos_az", pass.AOSAzimuth).Msg("next pass")

	if !r.waitUntil(ctx, info.GotoAt) {
		return false
	}

	site := sphere.Site{Lat: loc.Lat, Lon: loc.Lon, Alt: loc.Alt}
	dir := sphere.FromHorizontal(pass.AOSAzimuth, 0, site, pass.AOS)
	info.Target = sphere.FormatDirection(dir)
	if !r.slew(ctx, info, dir) {
		return false
	}

	if !r.waitUntil(ctx, pass.AOS) {
		return false
	}
	info.Stage = StageInPass
	r.publish(info)
	if !r.waitUntil(ctx, pass.LOS) {
		return false
	}
	r.publish(nil)
	return true
}

// slew sends the rise-point goto, retrying until it is accepted or AOS
// arrives. It returns false when a wait was cancelled or interrupted by a
// command. Stage moves to slewed only once a goto lands.
func (r *Runner) slew(ctx context.Context, info *PassInfo, dir r3.Vec) bool {
	for attempt := 1; ; attempt++ {
		err := r.gotoFn(ctx, r.telescope, dir)
		if err == nil {
			r.log.Info().Str("telescope", r.telescope).Str("target", info.Target).
				Int("attempt", attempt).Msg("slewing to rise point")
			info.Stage = StageSlewed
			r.publish(info)
			return true
		}

		wait := min(r.gotoRetry, time.Until(info.AOS))
		if wait <= 0 {
			r.log.Warn().Err(err).Str("telescope", r.telescope).Int("attempts", attempt).
				Msg("pass goto failed, giving up at AOS")
			return true
		}
		r.log.Warn().Err(err).Str("telescope", r.telescope).Dur("retry_in", wait).Msg("pass goto failed")
		if r.sleepOrCommand(ctx, wait) != sleepCompleted {
			return false
		}
	}
}

type sleepResult int

const (
	sleepCompleted   sleepResult = iota // timer expired normally
	sleepCancelled                      // context was cancelled
	sleepInterrupted                    // a command was received and handled
)

// sleepOrCommand blocks for d, until ctx is cancelled, or until a command
// arrives. Commands are handled inline.
func (r *Runner) sleepOrCommand(ctx context.Context, d time.Duration) sleepResult {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return sleepCancelled
	case <-t.C:
		return sleepCompleted
	case cmd := <-r.Commands:
		r.handleCommand(ctx, cmd)
		return sleepInterrupted
	}
}

// waitUntil sleeps until at, in slices of at most 30s. Returns true if at
// was reached.
func (r *Runner) waitUntil(ctx context.Context, at time.Time) bool {
	for {
		remaining := time.Until(at)
		if remaining <= 0 {
			return true
		}
		if remaining > 30*time.Second {
			remaining = 30 * time.Second
		}
		if r.sleepOrCommand(ctx, remaining) != sleepCompleted {
			return false
		}
	}
}

func (r *Runner) handleCommand(ctx context.Context, cmd Command) {
	var res CommandResult
	switch cmd.Type {
	case "pause":
		if r.paused.Swap(true) {
			res = CommandResult{OK: true, Message: "tracker already paused"}
		} else {
			r.log.Info().Msg("tracker paused by user")
			res = CommandResult{OK: true, Message: "tracker paused"}
		}
	case "resume":
		if !r.paused.Swap(false) {
			res = CommandResult{OK: true, Message: "tracker already running"}
		} else {
			r.log.Info().Msg("tracker resumed by user")
			res = CommandResult{OK: true, Message: "tracker resumed"}
		}
	case "skip":
		if r.active == nil {
			res = CommandResult{OK: false, Error: "no pass scheduled"}
			break
		}
		r.skipUntil = r.active.LOS
		r.log.Info().Time("aos", r.active.AOS).Msg("skipping pass by user request")
		r.publish(nil)
		res = CommandResult{OK: true, Message: "pass skipped, recomputing schedule"}
	case "refresh":
		n, err := r.source.ForceRefreshTLEs(ctx)
		if err != nil {
			res = CommandResult{OK: false, Error: "TLE refresh failed: " + err.Error()}
			break
		}
		r.log.Info().Int("tles", n).Msg("TLE data refreshed")
		res = CommandResult{OK: true, Message: fmt.Sprintf("TLE data refreshed, %d satellites updated", n), TLEs: n}
	default:
		res = CommandResult{OK: false, Error: "unknown command: " + cmd.Type}
	}
	cmd.Reply <- res
}
