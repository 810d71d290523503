package track

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/large-farva/scopelink/internal/predict"
	"github.com/large-farva/scopelink/internal/sphere"
)

type fakeSource struct {
	mu      sync.Mutex
	passes  []predict.Pass
	err     error
	calls   int
	refresh int
}

func (f *fakeSource) ResolveLocation(context.Context) predict.Location {
	return predict.Location{Lat: 40, Lon: -105}
}

func (f *fakeSource) ComputePasses(context.Context, predict.Location) ([]predict.Pass, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.passes, f.err
}

func (f *fakeSource) ForceRefreshTLEs(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refresh++
	return 1, nil
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type gotoCall struct {
	telescope string
	dir       r3.Vec
}

func start(t *testing.T, src *fakeSource, lead time.Duration) (*Runner, chan gotoCall) {
	t.Helper()
	gotos := make(chan gotoCall, 4)
	r := startWith(t, src, lead, func(_ context.Context, name string, dir r3.Vec) error {
		gotos <- gotoCall{name, dir}
		return nil
	})
	return r, gotos
}

func startWith(t *testing.T, src *fakeSource, lead time.Duration, fn GotoFunc) *Runner {
	t.Helper()
	r := New(Options{
		Logger:    zerolog.Nop(),
		Telescope: "Scope1",
		Lead:      lead,
		Retry:     20 * time.Millisecond,
		GotoRetry: 20 * time.Millisecond,
		Idle:      20 * time.Millisecond,
		Source:    src,
		Goto:      fn,
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return r
}

func send(t *testing.T, r *Runner, typ string) CommandResult {
	t.Helper()
	reply := make(chan CommandResult, 1)
	r.Commands <- Command{Type: typ, Reply: reply}
	select {
	case res := <-reply:
		return res
	case <-time.After(2 * time.Second):
		t.Fatalf("no reply to %s", typ)
		return CommandResult{}
	}
}

func TestSlewsBeforeAOS(t *testing.T) {
	now := time.Now()
	pass := predict.Pass{
		NoradID:    25544,
		AOS:        now.Add(300 * time.Millisecond),
		LOS:        now.Add(time.Hour),
		MaxElev:    45,
		AOSAzimuth: 90,
	}
	src := &fakeSource{passes: []predict.Pass{pass}}
	r, gotos := start(t, src, 200*time.Millisecond)

	var g gotoCall
	select {
	case g = <-gotos:
	case <-time.After(2 * time.Second):
		t.Fatal("tracker never issued a goto")
	}
	if time.Now().Before(pass.AOS.Add(-200 * time.Millisecond)) {
		t.Error("goto issued before the lead window")
	}
	if g.telescope != "Scope1" {
		t.Errorf("goto sent to %q", g.telescope)
	}
	site := sphere.Site{Lat: 40, Lon: -105}
	want := sphere.FromHorizontal(90, 0, site, pass.AOS)
	if sphere.Separation(g.dir, want) > 1e-9 {
		t.Errorf("dir = %v, want %v", g.dir, want)
	}
	if math.Abs(r3.Norm(g.dir)-1) > 1e-12 {
		t.Errorf("|dir| = %g", r3.Norm(g.dir))
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if cur := r.Current(); cur != nil && cur.Stage == StageInPass {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("stage never reached %s: %+v", StageInPass, r.Current())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSkipDropsPass(t *testing.T) {
	now := time.Now()
	pass := predict.Pass{NoradID: 1, AOS: now.Add(time.Hour), LOS: now.Add(2 * time.Hour)}
	src := &fakeSource{passes: []predict.Pass{pass}}
	r, gotos := start(t, src, time.Minute)

	deadline := time.Now().Add(2 * time.Second)
	for r.Current() == nil {
		if time.Now().After(deadline) {
			t.Fatal("pass never scheduled")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if res := send(t, r, "skip"); !res.OK {
		t.Fatalf("skip: %+v", res)
	}
	// Recomputing returns the same pass, which must stay skipped.
	calls := src.callCount()
	deadline = time.Now().Add(2 * time.Second)
	for src.callCount() < calls+2 {
		if time.Now().After(deadline) {
			t.Fatal("tracker did not recompute after skip")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if r.Current() != nil {
		t.Errorf("skipped pass still current: %+v", r.Current())
	}
	select {
	case g := <-gotos:
		t.Errorf("unexpected goto %+v", g)
	default:
	}
}

func TestPauseResumeRefresh(t *testing.T) {
	src := &fakeSource{err: errors.New("no TLE")}
	r, _ := start(t, src, 0)

	if res := send(t, r, "pause"); !res.OK || !r.IsPaused() {
		t.Fatalf("pause: %+v", res)
	}
	if res := send(t, r, "pause"); res.Message != "tracker already paused" {
		t.Errorf("second pause: %+v", res)
	}
	if res := send(t, r, "refresh"); !res.OK || res.TLEs != 1 {
		t.Errorf("refresh: %+v", res)
	}
	if res := send(t, r, "resume"); !res.OK || r.IsPaused() {
		t.Errorf("resume: %+v", res)
	}
	if res := send(t, r, "reboot"); res.OK {
		t.Errorf("unknown command accepted: %+v", res)
	}
	if res := send(t, r, "skip"); res.OK {
		t.Errorf("skip with nothing scheduled: %+v", res)
	}
}

func TestUpcoming(t *testing.T) {
	now := time.Now()
	r := New(Options{})
	passes := []predict.Pass{
		{AOS: now.Add(-2 * time.Hour), LOS: now.Add(-time.Hour)},
		{AOS: now.Add(-time.Minute), LOS: now.Add(time.Minute)},
		{AOS: now.Add(time.Hour), LOS: now.Add(2 * time.Hour)},
	}
	if got := r.upcoming(passes, now); len(got) != 2 {
		t.Fatalf("upcoming = %d passes", len(got))
	}
	r.skipUntil = now.Add(time.Minute)
	if got := r.upcoming(passes, now); len(got) != 1 || !got[0].AOS.Equal(passes[2].AOS) {
		t.Errorf("upcoming after skip = %+v", got)
	}
}

func waitStage(t *testing.T, r *Runner, stage string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		if cur := r.Current(); cur != nil && cur.Stage == stage {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("stage never reached %s: %+v", stage, r.Current())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestFailedGotoRetriedUntilAccepted(t *testing.T) {
	now := time.Now()
	pass := predict.Pass{NoradID: 7, AOS: now.Add(800 * time.Millisecond), LOS: now.Add(time.Hour)}
	src := &fakeSource{passes: []predict.Pass{pass}}

	var attempts atomic.Int32
	r := startWith(t, src, 700*time.Millisecond, func(context.Context, string, r3.Vec) error {
		if attempts.Add(1) < 3 {
			return errors.New("telescope not connected")
		}
		return nil
	})

	waitStage(t, r, StageSlewed)
	if time.Now().After(pass.AOS) {
		t.Error("goto landed after AOS")
	}
	if n := attempts.Load(); n != 3 {
		t.Errorf("attempts = %d, want 3", n)
	}
	waitStage(t, r, StageInPass)
}

func TestFailedGotoGivesUpAtAOS(t *testing.T) {
	now := time.Now()
	pass := predict.Pass{NoradID: 7, AOS: now.Add(400 * time.Millisecond), LOS: now.Add(time.Hour)}
	src := &fakeSource{passes: []predict.Pass{pass}}

	var attempts atomic.Int32
	r := startWith(t, src, 300*time.Millisecond, func(context.Context, string, r3.Vec) error {
		attempts.Add(1)
		return errors.New("telescope not connected")
	})

	waitStage(t, r, StageInPass)
	n := attempts.Load()
	if n < 2 {
		t.Errorf("failed goto tried %d times before AOS", n)
	}
	time.Sleep(100 * time.Millisecond)
	if attempts.Load() != n {
		t.Errorf("goto retried after AOS: %d -> %d", n, attempts.Load())
	}
}
