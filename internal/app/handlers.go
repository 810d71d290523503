package app

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"runtime"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/large-farva/scopelink/internal/sphere"
	"github.com/large-farva/scopelink/internal/telescope"
	"github.com/large-farva/scopelink/internal/track"
)

const commandTimeout = 5 * time.Second

func (a *App) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	if !a.reactorUp.Load() {
		http.Error(w, "reactor not running", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (a *App) handleStatus(w http.ResponseWriter, _ *http.Request) {
	infos := a.Telescopes()
	resp := map[string]any{
		"name":           "scoped",
		"state":          a.state.Load().(string),
		"uptime_seconds": int64(time.Since(a.startedAt).Seconds()),
		"telescopes":     len(infos),
		"connected":      a.connectedCount(),
		"skipped":        a.skipped,
		"subscribers":    a.hub.Clients(),
		"events_dropped": a.hub.Dropped(),
		"tracking":       a.tracker != nil,
	}
	if a.pred != nil {
		cache := a.pred.Store().CacheInfo()
		resp["tle_cache"] = cache
		if du := diskUsage(a.cfg.Track.DataRoot); du != nil {
			resp["disk"] = du
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *App) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"version":    Version,
		"go_version": runtime.Version(),
		"built_at":   BuiltAt,
	})
}

// telescopeJSON is the wire form of one telescope snapshot.
type telescopeJSON struct {
	ID            string      `json:"id"`
	Type          string      `json:"type"`
	State         string      `json:"state"`
	Connected     bool        `json:"connected"`
	PositionKnown bool        `json:"position_known"`
	Vector        *[3]float64 `json:"vector,omitempty"`
	RA            *float64    `json:"ra,omitempty"`  // radians
	Dec           *float64    `json:"dec,omitempty"` // radians
	Text          string      `json:"text,omitempty"`
	Samples       int         `json:"samples"`
	LastStatus    int32       `json:"last_status"`
	Dropped       int         `json:"dropped"`
	Address       string      `json:"address,omitempty"`
	DelayMicros   int64       `json:"delay_us,omitempty"`
}

func toJSON(info telescope.Info) telescopeJSON {
	tj := telescopeJSON{
		ID:            info.ID,
		Type:          info.Type,
		State:         info.State.String(),
		Connected:     info.State == telescope.Connected,
		PositionKnown: info.PositionKnown,
		Samples:       info.Samples,
		LastStatus:    info.LastStatus,
		Dropped:       info.Dropped,
		Address:       info.Address,
		DelayMicros:   info.DelayMicros,
	}
	if info.PositionKnown {
		d := info.Direction
		ra, dec := sphere.ToRaDec(d)
		tj.Vector = &[3]float64{d.X, d.Y, d.Z}
		tj.RA, tj.Dec = &ra, &dec
		tj.Text = sphere.FormatDirection(d)
	}
	return tj
}

func (a *App) handleTelescopes(w http.ResponseWriter, _ *http.Request) {
	infos := a.Telescopes()
	out := make([]telescopeJSON, len(infos))
	for i, info := range infos {
		out[i] = toJSON(info)
	}
	writeJSON(w, http.StatusOK, map[string]any{"telescopes": out})
}

// gotoRequest accepts either RA/Dec in degrees or a direction vector of any
// nonzero length.
type gotoRequest struct {
	Telescope string   `json:"telescope"`
	RADeg     *float64 `json:"ra_deg"`
	DecDeg    *float64 `json:"dec_deg"`
	X         *float64 `json:"x"`
	Y         *float64 `json:"y"`
	Z         *float64 `json:"z"`
}

func (g gotoRequest) direction() (r3.Vec, error) {
	switch {
	case g.RADeg != nil && g.DecDeg != nil:
		if *g.DecDeg < -90 || *g.DecDeg > 90 {
			return r3.Vec{}, errors.New("dec_deg must be between -90 and 90")
		}
		return sphere.FromRaDec(*g.RADeg*math.Pi/180, *g.DecDeg*math.Pi/180), nil
	case g.X != nil && g.Y != nil && g.Z != nil:
		v := r3.Vec{X: *g.X, Y: *g.Y, Z: *g.Z}
		n := r3.Norm(v)
		if n == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
			return r3.Vec{}, errors.New("direction vector must be finite and nonzero")
		}
		return r3.Scale(1/n, v), nil
	default:
		return r3.Vec{}, errors.New("want ra_deg and dec_deg, or x, y and z")
	}
}

func (a *App) handleGoto(w http.ResponseWriter, r *http.Request) {
	var req gotoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "bad request: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Telescope == "" {
		jsonError(w, "telescope is required", http.StatusBadRequest)
		return
	}
	dir, err := req.direction()
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()
	err = a.Goto(ctx, req.Telescope, dir, "api")
	switch {
	case err == nil:
	case errors.Is(err, ErrUnknownTelescope):
		jsonError(w, err.Error(), http.StatusNotFound)
		return
	case errors.Is(err, ErrNotConnected):
		jsonError(w, err.Error(), http.StatusConflict)
		return
	default:
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	ra, dec := sphere.ToRaDec(dir)
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"telescope": req.Telescope,
		"ra":        ra,
		"dec":       dec,
		"message":   "goto queued: " + sphere.FormatDirection(dir),
	})
}

func (a *App) handleTrack(w http.ResponseWriter, _ *http.Request) {
	if a.tracker == nil {
		writeJSON(w, http.StatusOK, map[string]any{"enabled": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"enabled":   true,
		"paused":    a.tracker.IsPaused(),
		"norad_id":  a.cfg.Track.NoradID,
		"telescope": a.cfg.Track.Telescope,
		"pass":      a.tracker.Current(),
	})
}

func (a *App) handleTrackCommand(w http.ResponseWriter, r *http.Request) {
	if a.tracker == nil {
		jsonError(w, "pass tracking is disabled", http.StatusConflict)
		return
	}
	action := r.PathValue("action")
	switch action {
	case "pause", "resume", "skip", "refresh":
	default:
		jsonError(w, "unknown action: "+action, http.StatusNotFound)
		return
	}

	reply := make(chan track.CommandResult, 1)
	select {
	case a.tracker.Commands <- track.Command{Type: action, Reply: reply}:
	case <-r.Context().Done():
		return
	case <-time.After(commandTimeout):
		jsonError(w, "tracker busy", http.StatusServiceUnavailable)
		return
	}
	select {
	case res := <-reply:
		writeCommandResult(w, res)
	case <-r.Context().Done():
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]any{
		"ok":    false,
		"error": msg,
	})
}

func writeCommandResult(w http.ResponseWriter, result track.CommandResult) {
	code := http.StatusOK
	if !result.OK {
		code = http.StatusConflict
	}
	writeJSON(w, code, result)
}
