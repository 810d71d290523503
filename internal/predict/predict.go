// Package predict computes upcoming passes of a satellite over the ground
// station using SGP4 propagation. It handles TLE fetching, station location
// (static config or gpsd), and filtering by minimum elevation.
package predict

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/large-farva/scopelink/internal/config"
)

const gpsdTimeout = 10 * time.Second

// Pass describes a single predicted overhead pass, from acquisition of
// signal (AOS) through loss of signal (LOS). Angles are in degrees.
type Pass struct {
	NoradID     int           `json:"norad_id"`
	AOS         time.Time     `json:"aos"`
	LOS         time.Time     `json:"los"`
	MaxElev     float64       `json:"max_elev"`
	MaxElevTime time.Time     `json:"max_elev_time"`
	AOSAzimuth  float64       `json:"aos_azimuth"`
	LOSAzimuth  float64       `json:"los_azimuth"`
	Duration    time.Duration `json:"duration"`
}

// Predictor resolves the ground station location, fetches current TLE data,
// and runs SGP4 propagation to find upcoming passes.
type Predictor struct {
	log     zerolog.Logger
	station config.StationConfig
	track   config.TrackConfig
	store   *TLEStore
}

// NewPredictor creates a predictor backed by a TLE store rooted in
// track.data_root.
func NewPredictor(cfg config.Config, log zerolog.Logger) *Predictor {
	return &Predictor{
		log:     log,
		station: cfg.Station,
		track:   cfg.Track,
		store:   NewTLEStore(cfg.Track.TLEURL, cfg.Track.DataRoot, cfg.Track.TLERefreshHours),
	}
}

// Store exposes the TLE cache for status reporting.
func (p *Predictor) Store() *TLEStore { return p.store }

// ResolveLocation determines the ground station position. With use_gpsd it
// asks gpsd first and falls back to the configured coordinates.
func (p *Predictor) ResolveLocation(ctx context.Context) Location {
	if p.station.UseGPSD {
		loc, err := LocationFromGPSD(ctx, p.station.GPSDHost, gpsdTimeout)
		if err == nil {
			p.log.Info().Float64("lat", loc.Lat).Float64("lon", loc.Lon).Float64("alt", loc.Alt).
				Msg("location from gpsd")
			return loc
		}
		p.log.Warn().Err(err).Msg("gpsd failed, falling back to config")
	}
	return Location{
		Lat: p.station.Latitude,
		Lon: p.station.Longitude,
		Alt: p.station.Altitude,
	}
}

// ComputePasses returns the tracked satellite's passes within the lookahead
// window, AOS ascending, skipping any that peak below min_elevation.
func (p *Predictor) ComputePasses(ctx context.Context, loc Location) ([]Pass, error) {
	id := p.track.NoradID
	tles, err := p.store.Fetch(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch TLEs: %w", err)
	}
	tle, ok := tles[id]
	if !ok {
		return nil, fmt.Errorf("NORAD %d: %w", id, ErrNoTLE)
	}

	now := time.Now().UTC()
	end := now.Add(time.Duration(p.track.LookaheadHours) * time.Hour)

	raw, err := tle.GeneratePasses(
		loc.Lat, loc.Lon, loc.Alt,
		now, end,
		1, // 1-second step for precision
	)
	if err != nil {
		return nil, fmt.Errorf("NORAD %d passes: %w", id, err)
	}

	var passes []Pass
	for _, rp := range raw {
		if rp.MaxElevation < p.station.MinElevation {
			continue
		}
		passes = append(passes, Pass{
			NoradID:     id,
			AOS:         rp.AOS,
			LOS:         rp.LOS,
			MaxElev:     rp.MaxElevation,
			MaxElevTime: rp.MaxElevationTime,
			AOSAzimuth:  rp.AOSAzimuth,
			LOSAzimuth:  rp.LOSAzimuth,
			Duration:    rp.Duration,
		})
	}

	sort.Slice(passes, func(i, j int) bool {
		return passes[i].AOS.Before(passes[j].AOS)
	})

	p.log.Info().Int("norad_id", id).Int("passes", len(passes)).
		Int("lookahead_hours", p.track.LookaheadHours).Msg("passes computed")
	return passes, nil
}

// ForceRefreshTLEs refetches from the network regardless of cache age.
func (p *Predictor) ForceRefreshTLEs(ctx context.Context) (int, error) {
	tles, err := p.store.ForceRefresh(ctx, p.track.NoradID)
	if err != nil {
		return 0, err
	}
	return len(tles), nil
}
