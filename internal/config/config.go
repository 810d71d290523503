// Package config handles loading, defaulting, and validation of the scoped
// TOML configuration file. Every section maps to a typed struct so the rest
// of the codebase gets strong typing without manual key lookups.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/large-farva/scopelink/internal/logging"
)

// Config is the top-level configuration, mirroring the TOML sections.
// Telescopes holds descriptor strings such as
// "Scope1:Stream:127.0.0.1:10001:500000" and must appear before the first
// table in the file.
type Config struct {
	Telescopes []string      `toml:"telescopes" json:"telescopes"`
	Logging    LoggingConfig `toml:"logging"    json:"logging"`
	Server     ServerConfig  `toml:"server"     json:"server"`
	Reactor    ReactorConfig `toml:"reactor"    json:"reactor"`
	Link       LinkConfig    `toml:"link"       json:"link"`
	Track      TrackConfig   `toml:"track"      json:"track"`
	Station    StationConfig `toml:"station"    json:"station"`
}

type LoggingConfig struct {
	Level      string `toml:"level"        json:"level"`
	File       string `toml:"file"         json:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"  json:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"  json:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" json:"max_age_days"`
	JSON       bool   `toml:"json"         json:"json"`
}

type ServerConfig struct {
	Bind string `toml:"bind" json:"bind"`
}

// ReactorConfig tunes the I/O loop. TickMS bounds how long one poll may
// block; BroadcastMS is the period of position events (0 disables them).
type ReactorConfig struct {
	TickMS      int `toml:"tick_ms"      json:"tick_ms"`
	BroadcastMS int `toml:"broadcast_ms" json:"broadcast_ms"`
}

func (r ReactorConfig) Tick() time.Duration { return time.Duration(r.TickMS) * time.Millisecond }

func (r ReactorConfig) BroadcastEvery() time.Duration {
	return time.Duration(r.BroadcastMS) * time.Millisecond
}

type LinkConfig struct {
	ReconnectBackoffMS int `toml:"reconnect_backoff_ms" json:"reconnect_backoff_ms"`
	ConnectTimeoutMS   int `toml:"connect_timeout_ms"   json:"connect_timeout_ms"`
}

func (l LinkConfig) ReconnectBackoff() time.Duration {
	return time.Duration(l.ReconnectBackoffMS) * time.Millisecond
}

func (l LinkConfig) ConnectTimeout() time.Duration {
	return time.Duration(l.ConnectTimeoutMS) * time.Millisecond
}

// TrackConfig drives the optional pass tracker, which slews one telescope
// to the rise point of a satellite shortly before it comes up.
type TrackConfig struct {
	Enabled         bool   `toml:"enabled"           json:"enabled"`
	Telescope       string `toml:"telescope"         json:"telescope"`
	NoradID         int    `toml:"norad_id"          json:"norad_id"`
	LeadSeconds     int    `toml:"lead_seconds"      json:"lead_seconds"`
	TLEURL          string `toml:"tle_url"           json:"tle_url"`
	TLERefreshHours int    `toml:"tle_refresh_hours" json:"tle_refresh_hours"`
	LookaheadHours  int    `toml:"lookahead_hours"   json:"lookahead_hours"`
	DataRoot        string `toml:"data_root"         json:"data_root"`
}

type StationConfig struct {
	Latitude     float64 `toml:"latitude"      json:"latitude"`
	Longitude    float64 `toml:"longitude"     json:"longitude"`
	Altitude     float64 `toml:"altitude"      json:"altitude"`
	MinElevation float64 `toml:"min_elevation" json:"min_elevation"`
	UseGPSD      bool    `toml:"use_gpsd"      json:"use_gpsd"`
	GPSDHost     string  `toml:"gpsd_host"     json:"gpsd_host"`
}

// Default returns a Config populated with sane defaults. Values here are
// used whenever the TOML file omits a field.
func Default() Config {
	return Config{
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 14,
		},
		Server: ServerConfig{
			Bind: "127.0.0.1:8090",
		},
		Reactor: ReactorConfig{
			TickMS:      10,
			BroadcastMS: 500,
		},
		Link: LinkConfig{
			ReconnectBackoffMS: 5000,
			ConnectTimeoutMS:   1000,
		},
		Track: TrackConfig{
			Enabled:         false,
			LeadSeconds:     60,
			TLEURL:          "https://celestrak.org/NORAD/elements/gp.php?GROUP=stations&FORMAT=tle",
			TLERefreshHours: 24,
			LookaheadHours:  24,
			DataRoot:        "/var/lib/scoped",
		},
		Station: StationConfig{
			MinElevation: 10,
			GPSDHost:     "localhost:2947",
		},
	}
}

// Load reads the TOML file at path, layers it on top of the defaults, and
// validates the result. An error is returned if the file can't be read,
// parsed, or if any constraint is violated.
func Load(path string) (Config, error) {
	cfg := Default()

	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := toml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Validate checks value ranges. Descriptor syntax is checked later by the
// telescope factory, which logs and skips bad entries.
func Validate(cfg Config) error {
	if _, err := logging.ParseLevel(cfg.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if cfg.Logging.File != "" && cfg.Logging.MaxSizeMB < 1 {
		return errors.New("logging.max_size_mb must be >= 1")
	}
	if cfg.Server.Bind == "" {
		return errors.New("server.bind must not be empty")
	}
	if cfg.Reactor.TickMS < 1 || cfg.Reactor.TickMS > 1000 {
		return errors.New("reactor.tick_ms must be between 1 and 1000")
	}
	if cfg.Reactor.BroadcastMS < 0 {
		return errors.New("reactor.broadcast_ms must be >= 0")
	}
	if cfg.Link.ReconnectBackoffMS < 1 {
		return errors.New("link.reconnect_backoff_ms must be >= 1")
	}
	if cfg.Link.ConnectTimeoutMS < 1 {
		return errors.New("link.connect_timeout_ms must be >= 1")
	}
	if cfg.Station.MinElevation < 0 || cfg.Station.MinElevation > 90 {
		return errors.New("station.min_elevation must be between 0 and 90")
	}
	if cfg.Station.Latitude < -90 || cfg.Station.Latitude > 90 {
		return errors.New("station.latitude must be between -90 and 90")
	}
	if cfg.Station.Longitude < -180 || cfg.Station.Longitude > 180 {
		return errors.New("station.longitude must be between -180 and 180")
	}
	if cfg.Track.Enabled {
		if cfg.Track.Telescope == "" {
			return errors.New("track.telescope must name a configured telescope")
		}
		if cfg.Track.NoradID < 1 {
			return errors.New("track.norad_id must be >= 1")
		}
		if cfg.Track.LeadSeconds < 0 {
			return errors.New("track.lead_seconds must be >= 0")
		}
		if cfg.Track.TLEURL == "" {
			return errors.New("track.tle_url must not be empty")
		}
		if cfg.Track.TLERefreshHours < 1 {
			return errors.New("track.tle_refresh_hours must be >= 1")
		}
		if cfg.Track.LookaheadHours < 1 {
			return errors.New("track.lookahead_hours must be >= 1")
		}
		if cfg.Track.DataRoot == "" {
			return errors.New("track.data_root must not be empty")
		}
	}
	return nil
}
