package predict

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/akhenakh/sgp4"
)

const tleCacheFile = "tle.txt"

// ErrNoTLE means none of the requested satellites appear in the TLE data.
var ErrNoTLE = errors.New("predict: no matching TLE")

// TLEStore fetches and caches Two-Line Element sets. It uses a tiered
// fallback: fresh disk cache, network fetch, then stale disk cache.
type TLEStore struct {
	url      string
	dataRoot string
	maxAge   time.Duration
	client   *http.Client
}

// NewTLEStore returns a store that fetches TLEs from the given URL and
// caches them under dataRoot.
func NewTLEStore(tleURL, dataRoot string, refreshHours int) *TLEStore {
	return &TLEStore{
		url:      tleURL,
		dataRoot: dataRoot,
		maxAge:   time.Duration(refreshHours) * time.Hour,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// CachePath is where fetched TLE text is kept.
func (s *TLEStore) CachePath() string { return filepath.Join(s.dataRoot, tleCacheFile) }

// CacheInfo describes the on-disk cache.
type CacheInfo struct {
	Path    string    `json:"path"`
	Exists  bool      `json:"exists"`
	ModTime time.Time `json:"mod_time,omitzero"`
	Fresh   bool      `json:"fresh"`
}

func (s *TLEStore) CacheInfo() CacheInfo {
	info := CacheInfo{Path: s.CachePath()}
	st, err := os.Stat(info.Path)
	if err != nil {
		return info
	}
	info.Exists = true
	info.ModTime = st.ModTime().UTC()
	info.Fresh = time.Since(st.ModTime()) < s.maxAge
	return info
}

// Fetch returns TLEs for the wanted NORAD IDs.
func (s *TLEStore) Fetch(ctx context.Context, wanted ...int) (map[int]*sgp4.TLE, error) {
	raw, err := s.loadOrFetch(ctx, false)
	if err != nil {
		return nil, err
	}
	return parseTLEs(raw, wanted)
}

// ForceRefresh skips the fresh-cache tier.
func (s *TLEStore) ForceRefresh(ctx context.Context, wanted ...int) (map[int]*sgp4.TLE, error) {
	raw, err := s.loadOrFetch(ctx, true)
	if err != nil {
		return nil, err
	}
	return parseTLEs(raw, wanted)
}

// loadOrFetch walks fresh cache -> network -> stale cache.
func (s *TLEStore) loadOrFetch(ctx context.Context, force bool) (string, error) {
	path := s.CachePath()

	if !force {
		info, err := os.Stat(path)
		if err == nil && time.Since(info.ModTime()) < s.maxAge {
			if b, readErr := os.ReadFile(path); readErr == nil && len(b) > 0 {
				return string(b), nil
			}
		}
	}

	body, fetchErr := s.fetchFromNetwork(ctx)
	if fetchErr == nil {
		// Cache write failure is non-fatal; we already have the data in memory.
		_ = s.writeCache(path, body)
		return body, nil
	}

	if b, readErr := os.ReadFile(path); readErr == nil && len(b) > 0 {
		return string(b), nil
	}

	return "", fmt.Errorf("all TLE sources exhausted: %w", fetchErr)
}

func (s *TLEStore) fetchFromNetwork(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return "", err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("TLE fetch returned HTTP %d", resp.StatusCode)
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if len(strings.TrimSpace(string(b))) == 0 {
		return "", errors.New("TLE fetch returned an empty body")
	}
	return string(b), nil
}

// writeCache writes through a temp file and rename so readers never see a
// half-written file.
func (s *TLEStore) writeCache(path, data string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "tle-*.tmp")
	if err != nil {
		return err
	}

	if _, err := tmp.WriteString(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	return os.Rename(tmp.Name(), path)
}

// splitTLE groups 3-line (name, line 1, line 2) records. Blank lines are
// dropped and a record whose data lines do not start with "1 " and "2 " is
// skipped so one bad entry does not shift every later group.
func splitTLE(raw string) []string {
	var lines []string
	for _, l := range strings.Split(raw, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}

	var groups []string
	for i := 0; i+2 < len(lines); {
		if !strings.HasPrefix(lines[i+1], "1 ") || !strings.HasPrefix(lines[i+2], "2 ") {
			i++
			continue
		}
		groups = append(groups, lines[i]+"\n"+lines[i+1]+"\n"+lines[i+2])
		i += 3
	}
	return groups
}

func parseTLEs(raw string, wanted []int) (map[int]*sgp4.TLE, error) {
	want := make(map[int]bool, len(wanted))
	for _, id := range wanted {
		want[id] = true
	}

	result := make(map[int]*sgp4.TLE)
	groups := splitTLE(raw)
	for _, g := range groups {
		tle, err := sgp4.ParseTLE(g)
		if err != nil {
			continue
		}
		if len(want) == 0 || want[tle.SatelliteNumber] {
			result[tle.SatelliteNumber] = tle
		}
	}

	if len(result) == 0 {
		return nil, fmt.Errorf("%d records searched for %v: %w", len(groups), wanted, ErrNoTLE)
	}
	return result, nil
}
