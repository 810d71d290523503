package predict

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const sampleTLE = "ISS (ZARYA)\n1 25544U 98067A   08264.51782528 -.00002182  00000-0 -11606-4 0  2927\n2 25544  51.6416 247.4627 0006703 130.5360 325.0288 15.72125391563537\n"

func tleServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestFreshCacheSkipsNetwork(t *testing.T) {
	srv, hits := tleServer(t, http.StatusOK, "network")
	s := NewTLEStore(srv.URL, t.TempDir(), 24)
	if err := s.writeCache(s.CachePath(), "cached"); err != nil {
		t.Fatal(err)
	}

	raw, err := s.loadOrFetch(context.Background(), false)
	if err != nil || raw != "cached" {
		t.Fatalf("loadOrFetch = %q, %v", raw, err)
	}
	if hits.Load() != 0 {
		t.Error("fresh cache still hit the network")
	}
	if !s.CacheInfo().Fresh {
		t.Error("CacheInfo not fresh")
	}
}

func TestStaleCacheRefetches(t *testing.T) {
	srv, hits := tleServer(t, http.StatusOK, "network")
	s := NewTLEStore(srv.URL, t.TempDir(), 1)
	if err := s.writeCache(s.CachePath(), "cached"); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(s.CachePath(), old, old); err != nil {
		t.Fatal(err)
	}

	raw, err := s.loadOrFetch(context.Background(), false)
	if err != nil || raw != "network" || hits.Load() != 1 {
		t.Fatalf("loadOrFetch = %q, %v, hits %d", raw, err, hits.Load())
	}
	b, _ := os.ReadFile(s.CachePath())
	if string(b) != "network" {
		t.Errorf("cache not rewritten: %q", b)
	}
}

func TestNetworkFailureFallsBackToStale(t *testing.T) {
	srv, _ := tleServer(t, http.StatusServiceUnavailable, "")
	s := NewTLEStore(srv.URL, t.TempDir(), 1)
	if err := s.writeCache(s.CachePath(), "stale"); err != nil {
		t.Fatal(err)
	}

	raw, err := s.loadOrFetch(context.Background(), true)
	if err != nil || raw != "stale" {
		t.Fatalf("loadOrFetch = %q, %v", raw, err)
	}
}

func TestAllSourcesExhausted(t *testing.T) {
	srv, _ := tleServer(t, http.StatusNotFound, "")
	s := NewTLEStore(srv.URL, t.TempDir(), 1)
	_, err := s.loadOrFetch(context.Background(), false)
	if err == nil || !strings.Contains(err.Error(), "exhausted") {
		t.Fatalf("err = %v", err)
	}
	if s.CacheInfo().Exists {
		t.Error("cache exists after failed fetch")
	}
}

func TestSplitTLE(t *testing.T) {
	raw := "\r\nJUNK LINE\n" + sampleTLE + "\n\n" + strings.ReplaceAll(sampleTLE, "ISS (ZARYA)", "SECOND")
	groups := splitTLE(raw)
	if len(groups) != 2 {
		t.Fatalf("groups = %d: %q", len(groups), groups)
	}
	if !strings.HasPrefix(groups[0], "ISS (ZARYA)\n1 25544U") || !strings.HasPrefix(groups[1], "SECOND\n") {
		t.Errorf("groups = %q", groups)
	}
}

func TestParseTLEsNoMatch(t *testing.T) {
	_, err := parseTLEs("nothing useful here", []int{25544})
	if !errors.Is(err, ErrNoTLE) {
		t.Fatalf("err = %v, want ErrNoTLE", err)
	}
}

func TestLocationFromGPSD(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("no loopback: %v", err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 128)
		_, _ = conn.Read(buf)
		fmt.Fprintln(conn, `{"class":"VERSION","release":"3.25"}`)
		fmt.Fprintln(conn, `{"class":"TPV","mode":1}`)
		fmt.Fprintln(conn, `{"class":"TPV","mode":3,"lat":47.25,"lon":-122.5,"altMSL":120.5}`)
	}()

	loc, err := LocationFromGPSD(context.Background(), ln.Addr().String(), 2*time.Second)
	if err != nil {
		t.Fatalf("LocationFromGPSD: %v", err)
	}
	if loc != (Location{Lat: 47.25, Lon: -122.5, Alt: 120.5}) {
		t.Errorf("loc = %+v", loc)
	}
}

func TestLocationFromGPSDNoFix(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("no loopback: %v", err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		fmt.Fprintln(conn, `{"class":"TPV","mode":1}`)
		conn.Close()
	}()

	if _, err := LocationFromGPSD(context.Background(), ln.Addr().String(), time.Second); err == nil {
		t.Fatal("expected an error without a fix")
	}
}
