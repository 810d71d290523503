package sphere

import (
	"math"
	"strings"
	"testing"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

func near(a, b r3.Vec, tol float64) bool {
	return r3.Norm(r3.Sub(a, b)) <= tol
}

func TestFromRawQuarterTurn(t *testing.T) {
	// RA = π/2 is a quarter of 2^32.
	v := FromRaw(0x40000000, 0)
	if !near(v, r3.Vec{Y: 1}, 1e-12) {
		t.Errorf("FromRaw(π/2, 0) = %v, want (0,1,0)", v)
	}
}

func TestRawRoundTrip(t *testing.T) {
	cases := []r3.Vec{
		{X: 1},
		{Y: 1},
		{X: -1, Y: -0.001},
		{X: 0.3, Y: -0.4, Z: 0.866},
		{X: 0.1, Y: 0.1, Z: -0.99},
	}
	for _, c := range cases {
		want := Normalize(c, r3.Vec{})
		ra, dec := ToRaw(want)
		got := FromRaw(ra, dec)
		if sep := Separation(got, want); sep > 2*AngleScale {
			t.Errorf("round trip of %v drifted by %g rad", c, sep)
		}
	}
}

func TestToRawWrapsNegativeRA(t *testing.T) {
	ra, dec := ToRaw(FromRaDec(-math.Pi/2, 0))
	if ra != 0xC0000000 {
		t.Errorf("ra = %#x, want 0xc0000000", ra)
	}
	if dec != 0 {
		t.Errorf("dec = %d, want 0", dec)
	}
}

func TestNormalizeFallback(t *testing.T) {
	fb := r3.Vec{Z: 1}
	if got := Normalize(r3.Vec{}, fb); got != fb {
		t.Errorf("Normalize(0) = %v, want fallback", got)
	}
	if got := Normalize(r3.Vec{X: 3, Y: 4}, fb); !near(got, r3.Vec{X: 0.6, Y: 0.8}, 1e-15) {
		t.Errorf("Normalize = %v", got)
	}
}

func TestFormatRaDec(t *testing.T) {
	got := FormatRaDec(0x40000000, 0)
	if !strings.HasPrefix(got, "ra =  6h00m00.0000 dec = +00d00m00.000") {
		t.Errorf("FormatRaDec = %q", got)
	}
	got = FormatRaDec(0, -0x20000000) // -45°
	if !strings.Contains(got, "dec = -45d00m00.000") {
		t.Errorf("FormatRaDec = %q", got)
	}
}

func TestFromHorizontalZenith(t *testing.T) {
	site := Site{Lat: 40, Lon: -105}
	now := time.Date(2026, 3, 1, 4, 0, 0, 0, time.UTC)
	v := FromHorizontal(123, 90, site, now)
	ra, dec := ToRaDec(v)
	if math.Abs(dec-40*deg) > 1e-9 {
		t.Errorf("zenith dec = %g deg, want 40", dec/deg)
	}
	lst := SiderealTime(now, site.Lon)
	if d := math.Remainder(ra-lst, 2*math.Pi); math.Abs(d) > 1e-6 {
		t.Errorf("zenith ra differs from LST by %g rad", d)
	}
}
