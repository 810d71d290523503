package sphere

import (
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// Site is an observer location on the ground.
type Site struct {
	Lat float64 // degrees North
	Lon float64 // degrees East
	Alt float64 // meters above sea level
}

const deg = math.Pi / 180

// SiderealTime returns the local mean sidereal time at lon (degrees East) in
// radians, in [0, 2π).
func SiderealTime(t time.Time, lon float64) float64 {
	jd := float64(t.UnixNano())/86400e9 + 2440587.5
	gmst := 280.46061837 + 360.98564736629*(jd-2451545.0)
	lst := math.Mod((gmst+lon)*deg, 2*math.Pi)
	if lst < 0 {
		lst += 2 * math.Pi
	}
	return lst
}

// FromHorizontal converts an azimuth (degrees, North through East) and
// elevation (degrees) seen from site at time t into an equatorial unit vector.
// Precession and nutation are ignored, which keeps the result within a
// fraction of a degree of J2000 for contemporary dates.
func FromHorizontal(az, el float64, site Site, t time.Time) r3.Vec {
	a, e, lat := az*deg, el*deg, site.Lat*deg

	sinDec := math.Sin(e)*math.Sin(lat) + math.Cos(e)*math.Cos(lat)*math.Cos(a)
	dec := math.Asin(math.Max(-1, math.Min(1, sinDec)))

	ha := math.Atan2(
		-math.Sin(a)*math.Cos(e),
		math.Cos(lat)*math.Sin(e)-math.Sin(lat)*math.Cos(e)*math.Cos(a),
	)

	return FromRaDec(SiderealTime(t, site.Lon)-ha, dec)
}
