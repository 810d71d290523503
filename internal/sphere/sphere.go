// Package sphere converts between celestial directions expressed as unit
// vectors and the spherical angles (right ascension, declination) used on the
// wire and in the API. Vectors are gonum r3.Vec values in the J2000 frame.
package sphere

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// AngleScale converts a raw 32-bit wire angle to radians: 2^32 units span a
// full turn. Use it as is; deriving it from degrees drifts against servers.
const AngleScale = math.Pi / 0x80000000

// FromRaDec returns the unit vector for right ascension ra and declination
// dec, both in radians.
func FromRaDec(ra, dec float64) r3.Vec {
	cdec := math.Cos(dec)
	return r3.Vec{
		X: math.Cos(ra) * cdec,
		Y: math.Sin(ra) * cdec,
		Z: math.Sin(dec),
	}
}

// ToRaDec returns the right ascension in (-π, π] and declination in
// [-π/2, π/2] of v. v need not be normalized.
func ToRaDec(v r3.Vec) (ra, dec float64) {
	ra = math.Atan2(v.Y, v.X)
	dec = math.Atan2(v.Z, math.Hypot(v.X, v.Y))
	return ra, dec
}

// FromRaw decodes raw wire angles into a unit vector.
func FromRaw(ra uint32, dec int32) r3.Vec {
	return FromRaDec(float64(ra)*AngleScale, float64(dec)*AngleScale)
}

// ToRaw encodes the direction of v as raw wire angles, rounding to the
// nearest unit. Right ascension wraps modulo 2^32.
func ToRaw(v r3.Vec) (ra uint32, dec int32) {
	r, d := ToRaDec(v)
	ra = uint32(int64(math.Floor(0.5 + r/AngleScale)))
	dec = int32(math.Floor(0.5 + d/AngleScale))
	return ra, dec
}

// Normalize returns v scaled to unit length, or fallback when v has no
// usable length.
func Normalize(v, fallback r3.Vec) r3.Vec {
	n := r3.Norm(v)
	if n <= 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return fallback
	}
	return r3.Scale(1/n, v)
}

// Separation returns the angle in radians between a and b.
func Separation(a, b r3.Vec) float64 {
	// atan2 of |a×b| and a·b stays accurate for tiny angles.
	return math.Atan2(r3.Norm(r3.Cross(a, b)), r3.Dot(a, b))
}

// FormatRaDec renders raw wire angles as "ra = 12h34m56.7890 dec = +12d34m56.789".
// Declinations beyond the poles are folded back with a 12h flip in RA.
func FormatRaDec(raRaw uint32, decRaw int32) string {
	h := raRaw
	d := int64(math.Floor(0.5 + float64(decRaw)*(360*3600*1000/4294967296.0)))
	sign := '+'
	if d >= 0 {
		if d > 90*3600*1000 {
			d = 180*3600*1000 - d
			h += 0x80000000
		}
	} else {
		if d < -90*3600*1000 {
			d = -180*3600*1000 - d
			h += 0x80000000
		}
		d = -d
		sign = '-'
	}

	t := uint64(math.Floor(0.5 + float64(h)*(24*3600*10000/4294967296.0)))
	raFrac := t % 10000
	t /= 10000
	raSec := t % 60
	t /= 60
	raMin := t % 60
	t /= 60
	raHour := t % 24

	decMs := d % 1000
	d /= 1000
	decSec := d % 60
	d /= 60
	decMin := d % 60
	d /= 60

	return fmt.Sprintf("ra = %2dh%02dm%02d.%04d dec = %c%02dd%02dm%02d.%03d",
		raHour, raMin, raSec, raFrac, sign, d, decMin, decSec, decMs)
}

// FormatDirection is FormatRaDec for a vector.
func FormatDirection(v r3.Vec) string {
	ra, dec := ToRaw(v)
	return FormatRaDec(ra, dec)
}
