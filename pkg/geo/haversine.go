// Package geo holds the geographic helpers used around the routing core:
// distances, projections and sub-lines of road geometry.
package geo

import (
	"math"

	"github.com/paulmach/orb"
)

const earthRadiusMeters = 6_371_000.0

// degToMeters converts degree-scaled equirectangular distances to meters.
const degToMeters = math.Pi / 180 * earthRadiusMeters

// Haversine returns the great-circle distance in meters between two points.
func Haversine(a, b orb.Point) float64 {
	lat1r := a.Lat() * math.Pi / 180
	lat2r := b.Lat() * math.Pi / 180
	dLat := (b.Lat() - a.Lat()) * math.Pi / 180
	dLon := (b.Lon() - a.Lon()) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1r)*math.Cos(lat2r)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Equirectangular returns an approximate distance in meters. It is only
// meant for short distances and comparisons.
func Equirectangular(a, b orb.Point) float64 {
	x := (b.Lon() - a.Lon()) * math.Cos((a.Lat()+b.Lat())/2*math.Pi/180) * math.Pi / 180
	y := (b.Lat() - a.Lat()) * math.Pi / 180
	return math.Sqrt(x*x+y*y) * earthRadiusMeters
}

// MetersToDegrees returns a latitude span covering at least m meters.
func MetersToDegrees(m float64) float64 { return m / degToMeters }

// ProjectSegment projects p onto segment ab. It returns the distance in
// meters from p to the projection and the ratio along ab in [0, 1].
func ProjectSegment(p, a, b orb.Point) (dist, ratio float64) {
	cosLat := math.Cos((a.Lat() + b.Lat()) / 2 * math.Pi / 180)

	ax, ay := a.Lon()*cosLat, a.Lat()
	bx, by := b.Lon()*cosLat, b.Lat()
	px, py := p.Lon()*cosLat, p.Lat()

	// Compare in degrees: cosLat noise can make equal points differ.
	if a == b {
		ex, ey := px-ax, py-ay
		return math.Sqrt(ex*ex+ey*ey) * degToMeters, 0
	}

	dx, dy := bx-ax, by-ay
	var t float64
	if lenSq := dx*dx + dy*dy; lenSq > 0 {
		t = ((px-ax)*dx + (py-ay)*dy) / lenSq
		t = math.Max(0, math.Min(1, t))
	}
	ex := px - (ax + t*dx)
	ey := py - (ay + t*dy)
	return math.Sqrt(ex*ex+ey*ey) * degToMeters, t
}

// Interpolate returns the point at ratio t along ab.
func Interpolate(a, b orb.Point, t float64) orb.Point {
	return orb.Point{a.Lon() + t*(b.Lon()-a.Lon()), a.Lat() + t*(b.Lat()-a.Lat())}
}
