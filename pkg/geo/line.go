package geo

import "github.com/paulmach/orb"

// Length returns the haversine length of ls in meters.
func Length(ls orb.LineString) float64 {
	var total float64
	for i := 1; i < len(ls); i++ {
		total += Haversine(ls[i-1], ls[i])
	}
	return total
}

// Projection is a point snapped onto a line.
type Projection struct {
	Point    orb.Point
	Distance float64 // meters from the query point
	Offset   float64 // meters along the line from its first point
	Segment  int     // index of the segment start
}

// ProjectLine returns the closest projection of p onto ls. ls must have at
// least two points.
func ProjectLine(p orb.Point, ls orb.LineString) Projection {
	best := Projection{Distance: -1}
	var along float64
	for i := 1; i < len(ls); i++ {
		a, b := ls[i-1], ls[i]
		seg := Haversine(a, b)
		d, t := ProjectSegment(p, a, b)
		if best.Distance < 0 || d < best.Distance {
			best = Projection{
				Point:    Interpolate(a, b, t),
				Distance: d,
				Offset:   along + t*seg,
				Segment:  i - 1,
			}
		}
		along += seg
	}
	return best
}

// SubLine returns the part of ls between the offsets from and to, in meters.
// When from > to the result runs backwards. Offsets are clamped to the line.
func SubLine(ls orb.LineString, from, to float64) orb.LineString {
	if len(ls) == 0 {
		return nil
	}
	if from > to {
		out := SubLine(ls, to, from)
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
		return out
	}

	out := orb.LineString{pointAt(ls, from)}
	var along float64
	for i := 1; i < len(ls); i++ {
		along += Haversine(ls[i-1], ls[i])
		if along >= to {
			break
		}
		if along > from {
			out = append(out, ls[i])
		}
	}
	return append(out, pointAt(ls, to))
}

// pointAt returns the point offset meters along ls.
func pointAt(ls orb.LineString, offset float64) orb.Point {
	if offset <= 0 {
		return ls[0]
	}
	var along float64
	for i := 1; i < len(ls); i++ {
		seg := Haversine(ls[i-1], ls[i])
		if along+seg >= offset && seg > 0 {
			return Interpolate(ls[i-1], ls[i], (offset-along)/seg)
		}
		along += seg
	}
	return ls[len(ls)-1]
}
