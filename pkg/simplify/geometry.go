package simplify

import "math"

// Coordinate is a point of a polyline. For series x is the timestamp and
// y is the value.
type Coordinate struct {
	X float64
	Y float64
}

// Distance returns the Euclidean distance between c and o
func (c Coordinate) Distance(o Coordinate) float64 {
	dx := c.X - o.X
	dy := c.Y - o.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Equals2D reports whether both coordinates are identical
func (c Coordinate) Equals2D(o Coordinate) bool {
	return c.X == o.X && c.Y == o.Y
}

// LineSegment is the segment between P0 and P1
type LineSegment struct {
	P0 Coordinate
	P1 Coordinate
}

// Distance returns the distance from p to the segment
func (s LineSegment) Distance(p Coordinate) float64 {
	return DistancePointLine(p, s.P0, s.P1)
}

// DistancePointLine computes the distance from p to the segment [a, b].
// It uses the projection factor r of p onto the line and, for projections
// inside the segment, the signed area divided by the squared length.
func DistancePointLine(p, a, b Coordinate) float64 {
	if a.Equals2D(b) {
		return p.Distance(a)
	}

	len2 := (b.X-a.X)*(b.X-a.X) + (b.Y-a.Y)*(b.Y-a.Y)
	r := ((p.X-a.X)*(b.X-a.X) + (p.Y-a.Y)*(b.Y-a.Y)) / len2

	if r <= 0.0 {
		return p.Distance(a)
	}
	if r >= 1.0 {
		return p.Distance(b)
	}

	s := ((a.Y-p.Y)*(b.X-a.X) - (a.X-p.X)*(b.Y-a.Y)) / len2
	return math.Abs(s) * math.Sqrt(len2)
}
