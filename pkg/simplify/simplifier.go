// Package simplify reduces the number of points of a series while keeping
// its visual shape.
package simplify

import (
	"errors"

	"github.com/vjranagit/tsview/pkg/types"
)

// ErrEmptyLine is returned when simplifying a line without points
var ErrEmptyLine = errors.New("cannot simplify an empty line")

// Simplify applies Douglas-Peucker to points. The result is a subsequence
// of points that always keeps the first and the last element.
func Simplify(points []Coordinate, tolerance float64) ([]Coordinate, error) {
	if len(points) == 0 {
		return nil, ErrEmptyLine
	}

	keep := keepMask(points, tolerance)
	out := make([]Coordinate, 0, len(points))
	for i, p := range points {
		if keep[i] {
			out = append(out, p)
		}
	}
	return out, nil
}

// SimplifyPoints applies Simplify to series points, mapping timestamps to x
// and values to y. The kept points are returned unchanged.
func SimplifyPoints(points []types.Point, tolerance float64) []types.Point {
	if len(points) == 0 {
		return points
	}

	coords := make([]Coordinate, len(points))
	for i, p := range points {
		coords[i] = Coordinate{X: float64(p.Timestamp), Y: p.Value}
	}

	keep := keepMask(coords, tolerance)
	out := make([]types.Point, 0, len(points))
	for i, p := range points {
		if keep[i] {
			out = append(out, p)
		}
	}
	return out
}

func keepMask(points []Coordinate, tolerance float64) []bool {
	keep := make([]bool, len(points))
	for i := range keep {
		keep[i] = true
	}
	simplifySection(points, keep, 0, len(points)-1, tolerance)
	return keep
}

// simplifySection drops the interior of [i, j] when no point deviates more
// than tolerance from the segment, otherwise it splits at the farthest point.
// A flag set to false is never reset.
func simplifySection(points []Coordinate, keep []bool, i, j int, tolerance float64) {
	if i+1 >= j {
		return
	}

	seg := LineSegment{P0: points[i], P1: points[j]}
	maxDistance := -1.0
	maxIndex := i
	for k := i + 1; k < j; k++ {
		if d := seg.Distance(points[k]); d > maxDistance {
			maxDistance = d
			maxIndex = k
		}
	}

	// maxIndex stays at i when every distance is NaN
	if maxDistance <= tolerance || maxIndex == i {
		for k := i + 1; k < j; k++ {
			keep[k] = false
		}
		return
	}

	simplifySection(points, keep, i, maxIndex, tolerance)
	simplifySection(points, keep, maxIndex, j, tolerance)
}
