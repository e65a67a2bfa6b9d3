package simplify

import (
	"math"

	"github.com/vjranagit/tsview/pkg/types"
)

// FilterValueChanges drops points repeating the value of the last kept
// point. The final point of the series is always kept.
func FilterValueChanges(points []types.Point) []types.Point {
	if len(points) == 0 {
		return points
	}

	out := make([]types.Point, 0, len(points))
	last := types.Point{Value: math.SmallestNonzeroFloat64}
	lastIndex := -1
	for i, p := range points {
		if p.Value != last.Value {
			out = append(out, p)
			last = p
			lastIndex = i
		}
	}
	if lastIndex != len(points)-1 {
		out = append(out, points[len(points)-1])
	}
	return out
}

// FilterValueChangesAll applies FilterValueChanges to every series in place
func FilterValueChangesAll(series []types.TimeSeries) {
	for i := range series {
		series[i].SetSortedPoints(FilterValueChanges(series[i].Points))
	}
}
