// Package smoothing flattens value curves by reducing the points of each
// time bucket to a single value.
package smoothing

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/vjranagit/tsview/pkg/types"
)

// reasonableTicks is the number of buckets AUTO aims for across a series
const reasonableTicks = 300

// minAutoBucket is the smallest bucket AUTO produces (ms)
const minAutoBucket = 100

type reducer func(values []float64) float64

var reducers = map[types.SmoothingType]reducer{
	types.SmoothingAvg:        mean,
	types.SmoothingMin:        minimum,
	types.SmoothingMax:        maximum,
	types.SmoothingSum:        sum,
	types.SmoothingMedian:     median,
	types.SmoothingValueCount: func(values []float64) float64 { return float64(len(values)) },
	types.SmoothingDiff:       sum,
}

// Smooth replaces the points of every series with its smoothed sequence.
// Series are processed in parallel; each task only touches its own series.
func Smooth(ctx context.Context, series []types.TimeSeries, kind types.SmoothingType, granularity types.SmoothingGranularity) error {
	if kind == types.SmoothingNone || len(series) == 0 {
		return nil
	}
	if _, ok := reducers[kind]; !ok {
		return fmt.Errorf("%w: type %s", types.ErrUnsupportedSmoothing, kind)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range series {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			points, err := SmoothPoints(series[i].Points, kind, granularity)
			if err != nil {
				return fmt.Errorf("failed to smooth series %q: %w", series[i].DisplayName(), err)
			}
			series[i].SetSortedPoints(points)
			return nil
		})
	}
	return g.Wait()
}

// SmoothPoints returns the smoothed sequence of points, ordered by bucket
// time. The result never holds more points than the input.
func SmoothPoints(points []types.Point, kind types.SmoothingType, granularity types.SmoothingGranularity) ([]types.Point, error) {
	if kind == types.SmoothingNone || len(points) == 0 {
		return points, nil
	}
	reduce, ok := reducers[kind]
	if !ok {
		return nil, fmt.Errorf("%w: type %s", types.ErrUnsupportedSmoothing, kind)
	}

	buckets, err := bucketize(points, granularity)
	if err != nil {
		return nil, err
	}

	keys := make([]int64, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	out := make([]types.Point, len(keys))
	for i, k := range keys {
		out[i] = types.Point{Timestamp: k, Value: reduce(buckets[k])}
	}

	if kind == types.SmoothingDiff {
		var previous float64
		for i := range out {
			current := out[i].Value
			out[i].Value = current - previous
			previous = current
		}
	}

	return out, nil
}

func bucketize(points []types.Point, granularity types.SmoothingGranularity) (map[int64][]float64, error) {
	switch granularity {
	case types.GranularityOff:
		buckets := make(map[int64][]float64, len(points))
		for _, p := range points {
			buckets[p.Timestamp] = append(buckets[p.Timestamp], p.Value)
		}
		return buckets, nil
	case types.GranularityCalendarMonth:
		return calendarMonthBuckets(points), nil
	}

	divisor, err := resolveDivisor(points, granularity)
	if err != nil {
		return nil, err
	}

	first := points[0].Timestamp
	half := divisor / 2
	buckets := make(map[int64][]float64)
	for _, p := range points {
		slice := (p.Timestamp - first) / divisor
		key := first + half + slice*divisor
		buckets[key] = append(buckets[key], p.Value)
	}
	return buckets, nil
}

func resolveDivisor(points []types.Point, granularity types.SmoothingGranularity) (int64, error) {
	if granularity == types.GranularityAuto {
		start, end := points[0].Timestamp, points[len(points)-1].Timestamp
		if start > end {
			return 0, fmt.Errorf("%w: series runs from %d to %d", types.ErrIllegalTimeRange, start, end)
		}
		return max(minAutoBucket, (end-start)/reasonableTicks), nil
	}
	if d, ok := granularity.Divisor(); ok {
		return d, nil
	}
	return 0, fmt.Errorf("%w: granularity %s", types.ErrUnsupportedSmoothing, granularity)
}

func mean(values []float64) float64 {
	return sum(values) / float64(len(values))
}

func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

func minimum(values []float64) float64 {
	m := math.Inf(1)
	for _, v := range values {
		m = math.Min(m, v)
	}
	return m
}

func maximum(values []float64) float64 {
	m := math.Inf(-1)
	for _, v := range values {
		m = math.Max(m, v)
	}
	return m
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}
