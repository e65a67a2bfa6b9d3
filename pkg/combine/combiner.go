package combine

import (
	"context"
	"fmt"
	"sort"

	"github.com/vjranagit/tsview/pkg/types"
)

// Combiner merges the series of one logical metric into a single series.
// It is a tagged value: the aggregation decides the bucket key and the
// accumulate operation.
type Combiner struct {
	mode        types.CombineMode
	aggregation types.Aggregation
}

// NewCombiner creates a combiner for a SUM_* or AVG_* mode
func NewCombiner(mode types.CombineMode) (*Combiner, error) {
	agg := mode.Aggregation()
	if agg != types.AggregationSum && agg != types.AggregationAvg {
		return nil, fmt.Errorf("%w: %s cannot combine series", types.ErrUnsupportedCombineMode, mode)
	}
	return &Combiner{mode: mode, aggregation: agg}, nil
}

// Combine merges series into one series named name. Labels on which the
// inputs disagree become "*".
func (c *Combiner) Combine(ctx context.Context, name string, series []types.TimeSeries) (types.TimeSeries, error) {
	if len(series) == 0 {
		return types.TimeSeries{}, fmt.Errorf("%w: no series to combine", types.ErrEmptyInput)
	}

	granularity, err := ResolveGranularity(ctx, c.mode, series)
	if err != nil {
		return types.TimeSeries{}, err
	}

	combined := series[0].CopyMetadata()
	for i := 1; i < len(series); i++ {
		combined.MergeMetadata(&series[i])
	}
	if name != "" && name != types.Wildcard {
		combined.MetricName = name
	}

	// buckets owns every accumulated point until the output pass below
	buckets := make(map[int64]*types.Point)
	for i := range series {
		for _, p := range series[i].Points {
			key := c.bucketKey(p.Timestamp, granularity)
			if acc, ok := buckets[key]; ok {
				c.accumulate(acc, p.Value)
				continue
			}
			acc := types.NewPoint(key, p.Value)
			buckets[key] = &acc
		}
	}

	keys := make([]int64, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	points := make([]types.Point, len(keys))
	for i, k := range keys {
		points[i] = types.Point{Timestamp: k, Value: buckets[k].Value}
	}
	combined.SetSortedPoints(points)

	return combined, nil
}

// bucketKey anchors SUM buckets at the earliest timestamp and AVG buckets
// at epoch zero. The two alignments differ on purpose.
func (c *Combiner) bucketKey(ts int64, g types.GranularityResult) int64 {
	switch c.aggregation {
	case types.AggregationSum:
		return g.SmallestTimestamp + g.BucketSize*floorDiv(ts-g.SmallestTimestamp, g.BucketSize)
	default:
		return ts - ts%g.BucketSize
	}
}

func (c *Combiner) accumulate(p *types.Point, v float64) {
	switch c.aggregation {
	case types.AggregationSum:
		p.AccumulateSum(v)
	default:
		p.AccumulateAverage(v)
	}
}

// Combine merges series with mode. NONE and CONCAT are rejected.
func Combine(ctx context.Context, name string, mode types.CombineMode, series []types.TimeSeries) (types.TimeSeries, error) {
	c, err := NewCombiner(mode)
	if err != nil {
		return types.TimeSeries{}, err
	}
	return c.Combine(ctx, name, series)
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
