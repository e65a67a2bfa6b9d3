package combine

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/vjranagit/tsview/pkg/types"
)

// seriesGranularity is the contribution of a single series to the analysis
type seriesGranularity struct {
	start    int64
	minDelta int64
	ok       bool
}

// AnalyzeGranularity finds the earliest timestamp and the smallest sampling
// interval of a batch of series. Each series is scanned in its own task and
// the local results are folded afterwards.
func AnalyzeGranularity(ctx context.Context, series []types.TimeSeries) (types.GranularityResult, error) {
	locals := make([]seriesGranularity, len(series))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range series {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			local, err := analyzeSeries(&series[i])
			if err != nil {
				return err
			}
			locals[i] = local
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return types.GranularityResult{}, err
	}

	earliest, smallest := int64(math.MaxInt64), int64(math.MaxInt64)
	found := false
	for _, local := range locals {
		if !local.ok {
			continue
		}
		found = true
		earliest = min(earliest, local.start)
		smallest = min(smallest, local.minDelta)
	}
	if !found {
		return types.NewGranularityResult(0, 1), nil
	}
	return types.NewGranularityResult(earliest, smallest), nil
}

// analyzeSeries walks consecutive points of s. The first delta is measured
// from timestamp 0.
func analyzeSeries(s *types.TimeSeries) (seriesGranularity, error) {
	if s.Len() == 0 {
		return seriesGranularity{}, nil
	}

	start, end := s.Start(), s.End()
	switch {
	case start <= 0:
		return seriesGranularity{}, fmt.Errorf("%w: series %q starts at %d", types.ErrIllegalTimeRange, s.DisplayName(), start)
	case end < start:
		return seriesGranularity{}, fmt.Errorf("%w: series %q ends at %d before its start %d", types.ErrIllegalTimeRange, s.DisplayName(), end, start)
	case end > types.MaxTimestamp:
		return seriesGranularity{}, fmt.Errorf("%w: series %q ends at %d", types.ErrTimestampOutOfRange, s.DisplayName(), end)
	case start == end:
		if s.Len() > 1 {
			return seriesGranularity{}, fmt.Errorf("%w: series %q holds %d points at a single timestamp", types.ErrIllegalTimeRange, s.DisplayName(), s.Len())
		}
		return seriesGranularity{}, nil
	}

	var prev int64
	minDelta := int64(math.MaxInt64)
	for _, p := range s.Points {
		if delta := p.Timestamp - prev; delta >= 0 && delta < minDelta {
			minDelta = delta
		}
		prev = p.Timestamp
	}

	return seriesGranularity{start: start, minDelta: minDelta, ok: true}, nil
}

// ResolveGranularity returns the bucket layout used to combine series with mode
func ResolveGranularity(ctx context.Context, mode types.CombineMode, series []types.TimeSeries) (types.GranularityResult, error) {
	analyzed, err := AnalyzeGranularity(ctx, series)
	if err != nil {
		return types.GranularityResult{}, fmt.Errorf("failed to analyze granularity: %w", err)
	}
	if preset, ok := mode.BucketPreset(); ok {
		return types.NewGranularityResult(analyzed.SmallestTimestamp, preset), nil
	}
	return analyzed, nil
}
