package simplify

import (
	"context"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vjranagit/tsview/pkg/types"
)

const (
	initialTolerance = 0.01
	toleranceFactor  = 10.0
	// maxToleranceSteps bounds the escalation; 0.01 * 10^330 is +Inf
	maxToleranceSteps = 330
)

// Service fits a list of series into a total point budget
type Service struct {
	logger *zap.Logger
}

// NewService creates a new simplification service
func NewService(logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{logger: logger}
}

// Simplify returns series whose combined point count does not exceed
// budget. A budget of 0 or less disables simplification, and series that
// already fit are returned untouched. Otherwise every series gets an equal
// share of the budget and is simplified with an escalating tolerance until
// it fits its share.
func (s *Service) Simplify(ctx context.Context, series []types.TimeSeries, budget int) ([]types.TimeSeries, error) {
	if budget <= 0 || len(series) == 0 {
		return series, nil
	}

	total := 0
	for i := range series {
		total += series[i].Len()
	}
	if total <= budget {
		return series, nil
	}

	started := time.Now()
	share := budget / len(series)
	out := make([]types.TimeSeries, len(series))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range series {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = series[i].CopyMetadata()
			out[i].SetSortedPoints(fitPoints(series[i].Points, share))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	kept := 0
	for i := range out {
		kept += out[i].Len()
	}
	s.logger.Debug("simplified series",
		zap.Int("series", len(series)),
		zap.Int("budget", budget),
		zap.Int("points_before", total),
		zap.Int("points_after", kept),
		zap.Duration("duration", time.Since(started)),
	)

	return out, nil
}

// fitPoints reduces points to at most share elements
func fitPoints(points []types.Point, share int) []types.Point {
	if len(points) <= share {
		return points
	}
	if share < 2 {
		return stride(points, share)
	}

	tolerance := initialTolerance
	for step := 0; step < maxToleranceSteps; step++ {
		simplified := SimplifyPoints(points, tolerance)
		if len(simplified) <= share {
			return simplified
		}
		tolerance *= toleranceFactor
	}
	return stride(points, share)
}

// stride keeps share evenly spaced points, starting with the first and
// ending with the last when share allows it.
func stride(points []types.Point, share int) []types.Point {
	switch {
	case share <= 0:
		return nil
	case share == 1:
		return []types.Point{points[0]}
	case len(points) <= share:
		return points
	}

	out := make([]types.Point, share)
	last := len(points) - 1
	for i := 0; i < share; i++ {
		out[i] = points[i*last/(share-1)]
	}
	return out
}
