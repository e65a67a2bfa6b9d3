// Package query drives the cursor based fetch of series and turns the
// result into a bounded set of chart-ready series.
package query

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/vjranagit/tsview/pkg/combine"
	"github.com/vjranagit/tsview/pkg/metrics"
	"github.com/vjranagit/tsview/pkg/simplify"
	"github.com/vjranagit/tsview/pkg/smoothing"
	"github.com/vjranagit/tsview/pkg/types"
)

var tracer = otel.Tracer("tsview.query")

// DataAccess is the cursor based source of series
type DataAccess interface {
	// OpenQuery prepares a query. transitiveLimit caps the number of
	// series the source may fan out to.
	OpenQuery(ctx context.Context, filter types.FilterParams, transitiveLimit int) (*types.Query, error)

	// FetchPage returns the page at cursorID. The first call uses
	// types.InitialCursorID.
	FetchPage(ctx context.Context, q *types.Query, cursorID string) (*types.Page, error)

	// AmountMeasuredPointsInProject returns the number of points stored for a project
	AmountMeasuredPointsInProject(ctx context.Context, project string) (int64, error)
}

// ProgressSink receives the completion event of a run
type ProgressSink interface {
	Publish(ctx context.Context, event types.ProgressEvent)
}

// Service computes chart-ready series from a data source
type Service struct {
	data       DataAccess
	progress   ProgressSink
	simplifier *simplify.Service
	logger     *zap.Logger
}

// NewService creates a new query service
func NewService(data DataAccess, progress ProgressSink, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		data:       data,
		progress:   progress,
		simplifier: simplify.NewService(logger.Named("simplify")),
		logger:     logger,
	}
}

// fetchResult is the grouped outcome of a complete cursor walk
type fetchResult struct {
	series      []types.TimeSeries
	totalHits   int64
	totalValues int64
}

// GetComputedTimeSeries fetches every series matching filter, checks the
// series limit and then combines, smooths and simplifies them. Data source
// failures come back as an ERROR response; malformed series or parameters
// are returned as an error.
func (s *Service) GetComputedTimeSeries(ctx context.Context, filter types.FilterParams, compute types.ComputeParams, maxMetricLimit int) (*Response, error) {
	started := time.Now()
	ctx, span := tracer.Start(ctx, "query.GetComputedTimeSeries",
		trace.WithAttributes(
			attribute.String("project", filter.Project.Name),
			attribute.String("combine_mode", compute.CombineMode.String()),
			attribute.Int("max_metric_limit", maxMetricLimit),
		),
	)
	defer span.End()

	resp, err := s.compute(ctx, filter, compute, maxMetricLimit)
	if err != nil {
		span.RecordError(err)
		metrics.QueriesTotal.WithLabelValues("FAILED").Inc()
		return nil, err
	}

	span.SetAttributes(
		attribute.String("state", resp.State.String()),
		attribute.Int64("total_series", resp.TotalSeries),
		attribute.Int("output_series", len(resp.Series)),
	)
	metrics.QueriesTotal.WithLabelValues(resp.State.String()).Inc()
	metrics.QueryDuration.WithLabelValues(compute.CombineMode.String()).Observe(time.Since(started).Seconds())

	return resp, nil
}

func (s *Service) compute(ctx context.Context, filter types.FilterParams, compute types.ComputeParams, maxMetricLimit int) (*Response, error) {
	started := time.Now()
	limit := maxMetricLimit
	if limit <= 0 {
		limit = math.MaxInt
	}

	transitiveLimit := math.MaxInt
	if filter.Project.SplitSource {
		transitiveLimit = limit
	}

	fetched, resp := s.fetch(ctx, filter, compute.CombineMode, transitiveLimit, limit)
	if resp != nil {
		return resp, nil
	}

	mode := compute.CombineMode
	groups := int64(len(fetched.series))
	if (!mode.MergesSeries() && len(fetched.series) > limit) ||
		(mode == types.CombineConcat && len(fetched.series) > limit) {
		s.logger.Info("series limit exceeded",
			zap.String("project", filter.Project.Name),
			zap.Int64("series", groups),
			zap.Int("limit", limit),
		)
		return &Response{
			State:          StateLimitExceeded,
			TotalSeries:    groups,
			MaxSeriesLimit: limit,
		}, nil
	}

	series := fetched.series
	if compute.Threshold == 0 {
		simplify.FilterValueChangesAll(series)
	}

	agg := mode.Aggregation()
	if len(series) > 0 && (agg == types.AggregationSum || agg == types.AggregationAvg) {
		combineStarted := time.Now()
		combined, err := combine.Combine(ctx, filter.MetricName, mode, series)
		if err != nil {
			return s.pipelineFailed(ctx, fmt.Errorf("failed to combine series: %w", err), limit)
		}
		s.logger.Debug("combined series",
			zap.String("mode", mode.String()),
			zap.Int("inputs", len(series)),
			zap.Int("points", combined.Len()),
			zap.Duration("duration", time.Since(combineStarted)),
		)
		series = []types.TimeSeries{combined}
	}

	if compute.SmoothingType != types.SmoothingNone {
		if err := smoothing.Smooth(ctx, series, compute.SmoothingType, compute.SmoothingGranularity); err != nil {
			return s.pipelineFailed(ctx, fmt.Errorf("failed to smooth series: %w", err), limit)
		}
	}

	series, err := s.simplifier.Simplify(ctx, series, compute.Threshold)
	if err != nil {
		return s.pipelineFailed(ctx, fmt.Errorf("failed to simplify series: %w", err), limit)
	}

	var emitted int64
	for i := range series {
		emitted += int64(series[i].Len())
	}
	metrics.PointsEmitted.Add(float64(emitted))

	pointsInProject, err := s.data.AmountMeasuredPointsInProject(ctx, filter.Project.Name)
	if err != nil {
		s.logger.Warn("failed to count points in project",
			zap.String("project", filter.Project.Name),
			zap.Error(err),
		)
		pointsInProject = 0
	}

	elapsed := time.Since(started)
	if s.progress != nil {
		s.progress.Publish(ctx, types.ProgressEvent{
			Message: fmt.Sprintf("Processed %d series with %d values of %d total in %dms",
				fetched.totalHits, fetched.totalValues, pointsInProject, elapsed.Milliseconds()),
			Fraction:        1.0,
			TotalSeries:     fetched.totalHits,
			TotalValues:     fetched.totalValues,
			PointsInProject: pointsInProject,
			Duration:        elapsed,
		})
	}

	return &Response{
		State:           StateReady,
		Series:          series,
		TotalSeries:     fetched.totalHits,
		MaxSeriesLimit:  limit,
		TotalValues:     fetched.totalValues,
		PointsInProject: pointsInProject,
	}, nil
}

// fetch walks the cursor page by page and groups fragments of the same
// logical series. A non-nil Response ends the run early.
func (s *Service) fetch(ctx context.Context, filter types.FilterParams, mode types.CombineMode, transitiveLimit, limit int) (*fetchResult, *Response) {
	q, err := s.data.OpenQuery(ctx, filter, transitiveLimit)
	if err != nil {
		return nil, s.failed(ctx, fmt.Errorf("failed to open query: %w", err), limit)
	}

	concat := mode == types.CombineConcat
	index := make(map[string]int)
	result := &fetchResult{}
	cursorID := types.InitialCursorID

	for {
		page, err := s.data.FetchPage(ctx, q, cursorID)
		if err != nil {
			return nil, s.failed(ctx, fmt.Errorf("failed to fetch page: %w", err), limit)
		}
		metrics.PagesFetched.Inc()

		// a page fetched after cancellation is never grouped
		if err := ctx.Err(); err != nil {
			s.logger.Info("query cancelled", zap.String("query", q.ID), zap.Error(err))
			return nil, s.aborted(err, limit)
		}

		if page.Aborted {
			return nil, &Response{
				State:          StateAborted,
				TotalSeries:    page.TotalHits,
				MaxSeriesLimit: limit,
			}
		}

		consumed := page.Consumed || page.CursorID == ""
		if consumed && len(page.Series) == 0 {
			break
		}

		metrics.SeriesFetched.Add(float64(len(page.Series)))
		for i := range page.Series {
			fragment := &page.Series[i]
			result.totalValues += int64(fragment.Len())

			key := fragment.GroupingKey(concat)
			if pos, ok := index[key]; ok {
				result.series[pos].AddPoints(fragment.Points)
				continue
			}
			entry := fragment.CopyMetadata()
			entry.SetSortedPoints(append([]types.Point(nil), fragment.Points...))
			if concat {
				entry.Measurement = types.Wildcard
			}
			index[key] = len(result.series)
			result.series = append(result.series, entry)
		}
		result.totalHits = page.TotalHits

		if consumed {
			break
		}
		cursorID = page.CursorID
	}

	if result.totalHits < int64(len(result.series)) {
		result.totalHits = int64(len(result.series))
	}
	return result, nil
}

// pipelineFailed turns a combine, smoothing or simplification failure caused
// by cancellation into an ABORTED response. Any other failure is a contract
// violation and is returned as an error.
func (s *Service) pipelineFailed(ctx context.Context, err error, limit int) (*Response, error) {
	ctxErr := ctx.Err()
	if ctxErr == nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		ctxErr = context.Cause(ctx)
		if ctxErr == nil {
			ctxErr = context.Canceled
		}
	}
	if ctxErr != nil {
		s.logger.Info("query cancelled during computation", zap.Error(err))
		return s.aborted(ctxErr, limit), nil
	}
	return nil, err
}

// aborted reports a run stopped by cancellation. It never carries series.
func (s *Service) aborted(err error, limit int) *Response {
	return &Response{State: StateAborted, MaxSeriesLimit: limit, Err: err}
}

// failed converts a data source failure into an ERROR response. A failure
// caused by cancellation is reported as ABORTED.
func (s *Service) failed(ctx context.Context, err error, limit int) *Response {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return s.aborted(ctxErr, limit)
	}
	s.logger.Error("data source failed", zap.Error(err))
	return &Response{State: StateError, MaxSeriesLimit: limit, Err: err}
}
