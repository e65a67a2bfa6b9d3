package metrics

import (
	"context"

	"go.uber.org/zap"

	"github.com/vjranagit/tsview/pkg/types"
)

// ProgressSink publishes completion events to the logs and gauges
type ProgressSink struct {
	logger *zap.Logger
}

// NewProgressSink creates a new progress sink
func NewProgressSink(logger *zap.Logger) *ProgressSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressSink{logger: logger}
}

// Publish records a progress event
func (p *ProgressSink) Publish(_ context.Context, event types.ProgressEvent) {
	LastRunSeries.Set(float64(event.TotalSeries))
	if event.PointsInProject > 0 {
		LastRunPointsRatio.Set(float64(event.TotalValues) / float64(event.PointsInProject))
	}

	p.logger.Info(event.Message,
		zap.Float64("fraction", event.Fraction),
		zap.Int64("series", event.TotalSeries),
		zap.Int64("values", event.TotalValues),
		zap.Int64("points_in_project", event.PointsInProject),
		zap.Duration("duration", event.Duration),
	)
}
