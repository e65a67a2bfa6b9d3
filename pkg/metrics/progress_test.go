package metrics

import (
	"context"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vjranagit/tsview/pkg/types"
)

func gaugeValue(t *testing.T, g interface{ Write(*dto.Metric) error }) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, g.Write(&m))
	return m.GetGauge().GetValue()
}

func TestProgressSinkPublish(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	sink := NewProgressSink(zap.New(core))

	sink.Publish(context.Background(), types.ProgressEvent{
		Message:         "Processed 4 series with 50 values of 200 total in 12ms",
		Fraction:        1.0,
		TotalSeries:     4,
		TotalValues:     50,
		PointsInProject: 200,
		Duration:        12 * time.Millisecond,
	})

	assert.Equal(t, 4.0, gaugeValue(t, LastRunSeries))
	assert.Equal(t, 0.25, gaugeValue(t, LastRunPointsRatio))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "Processed 4 series with 50 values of 200 total in 12ms", entries[0].Message)
	assert.Equal(t, int64(4), entries[0].ContextMap()["series"])
}

func TestProgressSinkEmptyProject(t *testing.T) {
	sink := NewProgressSink(nil)
	LastRunPointsRatio.Set(0.5)

	sink.Publish(context.Background(), types.ProgressEvent{TotalSeries: 1, TotalValues: 3})

	assert.Equal(t, 0.5, gaugeValue(t, LastRunPointsRatio))
	assert.Equal(t, 1.0, gaugeValue(t, LastRunSeries))
}
