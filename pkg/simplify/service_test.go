package simplify

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vjranagit/tsview/pkg/types"
)

func wave(name string, n int) types.TimeSeries {
	s := types.TimeSeries{Project: "p", MetricName: name}
	for i := 0; i < n; i++ {
		s.Points = append(s.Points, types.Point{
			Timestamp: int64(i+1) * 1000,
			Value:     math.Sin(float64(i)/7)*50 + float64(i%13),
		})
	}
	return s
}

func totalPoints(series []types.TimeSeries) int {
	total := 0
	for i := range series {
		total += series[i].Len()
	}
	return total
}

func TestServiceBudgetInvariant(t *testing.T) {
	svc := NewService(nil)
	input := []types.TimeSeries{wave("a", 5000), wave("b", 3000), wave("c", 40)}

	for _, budget := range []int{3, 10, 100, 1000, 5000} {
		out, err := svc.Simplify(context.Background(), input, budget)
		require.NoError(t, err)
		require.Len(t, out, len(input))
		assert.LessOrEqual(t, totalPoints(out), budget, "budget %d", budget)
	}
}

func TestServiceKeepsSeriesWithinShareIntact(t *testing.T) {
	svc := NewService(nil)
	input := []types.TimeSeries{wave("big", 5000), wave("small", 40)}

	out, err := svc.Simplify(context.Background(), input, 1000)
	require.NoError(t, err)

	assert.Equal(t, input[1].Points, out[1].Points)
	assert.LessOrEqual(t, out[0].Len(), 500)
	assert.Equal(t, input[0].Points[0], out[0].Points[0])
	assert.Equal(t, input[0].Points[4999], out[0].Points[out[0].Len()-1])
	assert.Equal(t, "big", out[0].MetricName)
}

func TestServiceUnderBudgetIsUntouched(t *testing.T) {
	svc := NewService(nil)
	input := []types.TimeSeries{wave("a", 100), wave("b", 100)}

	out, err := svc.Simplify(context.Background(), input, 200)
	require.NoError(t, err)
	assert.Equal(t, input, out)
}

func TestServiceZeroBudgetDisables(t *testing.T) {
	svc := NewService(nil)
	input := []types.TimeSeries{wave("a", 1000)}

	out, err := svc.Simplify(context.Background(), input, 0)
	require.NoError(t, err)
	assert.Equal(t, input, out)
}

func TestServiceCollinearSeriesCollapses(t *testing.T) {
	s := types.TimeSeries{MetricName: "linear"}
	for i := 0; i < 10000; i++ {
		s.Points = append(s.Points, types.Point{Timestamp: int64(i+1) * 1000, Value: 5})
	}

	out, err := NewService(nil).Simplify(context.Background(), []types.TimeSeries{s}, 100)
	require.NoError(t, err)

	require.Len(t, out[0].Points, 2)
	assert.Equal(t, s.Points[0], out[0].Points[0])
	assert.Equal(t, s.Points[9999], out[0].Points[1])
}

func TestServiceCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewService(nil).Simplify(ctx, []types.TimeSeries{wave("a", 1000)}, 10)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStride(t *testing.T) {
	points := wave("a", 10).Points

	assert.Nil(t, stride(points, 0))
	assert.Equal(t, []types.Point{points[0]}, stride(points, 1))
	assert.Equal(t, []types.Point{points[0], points[9]}, stride(points, 2))
	assert.Equal(t, []types.Point{points[0], points[3], points[6], points[9]}, stride(points, 4))
}
