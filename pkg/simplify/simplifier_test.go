package simplify

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vjranagit/tsview/pkg/types"
)

func zigzag(n int) []Coordinate {
	out := make([]Coordinate, n)
	for i := range out {
		y := 0.0
		if i%2 == 1 {
			y = 1
		}
		out[i] = Coordinate{X: float64(i), Y: y}
	}
	return out
}

func noisy(n int, seed int64) []Coordinate {
	r := rand.New(rand.NewSource(seed))
	out := make([]Coordinate, n)
	for i := range out {
		out[i] = Coordinate{X: float64(i * 1000), Y: math.Sin(float64(i)/10)*100 + r.Float64()*20}
	}
	return out
}

func TestSimplifyEmptyLine(t *testing.T) {
	_, err := Simplify(nil, 1)
	assert.ErrorIs(t, err, ErrEmptyLine)
}

func TestSimplifyShortLines(t *testing.T) {
	one := []Coordinate{{X: 1, Y: 1}}
	out, err := Simplify(one, 100)
	require.NoError(t, err)
	assert.Equal(t, one, out)

	two := []Coordinate{{X: 1, Y: 1}, {X: 2, Y: 5}}
	out, err = Simplify(two, 100)
	require.NoError(t, err)
	assert.Equal(t, two, out)
}

func TestSimplifyPreservesEndpoints(t *testing.T) {
	for _, tol := range []float64{0, 0.5, 5, 50, 500, math.Inf(1)} {
		in := noisy(500, 7)
		out, err := Simplify(in, tol)
		require.NoError(t, err)

		require.GreaterOrEqual(t, len(out), 2)
		assert.Equal(t, in[0], out[0])
		assert.Equal(t, in[len(in)-1], out[len(out)-1])
	}
}

func TestSimplifyMonotoneInTolerance(t *testing.T) {
	in := noisy(2000, 42)
	previous := len(in) + 1
	for _, tol := range []float64{0, 0.01, 0.1, 1, 5, 10, 50, 100, 1000} {
		out, err := Simplify(in, tol)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(out), previous, "tolerance %v", tol)
		previous = len(out)
	}
}

func TestSimplifyZeroToleranceKeepsNonCollinearPoints(t *testing.T) {
	in := zigzag(101)
	out, err := Simplify(in, 0)
	require.NoError(t, err)

	assert.Equal(t, in, out)
}

func TestSimplifyCollinearCollapses(t *testing.T) {
	in := make([]Coordinate, 10000)
	for i := range in {
		in[i] = Coordinate{X: float64(i), Y: 2*float64(i) + 1}
	}

	out, err := Simplify(in, 1)
	require.NoError(t, err)

	assert.Equal(t, []Coordinate{in[0], in[len(in)-1]}, out)
}

func TestSimplifyZeroToleranceCollapsesCollinearPoints(t *testing.T) {
	for name, in := range map[string][]Coordinate{
		"flat":     {{X: 0, Y: 5}, {X: 1, Y: 5}, {X: 2, Y: 5}, {X: 3, Y: 5}},
		"rising":   {{X: 0, Y: 1}, {X: 1, Y: 3}, {X: 2, Y: 5}, {X: 3, Y: 7}, {X: 4, Y: 9}},
		"uneven x": {{X: 0, Y: 0}, {X: 1, Y: -1}, {X: 5, Y: -5}, {X: 6, Y: -6}},
	} {
		t.Run(name, func(t *testing.T) {
			out, err := Simplify(in, 0)
			require.NoError(t, err)

			assert.Equal(t, []Coordinate{in[0], in[len(in)-1]}, out)
		})
	}
}

func TestSimplifyKeepsPeak(t *testing.T) {
	in := []Coordinate{{X: 0, Y: 0}, {X: 1, Y: 0.1}, {X: 2, Y: 10}, {X: 3, Y: 0.1}, {X: 4, Y: 0}}
	out, err := Simplify(in, 1)
	require.NoError(t, err)

	assert.Equal(t, []Coordinate{{X: 0, Y: 0}, {X: 2, Y: 10}, {X: 4, Y: 0}}, out)
}

func TestSimplifyBoundaryTolerance(t *testing.T) {
	in := []Coordinate{{X: 0, Y: 0}, {X: 4, Y: 3}, {X: 8, Y: 0}}

	out, err := Simplify(in, 3)
	require.NoError(t, err)
	assert.Len(t, out, 2, "distance equal to tolerance is dropped")

	out, err = Simplify(in, 2.999)
	require.NoError(t, err)
	assert.Len(t, out, 3)
}

func TestSimplifyPointsKeepsInputPoints(t *testing.T) {
	in := []types.Point{
		{Timestamp: 1000, Value: 1},
		{Timestamp: 2000, Value: 1},
		{Timestamp: 3000, Value: 50},
		{Timestamp: 4000, Value: 1},
	}
	out := SimplifyPoints(in, 0.5)

	assert.Equal(t, in, out)
	assert.Empty(t, SimplifyPoints(nil, 1))
}
