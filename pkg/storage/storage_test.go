package storage

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vjranagit/tsview/pkg/query"
	"github.com/vjranagit/tsview/pkg/types"
)

var _ query.DataAccess = (*Store)(nil)

func newTestStore(t *testing.T, cfg *Config) *Store {
	t.Helper()
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Path == "./data" || cfg.Path == "" {
		cfg.Path = t.TempDir()
	}

	store, err := NewStorage(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testSeries(host, metric string, points ...types.Point) types.TimeSeries {
	return types.TimeSeries{
		Host:        host,
		Measurement: "cpu",
		MetricName:  metric,
		Points:      points,
	}
}

func fetchAll(t *testing.T, store *Store, filter types.FilterParams) []types.TimeSeries {
	t.Helper()
	ctx := context.Background()

	q, err := store.OpenQuery(ctx, filter, math.MaxInt)
	require.NoError(t, err)

	var series []types.TimeSeries
	cursorID := types.InitialCursorID
	for {
		page, err := store.FetchPage(ctx, q, cursorID)
		require.NoError(t, err)
		series = append(series, page.Series...)
		if page.Consumed {
			return series
		}
		cursorID = page.CursorID
	}
}

func TestStoreWriteAndFetch(t *testing.T) {
	store := newTestStore(t, nil)
	ctx := context.Background()

	// spans two hourly blocks, written out of order
	series := testSeries("web-1", "usage",
		types.Point{Timestamp: 1_700_003_700_000, Value: 3},
		types.Point{Timestamp: 1_700_000_000_000, Value: 1},
		types.Point{Timestamp: 1_700_000_060_000, Value: 2},
	)
	require.NoError(t, store.Write(ctx, "shop", []types.TimeSeries{series}))

	result := fetchAll(t, store, types.NewFilterParams(types.Project{Name: "shop"}))
	require.Len(t, result, 1)
	assert.Equal(t, "shop", result[0].Project)
	assert.Equal(t, "web-1", result[0].Host)
	assert.Equal(t, []types.Point{
		{Timestamp: 1_700_000_000_000, Value: 1},
		{Timestamp: 1_700_000_060_000, Value: 2},
		{Timestamp: 1_700_003_700_000, Value: 3},
	}, result[0].Points)
}

func TestStoreOverwriteTimestamp(t *testing.T) {
	store := newTestStore(t, nil)
	ctx := context.Background()

	first := testSeries("web-1", "usage", types.Point{Timestamp: 1000, Value: 1}, types.Point{Timestamp: 2000, Value: 2})
	second := testSeries("web-1", "usage", types.Point{Timestamp: 2000, Value: 20}, types.Point{Timestamp: 3000, Value: 30})

	require.NoError(t, store.Write(ctx, "shop", []types.TimeSeries{first}))
	require.NoError(t, store.Write(ctx, "shop", []types.TimeSeries{second}))

	result := fetchAll(t, store, types.NewFilterParams(types.Project{Name: "shop"}))
	require.Len(t, result, 1)
	require.Len(t, result[0].Points, 3)
	assert.Equal(t, 20.0, result[0].Points[1].Value, "later write wins")

	count, err := store.AmountMeasuredPointsInProject(ctx, "shop")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestStoreNonFiniteValues(t *testing.T) {
	store := newTestStore(t, nil)
	require.True(t, store.cfg.EnableJournal)
	ctx := context.Background()

	series := testSeries("web-1", "usage",
		types.Point{Timestamp: 1000, Value: math.NaN()},
		types.Point{Timestamp: 2000, Value: math.Inf(1)},
		types.Point{Timestamp: 3000, Value: 3},
	)
	require.NoError(t, store.Write(ctx, "shop", []types.TimeSeries{series}))

	result := fetchAll(t, store, types.NewFilterParams(types.Project{Name: "shop"}))
	require.Len(t, result, 1)
	require.Len(t, result[0].Points, 3)
	assert.True(t, math.IsNaN(result[0].Points[0].Value))
	assert.True(t, math.IsInf(result[0].Points[1].Value, 1))
	assert.Equal(t, 3.0, result[0].Points[2].Value)
}

func TestStoreFilterByLabelsAndTime(t *testing.T) {
	store := newTestStore(t, nil)
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, "shop", []types.TimeSeries{
		testSeries("web-1", "usage", types.Point{Timestamp: 1000, Value: 1}, types.Point{Timestamp: 5000, Value: 5}),
		testSeries("web-2", "usage", types.Point{Timestamp: 1000, Value: 2}),
		testSeries("web-1", "idle", types.Point{Timestamp: 9000, Value: 9}),
	}))
	require.NoError(t, store.Write(ctx, "other", []types.TimeSeries{testSeries("web-1", "usage", types.Point{Timestamp: 1000, Value: 7})}))

	filter := types.NewFilterParams(types.Project{Name: "shop"})
	filter.Host = "web-1"
	assert.Len(t, fetchAll(t, store, filter), 2)

	filter.MetricName = "usage"
	filter.Start = 2000
	got := fetchAll(t, store, filter)
	require.Len(t, got, 1)
	assert.Equal(t, []types.Point{{Timestamp: 5000, Value: 5}}, got[0].Points)

	filter.Host = types.Wildcard
	filter.Start = -1
	filter.End = 500
	assert.Empty(t, fetchAll(t, store, filter))
}

func TestStorePaging(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PageSize = 2
	store := newTestStore(t, cfg)
	ctx := context.Background()

	var input []types.TimeSeries
	for _, host := range []string{"a", "b", "c", "d", "e"} {
		input = append(input, testSeries(host, "usage", types.Point{Timestamp: 1000, Value: 1}))
	}
	require.NoError(t, store.Write(ctx, "shop", input))

	q, err := store.OpenQuery(ctx, types.NewFilterParams(types.Project{Name: "shop"}), math.MaxInt)
	require.NoError(t, err)
	assert.Equal(t, int64(5), q.TotalHits)

	pages := 0
	seen := 0
	cursorID := types.InitialCursorID
	for {
		page, err := store.FetchPage(ctx, q, cursorID)
		require.NoError(t, err)
		pages++
		seen += len(page.Series)
		assert.Equal(t, int64(5), page.TotalHits)
		if page.Consumed {
			assert.Empty(t, page.CursorID)
			break
		}
		cursorID = page.CursorID
	}

	assert.Equal(t, 3, pages)
	assert.Equal(t, 5, seen)
	assert.Zero(t, store.cursors.size(), "consumed cursor is released")
}

func TestStoreTransitiveLimitAborts(t *testing.T) {
	store := newTestStore(t, nil)
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, "live", []types.TimeSeries{
		testSeries("a", "usage", types.Point{Timestamp: 1000, Value: 1}),
		testSeries("b", "usage", types.Point{Timestamp: 1000, Value: 1}),
		testSeries("c", "usage", types.Point{Timestamp: 1000, Value: 1}),
	}))

	q, err := store.OpenQuery(ctx, types.NewFilterParams(types.Project{Name: "live", SplitSource: true}), 2)
	require.NoError(t, err)
	page, err := store.FetchPage(ctx, q, types.InitialCursorID)
	require.NoError(t, err)

	assert.True(t, page.Aborted)
	assert.Equal(t, int64(3), page.TotalHits)
	assert.Empty(t, page.Series)
}

func TestStoreUnknownCursor(t *testing.T) {
	store := newTestStore(t, nil)
	ctx := context.Background()

	q, err := store.OpenQuery(ctx, types.NewFilterParams(types.Project{Name: "shop"}), math.MaxInt)
	require.NoError(t, err)
	_, err = store.FetchPage(ctx, q, "missing")
	assert.ErrorIs(t, err, ErrCursorNotFound)
}

func TestStoreRejectsInvalidWrites(t *testing.T) {
	store := newTestStore(t, nil)
	ctx := context.Background()

	assert.ErrorIs(t, store.Write(ctx, "", nil), ErrEmptyProject)

	bad := testSeries("a", "usage", types.Point{Timestamp: types.MaxTimestamp + 1, Value: 1})
	assert.ErrorIs(t, store.Write(ctx, "shop", []types.TimeSeries{bad}), types.ErrTimestampOutOfRange)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	good := testSeries("a", "usage", types.Point{Timestamp: 1000, Value: 1})
	assert.ErrorIs(t, store.Write(cancelled, "shop", []types.TimeSeries{good}), context.Canceled)
}

func TestStoreReopenRestoresIndex(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	cfg := DefaultConfig()
	cfg.Path = dir
	store, err := NewStorage(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, store.Write(ctx, "shop", []types.TimeSeries{
		testSeries("a", "usage", types.Point{Timestamp: 1000, Value: 1}, types.Point{Timestamp: 2000, Value: 2}),
	}))
	require.NoError(t, store.Close())

	cfg = DefaultConfig()
	cfg.Path = dir
	reopened := newTestStore(t, cfg)

	got := fetchAll(t, reopened, types.NewFilterParams(types.Project{Name: "shop"}))
	require.Len(t, got, 1)
	assert.Len(t, got[0].Points, 2)

	count, err := reopened.AmountMeasuredPointsInProject(ctx, "shop")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestStoreReplaysLeftoverJournal(t *testing.T) {
	dir := t.TempDir()

	// a journal left behind by a crashed process
	journal, err := OpenJournal(dir)
	require.NoError(t, err)
	series := []types.TimeSeries{testSeries("a", "usage",
		types.Point{Timestamp: 1000, Value: 4},
		types.Point{Timestamp: 2000, Value: math.NaN()},
	)}
	require.NoError(t, journal.Append("shop", series))
	require.NoError(t, journal.Close(false))

	cfg := DefaultConfig()
	cfg.Path = dir
	store := newTestStore(t, cfg)

	got := fetchAll(t, store, types.NewFilterParams(types.Project{Name: "shop"}))
	require.Len(t, got, 1)
	require.Len(t, got[0].Points, 2)
	assert.Equal(t, 4.0, got[0].Points[0].Value)
	assert.True(t, math.IsNaN(got[0].Points[1].Value))
}

func TestMergePoints(t *testing.T) {
	existing := []types.Point{{Timestamp: 1, Value: 1}, {Timestamp: 3, Value: 3}}
	fresh := []types.Point{{Timestamp: 2, Value: 2}, {Timestamp: 3, Value: 30}, {Timestamp: 3, Value: 31}}

	assert.Equal(t, []types.Point{
		{Timestamp: 1, Value: 1},
		{Timestamp: 2, Value: 2},
		{Timestamp: 3, Value: 31},
	}, mergePoints(existing, fresh))
}
