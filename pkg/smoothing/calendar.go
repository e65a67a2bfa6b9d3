package smoothing

import (
	"time"

	"github.com/vjranagit/tsview/pkg/types"
)

// monthWindow is one UTC calendar month and the bucket time it maps to
type monthWindow struct {
	from, to int64
	mid      int64
}

func (w monthWindow) contains(ts int64) bool {
	return ts >= w.from && ts < w.to
}

// calendarMonthBuckets groups points by UTC calendar month. The bucket time
// is midnight of the day in the middle of the month. Consecutive points
// usually fall into the same month, so the last window is reused.
func calendarMonthBuckets(points []types.Point) map[int64][]float64 {
	buckets := make(map[int64][]float64)

	var window monthWindow
	for i, p := range points {
		if i == 0 || !window.contains(p.Timestamp) {
			window = monthOf(p.Timestamp)
		}
		buckets[window.mid] = append(buckets[window.mid], p.Value)
	}
	return buckets
}

func monthOf(ts int64) monthWindow {
	t := time.UnixMilli(ts).UTC()
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	next := start.AddDate(0, 1, 0)

	mid := time.UnixMilli((start.UnixMilli() + next.UnixMilli()) / 2).UTC()
	midnight := time.Date(mid.Year(), mid.Month(), mid.Day(), 0, 0, 0, 0, time.UTC)

	return monthWindow{
		from: start.UnixMilli(),
		to:   next.UnixMilli(),
		mid:  midnight.UnixMilli(),
	}
}
