package types

import (
	"fmt"
	"time"
)

// MaxTimestamp is the upper bound for a sane timestamp (year 2100 in epoch millis)
const MaxTimestamp int64 = 4102441200000

// Wildcard marks a label that does not discriminate between series
const Wildcard = "*"

// Point represents a single (timestamp, value) sample of a series
type Point struct {
	Timestamp int64   `json:"timestamp" yaml:"timestamp"`
	Value     float64 `json:"value" yaml:"value"`

	// count is the number of values folded into Value by the accumulate operations
	count int
}

// NewPoint creates a new point holding a single value
func NewPoint(timestamp int64, value float64) Point {
	return Point{Timestamp: timestamp, Value: value, count: 1}
}

// AccumulateSum adds v to the point value
func (p *Point) AccumulateSum(v float64) {
	if p.count == 0 {
		p.count = 1
	}
	p.Value += v
	p.count++
}

// AccumulateAverage folds v into the running mean held by the point
func (p *Point) AccumulateAverage(v float64) {
	n := p.count
	if n == 0 {
		n = 1
	}
	p.Value = (p.Value*float64(n) + v) / float64(n+1)
	p.count = n + 1
}

// ValidateTimestamp checks that ts lies within [0, MaxTimestamp]
func ValidateTimestamp(ts int64) error {
	if ts < 0 || ts > MaxTimestamp {
		return fmt.Errorf("%w: %d", ErrTimestampOutOfRange, ts)
	}
	return nil
}

// GranularityResult is the earliest timestamp and bucket width of a batch of series
type GranularityResult struct {
	SmallestTimestamp int64
	BucketSize        int64
}

// NewGranularityResult creates a result, coercing a non-positive bucket size to 1
func NewGranularityResult(smallest, bucketSize int64) GranularityResult {
	if bucketSize <= 0 {
		bucketSize = 1
	}
	return GranularityResult{SmallestTimestamp: smallest, BucketSize: bucketSize}
}

// ProgressEvent is published once when a computation run completes
type ProgressEvent struct {
	Message         string
	Fraction        float64 // -1 when indeterminate
	TotalSeries     int64
	TotalValues     int64
	PointsInProject int64
	Duration        time.Duration
}
