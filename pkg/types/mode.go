package types

import (
	"fmt"
	"strings"
)

// CombineMode selects how series of one logical metric are merged and at
// which bucket granularity.
type CombineMode int

const (
	CombineNone CombineMode = iota
	CombineConcat
	CombineSumExact
	CombineSumSec
	CombineSumMin
	CombineSumHour
	CombineSumDay
	CombineSumMonth
	CombineAvgExact
	CombineAvgSec
	CombineAvgMin
	CombineAvgHour
	CombineAvgDay
	CombineAvgMonth
)

// Bucket presets in milliseconds
const (
	BucketSecond int64 = 1000
	BucketMinute int64 = 60_000
	BucketHour   int64 = 3_600_000
	BucketDay    int64 = 86_400_000
	BucketMonth  int64 = 2_628_000_000
)

// Aggregation is the tag of a combine mode
type Aggregation int

const (
	AggregationNone Aggregation = iota
	AggregationConcat
	AggregationSum
	AggregationAvg
)

var combineModeNames = map[CombineMode]string{
	CombineNone:     "NONE",
	CombineConcat:   "CONCAT",
	CombineSumExact: "SUM_EXACT",
	CombineSumSec:   "SUM_SEC",
	CombineSumMin:   "SUM_MIN",
	CombineSumHour:  "SUM_HOUR",
	CombineSumDay:   "SUM_DAY",
	CombineSumMonth: "SUM_MONTH",
	CombineAvgExact: "AVG_EXACT",
	CombineAvgSec:   "AVG_SEC",
	CombineAvgMin:   "AVG_MIN",
	CombineAvgHour:  "AVG_HOUR",
	CombineAvgDay:   "AVG_DAY",
	CombineAvgMonth: "AVG_MONTH",
}

func (m CombineMode) String() string {
	if name, ok := combineModeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("CombineMode(%d)", int(m))
}

// Aggregation returns the tag of the mode
func (m CombineMode) Aggregation() Aggregation {
	switch {
	case m == CombineNone:
		return AggregationNone
	case m == CombineConcat:
		return AggregationConcat
	case m >= CombineSumExact && m <= CombineSumMonth:
		return AggregationSum
	case m >= CombineAvgExact && m <= CombineAvgMonth:
		return AggregationAvg
	}
	return AggregationNone
}

// BucketPreset returns the fixed bucket width of the mode. ok is false for
// exact modes, which use the analyzed sampling interval instead.
func (m CombineMode) BucketPreset() (size int64, ok bool) {
	switch m {
	case CombineSumSec, CombineAvgSec:
		return BucketSecond, true
	case CombineSumMin, CombineAvgMin:
		return BucketMinute, true
	case CombineSumHour, CombineAvgHour:
		return BucketHour, true
	case CombineSumDay, CombineAvgDay:
		return BucketDay, true
	case CombineSumMonth, CombineAvgMonth:
		return BucketMonth, true
	}
	return 0, false
}

// MergesSeries reports whether the mode merges distinct series at all
func (m CombineMode) MergesSeries() bool {
	return m != CombineNone
}

// MarshalText implements encoding.TextMarshaler
func (m CombineMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (m *CombineMode) UnmarshalText(text []byte) error {
	parsed, err := ParseCombineMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseCombineMode parses a mode name such as "SUM_MIN"
func ParseCombineMode(s string) (CombineMode, error) {
	for mode, name := range combineModeNames {
		if strings.EqualFold(name, s) {
			return mode, nil
		}
	}
	return CombineNone, fmt.Errorf("%w: %q", ErrUnsupportedCombineMode, s)
}

// SmoothingType selects the reducer applied to each smoothing bucket
type SmoothingType int

const (
	SmoothingNone SmoothingType = iota
	SmoothingAvg
	SmoothingMin
	SmoothingMax
	SmoothingSum
	SmoothingMedian
	SmoothingValueCount
	SmoothingDiff
)

var smoothingTypeNames = map[SmoothingType]string{
	SmoothingNone:       "NONE",
	SmoothingAvg:        "AVG",
	SmoothingMin:        "MIN",
	SmoothingMax:        "MAX",
	SmoothingSum:        "SUM",
	SmoothingMedian:     "MEDIAN",
	SmoothingValueCount: "VALUE_COUNT",
	SmoothingDiff:       "DIFF",
}

func (t SmoothingType) String() string {
	if name, ok := smoothingTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("SmoothingType(%d)", int(t))
}

// MarshalText implements encoding.TextMarshaler
func (t SmoothingType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (t *SmoothingType) UnmarshalText(text []byte) error {
	parsed, err := ParseSmoothingType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseSmoothingType parses a smoothing type name such as "MEDIAN"
func ParseSmoothingType(s string) (SmoothingType, error) {
	for t, name := range smoothingTypeNames {
		if strings.EqualFold(name, s) {
			return t, nil
		}
	}
	return SmoothingNone, fmt.Errorf("%w: type %q", ErrUnsupportedSmoothing, s)
}

// SmoothingGranularity is the bucket width used by the smoother
type SmoothingGranularity int

const (
	GranularityAuto SmoothingGranularity = iota
	GranularityOff
	GranularitySeconds
	GranularityMinute
	GranularityHour
	GranularityDay
	GranularityWeek
	GranularityMonth
	GranularityCalendarMonth
	GranularityQuarter
	GranularityHalfYear
)

var granularityNames = map[SmoothingGranularity]string{
	GranularityAuto:          "AUTO",
	GranularityOff:           "OFF",
	GranularitySeconds:       "SECONDS",
	GranularityMinute:        "MINUTE",
	GranularityHour:          "HOUR",
	GranularityDay:           "DAY",
	GranularityWeek:          "WEEK",
	GranularityMonth:         "MONTH",
	GranularityCalendarMonth: "CALENDAR_MONTH",
	GranularityQuarter:       "QUARTER",
	GranularityHalfYear:      "HALF_YEAR",
}

var granularityDivisors = map[SmoothingGranularity]int64{
	GranularitySeconds:  1000,
	GranularityMinute:   60_000,
	GranularityHour:     3_600_000,
	GranularityDay:      86_400_000,
	GranularityWeek:     604_800_000,
	GranularityMonth:    2_628_000_000,
	GranularityQuarter:  7_889_231_499,
	GranularityHalfYear: 15_778_462_998,
}

func (g SmoothingGranularity) String() string {
	if name, ok := granularityNames[g]; ok {
		return name
	}
	return fmt.Sprintf("SmoothingGranularity(%d)", int(g))
}

// Divisor returns the fixed bucket width of g. ok is false for AUTO, OFF
// and CALENDAR_MONTH, which derive buckets from the data.
func (g SmoothingGranularity) Divisor() (int64, bool) {
	d, ok := granularityDivisors[g]
	return d, ok
}

// MarshalText implements encoding.TextMarshaler
func (g SmoothingGranularity) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (g *SmoothingGranularity) UnmarshalText(text []byte) error {
	parsed, err := ParseSmoothingGranularity(string(text))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

// ParseSmoothingGranularity parses a granularity name such as "CALENDAR_MONTH"
func ParseSmoothingGranularity(s string) (SmoothingGranularity, error) {
	for g, name := range granularityNames {
		if strings.EqualFold(name, s) {
			return g, nil
		}
	}
	return GranularityAuto, fmt.Errorf("%w: granularity %q", ErrUnsupportedSmoothing, s)
}
