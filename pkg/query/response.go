package query

import (
	"fmt"

	"github.com/vjranagit/tsview/pkg/types"
)

// State is the final state of a computation run
type State int

const (
	StateReady State = iota
	StateAborted
	StateLimitExceeded
	StateError
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "READY"
	case StateAborted:
		return "ABORTED"
	case StateLimitExceeded:
		return "LIMIT_EXCEEDED"
	case StateError:
		return "ERROR"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Response is the result of one computation run. Capacity aborts and
// upstream failures are states, not errors, and always carry the observed
// series count and the applied limit.
type Response struct {
	State           State              `json:"state"`
	Series          []types.TimeSeries `json:"series,omitempty"`
	TotalSeries     int64              `json:"total_series"`
	MaxSeriesLimit  int                `json:"max_series_limit"`
	TotalValues     int64              `json:"total_values"`
	PointsInProject int64              `json:"points_in_project"`
	Err             error              `json:"-"`
}

// IsAborted reports whether the run stopped before completing
func (r *Response) IsAborted() bool {
	return r.State == StateAborted
}

// IsLimitExceeded reports whether too many series matched
func (r *Response) IsLimitExceeded() bool {
	return r.State == StateLimitExceeded
}

// IsMaxSeriesLimitExceeded reports whether the observed count is above the limit
func (r *Response) IsMaxSeriesLimitExceeded() bool {
	return r.TotalSeries > int64(r.MaxSeriesLimit)
}

// HasError reports whether the data source failed
func (r *Response) HasError() bool {
	return r.State == StateError
}

// Message renders a user facing summary of a non-ready response
func (r *Response) Message() string {
	switch r.State {
	case StateAborted:
		if r.Err != nil {
			return fmt.Sprintf("query aborted: %v", r.Err)
		}
		return fmt.Sprintf("%d series match, limit is %d", r.TotalSeries, r.MaxSeriesLimit)
	case StateLimitExceeded:
		return fmt.Sprintf("%d series match, limit is %d", r.TotalSeries, r.MaxSeriesLimit)
	case StateError:
		if r.Err != nil {
			return r.Err.Error()
		}
		return "query failed"
	}
	return fmt.Sprintf("%d series with %d values", len(r.Series), r.TotalValues)
}
