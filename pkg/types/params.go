package types

// InitialCursorID starts a fresh cursor walk
const InitialCursorID = "*"

// DefaultThreshold is the default point budget of a computation
const DefaultThreshold = 10000

// Project identifies where series live. Split-source projects are queried
// live from an external system and cap the series fetched per query.
type Project struct {
	Name        string `json:"name" yaml:"name"`
	SplitSource bool   `json:"split_source,omitempty" yaml:"split_source"`
}

// FilterParams selects series by dimension labels and time range.
// Empty or "*" labels match anything; Start/End of -1 leave the range open.
type FilterParams struct {
	Project     Project `json:"project"`
	HostGroup   string  `json:"host_group,omitempty"`
	Host        string  `json:"host,omitempty"`
	Namespace   string  `json:"namespace,omitempty"`
	Service     string  `json:"service,omitempty"`
	Pod         string  `json:"pod,omitempty"`
	Container   string  `json:"container,omitempty"`
	Measurement string  `json:"measurement,omitempty"`
	Process     string  `json:"process,omitempty"`
	MetricGroup string  `json:"metric_group,omitempty"`
	MetricName  string  `json:"metric_name,omitempty"`
	Start       int64   `json:"start"`
	End         int64   `json:"end"`
}

// NewFilterParams creates filter params for a project with an open time range
func NewFilterParams(project Project) FilterParams {
	return FilterParams{Project: project, Start: -1, End: -1}
}

// Selectors returns the discriminating label filters keyed by label name
func (f *FilterParams) Selectors() map[string]string {
	all := map[string]string{
		"host_group":   f.HostGroup,
		"host":         f.Host,
		"namespace":    f.Namespace,
		"service":      f.Service,
		"pod":          f.Pod,
		"container":    f.Container,
		"measurement":  f.Measurement,
		"process":      f.Process,
		"metric_group": f.MetricGroup,
		"metric_name":  f.MetricName,
	}
	selectors := make(map[string]string, len(all))
	for name, value := range all {
		if value != "" && value != Wildcard {
			selectors[name] = value
		}
	}
	return selectors
}

// InRange reports whether ts lies in the filter's time range
func (f *FilterParams) InRange(ts int64) bool {
	if f.Start >= 0 && ts < f.Start {
		return false
	}
	if f.End >= 0 && ts > f.End {
		return false
	}
	return true
}

// Overlaps reports whether [minTime, maxTime] intersects the filter's time range
func (f *FilterParams) Overlaps(minTime, maxTime int64) bool {
	if f.Start >= 0 && maxTime < f.Start {
		return false
	}
	if f.End >= 0 && minTime > f.End {
		return false
	}
	return true
}

// Labels returns the dimension labels of s keyed the same way as Selectors
func Labels(s *TimeSeries) map[string]string {
	return map[string]string{
		"host_group":   s.HostGroup,
		"host":         s.Host,
		"namespace":    s.Namespace,
		"service":      s.Service,
		"pod":          s.Pod,
		"container":    s.Container,
		"measurement":  s.Measurement,
		"process":      s.Process,
		"metric_group": s.MetricGroup,
		"metric_name":  s.MetricName,
	}
}

// ComputeParams controls the combine, smoothing and simplification steps
type ComputeParams struct {
	CombineMode          CombineMode          `json:"combine_mode"`
	SmoothingType        SmoothingType        `json:"smoothing_type"`
	SmoothingGranularity SmoothingGranularity `json:"smoothing_granularity"`
	// Threshold is the total point budget. 0 enables value-change
	// filtering and disables geometric simplification.
	Threshold int `json:"threshold"`
}

// DefaultComputeParams returns params that fetch without combining or smoothing
func DefaultComputeParams() ComputeParams {
	return ComputeParams{
		CombineMode:          CombineNone,
		SmoothingType:        SmoothingNone,
		SmoothingGranularity: GranularityAuto,
		Threshold:            DefaultThreshold,
	}
}

// Query is an open cursor-based query against a data source
type Query struct {
	ID              string
	Filter          FilterParams
	TransitiveLimit int
	TotalHits       int64
}

// Page is one batch of series returned by a cursor
type Page struct {
	TotalHits int64
	CursorID  string
	Series    []TimeSeries
	Aborted   bool
	Consumed  bool
}
