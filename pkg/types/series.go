package types

import (
	"sort"
	"strings"
)

// TimeSeries is an ordered sequence of points plus the dimension labels
// identifying it. "*" means wildcard, "" means unset.
type TimeSeries struct {
	Project     string  `json:"project" yaml:"project"`
	HostGroup   string  `json:"host_group,omitempty" yaml:"host_group"`
	Host        string  `json:"host,omitempty" yaml:"host"`
	Namespace   string  `json:"namespace,omitempty" yaml:"namespace"`
	Service     string  `json:"service,omitempty" yaml:"service"`
	Pod         string  `json:"pod,omitempty" yaml:"pod"`
	Container   string  `json:"container,omitempty" yaml:"container"`
	Measurement string  `json:"measurement,omitempty" yaml:"measurement"`
	Process     string  `json:"process,omitempty" yaml:"process"`
	MetricGroup string  `json:"metric_group,omitempty" yaml:"metric_group"`
	MetricName  string  `json:"metric_name" yaml:"metric_name"`
	Points      []Point `json:"points" yaml:"points"`
}

// Len returns the number of points
func (s *TimeSeries) Len() int {
	return len(s.Points)
}

// Start returns the timestamp of the first point, 0 for an empty series
func (s *TimeSeries) Start() int64 {
	if len(s.Points) == 0 {
		return 0
	}
	return s.Points[0].Timestamp
}

// End returns the timestamp of the last point, 0 for an empty series
func (s *TimeSeries) End() int64 {
	if len(s.Points) == 0 {
		return 0
	}
	return s.Points[len(s.Points)-1].Timestamp
}

// AddPoint appends a single point keeping timestamp order
func (s *TimeSeries) AddPoint(p Point) {
	s.AddPoints([]Point{p})
}

// AddPoints appends points, re-sorting only when the block does not
// continue the existing sequence.
func (s *TimeSeries) AddPoints(points []Point) {
	if len(points) == 0 {
		return
	}
	continues := len(s.Points) == 0 || s.End() <= points[0].Timestamp
	s.Points = append(s.Points, points...)
	if !continues || !isSorted(points) {
		sort.SliceStable(s.Points, func(i, j int) bool {
			return s.Points[i].Timestamp < s.Points[j].Timestamp
		})
	}
}

// SetSortedPoints replaces the points with a sequence already ordered by timestamp
func (s *TimeSeries) SetSortedPoints(points []Point) {
	s.Points = points
}

func isSorted(points []Point) bool {
	for i := 1; i < len(points); i++ {
		if points[i].Timestamp < points[i-1].Timestamp {
			return false
		}
	}
	return true
}

func (s *TimeSeries) labelRefs() []*string {
	return []*string{
		&s.Project, &s.HostGroup, &s.Host,
		&s.Namespace, &s.Service, &s.Pod, &s.Container,
		&s.Measurement, &s.Process, &s.MetricGroup, &s.MetricName,
	}
}

// GroupingKey returns the composite of dimension labels identifying one
// logical series across fetch pages. Concat mode leaves out the measurement.
func (s *TimeSeries) GroupingKey(concat bool) string {
	var b strings.Builder
	for _, ref := range s.labelRefs() {
		if concat && ref == &s.Measurement {
			b.WriteString("|")
			continue
		}
		b.WriteString(*ref)
		b.WriteString("|")
	}
	return b.String()
}

// MergeMetadata sets every label on which s and other disagree to "*"
func (s *TimeSeries) MergeMetadata(other *TimeSeries) {
	mine, theirs := s.labelRefs(), other.labelRefs()
	for i := range mine {
		if *mine[i] != *theirs[i] {
			*mine[i] = Wildcard
		}
	}
}

// CopyMetadata returns a series carrying the labels of s and no points
func (s *TimeSeries) CopyMetadata() TimeSeries {
	c := *s
	c.Points = nil
	return c
}

// DisplayName renders the discriminating labels for charts and logs
func (s *TimeSeries) DisplayName() string {
	parts := make([]string, 0, 8)
	for _, label := range []string{
		s.HostGroup, s.Host, s.Namespace, s.Pod,
		s.Process, s.MetricGroup, s.MetricName,
	} {
		if label == "" || label == Wildcard {
			continue
		}
		parts = append(parts, label)
	}
	return strings.Join(parts, " | ")
}
