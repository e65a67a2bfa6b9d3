package storage

import (
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/vjranagit/tsview/pkg/types"
)

// Index maps series fingerprints to metadata and keeps an inverted
// label index per project.
type Index struct {
	mu sync.RWMutex
	// Maps series fingerprint to series metadata
	series map[uint64]*seriesMetadata
	// Inverted index: project -> label name -> label value -> series IDs
	labelIndex map[string]map[string]map[string][]uint64
	// All series IDs per project
	projects map[string][]uint64
}

// seriesMetadata holds the labels and extent of a stored series
type seriesMetadata struct {
	ID         uint64           `json:"id"`
	Labels     types.TimeSeries `json:"labels"`
	MinTime    int64            `json:"min_time"`
	MaxTime    int64            `json:"max_time"`
	PointCount int64            `json:"point_count"`
}

// NewIndex creates a new index
func NewIndex() *Index {
	return &Index{
		series:     make(map[uint64]*seriesMetadata),
		labelIndex: make(map[string]map[string]map[string][]uint64),
		projects:   make(map[string][]uint64),
	}
}

// AddSeries registers the labels of s and returns its fingerprint. The
// second result is true when the series was not indexed before.
func (idx *Index) AddSeries(s *types.TimeSeries) (uint64, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	fingerprint := Fingerprint(s)
	if _, exists := idx.series[fingerprint]; exists {
		return fingerprint, false
	}

	idx.insertLocked(&seriesMetadata{ID: fingerprint, Labels: s.CopyMetadata()})
	return fingerprint, true
}

// Restore inserts metadata loaded from disk
func (idx *Index) Restore(meta *seriesMetadata) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, exists := idx.series[meta.ID]; exists {
		return
	}
	idx.insertLocked(meta)
}

func (idx *Index) insertLocked(meta *seriesMetadata) {
	idx.series[meta.ID] = meta

	project := meta.Labels.Project
	idx.projects[project] = append(idx.projects[project], meta.ID)

	names := idx.labelIndex[project]
	if names == nil {
		names = make(map[string]map[string][]uint64)
		idx.labelIndex[project] = names
	}
	for name, value := range types.Labels(&meta.Labels) {
		if names[name] == nil {
			names[name] = make(map[string][]uint64)
		}
		names[name][value] = append(names[name][value], meta.ID)
	}
}

// GetSeries returns a copy of the metadata of a series
func (idx *Index) GetSeries(id uint64) (seriesMetadata, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	meta, ok := idx.series[id]
	if !ok {
		return seriesMetadata{}, false
	}
	return *meta, true
}

// UpdateExtent widens the time range of a series and adds to its point count
func (idx *Index) UpdateExtent(id uint64, minTime, maxTime, added int64) (seriesMetadata, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	meta, ok := idx.series[id]
	if !ok {
		return seriesMetadata{}, false
	}
	if meta.PointCount == 0 || minTime < meta.MinTime {
		meta.MinTime = minTime
	}
	if meta.PointCount == 0 || maxTime > meta.MaxTime {
		meta.MaxTime = maxTime
	}
	meta.PointCount += added
	return *meta, true
}

// FindSeries returns the IDs of the series matching filter, sorted ascending
func (idx *Index) FindSeries(filter *types.FilterParams) []uint64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	project := filter.Project.Name
	var result []uint64
	first := true

	for name, value := range filter.Selectors() {
		ids := idx.labelIndex[project][name][value]
		if len(ids) == 0 {
			return nil
		}
		if first {
			result = append([]uint64(nil), ids...)
			first = false
		} else {
			result = intersect(result, ids)
		}
		if len(result) == 0 {
			return nil
		}
	}
	if first {
		result = append([]uint64(nil), idx.projects[project]...)
	}

	matched := result[:0]
	for _, id := range result {
		meta := idx.series[id]
		if meta.PointCount > 0 && filter.Overlaps(meta.MinTime, meta.MaxTime) {
			matched = append(matched, id)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i] < matched[j] })
	return matched
}

// PointCount sums the stored points of a project
func (idx *Index) PointCount(project string) int64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var total int64
	for _, id := range idx.projects[project] {
		total += idx.series[id].PointCount
	}
	return total
}

// SeriesCount returns the number of indexed series
func (idx *Index) SeriesCount() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.series)
}

// Fingerprint hashes the project and all dimension labels of s
func Fingerprint(s *types.TimeSeries) uint64 {
	return xxhash.Sum64String(s.GroupingKey(false))
}

// intersect finds common elements in two slices
func intersect(a, b []uint64) []uint64 {
	sort.Slice(a, func(i, j int) bool { return a[i] < a[j] })
	sorted := append([]uint64(nil), b...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	result := make([]uint64, 0)
	i, j := 0, 0

	for i < len(a) && j < len(sorted) {
		if a[i] < sorted[j] {
			i++
		} else if a[i] > sorted[j] {
			j++
		} else {
			result = append(result, a[i])
			i++
			j++
		}
	}

	return result
}
