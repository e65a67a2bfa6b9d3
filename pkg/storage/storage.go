// Package storage is a local badger backed data source. Series are stored
// as compressed hourly blocks and read back through paged cursors.
package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vjranagit/tsview/pkg/metrics"
	"github.com/vjranagit/tsview/pkg/types"
)

// blockSpan is the width of a stored block in milliseconds
const blockSpan = int64(time.Hour / time.Millisecond)

var (
	metaPrefix  = []byte("s/")
	blockPrefix = []byte("b/")
)

// ErrEmptyProject is returned when a write names no project
var ErrEmptyProject = errors.New("project name is empty")

// Config holds storage configuration
type Config struct {
	Path             string
	CompressionLevel int
	PageSize         int
	CursorTTL        time.Duration
	CountCacheTTL    time.Duration
	EnableJournal    bool
}

// DefaultConfig returns default storage configuration
func DefaultConfig() *Config {
	return &Config{
		Path:             "./data",
		CompressionLevel: 2,
		PageSize:         100,
		CursorTTL:        5 * time.Minute,
		CountCacheTTL:    30 * time.Second,
		EnableJournal:    true,
	}
}

// Store implements the cursor based data source on top of BadgerDB
type Store struct {
	cfg        *Config
	db         *badger.DB
	index      *Index
	compressor *Compressor
	counts     *CountCache
	cursors    *cursorRegistry
	journal    *Journal
	logger     *zap.Logger
	mu         sync.Mutex
}

// NewStorage opens the store at cfg.Path, restores the series index and
// replays any journal left behind by an unclean shutdown.
func NewStorage(cfg *Config, logger *zap.Logger) (*Store, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultConfig().PageSize
	}

	opts := badger.DefaultOptions(filepath.Join(cfg.Path, "badger"))
	opts.Logger = nil // Disable BadgerDB logging

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}

	compressor, err := NewCompressor(cfg.CompressionLevel)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create compressor: %w", err)
	}

	counts, err := NewCountCache(cfg.CountCacheTTL)
	if err != nil {
		compressor.Close()
		db.Close()
		return nil, err
	}

	s := &Store{
		cfg:        cfg,
		db:         db,
		index:      NewIndex(),
		compressor: compressor,
		counts:     counts,
		cursors:    newCursorRegistry(cfg.CursorTTL),
		logger:     logger,
	}

	if err := s.restoreIndex(); err != nil {
		s.Close()
		return nil, err
	}

	if cfg.EnableJournal {
		replayed, err := ReplayJournal(cfg.Path, s.apply)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to replay journal: %w", err)
		}
		if replayed > 0 {
			logger.Info("replayed journal", zap.Int("entries", replayed))
		}

		s.journal, err = OpenJournal(cfg.Path)
		if err != nil {
			s.Close()
			return nil, err
		}
	}

	logger.Info("storage opened",
		zap.String("path", cfg.Path),
		zap.Int("series", s.index.SeriesCount()),
	)
	return s, nil
}

func (s *Store) restoreIndex() error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = metaPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var meta seriesMetadata
				if err := json.Unmarshal(val, &meta); err != nil {
					return fmt.Errorf("failed to unmarshal series metadata: %w", err)
				}
				s.index.Restore(&meta)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Write stores series under project. Points sharing a timestamp with a
// stored point replace it.
func (s *Store) Write(ctx context.Context, project string, series []types.TimeSeries) error {
	if project == "" {
		return ErrEmptyProject
	}
	for i := range series {
		for _, p := range series[i].Points {
			if err := types.ValidateTimestamp(p.Timestamp); err != nil {
				return fmt.Errorf("invalid point in series %s: %w", series[i].DisplayName(), err)
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.journal != nil {
		if err := s.journal.Append(project, series); err != nil {
			return err
		}
	}
	return s.applyLocked(project, series)
}

// apply is the journal replay handler
func (s *Store) apply(project string, series []types.TimeSeries) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyLocked(project, series)
}

func (s *Store) applyLocked(project string, series []types.TimeSeries) error {
	var written int64
	for i := range series {
		if series[i].Len() == 0 {
			continue
		}
		labels := series[i].CopyMetadata()
		labels.Project = project

		added, err := s.writeSeries(&labels, series[i].Points)
		if err != nil {
			return fmt.Errorf("failed to write series %s: %w", labels.DisplayName(), err)
		}
		written += added
	}

	s.counts.Invalidate(project)
	metrics.PointsWritten.WithLabelValues(project).Add(float64(written))
	return nil
}

// writeSeries merges points into the blocks of a series and persists its
// metadata. It returns the number of new timestamps.
func (s *Store) writeSeries(labels *types.TimeSeries, points []types.Point) (int64, error) {
	seriesID, _ := s.index.AddSeries(labels)
	blocks := groupByBlock(points)

	var added int64
	minTime, maxTime := points[0].Timestamp, points[0].Timestamp
	err := s.db.Update(func(txn *badger.Txn) error {
		for blockStart, fresh := range blocks {
			key := generateKey(seriesID, blockStart)

			existing, err := s.readBlockTxn(txn, key)
			if err != nil {
				return err
			}
			merged := mergePoints(existing, fresh)
			added += int64(len(merged) - len(existing))

			if err := txn.Set(key, s.compressor.EncodeBlock(merged)); err != nil {
				return err
			}
			minTime = min(minTime, merged[0].Timestamp)
			maxTime = max(maxTime, merged[len(merged)-1].Timestamp)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	meta, _ := s.index.UpdateExtent(seriesID, minTime, maxTime, added)
	payload, err := json.Marshal(&meta)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal series metadata: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(metaKey(seriesID), payload)
	})
	return added, err
}

func (s *Store) readBlockTxn(txn *badger.Txn, key []byte) ([]types.Point, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var points []types.Point
	err = item.Value(func(val []byte) error {
		points, err = s.compressor.DecodeBlock(val)
		return err
	})
	return points, err
}

// OpenQuery prepares a query over the series matching filter
func (s *Store) OpenQuery(ctx context.Context, filter types.FilterParams, transitiveLimit int) (*types.Query, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &types.Query{
		ID:              uuid.NewString(),
		Filter:          filter,
		TransitiveLimit: transitiveLimit,
		TotalHits:       int64(len(s.index.FindSeries(&filter))),
	}, nil
}

// FetchPage returns up to PageSize series. The initial cursor resolves the
// filter; a match count above the transitive limit aborts the page.
func (s *Store) FetchPage(ctx context.Context, q *types.Query, cursorID string) (*types.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cursorID == types.InitialCursorID {
		ids := s.index.FindSeries(&q.Filter)
		q.TotalHits = int64(len(ids))
		if len(ids) > q.TransitiveLimit {
			return &types.Page{TotalHits: q.TotalHits, Aborted: true, Consumed: true}, nil
		}
		cursorID = s.cursors.open(q.ID, ids)
		s.logger.Debug("cursor opened",
			zap.String("query", q.ID),
			zap.String("cursor", cursorID),
			zap.Int("series", len(ids)),
		)
	}

	ids, done, err := s.cursors.next(cursorID, q.ID, s.cfg.PageSize)
	if err != nil {
		return nil, err
	}

	page := &types.Page{
		TotalHits: q.TotalHits,
		Series:    make([]types.TimeSeries, 0, len(ids)),
		Consumed:  done,
	}
	if done {
		s.logger.Debug("cursor consumed", zap.String("query", q.ID), zap.String("cursor", cursorID))
	} else {
		page.CursorID = cursorID
	}

	err = s.db.View(func(txn *badger.Txn) error {
		for _, id := range ids {
			meta, ok := s.index.GetSeries(id)
			if !ok {
				continue
			}
			points, err := s.readSeries(txn, id, &q.Filter)
			if err != nil {
				return fmt.Errorf("failed to read series %d: %w", id, err)
			}
			if len(points) == 0 {
				continue
			}
			series := meta.Labels.CopyMetadata()
			series.SetSortedPoints(points)
			page.Series = append(page.Series, series)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return page, nil
}

// readSeries reads the points of a series inside the filter's time range
func (s *Store) readSeries(txn *badger.Txn, seriesID uint64, filter *types.FilterParams) ([]types.Point, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = seriesBlockPrefix(seriesID)
	it := txn.NewIterator(opts)
	defer it.Close()

	seek := opts.Prefix
	if filter.Start >= 0 {
		seek = generateKey(seriesID, filter.Start-filter.Start%blockSpan)
	}

	var points []types.Point
	for it.Seek(seek); it.Valid(); it.Next() {
		item := it.Item()
		blockStart := int64(binary.BigEndian.Uint64(item.Key()[len(opts.Prefix):]))
		if filter.End >= 0 && blockStart > filter.End {
			break
		}

		err := item.Value(func(val []byte) error {
			block, err := s.compressor.DecodeBlock(val)
			if err != nil {
				return err
			}
			for _, p := range block {
				if filter.InRange(p.Timestamp) {
					points = append(points, p)
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return points, nil
}

// AmountMeasuredPointsInProject returns the number of points stored for a project
func (s *Store) AmountMeasuredPointsInProject(ctx context.Context, project string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if count, ok := s.counts.Get(project); ok {
		return count, nil
	}
	count := s.index.PointCount(project)
	s.counts.Put(project, count)
	return count, nil
}

// Close flushes the journal and closes the store
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if s.journal != nil {
		// every journaled write has been applied
		errs = append(errs, s.journal.Close(true))
		s.journal = nil
	}
	if s.counts != nil {
		s.counts.Close()
		s.counts = nil
	}
	if s.compressor != nil {
		s.compressor.Close()
		s.compressor = nil
	}
	if s.db != nil {
		errs = append(errs, s.db.Close())
		s.db = nil
	}
	return errors.Join(errs...)
}

// groupByBlock splits points into hourly blocks, each sorted by timestamp
func groupByBlock(points []types.Point) map[int64][]types.Point {
	blocks := make(map[int64][]types.Point)
	for _, p := range points {
		blockStart := p.Timestamp - p.Timestamp%blockSpan
		blocks[blockStart] = append(blocks[blockStart], types.Point{Timestamp: p.Timestamp, Value: p.Value})
	}
	for _, block := range blocks {
		sort.SliceStable(block, func(i, j int) bool { return block[i].Timestamp < block[j].Timestamp })
	}
	return blocks
}

// mergePoints merges two sorted blocks. On equal timestamps the last
// point of fresh wins.
func mergePoints(existing, fresh []types.Point) []types.Point {
	all := make([]types.Point, 0, len(existing)+len(fresh))
	all = append(all, existing...)
	all = append(all, fresh...)
	sort.SliceStable(all, func(i, j int) bool { return all[i].Timestamp < all[j].Timestamp })

	merged := all[:0]
	for i, p := range all {
		if i+1 < len(all) && all[i+1].Timestamp == p.Timestamp {
			continue
		}
		merged = append(merged, p)
	}
	return merged
}

// generateKey generates a storage key for a time block
func generateKey(seriesID uint64, blockStart int64) []byte {
	return binary.BigEndian.AppendUint64(seriesBlockPrefix(seriesID), uint64(blockStart))
}

func seriesBlockPrefix(seriesID uint64) []byte {
	key := make([]byte, 0, len(blockPrefix)+16)
	key = append(key, blockPrefix...)
	return binary.BigEndian.AppendUint64(key, seriesID)
}

func metaKey(seriesID uint64) []byte {
	key := make([]byte, 0, len(metaPrefix)+8)
	key = append(key, metaPrefix...)
	return binary.BigEndian.AppendUint64(key, seriesID)
}
